// bloodlink — консольный клиент донорского бэкенда: сессия, профиль,
// поиск доноров, контакт с донором и месячный трекер.
//
// Использование:
//
//	bloodlink [--config path] <command> [args]
//
// Команды:
//
//	status                              статус сессии
//	register <name> <email>             регистрация (пароль из BLOODLINK_PASSWORD или stdin)
//	send-otp <email>                    отправить код подтверждения
//	verify-otp <email> <otp>            подтвердить email и войти
//	login <email>                       вход (пароль из BLOODLINK_PASSWORD или stdin)
//	logout                              выход
//	profile <email>                     показать профиль
//	search <city> <blood_group>         поиск доноров
//	contact <city> <blood_group> <n>    интерактивный контакт с n-м донором выдачи
//	tracker                             месячный трекер
//	messages                            входящие сообщения
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/Moneyhil/fyp-project/internal/api"
	"github.com/Moneyhil/fyp-project/internal/config"
	"github.com/Moneyhil/fyp-project/internal/donation"
	"github.com/Moneyhil/fyp-project/internal/pkg/log"
	"github.com/Moneyhil/fyp-project/internal/profile"
	"github.com/Moneyhil/fyp-project/internal/session"
	"github.com/Moneyhil/fyp-project/internal/store"
	"github.com/Moneyhil/fyp-project/internal/store/file"
	"github.com/Moneyhil/fyp-project/internal/store/redisstore"
)

// Константы для определения окружения.
const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: bloodlink [--config path] <command> [args]")
		os.Exit(2)
	}

	cfg := config.MustLoad(configPath)

	lg := setupLogger(cfg.Env)
	slog.SetDefault(lg)

	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	ctx := log.Into(rootCtx, lg)

	st, err := openStore(cfg.Store)
	if err != nil {
		lg.Error("store_open_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer st.Close()

	client := api.New(cfg.API.BaseURL, cfg.API.Timeout)
	mgr := session.New(st, client)

	if err := run(ctx, mgr, args[0], args[1:]); err != nil {
		lg.Error("command_failed",
			slog.String("command", args[0]),
			slog.String("err", err.Error()),
		)
		fmt.Fprintln(os.Stderr, "error:", userMessage(err))
		os.Exit(1)
	}
}

// run диспетчеризует подкоманду.
func run(ctx context.Context, mgr *session.Manager, command string, args []string) error {
	switch command {
	case "status":
		return cmdStatus(ctx, mgr)
	case "register":
		return cmdRegister(ctx, mgr, args)
	case "send-otp":
		return cmdSendOTP(ctx, mgr, args)
	case "verify-otp":
		return cmdVerifyOTP(ctx, mgr, args)
	case "login":
		return cmdLogin(ctx, mgr, args)
	case "logout":
		return mgr.Logout(ctx)
	case "profile":
		return cmdProfile(ctx, mgr, args)
	case "search":
		return cmdSearch(ctx, mgr, args)
	case "contact":
		return cmdContact(ctx, mgr, args)
	case "tracker":
		return cmdTracker(ctx, mgr)
	case "messages":
		return cmdMessages(ctx, mgr)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func cmdStatus(ctx context.Context, mgr *session.Manager) error {
	st, err := mgr.CheckAuthStatus(ctx)
	if err != nil {
		return err
	}

	if !st.Authenticated {
		fmt.Println("not authenticated")
		return nil
	}

	fmt.Printf("authenticated as %s <%s>\n", st.User.Name, st.User.Email)

	return nil
}

func cmdRegister(ctx context.Context, mgr *session.Manager, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: register <name> <email>")
	}

	password, err := readPassword()
	if err != nil {
		return err
	}

	if err := mgr.Register(ctx, args[0], args[1], password); err != nil {
		return err
	}

	fmt.Println("registered; confirm email with send-otp / verify-otp")

	return nil
}

func cmdSendOTP(ctx context.Context, mgr *session.Manager, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: send-otp <email>")
	}

	if err := mgr.SendOTP(ctx, args[0]); err != nil {
		return err
	}

	fmt.Println("otp sent")

	return nil
}

func cmdVerifyOTP(ctx context.Context, mgr *session.Manager, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: verify-otp <email> <otp>")
	}

	s, err := mgr.VerifyOTP(ctx, args[0], args[1])
	if err != nil {
		return err
	}

	fmt.Printf("email verified, logged in as %s\n", s.User.Email)

	return nil
}

func cmdLogin(ctx context.Context, mgr *session.Manager, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: login <email>")
	}

	password, err := readPassword()
	if err != nil {
		return err
	}

	s, err := mgr.Login(ctx, args[0], password)
	if err != nil {
		return err
	}

	fmt.Printf("logged in as %s\n", s.User.Email)

	return nil
}

func cmdProfile(ctx context.Context, mgr *session.Manager, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: profile <email>")
	}

	p, err := profile.New(mgr).ByEmail(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("%s (%s), %s, blood group %s, phone %s\n",
		p.FullName(), p.Role, p.City, p.BloodGroup, p.PhoneNumber)

	return nil
}

func cmdSearch(ctx context.Context, mgr *session.Manager, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: search <city> <blood_group>")
	}

	donors, err := profile.New(mgr).SearchDonors(ctx, args[0], args[1])
	if err != nil {
		return err
	}

	if len(donors) == 0 {
		fmt.Println("no donors found")
		return nil
	}

	for i, d := range donors {
		fmt.Printf("%d. %s %s, %s, %s, %s\n",
			i+1, d.FirstName, d.LastName, d.City, d.BloodGroup, d.PhoneNumber)
	}

	return nil
}

// cmdContact проводит полный сценарий контакта: поиск донора, создание
// запроса, звонок, фиксация звонка, запись ответа донора.
func cmdContact(ctx context.Context, mgr *session.Manager, args []string) error {
	if len(args) != 3 {
		return errors.New("usage: contact <city> <blood_group> <donor_number>")
	}

	n, err := strconv.Atoi(args[2])
	if err != nil || n < 1 {
		return errors.New("donor_number must be a positive integer")
	}

	donors, err := profile.New(mgr).SearchDonors(ctx, args[0], args[1])
	if err != nil {
		return err
	}

	if n > len(donors) {
		return fmt.Errorf("donor %d not in results (found %d)", n, len(donors))
	}

	donor := donors[n-1]
	reader := bufio.NewReader(os.Stdin)

	ctrl := donation.NewController(mgr)
	if err := ctrl.BeginContact(ctx, donor, args[1], ""); err != nil {
		return err
	}

	fmt.Printf("request created; call %s %s at %s\n", donor.FirstName, donor.LastName, donor.PhoneNumber)
	fmt.Print("press enter to start the call: ")
	if _, err := reader.ReadString('\n'); err != nil {
		return err
	}

	if err := ctrl.StartCall(); err != nil {
		return err
	}

	fmt.Print("press enter when the call is over: ")
	if _, err := reader.ReadString('\n'); err != nil {
		return err
	}

	// Сбой фиксации звонка не терминален: интервал сохранён, повторяем.
	for {
		if err := ctrl.CompleteCall(ctx); err == nil {
			break
		} else {
			fmt.Fprintln(os.Stderr, "call log failed:", userMessage(err))
			fmt.Print("retry? [y/N]: ")
			answer, readErr := reader.ReadString('\n')
			if readErr != nil {
				return readErr
			}
			if strings.TrimSpace(strings.ToLower(answer)) != "y" {
				return err
			}
		}
	}

	fmt.Print("did the donor agree to donate? [y/N]: ")
	answer, err := reader.ReadString('\n')
	if err != nil {
		return err
	}
	agreed := strings.TrimSpace(strings.ToLower(answer)) == "y"

	res, err := ctrl.Resolve(ctx, agreed)
	if err != nil {
		return err
	}

	fmt.Printf("response recorded, request status: %s\n", res.Status)
	if res.Agreed {
		if res.NotificationSent {
			fmt.Println("requester notified")
		} else {
			fmt.Println("warning: requester notification failed:", userMessage(res.NotificationErr))
		}
	}

	return nil
}

func cmdTracker(ctx context.Context, mgr *session.Manager) error {
	user, err := mgr.CurrentUser(ctx)
	if err != nil {
		return err
	}

	t, err := donation.Tracker(ctx, mgr, user.Email)
	if err != nil {
		return err
	}

	fmt.Printf("month %s: %d/%d calls (%.0f%%)\n",
		t.Month, t.CompletedCallsCount, donation.MonthlyGoal, donation.Progress(t)*100)

	if donation.GoalReached(t) {
		fmt.Println("monthly goal reached")
	} else {
		fmt.Printf("%d calls to go\n", donation.Remaining(t))
	}

	return nil
}

func cmdMessages(ctx context.Context, mgr *session.Manager) error {
	msgs, err := donation.Messages(ctx, mgr)
	if err != nil {
		return err
	}

	if len(msgs) == 0 {
		fmt.Println("no messages")
		return nil
	}

	for _, m := range msgs {
		mark := " "
		if !m.IsRead {
			mark = "*"
		}
		fmt.Printf("%s [%d] %s — %s\n", mark, m.ID, m.Subject, m.Content)
	}

	return nil
}

// openStore создаёт хранилище сессии по конфигурации.
func openStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case "", "file":
		return file.New(cfg.Path)
	case "redis":
		return redisstore.New(cfg.RedisURL, cfg.Prefix)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// readPassword берёт пароль из BLOODLINK_PASSWORD либо читает строку из stdin.
func readPassword() (string, error) {
	if pw := os.Getenv("BLOODLINK_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Print("password: ")
	pw, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}

	return strings.TrimRight(pw, "\r\n"), nil
}

// userMessage превращает ошибку в короткое сообщение для пользователя.
func userMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrNotAuthenticated):
		return "not logged in, run: bloodlink login <email>"
	case errors.Is(err, session.ErrSessionExpired):
		return "session expired, log in again"
	case errors.Is(err, api.ErrUnavailable):
		return "backend unavailable, try again later"
	default:
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			return apiErr.Message
		}

		return err.Error()
	}
}

// setupLogger настраивает slog по окружению.
func setupLogger(env string) *slog.Logger {
	var lg *slog.Logger

	switch env {
	case envLocal:
		lg = slog.New(
			slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		lg = slog.New(
			slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		lg = slog.New(
			slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		lg = slog.New(
			slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}

	return lg
}
