// donation реализует клиентский контроллер взаимодействия с донором:
// создание запроса на донацию, фиксацию звонка, журнал звонка, ответ
// донора и условное уведомление. Контроллер прогоняет один контакт
// через линейный конечный автомат и не даёт пропустить или повторить шаг.
package donation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Moneyhil/fyp-project/internal/models"
	"github.com/Moneyhil/fyp-project/internal/pkg/log"
)

// API — минимальный контракт аутентифицированного клиента бэкенда.
// Реализуется session.Manager; тесты подставляют функцию-заглушку.
type API interface {
	Do(ctx context.Context, method, path string, in, out any) error
}

// State — состояние контакта с донором.
type State int

const (
	// StateIdle — контакт не начат.
	StateIdle State = iota
	// StateRequestCreated — запрос на донацию создан на бэкенде.
	StateRequestCreated
	// StateCallInProgress — звонок начат, запись в журнале ещё не создана.
	StateCallInProgress
	// StateAwaitingResponse — звонок завершён и зафиксирован, ждём ответ донора.
	StateAwaitingResponse
	// StateResolved — ответ донора записан, контакт завершён.
	StateResolved
)

// String — имя состояния для логов и сообщений об ошибках.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequestCreated:
		return "request_created"
	case StateCallInProgress:
		return "call_in_progress"
	case StateAwaitingResponse:
		return "awaiting_response"
	case StateResolved:
		return "resolved"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Тексты ответа донора, уходящие на бэкенд вместе с решением.
const (
	notesAgreed   = "Agreed to donate blood"
	notesDeclined = "Declined blood donation request"
)

var (
	// ErrInvalidTransition — операция не соответствует текущему состоянию
	// контакта (например, Resolve до завершения звонка).
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrNoActiveCall — CompleteCall без начатого звонка.
	ErrNoActiveCall = errors.New("no active call")
)

// Attempt — один контакт с донором: идентификаторы сущностей бэкенда
// и временные метки звонка.
type Attempt struct {
	State     State
	RequestID int64
	CallLogID int64
	Donor     models.Donor
	CallStart time.Time
	CallEnd   time.Time
}

// Resolution — итог контакта. Частичный успех представлен явно:
// ответ донора записан (Status), но уведомление могло не уйти.
type Resolution struct {
	Agreed bool
	// Status — итоговый статус запроса, который вернул бэкенд.
	Status string
	// NotificationSent — true, если донор согласился и уведомление
	// реципиенту создано. Для отказа всегда false: уведомление не шлётся.
	NotificationSent bool
	// NotificationErr — ошибка отправки уведомления при согласии донора.
	// Ответ при этом уже записан; вызывающий показывает деградированный успех.
	NotificationErr error
}

// Controller ведёт один контакт с донором от создания запроса до ответа.
// Экземпляр одноразовый и не потокобезопасный: контакт — линейный
// сценарий одного пользователя на одном экране.
type Controller struct {
	api API
	now func() time.Time

	attempt Attempt
}

// NewController создаёт контроллер контакта.
func NewController(client API) *Controller {
	return &Controller{
		api: client,
		now: time.Now,
	}
}

// Attempt возвращает снимок текущего контакта.
func (c *Controller) Attempt() Attempt { return c.attempt }

// BeginContact создаёт запрос на донацию для выбранного донора.
// Успех переводит контакт в request_created и запоминает id запроса.
func (c *Controller) BeginContact(ctx context.Context, donor models.Donor, bloodGroup, notes string) error {
	const op = "donation.controller.BeginContact"

	if c.attempt.State != StateIdle {
		return fmt.Errorf("%s: %w: %s", op, ErrInvalidTransition, c.attempt.State)
	}

	in := struct {
		Donor      string `json:"donor"`
		BloodGroup string `json:"blood_group"`
		Notes      string `json:"notes,omitempty"`
	}{
		Donor:      donor.Email,
		BloodGroup: bloodGroup,
		Notes:      notes,
	}

	var out struct {
		Success           bool  `json:"success"`
		DonationRequestID int64 `json:"donation_request_id"`
	}

	if err := c.api.Do(ctx, http.MethodPost, "/donation-requests/create/", in, &out); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	c.attempt = Attempt{
		State:     StateRequestCreated,
		RequestID: out.DonationRequestID,
		Donor:     donor,
	}

	log.From(ctx).Info("donation_request_created",
		slog.String("op", op),
		slog.Int64("request_id", out.DonationRequestID),
		slog.Int64("donor_id", donor.ID),
	)

	return nil
}

// StartCall фиксирует момент начала звонка донору. Локальная операция:
// журнал на бэкенде создаётся позже, в CompleteCall, когда известен интервал.
func (c *Controller) StartCall() error {
	const op = "donation.controller.StartCall"

	if c.attempt.State != StateRequestCreated {
		return fmt.Errorf("%s: %w: %s", op, ErrInvalidTransition, c.attempt.State)
	}

	c.attempt.CallStart = c.now()
	c.attempt.State = StateCallInProgress

	return nil
}

// CompleteCall завершает звонок и создаёт запись журнала на бэкенде.
//
// Время окончания фиксируется один раз, при первом вызове: повторные
// попытки после сбоя сети отправляют тот же интервал, а не удлиняют его.
// При ошибке состояние остаётся call_in_progress — вызов можно повторить.
func (c *Controller) CompleteCall(ctx context.Context) error {
	const op = "donation.controller.CompleteCall"

	if c.attempt.State != StateCallInProgress {
		return fmt.Errorf("%s: %w", op, ErrNoActiveCall)
	}

	if c.attempt.CallEnd.IsZero() {
		c.attempt.CallEnd = c.now()
	}

	in := struct {
		Receiver      string `json:"receiver"`
		CallStartTime string `json:"call_start_time"`
		CallEndTime   string `json:"call_end_time"`
	}{
		Receiver:      c.attempt.Donor.Email,
		CallStartTime: c.attempt.CallStart.UTC().Format(time.RFC3339),
		CallEndTime:   c.attempt.CallEnd.UTC().Format(time.RFC3339),
	}

	var out struct {
		CallLog struct {
			ID int64 `json:"id"`
		} `json:"call_log"`
	}

	if err := c.api.Do(ctx, http.MethodPost, "/call-logs/create/", in, &out); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	c.attempt.CallLogID = out.CallLog.ID
	c.attempt.State = StateAwaitingResponse

	log.From(ctx).Info("call_logged",
		slog.String("op", op),
		slog.Int64("call_log_id", out.CallLog.ID),
		slog.Int64("request_id", c.attempt.RequestID),
	)

	return nil
}

// Resolve записывает ответ донора и, при согласии, уведомляет реципиента.
//
// Запись ответа и уведомление — два независимых вызова бэкенда.
// Сбой уведомления не откатывает записанный ответ: возвращается
// Resolution с NotificationErr, err при этом nil. Ошибка err != nil
// означает, что сам ответ записать не удалось и состояние не изменилось.
func (c *Controller) Resolve(ctx context.Context, agreed bool) (*Resolution, error) {
	const op = "donation.controller.Resolve"

	lg := log.From(ctx)

	if c.attempt.State != StateAwaitingResponse {
		return nil, fmt.Errorf("%s: %w: %s", op, ErrInvalidTransition, c.attempt.State)
	}

	notes := notesDeclined
	if agreed {
		notes = notesAgreed
	}

	in := struct {
		Response bool   `json:"response"`
		Notes    string `json:"notes"`
	}{Response: agreed, Notes: notes}

	var out struct {
		Success bool   `json:"success"`
		Status  string `json:"status"`
	}

	path := fmt.Sprintf("/donation-requests/%d/respond/", c.attempt.RequestID)
	if err := c.api.Do(ctx, http.MethodPost, path, in, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c.attempt.State = StateResolved

	res := &Resolution{
		Agreed: agreed,
		Status: out.Status,
	}

	if !agreed {
		lg.Info("donor_declined",
			slog.String("op", op),
			slog.Int64("request_id", c.attempt.RequestID),
		)

		return res, nil
	}

	if err := c.sendDonorNotification(ctx, agreed); err != nil {
		// Ответ уже записан; уведомление потеряно — деградированный успех.
		lg.Warn("donor_notification_failed",
			slog.String("op", op),
			slog.Int64("request_id", c.attempt.RequestID),
			slog.Int64("call_log_id", c.attempt.CallLogID),
			slog.String("err", err.Error()),
		)
		res.NotificationErr = err

		return res, nil
	}

	res.NotificationSent = true

	lg.Info("donor_agreed",
		slog.String("op", op),
		slog.Int64("request_id", c.attempt.RequestID),
	)

	return res, nil
}

// sendDonorNotification запускает подтверждающее письмо донору,
// ссылаясь на только что созданную запись журнала звонка.
func (c *Controller) sendDonorNotification(ctx context.Context, agreed bool) error {
	const op = "donation.controller.sendDonorNotification"

	in := struct {
		CallLogID   int64 `json:"call_log_id"`
		DonorAgreed bool  `json:"donor_agreed"`
	}{CallLogID: c.attempt.CallLogID, DonorAgreed: agreed}

	if err := c.api.Do(ctx, http.MethodPost, "/messages/send-donor-notification/", in, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Reset сбрасывает контроллер для нового контакта.
// Допустим только из терминального состояния либо до начала контакта.
func (c *Controller) Reset() error {
	const op = "donation.controller.Reset"

	if c.attempt.State != StateIdle && c.attempt.State != StateResolved {
		return fmt.Errorf("%s: %w: %s", op, ErrInvalidTransition, c.attempt.State)
	}

	c.attempt = Attempt{}

	return nil
}

// RequestLists — запросы на донацию текущего пользователя с обеих сторон.
type RequestLists struct {
	Made     []models.DonationRequest `json:"requests_made"`
	Received []models.DonationRequest `json:"requests_received"`
}

// Requests возвращает запросы, созданные пользователем и адресованные ему.
func Requests(ctx context.Context, client API) (*RequestLists, error) {
	const op = "donation.Requests"

	var out RequestLists
	if err := client.Do(ctx, http.MethodGet, "/donation-requests/", nil, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &out, nil
}
