package donation

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Moneyhil/fyp-project/internal/models"
)

// MonthlyGoal — число успешных контактов в месяц, закрывающих цель.
const MonthlyGoal = 3

// Tracker запрашивает месячный трекер пользователя. Бэкенд — единственный
// источник истины по счётчику: клиент ничего не инкрементирует локально.
func Tracker(ctx context.Context, client API, userEmail string) (*models.MonthlyTracker, error) {
	const op = "donation.Tracker"

	path := "/monthly-tracker/?user_email=" + url.QueryEscape(userEmail)

	var out models.MonthlyTracker
	if err := client.Do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &out, nil
}

// Progress — доля выполнения месячной цели в диапазоне [0, 1].
func Progress(t *models.MonthlyTracker) float64 {
	if t == nil || t.CompletedCallsCount <= 0 {
		return 0
	}

	p := float64(t.CompletedCallsCount) / float64(MonthlyGoal)
	if p > 1 {
		return 1
	}

	return p
}

// Remaining — сколько контактов осталось до цели, не меньше нуля.
func Remaining(t *models.MonthlyTracker) int {
	if t == nil {
		return MonthlyGoal
	}

	r := MonthlyGoal - t.CompletedCallsCount
	if r < 0 {
		return 0
	}

	return r
}

// GoalReached — достигнута ли месячная цель.
func GoalReached(t *models.MonthlyTracker) bool {
	return t != nil && (t.MonthlyGoalCompleted || t.CompletedCallsCount >= MonthlyGoal)
}
