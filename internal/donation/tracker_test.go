package donation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Moneyhil/fyp-project/internal/models"
)

func TestTracker_QueryAndDecode(t *testing.T) {
	t.Parallel()

	rec := newRecorder()
	rec.responses["/monthly-tracker/?user_email=user%40example.com"] = map[string]any{
		"user_email":             "user@example.com",
		"month":                  "2025-06",
		"completed_calls_count":  2,
		"monthly_goal_completed": false,
	}

	tr, err := Tracker(context.Background(), rec.api(t), "user@example.com")
	require.NoError(t, err)
	require.Equal(t, "2025-06", tr.Month)
	require.Equal(t, 2, tr.CompletedCallsCount)
	require.False(t, tr.MonthlyGoalCompleted)
}

func TestTrackerHelpers(t *testing.T) {
	t.Parallel()

	require.Zero(t, Progress(nil))
	require.Equal(t, MonthlyGoal, Remaining(nil))
	require.False(t, GoalReached(nil))

	tr := &models.MonthlyTracker{CompletedCallsCount: 0}
	require.Zero(t, Progress(tr))
	require.Equal(t, 3, Remaining(tr))

	tr.CompletedCallsCount = 2
	require.InDelta(t, 2.0/3.0, Progress(tr), 1e-9)
	require.Equal(t, 1, Remaining(tr))
	require.False(t, GoalReached(tr))

	tr.CompletedCallsCount = 3
	require.Equal(t, 1.0, Progress(tr))
	require.Equal(t, 0, Remaining(tr))
	require.True(t, GoalReached(tr))

	// Счётчик выше цели не ломает индикаторы.
	tr.CompletedCallsCount = 5
	require.Equal(t, 1.0, Progress(tr))
	require.Equal(t, 0, Remaining(tr))
	require.True(t, GoalReached(tr))

	// Флаг бэкенда имеет приоритет над локальным подсчётом.
	flagged := &models.MonthlyTracker{CompletedCallsCount: 1, MonthlyGoalCompleted: true}
	require.True(t, GoalReached(flagged))
}
