package models

import "time"

// DonationRequest — просьба о донации от запрашивающего к конкретному донору.
// Создаётся клиентом до звонка; статус и ответы принадлежат бэкенду.
type DonationRequest struct {
	ID            int64     `json:"id"`
	RequesterName string    `json:"requester_name"`
	Donor         string    `json:"donor"`
	DonorName     string    `json:"donor_name"`
	BloodGroup    string    `json:"blood_group"`
	UrgencyLevel  string    `json:"urgency_level"`
	Notes         string    `json:"notes"`
	Status        string    `json:"status"`
	Response      *bool     `json:"response,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// CallLog — запись о попытке дозвониться донору.
// С точки зрения клиента неизменяема после создания.
type CallLog struct {
	ID            int64     `json:"id"`
	Receiver      string    `json:"receiver"`
	CallStartTime time.Time `json:"call_start_time"`
	CallEndTime   time.Time `json:"call_end_time"`
}

// MonthlyTracker — серверный счётчик завершённых звонков донора за месяц.
// Только для чтения: клиент не инкрементирует счётчик локально.
type MonthlyTracker struct {
	UserEmail            string     `json:"user_email"`
	Month                string     `json:"month"`
	CompletedCallsCount  int        `json:"completed_calls_count"`
	MonthlyGoalCompleted bool       `json:"monthly_goal_completed"`
	GoalCompletedAt      *time.Time `json:"goal_completed_at"`
	Progress             string     `json:"progress"`
}

// Message — внутриприложенческое уведомление пользователя.
type Message struct {
	ID        int64     `json:"id"`
	Subject   string    `json:"subject"`
	Content   string    `json:"content"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}
