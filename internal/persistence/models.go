package persistence

import "time"

// DayMode selects how the due day of a billing period is determined.
const (
	DayModeLastDay   = "lastDay"
	DayModeCustomDay = "customDay"
)

// ScheduleRule describes when the monthly reminder becomes due.
type ScheduleRule struct {
	DayMode    string
	DayOfMonth int
	TimeHHMM   string
	Timezone   string
}

// Category is one billing document the reminder asks to collect.
type Category struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// ReminderConfig is the singleton billing reminder configuration.
type ReminderConfig struct {
	ID          string
	Title       string
	Enabled     bool
	Schedule    ScheduleRule
	Categories  []Category
	ExtraEmails []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RunStatus tracks the delivery state of a reminder run.
type RunStatus string

const (
	RunPending RunStatus = "pending"
	RunSent    RunStatus = "sent"
	RunFailed  RunStatus = "failed"
)

// ReminderRun is the idempotency record for one (config, period) reminder.
// DueAt is fixed when the record is first created and never recomputed.
type ReminderRun struct {
	ID        string
	ConfigID  string
	PeriodKey string
	DueAt     time.Time
	Status    RunStatus
	SentAt    *time.Time
	Attempts  int
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// User represents an administrator account.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	IsAdmin      bool
	Disabled     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session represents an authentication session persisted for a user.
type Session struct {
	ID          string
	UserID      string
	Token       string
	Fingerprint string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RevokedAt   *time.Time
}
