package application

import "time"

// Principal identifies the authenticated caller of an operation.
type Principal struct {
	UserID  string
	IsAdmin bool
}

// User represents an administrator account exposed by the application layer.
type User struct {
	ID          string
	Email       string
	DisplayName string
	IsAdmin     bool
	Disabled    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserCredentials couples an account with its stored password hash.
type UserCredentials struct {
	User         User
	PasswordHash string
	Disabled     bool
}

// Session represents an issued authentication session.
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

// AuthenticateParams carries a login request.
type AuthenticateParams struct {
	Email       string
	Password    string
	Fingerprint string
}

// AuthenticateResult is the outcome of a successful login.
type AuthenticateResult struct {
	User    User
	Session Session
}

// CreateUserParams carries an account creation request.
type CreateUserParams struct {
	Principal   Principal
	Email       string
	DisplayName string
	Password    string
	IsAdmin     bool
}

// UpdateUserParams carries a partial account update. Nil fields are left
// unchanged.
type UpdateUserParams struct {
	Principal   Principal
	UserID      string
	DisplayName *string
	Password    *string
	IsAdmin     *bool
	Disabled    *bool
}

// ScheduleRule describes when the monthly reminder becomes due.
type ScheduleRule struct {
	DayMode    string
	DayOfMonth int
	TimeHHMM   string
	Timezone   string
}

// Category is one billing document the reminder asks to collect.
type Category struct {
	Key   string
	Label string
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
type ReminderRun struct {
	ID        string
	ConfigID  string
	PeriodKey string
	DueAt     time.Time
	Status    RunStatus
	SentAt    *time.Time
	Attempts  int
	LastError string
}

// ReminderStatus is the live view of the current billing period's reminder.
type ReminderStatus struct {
	Enabled   bool
	Title     string
	PeriodKey string
	// DueAt is freshly computed from the current schedule. RunDueAt is the
	// value frozen into the period's run record; the two diverge when the
	// schedule was edited after the run was created.
	DueAt     time.Time
	RunDueAt  *time.Time
	Status    RunStatus
	SentAt    *time.Time
	Attempts  int
	LastError string
	Overdue   bool
}

// ScheduleRuleUpdate is a partial schedule edit. Nil fields are left unchanged.
type ScheduleRuleUpdate struct {
	DayMode    *string
	DayOfMonth *int
	TimeHHMM   *string
	Timezone   *string
}

// UpdateReminderConfigParams carries a partial configuration update merged
// into the singleton. Nil fields are left unchanged.
type UpdateReminderConfigParams struct {
	Principal   Principal
	Title       *string
	Enabled     *bool
	Schedule    *ScheduleRuleUpdate
	Categories  *[]Category
	ExtraEmails *[]string
}
