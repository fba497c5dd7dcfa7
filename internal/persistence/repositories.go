package persistence

import (
	"context"
	"time"
)

// ReminderConfigRepository stores the singleton billing reminder configuration.
type ReminderConfigRepository interface {
	// GetOrCreateConfig returns the existing configuration or inserts the
	// provided defaults when no row exists yet.
	GetOrCreateConfig(ctx context.Context, defaults ReminderConfig) (ReminderConfig, error)
	UpdateConfig(ctx context.Context, cfg ReminderConfig) error
}

// ReminderRunRepository stores per-period reminder delivery records.
type ReminderRunRepository interface {
	// GetOrCreateRun atomically inserts the run when no record exists for
	// (ConfigID, PeriodKey) and returns the stored record either way. The
	// supplied DueAt only takes effect on first creation.
	GetOrCreateRun(ctx context.Context, run ReminderRun) (ReminderRun, error)
	GetRun(ctx context.Context, configID, periodKey string) (ReminderRun, error)
	// MarkAttempt increments the attempt counter and clears the last error.
	MarkAttempt(ctx context.Context, runID string) error
	// MarkSent records a successful delivery. Sent is terminal: once a run
	// is sent neither MarkAttempt nor MarkFailed changes it.
	MarkSent(ctx context.Context, runID string, sentAt time.Time) error
	MarkFailed(ctx context.Context, runID string, message string) error
}

// UserRepository exposes CRUD operations for administrator accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id string) error
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}
