package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/itadmin/internal/persistence"
)

// ReminderRunRepository implements persistence.ReminderRunRepository using
// SQLite. Run uniqueness per (config_id, period_key) rests on the table's
// unique index; GetOrCreateRun resolves insert races by reading back the
// winning row.
type ReminderRunRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewReminderRunRepository creates a new SQLite reminder run repository.
func NewReminderRunRepository(pool *ConnectionPool) *ReminderRunRepository {
	return &ReminderRunRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const reminderRunColumns = "id, config_id, period_key, due_at, status, sent_at, attempts, last_error, created_at, updated_at"

// GetOrCreateRun inserts the run when no record exists for the pair and
// returns the stored record either way. DueAt is set on insert only.
func (r *ReminderRunRepository) GetOrCreateRun(ctx context.Context, run persistence.ReminderRun) (persistence.ReminderRun, error) {
	if run.ID == "" || run.ConfigID == "" || run.PeriodKey == "" {
		return persistence.ReminderRun{}, persistence.ErrConstraintViolation
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.helper.Exec(ctx, `
		INSERT INTO reminder_runs (id, config_id, period_key, due_at, status, attempts, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, '', ?, ?)
		ON CONFLICT (config_id, period_key) DO NOTHING
	`,
		run.ID,
		run.ConfigID,
		run.PeriodKey,
		run.DueAt.UTC().Format(time.RFC3339),
		string(persistence.RunPending),
		now,
		now,
	)
	if err != nil {
		mapped := r.mapper.MapError(err)
		if !errors.Is(mapped, persistence.ErrDuplicate) {
			return persistence.ReminderRun{}, mapped
		}
	}

	return r.GetRun(ctx, run.ConfigID, run.PeriodKey)
}

// GetRun retrieves the run for a (config, period) pair.
func (r *ReminderRunRepository) GetRun(ctx context.Context, configID, periodKey string) (persistence.ReminderRun, error) {
	if configID == "" || periodKey == "" {
		return persistence.ReminderRun{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx,
		"SELECT "+reminderRunColumns+" FROM reminder_runs WHERE config_id = ? AND period_key = ?",
		configID, periodKey,
	)
	return r.scanRun(row)
}

// MarkAttempt increments the attempt counter and clears the last error.
// Sent runs are terminal and left untouched.
func (r *ReminderRunRepository) MarkAttempt(ctx context.Context, runID string) error {
	return r.updateRun(ctx, runID, `
		UPDATE reminder_runs
		SET attempts = attempts + 1, last_error = '', updated_at = ?
		WHERE id = ? AND status != 'sent'
	`, time.Now().UTC().Format(time.RFC3339), runID)
}

// MarkSent records a successful delivery. The transition is terminal.
func (r *ReminderRunRepository) MarkSent(ctx context.Context, runID string, sentAt time.Time) error {
	return r.updateRun(ctx, runID, `
		UPDATE reminder_runs
		SET status = 'sent', sent_at = ?, last_error = '', updated_at = ?
		WHERE id = ? AND status != 'sent'
	`, sentAt.UTC().Format(time.RFC3339), time.Now().UTC().Format(time.RFC3339), runID)
}

// MarkFailed records a failed delivery attempt. The run stays eligible for
// retry on a later tick. Sent runs are terminal and left untouched.
func (r *ReminderRunRepository) MarkFailed(ctx context.Context, runID string, message string) error {
	return r.updateRun(ctx, runID, `
		UPDATE reminder_runs
		SET status = 'failed', last_error = ?, updated_at = ?
		WHERE id = ? AND status != 'sent'
	`, message, time.Now().UTC().Format(time.RFC3339), runID)
}

func (r *ReminderRunRepository) updateRun(ctx context.Context, runID, query string, args ...any) error {
	if runID == "" {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx, query, args...)
	if err != nil {
		return r.mapper.MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	// Either the run does not exist or it is already sent.
	var one int
	err = r.helper.QueryRow(ctx, "SELECT 1 FROM reminder_runs WHERE id = ?", runID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrNotFound
	}
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

func (r *ReminderRunRepository) scanRun(row *sql.Row) (persistence.ReminderRun, error) {
	var run persistence.ReminderRun
	var status string
	var sentAt sql.NullString
	var dueAtStr, createdAtStr, updatedAtStr string

	err := row.Scan(
		&run.ID,
		&run.ConfigID,
		&run.PeriodKey,
		&dueAtStr,
		&status,
		&sentAt,
		&run.Attempts,
		&run.LastError,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.ReminderRun{}, persistence.ErrNotFound
		}
		return persistence.ReminderRun{}, r.mapper.MapError(err)
	}

	run.Status = persistence.RunStatus(status)

	if run.DueAt, err = time.Parse(time.RFC3339, dueAtStr); err != nil {
		return persistence.ReminderRun{}, fmt.Errorf("failed to parse due_at: %w", err)
	}
	if sentAt.Valid {
		parsed, err := time.Parse(time.RFC3339, sentAt.String)
		if err != nil {
			return persistence.ReminderRun{}, fmt.Errorf("failed to parse sent_at: %w", err)
		}
		run.SentAt = &parsed
	}
	if run.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return persistence.ReminderRun{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if run.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.ReminderRun{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return run, nil
}
