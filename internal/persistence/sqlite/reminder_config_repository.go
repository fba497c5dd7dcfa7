package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/itadmin/internal/persistence"
)

// ReminderConfigRepository implements persistence.ReminderConfigRepository
// using SQLite. The table holds at most one row; callers go through
// GetOrCreateConfig before any read or write.
type ReminderConfigRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewReminderConfigRepository creates a new SQLite reminder config repository.
func NewReminderConfigRepository(pool *ConnectionPool) *ReminderConfigRepository {
	return &ReminderConfigRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const reminderConfigColumns = "id, title, enabled, day_mode, day_of_month, time_hhmm, timezone, categories, extra_emails, created_at, updated_at"

// GetOrCreateConfig returns the singleton configuration, inserting the
// provided defaults when no row exists yet. A concurrent insert race is
// resolved by re-reading the winner's row.
func (r *ReminderConfigRepository) GetOrCreateConfig(ctx context.Context, defaults persistence.ReminderConfig) (persistence.ReminderConfig, error) {
	cfg, err := r.getConfig(ctx)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, persistence.ErrNotFound) {
		return persistence.ReminderConfig{}, err
	}

	if defaults.ID == "" {
		return persistence.ReminderConfig{}, persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	defaults.CreatedAt = now
	defaults.UpdatedAt = now

	categories, extraEmails, err := encodeConfigLists(defaults)
	if err != nil {
		return persistence.ReminderConfig{}, err
	}

	_, err = r.helper.Exec(ctx, `
		INSERT INTO reminder_configs (`+reminderConfigColumns+`)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (SELECT 1 FROM reminder_configs)
	`,
		defaults.ID,
		defaults.Title,
		boolToInt(defaults.Enabled),
		defaults.Schedule.DayMode,
		defaults.Schedule.DayOfMonth,
		defaults.Schedule.TimeHHMM,
		defaults.Schedule.Timezone,
		categories,
		extraEmails,
		defaults.CreatedAt.Format(time.RFC3339),
		defaults.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		mapped := r.mapper.MapError(err)
		if !errors.Is(mapped, persistence.ErrDuplicate) {
			return persistence.ReminderConfig{}, mapped
		}
	}

	return r.getConfig(ctx)
}

// UpdateConfig overwrites the stored configuration.
func (r *ReminderConfigRepository) UpdateConfig(ctx context.Context, cfg persistence.ReminderConfig) error {
	if cfg.ID == "" {
		return persistence.ErrConstraintViolation
	}

	categories, extraEmails, err := encodeConfigLists(cfg)
	if err != nil {
		return err
	}

	result, err := r.helper.Exec(ctx, `
		UPDATE reminder_configs
		SET title = ?, enabled = ?, day_mode = ?, day_of_month = ?, time_hhmm = ?, timezone = ?, categories = ?, extra_emails = ?, updated_at = ?
		WHERE id = ?
	`,
		cfg.Title,
		boolToInt(cfg.Enabled),
		cfg.Schedule.DayMode,
		cfg.Schedule.DayOfMonth,
		cfg.Schedule.TimeHHMM,
		cfg.Schedule.Timezone,
		categories,
		extraEmails,
		time.Now().UTC().Format(time.RFC3339),
		cfg.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}

	return nil
}

func (r *ReminderConfigRepository) getConfig(ctx context.Context) (persistence.ReminderConfig, error) {
	row := r.helper.QueryRow(ctx, "SELECT "+reminderConfigColumns+" FROM reminder_configs LIMIT 1")

	var cfg persistence.ReminderConfig
	var enabled int
	var categoriesJSON, extraEmailsJSON string
	var createdAtStr, updatedAtStr string

	err := row.Scan(
		&cfg.ID,
		&cfg.Title,
		&enabled,
		&cfg.Schedule.DayMode,
		&cfg.Schedule.DayOfMonth,
		&cfg.Schedule.TimeHHMM,
		&cfg.Schedule.Timezone,
		&categoriesJSON,
		&extraEmailsJSON,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.ReminderConfig{}, persistence.ErrNotFound
		}
		return persistence.ReminderConfig{}, r.mapper.MapError(err)
	}

	cfg.Enabled = enabled != 0

	if err := json.Unmarshal([]byte(categoriesJSON), &cfg.Categories); err != nil {
		return persistence.ReminderConfig{}, fmt.Errorf("failed to decode categories: %w", err)
	}
	if err := json.Unmarshal([]byte(extraEmailsJSON), &cfg.ExtraEmails); err != nil {
		return persistence.ReminderConfig{}, fmt.Errorf("failed to decode extra emails: %w", err)
	}

	if cfg.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return persistence.ReminderConfig{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if cfg.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.ReminderConfig{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return cfg, nil
}

func encodeConfigLists(cfg persistence.ReminderConfig) (categories string, extraEmails string, err error) {
	cats := cfg.Categories
	if cats == nil {
		cats = []persistence.Category{}
	}
	catsJSON, err := json.Marshal(cats)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode categories: %w", err)
	}

	emails := cfg.ExtraEmails
	if emails == nil {
		emails = []string{}
	}
	emailsJSON, err := json.Marshal(emails)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode extra emails: %w", err)
	}

	return string(catsJSON), string(emailsJSON), nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
