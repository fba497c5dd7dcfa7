package application

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/example/itadmin/internal/reminder"
)

// Defaults applied when the singleton configuration is created lazily.
const (
	defaultReminderTitle    = "Monthly Bills Reminder"
	defaultReminderDay      = 28
	defaultReminderTime     = "09:30"
	defaultReminderTimezone = "Asia/Colombo"
)

var timeHHMMPattern = regexp.MustCompile(`^\d{2}:\d{2}$`)

// ReminderStore persists the singleton reminder configuration.
type ReminderStore interface {
	// GetOrCreateConfig returns the configuration, creating it from the
	// provided defaults when none exists yet.
	GetOrCreateConfig(ctx context.Context, defaults ReminderConfig) (ReminderConfig, error)
	UpdateConfig(ctx context.Context, cfg ReminderConfig) error
}

// RunLedger persists per-period delivery records. GetOrCreateRun must be
// atomic on (configID, periodKey): concurrent callers for the same pair all
// observe a single record.
type RunLedger interface {
	GetOrCreateRun(ctx context.Context, run ReminderRun) (ReminderRun, error)
	GetRun(ctx context.Context, configID, periodKey string) (ReminderRun, error)
	MarkAttempt(ctx context.Context, runID string) error
	MarkSent(ctx context.Context, runID string, sentAt time.Time) error
	MarkFailed(ctx context.Context, runID string, message string) error
}

// NoticeDispatcher delivers a composed reminder notice.
type NoticeDispatcher interface {
	Dispatch(ctx context.Context, notice reminder.Notice) error
}

// ReminderService owns the billing reminder configuration, the live status
// view and the per-tick delivery pass.
type ReminderService struct {
	store       ReminderStore
	ledger      RunLedger
	dispatcher  NoticeDispatcher
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewReminderService creates a ReminderService.
func NewReminderService(
	store ReminderStore,
	ledger RunLedger,
	dispatcher NoticeDispatcher,
	idGenerator func() string,
	now func() time.Time,
) *ReminderService {
	if now == nil {
		now = time.Now
	}
	return &ReminderService{
		store:       store,
		ledger:      ledger,
		dispatcher:  dispatcher,
		idGenerator: idGenerator,
		now:         now,
	}
}

// WithLogger sets the base logger used when the context carries none.
func (s *ReminderService) WithLogger(logger *slog.Logger) *ReminderService {
	s.logger = logger
	return s
}

func (s *ReminderService) defaults() ReminderConfig {
	now := s.now()
	return ReminderConfig{
		ID:      s.idGenerator(),
		Title:   defaultReminderTitle,
		Enabled: true,
		Schedule: ScheduleRule{
			DayMode:    reminder.DayModeLastDay,
			DayOfMonth: defaultReminderDay,
			TimeHHMM:   defaultReminderTime,
			Timezone:   defaultReminderTimezone,
		},
		Categories: []Category{
			{Key: "internet", Label: "Internet Bills"},
			{Key: "printer", Label: "Printer Invoices"},
		},
		ExtraEmails: []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// GetConfig returns the configuration, creating it with defaults on first
// access.
func (s *ReminderService) GetConfig(ctx context.Context, principal Principal) (ReminderConfig, error) {
	if !principal.IsAdmin {
		return ReminderConfig{}, ErrUnauthorized
	}
	return s.store.GetOrCreateConfig(ctx, s.defaults())
}

// UpdateConfig merges a partial edit into the stored configuration and
// returns the result. Fields left nil keep their stored values.
func (s *ReminderService) UpdateConfig(ctx context.Context, params UpdateReminderConfigParams) (cfg ReminderConfig, err error) {
	logger := serviceLogger(ctx, defaultLogger(s.logger), "reminder_service", "update_config")
	defer func() {
		if err != nil {
			logger.Warn("reminder config update failed", "error_kind", ErrorKind(err))
			return
		}
		logger.Info("reminder config updated", "enabled", cfg.Enabled)
	}()

	if !params.Principal.IsAdmin {
		return ReminderConfig{}, ErrUnauthorized
	}

	cfg, err = s.store.GetOrCreateConfig(ctx, s.defaults())
	if err != nil {
		return ReminderConfig{}, err
	}

	vErr := &ValidationError{}

	if params.Title != nil {
		title := strings.TrimSpace(*params.Title)
		if title == "" {
			title = defaultReminderTitle
		}
		if len(title) > 120 {
			vErr.add("title", "title must be at most 120 characters")
		}
		cfg.Title = title
	}
	if params.Enabled != nil {
		cfg.Enabled = *params.Enabled
	}
	if params.Schedule != nil {
		mergeSchedule(&cfg.Schedule, *params.Schedule, vErr)
	}
	if params.Categories != nil {
		cfg.Categories = normalizeCategories(*params.Categories, vErr)
	}
	if params.ExtraEmails != nil {
		emails := reminder.NormalizeEmails(*params.ExtraEmails)
		for _, email := range emails {
			if !isValidEmail(email) {
				vErr.add("extraEmails", "extra emails must be valid addresses")
				break
			}
		}
		cfg.ExtraEmails = emails
	}

	if vErr.HasErrors() {
		return ReminderConfig{}, vErr
	}

	cfg.UpdatedAt = s.now()
	if err := s.store.UpdateConfig(ctx, cfg); err != nil {
		return ReminderConfig{}, err
	}
	return cfg, nil
}

func mergeSchedule(rule *ScheduleRule, update ScheduleRuleUpdate, vErr *ValidationError) {
	if update.DayMode != nil {
		switch *update.DayMode {
		case reminder.DayModeLastDay, reminder.DayModeCustomDay:
			rule.DayMode = *update.DayMode
		default:
			vErr.add("schedule.dayMode", "day mode must be lastDay or customDay")
		}
	}
	if update.DayOfMonth != nil {
		if *update.DayOfMonth < 1 || *update.DayOfMonth > 31 {
			vErr.add("schedule.dayOfMonth", "day of month must be between 1 and 31")
		} else {
			rule.DayOfMonth = *update.DayOfMonth
		}
	}
	if update.TimeHHMM != nil {
		if !timeHHMMPattern.MatchString(*update.TimeHHMM) {
			vErr.add("schedule.timeHHmm", "time must be in HH:MM format")
		} else {
			rule.TimeHHMM = *update.TimeHHMM
		}
	}
	if update.Timezone != nil {
		tz := strings.TrimSpace(*update.Timezone)
		if tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				vErr.add("schedule.timezone", "timezone must be a valid IANA zone name")
				return
			}
		}
		rule.Timezone = tz
	}
}

// normalizeCategories drops entries with blank keys and deduplicates by key,
// keeping the first occurrence's position and the last occurrence's label.
func normalizeCategories(categories []Category, vErr *ValidationError) []Category {
	index := make(map[string]int, len(categories))
	result := make([]Category, 0, len(categories))
	for _, category := range categories {
		key := strings.TrimSpace(category.Key)
		if key == "" {
			continue
		}
		label := strings.TrimSpace(category.Label)
		if label == "" {
			label = key
		}
		if at, ok := index[key]; ok {
			result[at].Label = label
			continue
		}
		index[key] = len(result)
		result = append(result, Category{Key: key, Label: label})
	}
	return result
}

// Status reports the live view of the current billing period: the due
// timestamp freshly computed from the schedule alongside the period's run
// record, if one exists.
func (s *ReminderService) Status(ctx context.Context, principal Principal) (ReminderStatus, error) {
	if !principal.IsAdmin {
		return ReminderStatus{}, ErrUnauthorized
	}

	cfg, err := s.store.GetOrCreateConfig(ctx, s.defaults())
	if err != nil {
		return ReminderStatus{}, err
	}

	now := s.now()
	loc := s.resolveLocation(ctx, cfg.Schedule.Timezone)
	dueAt := reminder.ComputeDueAt(now, scheduleFor(cfg.Schedule, loc))
	periodKey := reminder.PeriodKey(now.In(loc))

	status := ReminderStatus{
		Enabled:   cfg.Enabled,
		Title:     cfg.Title,
		PeriodKey: periodKey,
		DueAt:     dueAt,
		Status:    RunPending,
	}

	run, err := s.ledger.GetRun(ctx, cfg.ID, periodKey)
	switch {
	case err == nil:
		runDueAt := run.DueAt
		status.RunDueAt = &runDueAt
		status.Status = run.Status
		status.SentAt = run.SentAt
		status.Attempts = run.Attempts
		status.LastError = run.LastError
	case errors.Is(err, ErrNotFound):
		// No run yet this period; the status stays pending.
	default:
		return ReminderStatus{}, err
	}

	status.Overdue = cfg.Enabled && status.Status != RunSent && !dueAt.After(now)
	return status, nil
}

// SendTest dispatches the reminder immediately to the configured recipients.
// It never touches the run ledger and delivery errors are returned to the
// caller instead of being recorded.
func (s *ReminderService) SendTest(ctx context.Context, principal Principal) (err error) {
	logger := serviceLogger(ctx, defaultLogger(s.logger), "reminder_service", "send_test")
	defer func() {
		if err != nil {
			logger.Warn("test reminder failed", "error_kind", ErrorKind(err), "error", err)
			return
		}
		logger.Info("test reminder sent")
	}()

	if !principal.IsAdmin {
		return ErrUnauthorized
	}

	cfg, err := s.store.GetOrCreateConfig(ctx, s.defaults())
	if err != nil {
		return err
	}

	now := s.now()
	loc := s.resolveLocation(ctx, cfg.Schedule.Timezone)

	return s.dispatcher.Dispatch(ctx, reminder.Notice{
		Title:       cfg.Title,
		PeriodKey:   reminder.PeriodKey(now.In(loc)),
		DueAt:       reminder.ComputeDueAt(now, scheduleFor(cfg.Schedule, loc)),
		Categories:  noticeCategories(cfg.Categories),
		ExtraEmails: cfg.ExtraEmails,
		Test:        true,
	})
}

// RunTick performs one delivery pass: ensure the current period's run record
// exists, and deliver when the frozen due time has passed. Delivery outcomes
// are written into the ledger; only infrastructure failures are returned.
func (s *ReminderService) RunTick(ctx context.Context) error {
	logger := serviceLogger(ctx, defaultLogger(s.logger), "reminder_service", "run_tick")

	cfg, err := s.store.GetOrCreateConfig(ctx, s.defaults())
	if err != nil {
		return err
	}
	if !cfg.Enabled {
		return nil
	}

	now := s.now()
	loc := s.resolveLocation(ctx, cfg.Schedule.Timezone)
	periodKey := reminder.PeriodKey(now.In(loc))
	dueAt := reminder.ComputeDueAt(now, scheduleFor(cfg.Schedule, loc))

	// The due timestamp freezes when the record is created; later schedule
	// edits do not move an existing period's deadline.
	run, err := s.ledger.GetOrCreateRun(ctx, ReminderRun{
		ID:        s.idGenerator(),
		ConfigID:  cfg.ID,
		PeriodKey: periodKey,
		DueAt:     dueAt,
	})
	if err != nil {
		return err
	}

	if run.Status == RunSent {
		return nil
	}
	if now.Before(run.DueAt) {
		return nil
	}

	if err := s.ledger.MarkAttempt(ctx, run.ID); err != nil {
		return err
	}

	dispatchErr := s.dispatcher.Dispatch(ctx, reminder.Notice{
		Title:       cfg.Title,
		PeriodKey:   periodKey,
		DueAt:       run.DueAt,
		Categories:  noticeCategories(cfg.Categories),
		ExtraEmails: cfg.ExtraEmails,
	})
	if dispatchErr != nil {
		logger.Warn("reminder delivery failed",
			"period_key", periodKey,
			"error", dispatchErr,
		)
		if err := s.ledger.MarkFailed(ctx, run.ID, dispatchErr.Error()); err != nil {
			return err
		}
		// The failure is recorded in the ledger; the run retries next tick.
		return nil
	}

	if err := s.ledger.MarkSent(ctx, run.ID, s.now()); err != nil {
		return err
	}

	logger.Info("reminder sent", "period_key", periodKey, "due_at", run.DueAt)
	return nil
}

// resolveLocation loads the configured IANA zone, falling back to the server
// zone when the name is blank or unknown.
func (s *ReminderService) resolveLocation(ctx context.Context, timezone string) *time.Location {
	if strings.TrimSpace(timezone) == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		serviceLogger(ctx, defaultLogger(s.logger), "reminder_service", "").
			Warn("unknown timezone, falling back to server zone", "timezone", timezone)
		return time.Local
	}
	return loc
}

func scheduleFor(rule ScheduleRule, loc *time.Location) reminder.Schedule {
	return reminder.Schedule{
		DayMode:    rule.DayMode,
		DayOfMonth: rule.DayOfMonth,
		TimeOfDay:  rule.TimeHHMM,
		Location:   loc,
	}
}

func noticeCategories(categories []Category) []reminder.Category {
	result := make([]reminder.Category, 0, len(categories))
	for _, category := range categories {
		result = append(result, reminder.Category{Key: category.Key, Label: category.Label})
	}
	return result
}
