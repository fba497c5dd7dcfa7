package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/itadmin/internal/application"
	"github.com/example/itadmin/internal/config"
	httptransport "github.com/example/itadmin/internal/http"
	"github.com/example/itadmin/internal/mail"
	"github.com/example/itadmin/internal/persistence"
	"github.com/example/itadmin/internal/persistence/sqlite"
	"github.com/example/itadmin/internal/reminder"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	pool, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := pool.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	idGenerator := uuid.NewString
	now := time.Now

	userStore := newUserStoreAdapter(sqlite.NewUserRepository(pool))
	sessionStore := newSessionStoreAdapter(sqlite.NewSessionRepository(pool), now)
	reminderStore := newReminderStoreAdapter(sqlite.NewReminderConfigRepository(pool))
	runLedger := newRunLedgerAdapter(sqlite.NewReminderRunRepository(pool))

	var mailer reminder.Mailer
	if cfg.MailConfigured() {
		mailer = mail.NewGraphClient(mail.GraphConfig{
			TenantID:     cfg.GraphTenantID,
			ClientID:     cfg.GraphClientID,
			ClientSecret: cfg.GraphClientSecret,
			Sender:       cfg.SenderEmail,
		})
	} else {
		logger.Warn("graph mail credentials are not configured, outgoing mail is disabled")
		mailer = unconfiguredMailer{}
	}
	dispatcher := reminder.NewDispatcher(mailer, cfg.AdminEmail, now, logger)

	authService := application.NewAuthService(userStore, sessionStore, userStore, cfg.SessionTTL, idGenerator, now).WithLogger(logger)
	userService := application.NewUserService(userStore, idGenerator, now).WithLogger(logger)
	reminderService := application.NewReminderService(reminderStore, runLedger, dispatcher, idGenerator, now).WithLogger(logger)

	scheduler := application.NewReminderScheduler(reminderService, cfg.ReminderInterval, logger)
	if err := scheduler.Start(ctx); err != nil {
		logger.Error("failed to start reminder scheduler", "error", err)
		os.Exit(1)
	}
	defer scheduler.Stop()

	authHandler := httptransport.NewAuthHandler(authService, logger)
	userHandler := httptransport.NewUserHandler(userService, logger)
	reminderHandler := httptransport.NewReminderHandler(reminderService, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:      authHandler,
		Users:     userHandler,
		Reminders: reminderHandler,
	})

	protected := httptransport.RequireSession(authService, logger)(router)
	handler := httptransport.RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sessions" && r.Method == http.MethodPost {
			router.ServeHTTP(w, r)
			return
		}
		protected.ServeHTTP(w, r)
	}))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("itadmin API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

// unconfiguredMailer stands in when Graph credentials are absent so scheduled
// sends fail with a clear message instead of a nil dereference.
type unconfiguredMailer struct{}

func (unconfiguredMailer) SendMail(context.Context, []string, string, string) error {
	return mail.ErrNotConfigured
}

func mapPersistenceError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return application.ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return application.ErrAlreadyExists
	default:
		return err
	}
}

type userStoreAdapter struct {
	repo persistence.UserRepository
}

func newUserStoreAdapter(repo persistence.UserRepository) *userStoreAdapter {
	return &userStoreAdapter{repo: repo}
}

func (a *userStoreAdapter) CreateUser(ctx context.Context, user application.User, passwordHash string) (application.User, error) {
	if err := a.repo.CreateUser(ctx, toPersistenceUser(user, passwordHash)); err != nil {
		return application.User{}, mapPersistenceError(err)
	}
	stored, err := a.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, mapPersistenceError(err)
	}
	return toApplicationUser(stored), nil
}

func (a *userStoreAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, mapPersistenceError(err)
	}
	return toApplicationUser(stored), nil
}

func (a *userStoreAdapter) UpdateUser(ctx context.Context, user application.User, passwordHash string) (application.User, error) {
	if passwordHash == "" {
		current, err := a.repo.GetUser(ctx, user.ID)
		if err != nil {
			return application.User{}, mapPersistenceError(err)
		}
		passwordHash = current.PasswordHash
	}
	if err := a.repo.UpdateUser(ctx, toPersistenceUser(user, passwordHash)); err != nil {
		return application.User{}, mapPersistenceError(err)
	}
	stored, err := a.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, mapPersistenceError(err)
	}
	return toApplicationUser(stored), nil
}

func (a *userStoreAdapter) DeleteUser(ctx context.Context, id string) error {
	return mapPersistenceError(a.repo.DeleteUser(ctx, id))
}

func (a *userStoreAdapter) ListUsers(ctx context.Context) ([]application.User, error) {
	models, err := a.repo.ListUsers(ctx)
	if err != nil {
		return nil, mapPersistenceError(err)
	}
	if len(models) == 0 {
		return nil, nil
	}
	users := make([]application.User, 0, len(models))
	for _, model := range models {
		users = append(users, toApplicationUser(model))
	}
	return users, nil
}

func (a *userStoreAdapter) GetCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, mapPersistenceError(err)
	}
	return application.UserCredentials{
		User:         toApplicationUser(stored),
		PasswordHash: stored.PasswordHash,
		Disabled:     stored.Disabled,
	}, nil
}

type sessionStoreAdapter struct {
	repo persistence.SessionRepository
	now  func() time.Time
}

func newSessionStoreAdapter(repo persistence.SessionRepository, now func() time.Time) *sessionStoreAdapter {
	return &sessionStoreAdapter{repo: repo, now: now}
}

func (a *sessionStoreAdapter) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.CreateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, mapPersistenceError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *sessionStoreAdapter) GetSessionByToken(ctx context.Context, token string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, token)
	if err != nil {
		return application.Session{}, mapPersistenceError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *sessionStoreAdapter) RevokeSession(ctx context.Context, token string) error {
	if _, err := a.repo.RevokeSession(ctx, token, a.now()); err != nil {
		return mapPersistenceError(err)
	}
	return nil
}

type reminderStoreAdapter struct {
	repo persistence.ReminderConfigRepository
}

func newReminderStoreAdapter(repo persistence.ReminderConfigRepository) *reminderStoreAdapter {
	return &reminderStoreAdapter{repo: repo}
}

func (a *reminderStoreAdapter) GetOrCreateConfig(ctx context.Context, defaults application.ReminderConfig) (application.ReminderConfig, error) {
	stored, err := a.repo.GetOrCreateConfig(ctx, toPersistenceConfig(defaults))
	if err != nil {
		return application.ReminderConfig{}, mapPersistenceError(err)
	}
	return toApplicationConfig(stored), nil
}

func (a *reminderStoreAdapter) UpdateConfig(ctx context.Context, cfg application.ReminderConfig) error {
	return mapPersistenceError(a.repo.UpdateConfig(ctx, toPersistenceConfig(cfg)))
}

type runLedgerAdapter struct {
	repo persistence.ReminderRunRepository
}

func newRunLedgerAdapter(repo persistence.ReminderRunRepository) *runLedgerAdapter {
	return &runLedgerAdapter{repo: repo}
}

func (a *runLedgerAdapter) GetOrCreateRun(ctx context.Context, run application.ReminderRun) (application.ReminderRun, error) {
	stored, err := a.repo.GetOrCreateRun(ctx, persistence.ReminderRun{
		ID:        run.ID,
		ConfigID:  run.ConfigID,
		PeriodKey: run.PeriodKey,
		DueAt:     run.DueAt,
	})
	if err != nil {
		return application.ReminderRun{}, mapPersistenceError(err)
	}
	return toApplicationRun(stored), nil
}

func (a *runLedgerAdapter) GetRun(ctx context.Context, configID, periodKey string) (application.ReminderRun, error) {
	stored, err := a.repo.GetRun(ctx, configID, periodKey)
	if err != nil {
		return application.ReminderRun{}, mapPersistenceError(err)
	}
	return toApplicationRun(stored), nil
}

func (a *runLedgerAdapter) MarkAttempt(ctx context.Context, runID string) error {
	return mapPersistenceError(a.repo.MarkAttempt(ctx, runID))
}

func (a *runLedgerAdapter) MarkSent(ctx context.Context, runID string, sentAt time.Time) error {
	return mapPersistenceError(a.repo.MarkSent(ctx, runID, sentAt))
}

func (a *runLedgerAdapter) MarkFailed(ctx context.Context, runID string, message string) error {
	return mapPersistenceError(a.repo.MarkFailed(ctx, runID, message))
}

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:          model.ID,
		Email:       model.Email,
		DisplayName: model.DisplayName,
		IsAdmin:     model.IsAdmin,
		Disabled:    model.Disabled,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceUser(user application.User, passwordHash string) persistence.User {
	return persistence.User{
		ID:           user.ID,
		Email:        strings.ToLower(strings.TrimSpace(user.Email)),
		DisplayName:  user.DisplayName,
		PasswordHash: passwordHash,
		IsAdmin:      user.IsAdmin,
		Disabled:     user.Disabled,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func toApplicationSession(model persistence.Session) application.Session {
	return application.Session{
		ID:          model.ID,
		UserID:      model.UserID,
		Token:       model.Token,
		Fingerprint: model.Fingerprint,
		ExpiresAt:   model.ExpiresAt,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
		RevokedAt:   cloneTime(model.RevokedAt),
	}
}

func toPersistenceSession(session application.Session) persistence.Session {
	return persistence.Session{
		ID:          session.ID,
		UserID:      session.UserID,
		Token:       session.Token,
		Fingerprint: session.Fingerprint,
		ExpiresAt:   session.ExpiresAt,
		CreatedAt:   session.CreatedAt,
		UpdatedAt:   session.UpdatedAt,
		RevokedAt:   cloneTime(session.RevokedAt),
	}
}

func toApplicationConfig(model persistence.ReminderConfig) application.ReminderConfig {
	categories := make([]application.Category, 0, len(model.Categories))
	for _, category := range model.Categories {
		categories = append(categories, application.Category{Key: category.Key, Label: category.Label})
	}
	return application.ReminderConfig{
		ID:      model.ID,
		Title:   model.Title,
		Enabled: model.Enabled,
		Schedule: application.ScheduleRule{
			DayMode:    model.Schedule.DayMode,
			DayOfMonth: model.Schedule.DayOfMonth,
			TimeHHMM:   model.Schedule.TimeHHMM,
			Timezone:   model.Schedule.Timezone,
		},
		Categories:  categories,
		ExtraEmails: append([]string(nil), model.ExtraEmails...),
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceConfig(cfg application.ReminderConfig) persistence.ReminderConfig {
	categories := make([]persistence.Category, 0, len(cfg.Categories))
	for _, category := range cfg.Categories {
		categories = append(categories, persistence.Category{Key: category.Key, Label: category.Label})
	}
	return persistence.ReminderConfig{
		ID:      cfg.ID,
		Title:   cfg.Title,
		Enabled: cfg.Enabled,
		Schedule: persistence.ScheduleRule{
			DayMode:    cfg.Schedule.DayMode,
			DayOfMonth: cfg.Schedule.DayOfMonth,
			TimeHHMM:   cfg.Schedule.TimeHHMM,
			Timezone:   cfg.Schedule.Timezone,
		},
		Categories:  categories,
		ExtraEmails: append([]string(nil), cfg.ExtraEmails...),
		CreatedAt:   cfg.CreatedAt,
		UpdatedAt:   cfg.UpdatedAt,
	}
}

func toApplicationRun(model persistence.ReminderRun) application.ReminderRun {
	return application.ReminderRun{
		ID:        model.ID,
		ConfigID:  model.ConfigID,
		PeriodKey: model.PeriodKey,
		DueAt:     model.DueAt,
		Status:    application.RunStatus(model.Status),
		SentAt:    cloneTime(model.SentAt),
		Attempts:  model.Attempts,
		LastError: model.LastError,
	}
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
