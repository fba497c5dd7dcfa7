package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/itadmin/internal/application"
	"github.com/example/itadmin/internal/reminder"
)

type reminderService interface {
	GetConfig(ctx context.Context, principal application.Principal) (application.ReminderConfig, error)
	UpdateConfig(ctx context.Context, params application.UpdateReminderConfigParams) (application.ReminderConfig, error)
	Status(ctx context.Context, principal application.Principal) (application.ReminderStatus, error)
	SendTest(ctx context.Context, principal application.Principal) error
}

type ReminderHandler struct {
	service   reminderService
	responder responder
	logger    *slog.Logger
}

func NewReminderHandler(service reminderService, logger *slog.Logger) *ReminderHandler {
	base := defaultLogger(logger)
	return &ReminderHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ReminderHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ReminderHandler", operation, attrs...)
}

func (h *ReminderHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	cfg, err := h.service.GetConfig(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "Get").ErrorContext(r.Context(), "reminder config fetch failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, reminderConfigResponse{Reminder: toReminderConfigDTO(cfg)})
}

func (h *ReminderHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req updateReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode reminder update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID)

	cfg, err := h.service.UpdateConfig(r.Context(), req.toParams(principal))
	if err != nil {
		logger.ErrorContext(r.Context(), "reminder config update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "reminder config updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, reminderConfigResponse{Reminder: toReminderConfigDTO(cfg)})
}

func (h *ReminderHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	status, err := h.service.Status(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "Status").ErrorContext(r.Context(), "reminder status fetch failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toReminderStatusDTO(status))
}

func (h *ReminderHandler) SendTest(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "SendTest", "principal_id", principal.UserID)

	if err := h.service.SendTest(r.Context(), principal); err != nil {
		logger.ErrorContext(r.Context(), "test reminder failed", "error", err, "error_kind", application.ErrorKind(err))
		if errors.Is(err, reminder.ErrMissingAdminRecipient) {
			h.responder.writeJSON(r.Context(), w, http.StatusBadGateway, errorResponse{
				ErrorCode: "MAIL_NOT_CONFIGURED",
				Message:   "the admin recipient address is not configured",
			})
			return
		}
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "test reminder sent")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, map[string]bool{"sent": true})
}

type updateReminderRequest struct {
	Title       *string                `json:"title"`
	Enabled     *bool                  `json:"enabled"`
	Schedule    *scheduleUpdateRequest `json:"schedule"`
	Categories  *[]categoryDTO         `json:"categories"`
	ExtraEmails *[]string              `json:"extra_emails"`
}

type scheduleUpdateRequest struct {
	DayMode    *string `json:"day_mode"`
	DayOfMonth *int    `json:"day_of_month"`
	TimeHHMM   *string `json:"time_hhmm"`
	Timezone   *string `json:"timezone"`
}

func (r updateReminderRequest) toParams(principal application.Principal) application.UpdateReminderConfigParams {
	params := application.UpdateReminderConfigParams{
		Principal: principal,
		Title:     r.Title,
		Enabled:   r.Enabled,
	}
	if r.Schedule != nil {
		params.Schedule = &application.ScheduleRuleUpdate{
			DayMode:    r.Schedule.DayMode,
			DayOfMonth: r.Schedule.DayOfMonth,
			TimeHHMM:   r.Schedule.TimeHHMM,
			Timezone:   r.Schedule.Timezone,
		}
	}
	if r.Categories != nil {
		categories := make([]application.Category, 0, len(*r.Categories))
		for _, category := range *r.Categories {
			categories = append(categories, application.Category{Key: category.Key, Label: category.Label})
		}
		params.Categories = &categories
	}
	params.ExtraEmails = r.ExtraEmails
	return params
}

type reminderConfigResponse struct {
	Reminder reminderConfigDTO `json:"reminder"`
}

type reminderConfigDTO struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Enabled     bool          `json:"enabled"`
	Schedule    scheduleDTO   `json:"schedule"`
	Categories  []categoryDTO `json:"categories"`
	ExtraEmails []string      `json:"extra_emails"`
	UpdatedAt   string        `json:"updated_at"`
}

type scheduleDTO struct {
	DayMode    string `json:"day_mode"`
	DayOfMonth int    `json:"day_of_month"`
	TimeHHMM   string `json:"time_hhmm"`
	Timezone   string `json:"timezone"`
}

type categoryDTO struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

type reminderStatusDTO struct {
	Enabled   bool    `json:"enabled"`
	Title     string  `json:"title"`
	PeriodKey string  `json:"period_key"`
	DueAt     string  `json:"due_at"`
	RunDueAt  *string `json:"run_due_at,omitempty"`
	Status    string  `json:"status"`
	SentAt    *string `json:"sent_at,omitempty"`
	Attempts  int     `json:"attempts"`
	LastError string  `json:"last_error,omitempty"`
	Overdue   bool    `json:"overdue"`
}

func toReminderConfigDTO(cfg application.ReminderConfig) reminderConfigDTO {
	categories := make([]categoryDTO, 0, len(cfg.Categories))
	for _, category := range cfg.Categories {
		categories = append(categories, categoryDTO{Key: category.Key, Label: category.Label})
	}
	extraEmails := cfg.ExtraEmails
	if extraEmails == nil {
		extraEmails = []string{}
	}
	return reminderConfigDTO{
		ID:      cfg.ID,
		Title:   cfg.Title,
		Enabled: cfg.Enabled,
		Schedule: scheduleDTO{
			DayMode:    cfg.Schedule.DayMode,
			DayOfMonth: cfg.Schedule.DayOfMonth,
			TimeHHMM:   cfg.Schedule.TimeHHMM,
			Timezone:   cfg.Schedule.Timezone,
		},
		Categories:  categories,
		ExtraEmails: extraEmails,
		UpdatedAt:   cfg.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toReminderStatusDTO(status application.ReminderStatus) reminderStatusDTO {
	dto := reminderStatusDTO{
		Enabled:   status.Enabled,
		Title:     status.Title,
		PeriodKey: status.PeriodKey,
		DueAt:     status.DueAt.UTC().Format(time.RFC3339Nano),
		Status:    string(status.Status),
		Attempts:  status.Attempts,
		LastError: status.LastError,
		Overdue:   status.Overdue,
	}
	if status.RunDueAt != nil {
		formatted := status.RunDueAt.UTC().Format(time.RFC3339Nano)
		dto.RunDueAt = &formatted
	}
	if status.SentAt != nil {
		formatted := status.SentAt.UTC().Format(time.RFC3339Nano)
		dto.SentAt = &formatted
	}
	return dto
}
