package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/itadmin/internal/application"
	"github.com/example/itadmin/internal/reminder"
)

type stubReminderService struct {
	cfg        application.ReminderConfig
	status     application.ReminderStatus
	updateErr  error
	sendErr    error
	lastParams application.UpdateReminderConfigParams
}

func (s *stubReminderService) GetConfig(_ context.Context, principal application.Principal) (application.ReminderConfig, error) {
	if !principal.IsAdmin {
		return application.ReminderConfig{}, application.ErrUnauthorized
	}
	return s.cfg, nil
}

func (s *stubReminderService) UpdateConfig(_ context.Context, params application.UpdateReminderConfigParams) (application.ReminderConfig, error) {
	if s.updateErr != nil {
		return application.ReminderConfig{}, s.updateErr
	}
	s.lastParams = params
	return s.cfg, nil
}

func (s *stubReminderService) Status(_ context.Context, principal application.Principal) (application.ReminderStatus, error) {
	if !principal.IsAdmin {
		return application.ReminderStatus{}, application.ErrUnauthorized
	}
	return s.status, nil
}

func (s *stubReminderService) SendTest(context.Context, application.Principal) error {
	return s.sendErr
}

func reminderFixture() application.ReminderConfig {
	return application.ReminderConfig{
		ID:      "cfg-1",
		Title:   "Monthly Bills Reminder",
		Enabled: true,
		Schedule: application.ScheduleRule{
			DayMode:  "lastDay",
			TimeHHMM: "09:30",
			Timezone: "Asia/Colombo",
		},
		Categories:  []application.Category{{Key: "internet", Label: "Internet Bills"}},
		ExtraEmails: []string{"ops@example.com"},
		UpdatedAt:   time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC),
	}
}

func adminContext(r *http.Request) *http.Request {
	ctx := ContextWithPrincipal(r.Context(), application.Principal{UserID: "admin-1", IsAdmin: true})
	return r.WithContext(ctx)
}

func TestReminderHandlerGet(t *testing.T) {
	t.Parallel()

	service := &stubReminderService{cfg: reminderFixture()}
	handler := NewReminderHandler(service, nil)

	req := adminContext(httptest.NewRequest(http.MethodGet, "/billing-reminders", nil))
	rec := httptest.NewRecorder()
	handler.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp reminderConfigResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Reminder.Title != "Monthly Bills Reminder" || resp.Reminder.Schedule.DayMode != "lastDay" {
		t.Fatalf("unexpected payload: %+v", resp.Reminder)
	}
}

func TestReminderHandlerGetRequiresAdmin(t *testing.T) {
	t.Parallel()

	service := &stubReminderService{cfg: reminderFixture()}
	handler := NewReminderHandler(service, nil)

	req := httptest.NewRequest(http.MethodGet, "/billing-reminders", nil)
	ctx := ContextWithPrincipal(req.Context(), application.Principal{UserID: "u2"})
	rec := httptest.NewRecorder()
	handler.Get(rec, req.WithContext(ctx))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestReminderHandlerUpdatePassesPartialFields(t *testing.T) {
	t.Parallel()

	service := &stubReminderService{cfg: reminderFixture()}
	handler := NewReminderHandler(service, nil)

	body := `{"enabled":false,"schedule":{"day_mode":"customDay","day_of_month":15}}`
	req := adminContext(httptest.NewRequest(http.MethodPatch, "/billing-reminders", strings.NewReader(body)))
	rec := httptest.NewRecorder()
	handler.Update(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	params := service.lastParams
	if params.Enabled == nil || *params.Enabled {
		t.Fatalf("expected enabled=false, got %+v", params.Enabled)
	}
	if params.Title != nil || params.Categories != nil || params.ExtraEmails != nil {
		t.Fatal("absent fields must stay nil")
	}
	if params.Schedule == nil || params.Schedule.DayMode == nil || *params.Schedule.DayMode != "customDay" {
		t.Fatalf("unexpected schedule params: %+v", params.Schedule)
	}
	if params.Schedule.TimeHHMM != nil {
		t.Fatal("absent schedule fields must stay nil")
	}
}

func TestReminderHandlerUpdateValidationError(t *testing.T) {
	t.Parallel()

	vErr := &application.ValidationError{FieldErrors: map[string]string{"schedule.dayMode": "day mode must be lastDay or customDay"}}
	service := &stubReminderService{cfg: reminderFixture(), updateErr: vErr}
	handler := NewReminderHandler(service, nil)

	req := adminContext(httptest.NewRequest(http.MethodPatch, "/billing-reminders", strings.NewReader(`{}`)))
	rec := httptest.NewRecorder()
	handler.Update(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "schedule.dayMode") {
		t.Fatalf("expected field errors in body: %s", rec.Body.String())
	}
}

func TestReminderHandlerUpdateBadBody(t *testing.T) {
	t.Parallel()

	handler := NewReminderHandler(&stubReminderService{}, nil)

	req := adminContext(httptest.NewRequest(http.MethodPatch, "/billing-reminders", strings.NewReader(`{`)))
	rec := httptest.NewRecorder()
	handler.Update(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestReminderHandlerStatus(t *testing.T) {
	t.Parallel()

	sentAt := time.Date(2025, time.March, 31, 10, 0, 5, 0, time.UTC)
	service := &stubReminderService{status: application.ReminderStatus{
		Enabled:   true,
		Title:     "Monthly Bills Reminder",
		PeriodKey: "2025-03",
		DueAt:     time.Date(2025, time.March, 31, 10, 0, 0, 0, time.UTC),
		Status:    application.RunSent,
		SentAt:    &sentAt,
		Attempts:  1,
	}}
	handler := NewReminderHandler(service, nil)

	req := adminContext(httptest.NewRequest(http.MethodGet, "/billing-reminders/status", nil))
	rec := httptest.NewRecorder()
	handler.Status(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var dto reminderStatusDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &dto); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if dto.PeriodKey != "2025-03" || dto.Status != "sent" || dto.SentAt == nil || dto.Overdue {
		t.Fatalf("unexpected status payload: %+v", dto)
	}
}

func TestReminderHandlerSendTest(t *testing.T) {
	t.Parallel()

	service := &stubReminderService{}
	handler := NewReminderHandler(service, nil)

	req := adminContext(httptest.NewRequest(http.MethodPost, "/billing-reminders/test", nil))
	rec := httptest.NewRecorder()
	handler.SendTest(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	service.sendErr = reminder.ErrMissingAdminRecipient
	rec = httptest.NewRecorder()
	handler.SendTest(rec, adminContext(httptest.NewRequest(http.MethodPost, "/billing-reminders/test", nil)))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 for missing recipient, got %d", rec.Code)
	}

	service.sendErr = errors.New("transport down")
	rec = httptest.NewRecorder()
	handler.SendTest(rec, adminContext(httptest.NewRequest(http.MethodPost, "/billing-reminders/test", nil)))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for transport failure, got %d", rec.Code)
	}
}

func TestRouterMethodGuards(t *testing.T) {
	t.Parallel()

	router := NewRouter(RouterConfig{
		Reminders: NewReminderHandler(&stubReminderService{cfg: reminderFixture()}, nil),
	})

	req := adminContext(httptest.NewRequest(http.MethodDelete, "/billing-reminders", nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); !strings.Contains(allow, http.MethodPatch) {
		t.Fatalf("expected Allow header with PATCH, got %q", allow)
	}
}
