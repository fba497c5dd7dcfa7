package reminder

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type stubMailer struct {
	err      error
	calls    int
	lastTo   []string
	lastSubj string
	lastHTML string
}

func (m *stubMailer) SendMail(_ context.Context, to []string, subject, html string) error {
	m.calls++
	m.lastTo = append([]string(nil), to...)
	m.lastSubj = subject
	m.lastHTML = html
	return m.err
}

func fixedNow() time.Time {
	return time.Date(2025, time.March, 15, 8, 0, 0, 0, time.UTC)
}

func TestDispatchMissingAdminRecipient(t *testing.T) {
	t.Parallel()

	mailer := &stubMailer{}
	d := NewDispatcher(mailer, "   ", fixedNow, nil)

	err := d.Dispatch(context.Background(), Notice{PeriodKey: "2025-03"})
	if !errors.Is(err, ErrMissingAdminRecipient) {
		t.Fatalf("expected ErrMissingAdminRecipient, got %v", err)
	}
	if mailer.calls != 0 {
		t.Fatalf("expected no send attempt, got %d", mailer.calls)
	}
}

func TestDispatchDeduplicatesRecipients(t *testing.T) {
	t.Parallel()

	mailer := &stubMailer{}
	d := NewDispatcher(mailer, "Admin@Example.com", fixedNow, nil)

	err := d.Dispatch(context.Background(), Notice{
		PeriodKey:   "2025-03",
		DueAt:       time.Date(2025, time.March, 31, 9, 30, 0, 0, time.UTC),
		ExtraEmails: []string{"ADMIN@example.com", "ops@example.com", " ops@example.com ", ""},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"admin@example.com", "ops@example.com"}
	if len(mailer.lastTo) != len(want) {
		t.Fatalf("expected recipients %v, got %v", want, mailer.lastTo)
	}
	for i, addr := range want {
		if mailer.lastTo[i] != addr {
			t.Fatalf("expected recipients %v, got %v", want, mailer.lastTo)
		}
	}
}

func TestDispatchPropagatesTransportError(t *testing.T) {
	t.Parallel()

	sendErr := errors.New("graph unavailable")
	mailer := &stubMailer{err: sendErr}
	d := NewDispatcher(mailer, "admin@example.com", fixedNow, nil)

	err := d.Dispatch(context.Background(), Notice{PeriodKey: "2025-03"})
	if !errors.Is(err, sendErr) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestDispatchSubjectAndBody(t *testing.T) {
	t.Parallel()

	mailer := &stubMailer{}
	d := NewDispatcher(mailer, "admin@example.com", fixedNow, nil)

	notice := Notice{
		Title:     "Monthly Bills Reminder",
		PeriodKey: "2025-03",
		DueAt:     time.Date(2025, time.March, 31, 9, 30, 0, 0, time.UTC),
		Categories: []Category{
			{Key: "internet", Label: "Internet Bills"},
			{Key: "printer", Label: "Printer Invoices"},
		},
	}
	if err := d.Dispatch(context.Background(), notice); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if mailer.lastSubj != "Monthly Bills Reminder (2025-03)" {
		t.Fatalf("unexpected subject: %s", mailer.lastSubj)
	}
	for _, fragment := range []string{"2025-03", "2025-03-31 09:30", "Internet Bills", "Printer Invoices"} {
		if !strings.Contains(mailer.lastHTML, fragment) {
			t.Fatalf("body missing %q", fragment)
		}
	}
}

func TestSubjectTestPrefix(t *testing.T) {
	t.Parallel()

	notice := Notice{PeriodKey: "2025-03", Test: true}
	if got := notice.Subject(); got != "TEST: Monthly Bills Reminder (2025-03)" {
		t.Fatalf("unexpected subject: %s", got)
	}
}

func TestRenderHTMLWithoutCategories(t *testing.T) {
	t.Parallel()

	html, err := RenderHTML(Notice{PeriodKey: "2025-03"}, fixedNow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(html, "No categories configured") {
		t.Fatal("expected empty category placeholder")
	}
}

func TestNormalizeEmails(t *testing.T) {
	t.Parallel()

	got := NormalizeEmails([]string{" A@x.com ", "b@x.com", "a@X.com", "", "  "})
	want := []string{"a@x.com", "b@x.com"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
