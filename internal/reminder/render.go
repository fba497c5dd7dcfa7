package reminder

import (
	"fmt"
	"html/template"
	"strings"
	"time"
)

// Category is one billing document the reminder asks to collect.
type Category struct {
	Key   string
	Label string
}

// Notice carries everything needed to compose one reminder message.
type Notice struct {
	Title       string
	PeriodKey   string
	DueAt       time.Time
	Categories  []Category
	ExtraEmails []string
	// Test marks a manually triggered send; the subject is prefixed so the
	// recipient can tell it apart from the scheduled reminder.
	Test bool
}

// Subject returns the message subject for the notice.
func (n Notice) Subject() string {
	subject := fmt.Sprintf("%s (%s)", n.title(), n.PeriodKey)
	if n.Test {
		return "TEST: " + subject
	}
	return subject
}

func (n Notice) title() string {
	if strings.TrimSpace(n.Title) == "" {
		return "Monthly Bills Reminder"
	}
	return n.Title
}

var emailTemplate = template.Must(template.New("reminder").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8" /></head>
<body style="font-family: Arial, Helvetica, sans-serif; color: #000; margin: 0; padding: 24px;">
  <div style="max-width: 640px; margin: 0 auto; border: 1px solid #000; padding: 32px;">
    <div style="border-bottom: 2px solid #000; padding-bottom: 16px; margin-bottom: 24px;">
      <h1 style="margin: 0; font-size: 20px;">{{.Title}}</h1>
      <p style="margin: 4px 0 0; font-size: 12px;">IT Management System</p>
      <p style="margin: 4px 0 0; font-size: 12px;">Date: {{.Today}}</p>
    </div>
    <p>This is a reminder to prepare and submit the monthly billing documents for the period stated below.</p>
    <h2 style="font-size: 15px; border-bottom: 1px solid #000; padding-bottom: 6px;">Reminder Details</h2>
    <table style="width: 100%; border-collapse: collapse; font-size: 14px;">
      <tr><td style="width: 35%; font-weight: bold; padding: 8px 6px;">Billing Period</td><td>{{.PeriodKey}}</td></tr>
      <tr><td style="width: 35%; font-weight: bold; padding: 8px 6px;">Scheduled Date</td><td>{{.Scheduled}}</td></tr>
    </table>
    <h2 style="font-size: 15px; border-bottom: 1px solid #000; padding-bottom: 6px;">Required Documents</h2>
    <table style="width: 100%; border-collapse: collapse; font-size: 14px;">
      {{range .Categories}}<tr><td style="width: 35%; font-weight: bold; padding: 8px 6px;">{{.Label}}</td><td>Collect and record invoices / receipts</td></tr>
      {{else}}<tr><td colspan="2">No categories configured</td></tr>
      {{end}}
    </table>
    <div style="border-top: 2px solid #000; padding-top: 16px; font-size: 12px; text-align: center;">
      <p>This is an automated system email. Please do not reply.</p>
      <p>Contact the IT Department for assistance.</p>
    </div>
  </div>
</body>
</html>`))

type emailData struct {
	Title      string
	Today      string
	PeriodKey  string
	Scheduled  string
	Categories []Category
}

// RenderHTML produces the reminder document body: the period key, the due
// timestamp and an itemized checklist of the configured categories.
func RenderHTML(notice Notice, generatedAt time.Time) (string, error) {
	var sb strings.Builder
	err := emailTemplate.Execute(&sb, emailData{
		Title:      notice.title(),
		Today:      generatedAt.Format("2006-01-02"),
		PeriodKey:  notice.PeriodKey,
		Scheduled:  notice.DueAt.Format("2006-01-02 15:04"),
		Categories: notice.Categories,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render reminder email: %w", err)
	}
	return sb.String(), nil
}
