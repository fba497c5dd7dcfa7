package reminder

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// ErrMissingAdminRecipient indicates the primary administrative recipient
// address is not configured. Dispatch treats this as a hard precondition.
var ErrMissingAdminRecipient = errors.New("reminder: admin recipient address is not configured")

// Mailer hands a fully composed message to the mail transport.
type Mailer interface {
	SendMail(ctx context.Context, to []string, subject, html string) error
}

// Dispatcher composes the recipient list and message for a reminder notice
// and delegates delivery to the mail transport.
type Dispatcher struct {
	mailer     Mailer
	adminEmail string
	now        func() time.Time
	logger     *slog.Logger
}

// NewDispatcher constructs a Dispatcher. adminEmail is the mandatory primary
// recipient; its absence is reported per dispatch rather than at startup.
func NewDispatcher(mailer Mailer, adminEmail string, now func() time.Time, logger *slog.Logger) *Dispatcher {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		mailer:     mailer,
		adminEmail: strings.TrimSpace(adminEmail),
		now:        now,
		logger:     logger,
	}
}

// Dispatch builds the recipient set, renders the message and hands it to the
// mail transport. The transport's outcome is returned to the caller, which
// records it into the run ledger.
func (d *Dispatcher) Dispatch(ctx context.Context, notice Notice) error {
	if d.adminEmail == "" {
		return ErrMissingAdminRecipient
	}

	to := NormalizeEmails(append([]string{d.adminEmail}, notice.ExtraEmails...))

	html, err := RenderHTML(notice, d.now())
	if err != nil {
		return err
	}

	if err := d.mailer.SendMail(ctx, to, notice.Subject(), html); err != nil {
		return err
	}

	d.logger.InfoContext(ctx, "reminder dispatched",
		"period_key", notice.PeriodKey,
		"recipients", len(to),
		"test", notice.Test,
	)
	return nil
}

// NormalizeEmails lowercases, trims and deduplicates addresses, dropping
// blanks. Order follows the first occurrence of each address.
func NormalizeEmails(addresses []string) []string {
	seen := make(map[string]struct{}, len(addresses))
	result := make([]string, 0, len(addresses))
	for _, address := range addresses {
		cleaned := strings.ToLower(strings.TrimSpace(address))
		if cleaned == "" {
			continue
		}
		if _, ok := seen[cleaned]; ok {
			continue
		}
		seen[cleaned] = struct{}{}
		result = append(result, cleaned)
	}
	return result
}
