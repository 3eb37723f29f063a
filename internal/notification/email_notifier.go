package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stanstork/adscope-api/internal/models"
)

// Notifier fans a persisted notification out to an external channel.
type Notifier interface {
	Notify(ctx context.Context, notification models.Notification) error
}

// runDetails is the metadata attached to run lifecycle notifications.
type runDetails struct {
	RunID            string `json:"run_id"`
	DatasetsReceived *int   `json:"datasets_received"`
	TotalRows        *int64 `json:"total_rows"`
	DurationSeconds  *int64 `json:"duration_seconds"`
	Reason           string `json:"reason"`
}

// EmailNotifier mails run alerts to the operators listed in email.alert_recipients.
type EmailNotifier struct {
	mailer     Mailer
	recipients []string
	logger     zerolog.Logger
}

func NewEmailNotifier(mailer Mailer, recipients []string, logger zerolog.Logger) *EmailNotifier {
	cleaned := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if r = strings.TrimSpace(r); r != "" {
			cleaned = append(cleaned, r)
		}
	}
	return &EmailNotifier{
		mailer:     mailer,
		recipients: cleaned,
		logger:     logger.With().Str("notifier", "email").Logger(),
	}
}

func (n *EmailNotifier) Notify(_ context.Context, notif models.Notification) error {
	if len(n.recipients) == 0 {
		return nil
	}

	subject := "[AdScope] " + strings.TrimSpace(notif.Title)
	if notif.Severity == models.NotificationSeverityError {
		subject = "[AdScope][action needed] " + strings.TrimSpace(notif.Title)
	}

	if err := n.mailer.Send(n.recipients, subject, renderRunAlert(notif)); err != nil {
		return err
	}
	n.logger.Debug().
		Str("notification_id", notif.ID).
		Str("event_type", string(notif.EventType)).
		Int("recipients", len(n.recipients)).
		Msg("run alert mailed")
	return nil
}

func (n *EmailNotifier) String() string {
	return "email"
}

func renderRunAlert(notif models.Notification) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(notif.Message))
	b.WriteString("\n\n")

	if notif.AccountID != nil {
		fmt.Fprintf(&b, "Account:  %s\n", *notif.AccountID)
	}

	var details runDetails
	if len(notif.Metadata) > 0 && json.Unmarshal(notif.Metadata, &details) == nil {
		if details.RunID != "" {
			fmt.Fprintf(&b, "Run:      %s\n", details.RunID)
		}
		if details.DatasetsReceived != nil {
			fmt.Fprintf(&b, "Datasets: %d\n", *details.DatasetsReceived)
		}
		if details.TotalRows != nil {
			fmt.Fprintf(&b, "Rows:     %d\n", *details.TotalRows)
		}
		if details.DurationSeconds != nil {
			fmt.Fprintf(&b, "Duration: %s\n", time.Duration(*details.DurationSeconds)*time.Second)
		}
		if details.Reason != "" {
			fmt.Fprintf(&b, "Reason:   %s\n", details.Reason)
			b.WriteString("\nChunks that were not accepted can be resent; accepted chunks are never applied twice.\n")
		}
	}

	fmt.Fprintf(&b, "At:       %s\n", notif.CreatedAt.UTC().Format(time.RFC3339))
	return b.String()
}
