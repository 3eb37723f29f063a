package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stanstork/adscope-api/internal/models"
	"github.com/stanstork/adscope-api/internal/repository"
)

type Event struct {
	AccountID string
	Event     models.NotificationEvent
	Severity  models.NotificationSeverity
	Title     string
	Message   string
	Metadata  map[string]interface{}
}

type Service interface {
	Publish(ctx context.Context, evt Event) (models.Notification, error)
	NotifyRunCompleted(ctx context.Context, run models.ImportRun) error
	NotifyRunFailed(ctx context.Context, accountID, runID, reason string) error
	ListRecent(ctx context.Context, accountID string, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, accountID, notificationID string) (models.Notification, error)
}

type service struct {
	repo      repository.NotificationRepository
	logger    zerolog.Logger
	notifiers []Notifier
}

func NewService(repo repository.NotificationRepository, logger zerolog.Logger, notifiers ...Notifier) Service {
	active := make([]Notifier, 0, len(notifiers))
	for _, notifier := range notifiers {
		if notifier != nil {
			active = append(active, notifier)
		}
	}
	return &service{
		repo:      repo,
		logger:    logger.With().Str("component", "notification_service").Logger(),
		notifiers: active,
	}
}

// Publish persists the notification and then hands it to every notifier.
// Delivery failures are logged and never returned.
func (s *service) Publish(ctx context.Context, evt Event) (models.Notification, error) {
	if evt.Event == "" {
		return models.Notification{}, fmt.Errorf("event type is required")
	}
	if evt.Severity == "" {
		evt.Severity = models.NotificationSeverityInfo
	}
	title := strings.TrimSpace(evt.Title)
	if title == "" {
		title = string(evt.Event)
	}
	params := repository.CreateNotificationParams{
		Event:    evt.Event,
		Severity: evt.Severity,
		Title:    title,
		Message:  strings.TrimSpace(evt.Message),
		Metadata: evt.Metadata,
	}
	if aid := strings.TrimSpace(evt.AccountID); aid != "" {
		params.AccountID = &aid
	}

	notif, err := s.repo.Create(ctx, params)
	if err != nil {
		s.logger.Error().Err(err).Str("event_type", string(evt.Event)).Msg("failed to persist notification")
		return models.Notification{}, err
	}
	for _, notifier := range s.notifiers {
		if err := notifier.Notify(ctx, notif); err != nil {
			s.logger.Warn().
				Err(err).
				Str("notification_id", notif.ID).
				Str("event_type", string(notif.EventType)).
				Str("channel", notifierChannelName(notifier)).
				Msg("failed to deliver notification")
		}
	}
	return notif, nil
}

func (s *service) NotifyRunCompleted(ctx context.Context, run models.ImportRun) error {
	if strings.TrimSpace(run.AccountID) == "" {
		return fmt.Errorf("account id is required for run notifications")
	}
	metadata := map[string]interface{}{
		"run_id":            run.RunID,
		"datasets_received": run.DatasetsReceived,
		"total_rows":        run.TotalRows,
	}
	if run.CompletedAt != nil {
		metadata["duration_seconds"] = int64(run.CompletedAt.Sub(run.StartedAt).Seconds())
	}
	_, err := s.Publish(ctx, Event{
		AccountID: run.AccountID,
		Event:     models.NotificationEventRunCompleted,
		Severity:  models.NotificationSeverityInfo,
		Title:     fmt.Sprintf("Import completed: %s", run.RunID),
		Message:   fmt.Sprintf("Import run %s received %d datasets and %d rows.", run.RunID, run.DatasetsReceived, run.TotalRows),
		Metadata:  metadata,
	})
	return err
}

func (s *service) NotifyRunFailed(ctx context.Context, accountID, runID, reason string) error {
	if strings.TrimSpace(accountID) == "" {
		return fmt.Errorf("account id is required for run notifications")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "Unknown error"
	}
	_, err := s.Publish(ctx, Event{
		AccountID: accountID,
		Event:     models.NotificationEventRunFailed,
		Severity:  models.NotificationSeverityError,
		Title:     fmt.Sprintf("Import failed: %s", runID),
		Message:   fmt.Sprintf("Import run %s failed: %s", runID, reason),
		Metadata: map[string]interface{}{
			"run_id": runID,
			"reason": reason,
		},
	})
	return err
}

func (s *service) ListRecent(ctx context.Context, accountID string, limit int) ([]models.Notification, error) {
	return s.repo.ListRecent(ctx, accountID, limit)
}

func (s *service) MarkRead(ctx context.Context, accountID, notificationID string) (models.Notification, error) {
	return s.repo.MarkRead(ctx, accountID, notificationID)
}

func notifierChannelName(n Notifier) string {
	if v, ok := n.(fmt.Stringer); ok {
		return v.String()
	}
	return fmt.Sprintf("%T", n)
}
