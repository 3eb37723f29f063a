package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stanstork/adscope-api/internal/models"
)

type NotificationRepository interface {
	Create(ctx context.Context, params CreateNotificationParams) (models.Notification, error)
	ListRecent(ctx context.Context, accountID string, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, accountID, notificationID string) (models.Notification, error)
}

type notificationRepository struct {
	db *sql.DB
}

type CreateNotificationParams struct {
	AccountID *string
	Event     models.NotificationEvent
	Severity  models.NotificationSeverity
	Title     string
	Message   string
	Metadata  map[string]interface{}
}

func NewNotificationRepository(db *sql.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

const notificationColumns = `id, account_id, event_type, severity, title, message, metadata, created_at, read_at`

func (r *notificationRepository) Create(ctx context.Context, params CreateNotificationParams) (models.Notification, error) {
	query := `
		INSERT INTO ingest.notifications (account_id, event_type, severity, title, message, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + notificationColumns

	var accountID interface{}
	if params.AccountID != nil && strings.TrimSpace(*params.AccountID) != "" {
		accountID = strings.TrimSpace(*params.AccountID)
	}

	var metadata interface{}
	if len(params.Metadata) > 0 {
		bytes, err := json.Marshal(params.Metadata)
		if err != nil {
			return models.Notification{}, fmt.Errorf("marshal metadata: %w", err)
		}
		metadata = string(bytes)
	}

	row := r.db.QueryRowContext(ctx, query, accountID, params.Event, params.Severity, params.Title, params.Message, metadata)
	return scanNotification(row)
}

func (r *notificationRepository) ListRecent(ctx context.Context, accountID string, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	query := `
		SELECT ` + notificationColumns + `
		FROM ingest.notifications
		WHERE account_id IS NULL OR account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, strings.TrimSpace(accountID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		notif, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, notif)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return notifications, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, accountID, notificationID string) (models.Notification, error) {
	query := `
		UPDATE ingest.notifications
		SET read_at = NOW()
		WHERE id = $1 AND (account_id IS NULL OR account_id = $2)
		RETURNING ` + notificationColumns
	notificationID = strings.TrimSpace(notificationID)
	if _, err := uuid.Parse(notificationID); err != nil {
		return models.Notification{}, ErrNotFound
	}
	row := r.db.QueryRowContext(ctx, query, notificationID, strings.TrimSpace(accountID))
	notif, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return notif, ErrNotFound
	}
	return notif, err
}

func scanNotification(scanner rowScanner) (models.Notification, error) {
	var (
		notif       models.Notification
		accountID   sql.NullString
		metadataRaw []byte
		readAt      sql.NullTime
	)

	if err := scanner.Scan(
		&notif.ID,
		&accountID,
		&notif.EventType,
		&notif.Severity,
		&notif.Title,
		&notif.Message,
		&metadataRaw,
		&notif.CreatedAt,
		&readAt,
	); err != nil {
		return models.Notification{}, err
	}

	if accountID.Valid {
		val := accountID.String
		notif.AccountID = &val
	}
	if len(metadataRaw) > 0 {
		notif.Metadata = append(json.RawMessage(nil), metadataRaw...)
	}
	if readAt.Valid {
		t := readAt.Time
		notif.ReadAt = &t
	}

	return notif, nil
}
