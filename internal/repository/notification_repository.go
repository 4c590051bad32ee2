package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// NotificationRepository provides persistence for pending notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository creates a new notification repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

const notificationColumns = `id, recipient_id, type, title, message, schedule_id, entry_id, read, read_at, created_at`

// Create stores one pending notification row.
func (r *NotificationRepository) Create(ctx context.Context, n *models.ScheduleNotification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO schedule_notifications (id, recipient_id, type, title, message, schedule_id, entry_id, read, created_at) VALUES (:id, :recipient_id, :type, :title, :message, :schedule_id, :entry_id, false, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// ListByRecipient returns a recipient's notifications, newest first.
func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool) ([]models.ScheduleNotification, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_notifications WHERE recipient_id = $1`, notificationColumns)
	if unreadOnly {
		query += ` AND NOT read`
	}
	query += ` ORDER BY created_at DESC`

	var notifications []models.ScheduleNotification
	if err := r.db.SelectContext(ctx, &notifications, query, recipientID); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

// MarkRead flags a notification as read for its recipient.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, recipientID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE schedule_notifications SET read = true, read_at = $3 WHERE id = $1 AND recipient_id = $2 AND NOT read`, id, recipientID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("mark notification read %s: no rows affected", id)
	}
	return nil
}
