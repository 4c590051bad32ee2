package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

type notificationRepository interface {
	Create(ctx context.Context, n *models.ScheduleNotification) error
	ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool) ([]models.ScheduleNotification, error)
	MarkRead(ctx context.Context, id, recipientID string) error
}

// notificationJob is the payload carried through the worker queue. One job
// per recipient so a single failing insert retries alone.
type notificationJob struct {
	Recipient  string
	Type       models.NotificationType
	Title      string
	Message    string
	ScheduleID string
	EntryID    *string
}

// NotificationService fans schedule events out to stakeholder notification
// rows through an in-process worker queue. Dispatch is fire-and-forget so
// notification trouble never fails a schedule write.
type NotificationService struct {
	repo   notificationRepository
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService instantiates NotificationService and its queue.
// Call Start before dispatching and Stop on shutdown.
func NewNotificationService(repo notificationRepository, cfg config.NotificationsConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{repo: repo, logger: logger}
	s.queue = jobs.NewQueue("notifications", s.handleJob, jobs.QueueConfig{
		Workers:    cfg.WorkerConcurrency,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the queue workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the queue workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Dispatch enqueues one notification per recipient. Enqueue failures are
// logged and dropped. Safe on a nil receiver so a disabled dispatcher can be
// wired straight through.
func (s *NotificationService) Dispatch(recipients []string, ntype models.NotificationType, title, message, scheduleID string, entryID *string) {
	if s == nil {
		return
	}
	for _, recipient := range recipients {
		job := jobs.Job{
			ID:   uuid.NewString(),
			Type: string(ntype),
			Payload: notificationJob{
				Recipient:  recipient,
				Type:       ntype,
				Title:      title,
				Message:    message,
				ScheduleID: scheduleID,
				EntryID:    entryID,
			},
		}
		if err := s.queue.Enqueue(job); err != nil {
			s.logger.Warn("failed to enqueue notification",
				zap.String("recipient_id", recipient),
				zap.String("type", string(ntype)),
				zap.Error(err))
		}
	}
}

func (s *NotificationService) handleJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(notificationJob)
	if !ok {
		return fmt.Errorf("unexpected payload type %T for job %s", job.Payload, job.ID)
	}

	n := models.ScheduleNotification{
		RecipientID: payload.Recipient,
		Type:        payload.Type,
		Title:       payload.Title,
		Message:     payload.Message,
		ScheduleID:  payload.ScheduleID,
		EntryID:     payload.EntryID,
	}
	if err := s.repo.Create(ctx, &n); err != nil {
		return fmt.Errorf("store notification for %s: %w", payload.Recipient, err)
	}
	return nil
}

// ListByRecipient returns a recipient's notifications, newest first.
func (s *NotificationService) ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool) ([]models.ScheduleNotification, error) {
	notifications, err := s.repo.ListByRecipient(ctx, recipientID, unreadOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return notifications, nil
}

// MarkRead flags one of the recipient's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, id, recipientID string) error {
	if err := s.repo.MarkRead(ctx, id, recipientID); err != nil {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found or already read")
	}
	return nil
}
