package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/fyp-track-api/internal/models"
	appErrors "github.com/noah-isme/fyp-track-api/pkg/errors"
	"github.com/noah-isme/fyp-track-api/pkg/jobs"
)

// notifier is the fire-and-forget message sink consumed by the allocator
// and lifecycle engine. Implementations must never surface delivery
// failures to the triggering operation.
type notifier interface {
	Notify(ctx context.Context, notification models.Notification)
}

type notificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListForUser(ctx context.Context, userID string) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
}

// NotificationService persists notification rows through a background
// worker queue so that emitting one never blocks or fails the caller.
type NotificationService struct {
	repo   notificationStore
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService wires the dispatch queue. Start must be called
// before notifications flow.
func NewNotificationService(repo notificationStore, logger *zap.Logger, cfg jobs.QueueConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{repo: repo, logger: logger}
	cfg.Logger = logger
	s.queue = jobs.NewQueue("notifications", s.handle, cfg)
	return s
}

// Start boots the dispatch workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the dispatch workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Notify enqueues a notification. Failures are logged and dropped.
func (s *NotificationService) Notify(ctx context.Context, notification models.Notification) {
	if notification.SendTo == "" || notification.Message == "" {
		return
	}
	job := jobs.Job{Type: string(notification.Category), Payload: notification}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Sugar().Warnw("notification dropped", "category", notification.Category, "recipient", notification.SendTo, "error", err)
	}
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	notification, ok := job.Payload.(models.Notification)
	if !ok {
		s.logger.Sugar().Errorw("invalid notification payload", "type", job.Type)
		return nil
	}
	return s.repo.Create(ctx, &notification)
}

// ListForUser returns the recipient's notifications.
func (s *NotificationService) ListForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	notifications, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return notifications, nil
}

// MarkRead flags a notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	if err := s.repo.MarkRead(ctx, id, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}
