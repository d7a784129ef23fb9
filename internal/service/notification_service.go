package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/sns-grievance-api/internal/models"
	"github.com/noah-isme/sns-grievance-api/pkg/jobs"
)

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// ComplaintNotifier delivers complaint events to citizens and staff.
type ComplaintNotifier interface {
	Notify(ctx context.Context, event models.ComplaintEvent) error
}

// NotificationService publishes complaint events onto the background queue.
// Publishing never fails the calling request: queue errors are logged and swallowed.
type NotificationService struct {
	queue   jobDispatcher
	logger  *zap.Logger
	enabled bool
}

// NewNotificationService constructs the publisher.
func NewNotificationService(queue jobDispatcher, logger *zap.Logger, enabled bool) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{queue: queue, logger: logger, enabled: enabled}
}

// Publish enqueues event for asynchronous delivery.
func (s *NotificationService) Publish(event models.ComplaintEvent) {
	if s == nil || !s.enabled || s.queue == nil {
		return
	}
	job := jobs.Job{
		ID:      fmt.Sprintf("%s:%s:%d", event.ComplaintID, event.ToStatus, event.OccurredAt.UnixNano()),
		Type:    string(event.Type),
		Payload: event,
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue complaint notification",
			zap.String("complaint_id", event.ComplaintID),
			zap.String("event", string(event.Type)),
			zap.Error(err))
	}
}

// NotificationWorker bridges queue jobs to a ComplaintNotifier.
type NotificationWorker struct {
	notifier ComplaintNotifier
	logger   *zap.Logger
}

// NewNotificationWorker constructs the worker.
func NewNotificationWorker(notifier ComplaintNotifier, logger *zap.Logger) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{notifier: notifier, logger: logger}
}

// Handle processes a queue job.
func (w *NotificationWorker) Handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.ComplaintEvent)
	if !ok {
		w.logger.Error("discarding notification job with unexpected payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
	return w.notifier.Notify(ctx, event)
}

// LogNotifier writes events to the structured log; actual delivery channels live outside this service.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a log-backed notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the event.
func (n *LogNotifier) Notify(_ context.Context, event models.ComplaintEvent) error {
	n.logger.Info("complaint notification",
		zap.String("event", string(event.Type)),
		zap.String("complaint_id", event.ComplaintID),
		zap.String("complaint_number", event.ComplaintNumber),
		zap.String("citizen_id", event.CitizenID),
		zap.String("from", string(event.FromStatus)),
		zap.String("to", string(event.ToStatus)),
		zap.String("actor_id", event.ActorID),
		zap.Time("occurred_at", event.OccurredAt))
	return nil
}
