package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/taalam/backend/internal/models"
	"github.com/taalam/backend/internal/notifications"
	"github.com/taalam/backend/pkg/queue"
)

// NotificationProcessor consumes stage notification jobs and writes
// in-app notification rows for the reviewer now responsible for the
// question. Jobs without a specific recipient only feed the exam-room
// broadcast and are dropped here.
type NotificationProcessor struct {
	repo   *notifications.Repository
	queue  *queue.Queue
	logger *zap.Logger
}

// NewNotificationProcessor creates a stage notification processor.
func NewNotificationProcessor(repo *notifications.Repository, q *queue.Queue, logger *zap.Logger) *NotificationProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationProcessor{repo: repo, queue: q, logger: logger}
}

// Process executes one stage notification job.
func (p *NotificationProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeStageNotification {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.StageNotificationPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	if payload.RecipientID == nil {
		p.logger.Debug("no direct recipient, skipping",
			zap.String("question_id", payload.QuestionID.String()),
			zap.String("event", payload.Event))
		return nil
	}

	n := &models.Notification{
		UserID:     *payload.RecipientID,
		QuestionID: payload.QuestionID,
		Kind:       kindFor(payload.Event),
		Message:    payload.Message,
	}
	if err := p.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	p.logger.Info("notification written",
		zap.String("notification_id", n.ID.String()),
		zap.String("user_id", n.UserID.String()),
		zap.String("question_id", payload.QuestionID.String()))
	return nil
}

func kindFor(event string) string {
	switch event {
	case "flag_raised":
		return models.NotificationFlagRaised
	case "flag_resolved":
		return models.NotificationFlagResolved
	default:
		return models.NotificationStageAssigned
	}
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *NotificationProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("notification worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
