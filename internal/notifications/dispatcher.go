package notifications

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taalam/backend/internal/models"
	"github.com/taalam/backend/internal/realtime"
	"github.com/taalam/backend/internal/workflow"
	"github.com/taalam/backend/pkg/queue"
)

// Dispatcher implements workflow.Notifier. Events fan out two ways:
// a realtime broadcast to the exam's dashboard room, and a queue job so
// the worker can write a notification row for the next-stage owner.
// Delivery is best-effort; the transition has already committed.
type Dispatcher struct {
	hub    *realtime.Hub
	queue  *queue.Queue
	logger *zap.Logger
}

// NewDispatcher creates an event dispatcher.
func NewDispatcher(hub *realtime.Hub, q *queue.Queue, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{hub: hub, queue: q, logger: logger}
}

// QuestionEvent publishes the event to the exam room and enqueues a
// stage notification when someone specific should be told.
func (d *Dispatcher) QuestionEvent(ctx context.Context, q *models.Question, event string, actor models.Actor) {
	if d.hub != nil {
		d.hub.PublishToExamOnly(q.ExamID, event, map[string]interface{}{
			"question_id": q.ID,
			"status":      q.Status,
			"is_flagged":  q.IsFlagged,
			"actor_id":    actor.UserID,
			"actor_role":  actor.Role,
		})
	}
	if d.queue == nil {
		return
	}
	payload := queue.StageNotificationPayload{
		QuestionID:  q.ID,
		ExamID:      q.ExamID,
		RecipientID: recipientFor(q, event),
		Event:       event,
		Status:      string(q.Status),
		Message:     messageFor(q, event),
	}
	if err := d.queue.EnqueueStageNotification(ctx, payload); err != nil {
		d.logger.Warn("enqueue stage notification failed",
			zap.Error(err), zap.String("question_id", q.ID.String()))
	}
}

// recipientFor picks who should be told directly. Only the processor
// stage has a single assigned owner; other stages are pool queues and
// their members watch the exam room instead.
func recipientFor(q *models.Question, event string) *uuid.UUID {
	if q.Status == models.StatusPendingProcessor && q.AssignedProcessor != nil {
		return q.AssignedProcessor
	}
	if event == workflow.EventFlagRaised && q.AssignedProcessor != nil {
		return q.AssignedProcessor
	}
	return nil
}

func messageFor(q *models.Question, event string) string {
	switch event {
	case workflow.EventQuestionCreated:
		return "New question gathered for " + q.ExamName
	case workflow.EventFlagRaised:
		return "Question flagged: " + q.FlagReason
	case workflow.EventFlagResolved:
		return "Flag resolved (" + string(q.FlagStatus) + ")"
	case workflow.EventVariantsSubmitted:
		return "Variants submitted for review"
	default:
		return "Question moved to " + string(q.Status)
	}
}
