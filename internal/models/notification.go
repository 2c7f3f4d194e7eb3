package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification kinds.
const (
	NotificationStageAssigned = "stage_assigned"
	NotificationFlagRaised    = "flag_raised"
	NotificationFlagResolved  = "flag_resolved"
)

// Notification is an in-app message telling a reviewer a question is
// waiting on them. Written by the background worker.
type Notification struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	QuestionID uuid.UUID `json:"question_id"`
	Kind       string    `json:"kind"`
	Message    string    `json:"message"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"`
}
