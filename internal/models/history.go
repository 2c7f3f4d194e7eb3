package models

import (
	"time"

	"github.com/google/uuid"
)

// Action names a workflow transition as recorded in history.
type Action string

const (
	ActionCreated                Action = "created"
	ActionSubmittedToProcessor   Action = "submitted_to_processor"
	ActionResubmittedToProcessor Action = "resubmitted_to_processor"
	ActionApprovedByProcessor    Action = "approved_by_processor"
	ActionSentBack               Action = "sent_back"
	ActionRejected               Action = "rejected"
	ActionSubmittedToExplainer   Action = "submitted_to_explainer"
	ActionVariantsSubmitted      Action = "variants_submitted"
	ActionCompleted              Action = "completed"
	ActionFlagRaised             Action = "flag_raised"
	ActionFlagApproved           Action = "flag_approved"
	ActionFlagRejected           Action = "flag_rejected"
)

// HistoryEntry is one record in a question's append-only audit log.
// Entries are only ever appended, in the same transaction as the status
// change they document; there is no update or delete path.
type HistoryEntry struct {
	ID          uuid.UUID `json:"id"`
	QuestionID  uuid.UUID `json:"question_id"`
	Action      Action    `json:"action"`
	PerformedBy uuid.UUID `json:"performed_by"`
	Reason      string    `json:"reason,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
