package models

import (
	"time"

	"github.com/google/uuid"
)

// VariantStatus is a variant's abbreviated lifecycle, independent of the
// original question's further progress once submitted.
type VariantStatus string

const (
	VariantDraft     VariantStatus = "draft"
	VariantSubmitted VariantStatus = "submitted"
	VariantFlagged   VariantStatus = "flagged"
	VariantResolved  VariantStatus = "resolved"
)

// Variant is an alternate phrasing of an original question, authored by
// the creator role while the original sits in pending_creator. Deleting
// the original cascade-deletes its variants.
type Variant struct {
	ID                 uuid.UUID     `json:"id"`
	OriginalQuestionID uuid.UUID     `json:"original_question_id"`
	Content
	Status     VariantStatus `json:"status"`
	FlagReason string        `json:"flag_reason,omitempty"`
	CreatedBy  uuid.UUID     `json:"created_by"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}
