package models

import (
	"time"

	"github.com/google/uuid"
)

// Status is a question's position in the review pipeline. The set is
// closed; every transition between members goes through the workflow
// transition table.
type Status string

const (
	StatusPendingGatherer  Status = "pending_gatherer"
	StatusPendingProcessor Status = "pending_processor"
	StatusSentBack         Status = "sent_back"
	StatusPendingCreator   Status = "pending_creator"
	StatusPendingExplainer Status = "pending_explainer"
	StatusCompleted        Status = "completed"
	StatusRejected         Status = "rejected"
)

// AllStatuses lists every member of the closed status set.
var AllStatuses = []Status{
	StatusPendingGatherer,
	StatusPendingProcessor,
	StatusSentBack,
	StatusPendingCreator,
	StatusPendingExplainer,
	StatusCompleted,
	StatusRejected,
}

// ValidStatus reports whether s is a member of the closed status set.
func ValidStatus(s Status) bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether s can only be left via the flag flow.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// QuestionType determines which content rules apply.
type QuestionType string

const (
	TypeMCQ         QuestionType = "MCQ"
	TypeTrueFalse   QuestionType = "TRUE_FALSE"
	TypeShortAnswer QuestionType = "SHORT_ANSWER"
	TypeEssay       QuestionType = "ESSAY"
)

// ValidQuestionType reports whether t is a known question type.
func ValidQuestionType(t QuestionType) bool {
	switch t {
	case TypeMCQ, TypeTrueFalse, TypeShortAnswer, TypeEssay:
		return true
	}
	return false
}

// FlagType records which kind of reviewer raised a flag.
type FlagType string

const (
	FlagTypeStudent   FlagType = "student"
	FlagTypeCreator   FlagType = "creator"
	FlagTypeExplainer FlagType = "explainer"
)

// FlagStatus is the resolution state of a raised flag.
type FlagStatus string

const (
	FlagStatusPending  FlagStatus = "pending"
	FlagStatusApproved FlagStatus = "approved"
	FlagStatusRejected FlagStatus = "rejected"
)

// Content holds the question fields shared by originals and variants.
// Options maps choice letters (A-D) to option text.
type Content struct {
	QuestionText  string            `json:"question_text"`
	QuestionType  QuestionType      `json:"question_type"`
	Options       map[string]string `json:"options,omitempty"`
	CorrectAnswer string            `json:"correct_answer,omitempty"`
	Explanation   string            `json:"explanation,omitempty"`
}

// Question is the central workflow entity. Version backs the optimistic
// concurrency check: every transition commits against the version it read.
type Question struct {
	ID uuid.UUID `json:"id"`
	Content

	ExamID      uuid.UUID `json:"exam_id"`
	ExamName    string    `json:"exam_name"`
	SubjectID   uuid.UUID `json:"subject_id"`
	SubjectName string    `json:"subject_name"`
	TopicID     uuid.UUID `json:"topic_id"`
	TopicName   string    `json:"topic_name"`

	Status            Status     `json:"status"`
	AssignedProcessor *uuid.UUID `json:"assigned_processor,omitempty"`
	RejectionReason   string     `json:"rejection_reason,omitempty"`

	IsFlagged  bool       `json:"is_flagged"`
	FlagReason string     `json:"flag_reason,omitempty"`
	FlagType   FlagType   `json:"flag_type,omitempty"`
	FlagStatus FlagStatus `json:"flag_status,omitempty"`

	CreatedBy uuid.UUID `json:"created_by"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
