package models

import (
	"time"

	"github.com/google/uuid"
)

// Exam is a top-level classification entity (e.g. an entrance exam).
type Exam struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Subject belongs to an exam.
type Subject struct {
	ID        uuid.UUID `json:"id"`
	ExamID    uuid.UUID `json:"exam_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Topic belongs to a subject.
type Topic struct {
	ID        uuid.UUID `json:"id"`
	SubjectID uuid.UUID `json:"subject_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Classification carries the resolved exam/subject/topic names cached
// on a question at creation time.
type Classification struct {
	ExamID      uuid.UUID
	ExamName    string
	SubjectID   uuid.UUID
	SubjectName string
	TopicID     uuid.UUID
	TopicName   string
}
