// Package catalog holds the thin exam/subject/topic classification CRUD
// the workflow engine consumes. No workflow logic lives here.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taalam/backend/internal/models"
	"github.com/taalam/backend/internal/workflow"
)

// Repository handles exam/subject/topic persistence and implements the
// workflow engine's Classifier.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a catalog repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Resolve looks up the display names for a question's classification.
// Missing IDs surface as NotFoundError.
func (r *Repository) Resolve(ctx context.Context, examID, subjectID, topicID uuid.UUID) (models.Classification, error) {
	cls := models.Classification{ExamID: examID, SubjectID: subjectID, TopicID: topicID}
	if err := r.pool.QueryRow(ctx, `SELECT name FROM exams WHERE id = $1`, examID).Scan(&cls.ExamName); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cls, &workflow.NotFoundError{Kind: "exam", ID: examID}
		}
		return cls, fmt.Errorf("resolve exam: %w", err)
	}
	if err := r.pool.QueryRow(ctx, `SELECT name FROM subjects WHERE id = $1`, subjectID).Scan(&cls.SubjectName); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cls, &workflow.NotFoundError{Kind: "subject", ID: subjectID}
		}
		return cls, fmt.Errorf("resolve subject: %w", err)
	}
	if err := r.pool.QueryRow(ctx, `SELECT name FROM topics WHERE id = $1`, topicID).Scan(&cls.TopicName); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cls, &workflow.NotFoundError{Kind: "topic", ID: topicID}
		}
		return cls, fmt.Errorf("resolve topic: %w", err)
	}
	return cls, nil
}

// CreateExam inserts an exam.
func (r *Repository) CreateExam(ctx context.Context, e *models.Exam) error {
	const q = `INSERT INTO exams (id, name) VALUES (gen_random_uuid(), $1)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, e.Name).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// ListExams returns all exams.
func (r *Repository) ListExams(ctx context.Context) ([]models.Exam, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, created_at, updated_at FROM exams ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Exam
	for rows.Next() {
		var e models.Exam
		if err := rows.Scan(&e.ID, &e.Name, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateExam renames an exam.
func (r *Repository) UpdateExam(ctx context.Context, id uuid.UUID, name string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE exams SET name = $1, updated_at = NOW() WHERE id = $2`, name, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &workflow.NotFoundError{Kind: "exam", ID: id}
	}
	return nil
}

// DeleteExam removes an exam.
func (r *Repository) DeleteExam(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM exams WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &workflow.NotFoundError{Kind: "exam", ID: id}
	}
	return nil
}

// CreateSubject inserts a subject under an exam.
func (r *Repository) CreateSubject(ctx context.Context, s *models.Subject) error {
	const q = `INSERT INTO subjects (id, exam_id, name) VALUES (gen_random_uuid(), $1, $2)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, s.ExamID, s.Name).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// ListSubjects returns subjects, optionally filtered by exam.
func (r *Repository) ListSubjects(ctx context.Context, examID uuid.UUID) ([]models.Subject, error) {
	query := `SELECT id, exam_id, name, created_at, updated_at FROM subjects`
	args := []interface{}{}
	if examID != uuid.Nil {
		query += ` WHERE exam_id = $1`
		args = append(args, examID)
	}
	query += ` ORDER BY name`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Subject
	for rows.Next() {
		var s models.Subject
		if err := rows.Scan(&s.ID, &s.ExamID, &s.Name, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteSubject removes a subject.
func (r *Repository) DeleteSubject(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM subjects WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &workflow.NotFoundError{Kind: "subject", ID: id}
	}
	return nil
}

// CreateTopic inserts a topic under a subject.
func (r *Repository) CreateTopic(ctx context.Context, t *models.Topic) error {
	const q = `INSERT INTO topics (id, subject_id, name) VALUES (gen_random_uuid(), $1, $2)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, t.SubjectID, t.Name).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

// ListTopics returns topics, optionally filtered by subject.
func (r *Repository) ListTopics(ctx context.Context, subjectID uuid.UUID) ([]models.Topic, error) {
	query := `SELECT id, subject_id, name, created_at, updated_at FROM topics`
	args := []interface{}{}
	if subjectID != uuid.Nil {
		query += ` WHERE subject_id = $1`
		args = append(args, subjectID)
	}
	query += ` ORDER BY name`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Topic
	for rows.Next() {
		var t models.Topic
		if err := rows.Scan(&t.ID, &t.SubjectID, &t.Name, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteTopic removes a topic.
func (r *Repository) DeleteTopic(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM topics WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &workflow.NotFoundError{Kind: "topic", ID: id}
	}
	return nil
}
