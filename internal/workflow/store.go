package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taalam/backend/internal/models"
)

// PGStore is the PostgreSQL Store implementation. Status writes and
// history appends share one transaction; the optimistic version check
// rides on the UPDATE's WHERE clause.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a PostgreSQL-backed workflow store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const questionColumns = `id, question_text, question_type, options, correct_answer, explanation,
	exam_id, exam_name, subject_id, subject_name, topic_id, topic_name,
	status, assigned_processor, COALESCE(rejection_reason,''),
	is_flagged, COALESCE(flag_reason,''), COALESCE(flag_type,''), COALESCE(flag_status,''),
	created_by, version, created_at, updated_at`

func scanQuestion(row pgx.Row) (*models.Question, error) {
	var q models.Question
	err := row.Scan(&q.ID, &q.QuestionText, &q.QuestionType, &q.Options, &q.CorrectAnswer, &q.Explanation,
		&q.ExamID, &q.ExamName, &q.SubjectID, &q.SubjectName, &q.TopicID, &q.TopicName,
		&q.Status, &q.AssignedProcessor, &q.RejectionReason,
		&q.IsFlagged, &q.FlagReason, &q.FlagType, &q.FlagStatus,
		&q.CreatedBy, &q.Version, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// GetQuestion returns a question by ID, or NotFoundError.
func (s *PGStore) GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	q, err := scanQuestion(s.pool.QueryRow(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Kind: "question", ID: id}
		}
		return nil, fmt.Errorf("get question: %w", err)
	}
	return q, nil
}

// CreateQuestion inserts the question and its first history entry.
func (s *PGStore) CreateQuestion(ctx context.Context, q *models.Question, entry *models.HistoryEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const insert = `INSERT INTO questions
		(id, question_text, question_type, options, correct_answer, explanation,
		 exam_id, exam_name, subject_id, subject_name, topic_id, topic_name,
		 status, assigned_processor,
		 is_flagged, created_by, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`
	_, err = tx.Exec(ctx, insert,
		q.ID, q.QuestionText, q.QuestionType, q.Options, q.CorrectAnswer, q.Explanation,
		q.ExamID, q.ExamName, q.SubjectID, q.SubjectName, q.TopicID, q.TopicName,
		q.Status, q.AssignedProcessor,
		q.IsFlagged, q.CreatedBy, q.Version, q.CreatedAt, q.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	if err := insertHistory(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// UpdateQuestion persists the question guarded by expectedVersion and
// appends the history entry (when given) in the same transaction.
func (s *PGStore) UpdateQuestion(ctx context.Context, q *models.Question, expectedVersion int64, entry *models.HistoryEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := updateQuestionTx(ctx, tx, q, expectedVersion); err != nil {
		return err
	}
	if entry != nil {
		if err := insertHistory(ctx, tx, entry); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func updateQuestionTx(ctx context.Context, tx pgx.Tx, q *models.Question, expectedVersion int64) error {
	const update = `UPDATE questions SET
		question_text=$1, question_type=$2, options=$3, correct_answer=$4, explanation=$5,
		status=$6, assigned_processor=$7, rejection_reason=NULLIF($8,''),
		is_flagged=$9, flag_reason=NULLIF($10,''), flag_type=NULLIF($11,''), flag_status=NULLIF($12,''),
		version=$13, updated_at=$14
		WHERE id=$15 AND version=$16`
	tag, err := tx.Exec(ctx, update,
		q.QuestionText, q.QuestionType, q.Options, q.CorrectAnswer, q.Explanation,
		q.Status, q.AssignedProcessor, q.RejectionReason,
		q.IsFlagged, q.FlagReason, string(q.FlagType), string(q.FlagStatus),
		q.Version, q.UpdatedAt,
		q.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update question: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &StateConflictError{QuestionID: q.ID, Version: expectedVersion}
	}
	return nil
}

// DeleteQuestion removes the question; variants and history cascade via
// foreign keys.
func (s *PGStore) DeleteQuestion(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &NotFoundError{Kind: "question", ID: id}
	}
	return nil
}

// ListQuestions returns questions matching the filter, newest first.
func (s *PGStore) ListQuestions(ctx context.Context, f QuestionFilter) ([]models.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions`
	var where []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if f.Status != "" {
		where = append(where, "status = "+arg(f.Status))
	}
	if f.ExamID != uuid.Nil {
		where = append(where, "exam_id = "+arg(f.ExamID))
	}
	if f.AssignedProcessor != uuid.Nil {
		where = append(where, "assigned_processor = "+arg(f.AssignedProcessor))
	}
	if f.Flagged != nil {
		where = append(where, "is_flagged = "+arg(*f.Flagged))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var out []models.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

// ListHistory returns a question's audit log in append order.
func (s *PGStore) ListHistory(ctx context.Context, questionID uuid.UUID) ([]models.HistoryEntry, error) {
	const query = `SELECT id, question_id, action, performed_by, COALESCE(reason,''), created_at
		FROM question_history WHERE question_id = $1 ORDER BY seq`
	rows, err := s.pool.Query(ctx, query, questionID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []models.HistoryEntry
	for rows.Next() {
		var h models.HistoryEntry
		if err := rows.Scan(&h.ID, &h.QuestionID, &h.Action, &h.PerformedBy, &h.Reason, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ListVariants returns all variants of an original question.
func (s *PGStore) ListVariants(ctx context.Context, originalID uuid.UUID) ([]models.Variant, error) {
	const query = `SELECT id, original_question_id, question_text, question_type, options,
		correct_answer, explanation, status, COALESCE(flag_reason,''), created_by, created_at, updated_at
		FROM variants WHERE original_question_id = $1 ORDER BY created_at`
	rows, err := s.pool.Query(ctx, query, originalID)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	defer rows.Close()

	var out []models.Variant
	for rows.Next() {
		var v models.Variant
		if err := rows.Scan(&v.ID, &v.OriginalQuestionID, &v.QuestionText, &v.QuestionType, &v.Options,
			&v.CorrectAnswer, &v.Explanation, &v.Status, &v.FlagReason, &v.CreatedBy, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// SubmitVariants marks the drafts submitted, applies the question update
// and appends the history entry atomically. Any failure rolls the whole
// submission back.
func (s *PGStore) SubmitVariants(ctx context.Context, q *models.Question, expectedVersion int64, variantIDs []uuid.UUID, entry *models.HistoryEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if len(variantIDs) > 0 {
		tag, err := tx.Exec(ctx,
			`UPDATE variants SET status=$1, updated_at=$2 WHERE id = ANY($3) AND status=$4`,
			models.VariantSubmitted, q.UpdatedAt, variantIDs, models.VariantDraft)
		if err != nil {
			return fmt.Errorf("submit variants: %w", err)
		}
		if int(tag.RowsAffected()) != len(variantIDs) {
			return &StateConflictError{QuestionID: q.ID, Version: expectedVersion}
		}
	}
	if err := updateQuestionTx(ctx, tx, q, expectedVersion); err != nil {
		return err
	}
	if err := insertHistory(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertHistory(ctx context.Context, tx pgx.Tx, entry *models.HistoryEntry) error {
	const insert = `INSERT INTO question_history (id, question_id, action, performed_by, reason, created_at)
		VALUES ($1,$2,$3,$4,NULLIF($5,''),$6)`
	_, err := tx.Exec(ctx, insert, entry.ID, entry.QuestionID, entry.Action, entry.PerformedBy, entry.Reason, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}
