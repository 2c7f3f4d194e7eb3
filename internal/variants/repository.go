package variants

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

// Repository handles variant persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a variants repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const variantColumns = `id, original_question_id, question_text, question_type, options,
	correct_answer, explanation, status, COALESCE(flag_reason,''), created_by, created_at, updated_at`

func scanVariant(row pgx.Row) (*models.Variant, error) {
	var v models.Variant
	err := row.Scan(&v.ID, &v.OriginalQuestionID, &v.QuestionText, &v.QuestionType, &v.Options,
		&v.CorrectAnswer, &v.Explanation, &v.Status, &v.FlagReason, &v.CreatedBy, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Create inserts a new variant.
func (r *Repository) Create(ctx context.Context, v *models.Variant) error {
	const query = `INSERT INTO variants
		(id, original_question_id, question_text, question_type, options, correct_answer, explanation,
		 status, created_by, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err := r.pool.Exec(ctx, query,
		v.ID, v.OriginalQuestionID, v.QuestionText, v.QuestionType, v.Options, v.CorrectAnswer, v.Explanation,
		v.Status, v.CreatedBy, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert variant: %w", err)
	}
	return nil
}

// GetByID returns a variant by ID, or NotFoundError.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Variant, error) {
	v, err := scanVariant(r.pool.QueryRow(ctx,
		`SELECT `+variantColumns+` FROM variants WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &workflow.NotFoundError{Kind: "variant", ID: id}
		}
		return nil, fmt.Errorf("get variant: %w", err)
	}
	return v, nil
}

// Update persists a variant's content, status and flag fields.
func (r *Repository) Update(ctx context.Context, v *models.Variant) error {
	const query = `UPDATE variants SET
		question_text=$1, question_type=$2, options=$3, correct_answer=$4, explanation=$5,
		status=$6, flag_reason=NULLIF($7,''), updated_at=$8
		WHERE id=$9`
	tag, err := r.pool.Exec(ctx, query,
		v.QuestionText, v.QuestionType, v.Options, v.CorrectAnswer, v.Explanation,
		v.Status, v.FlagReason, v.UpdatedAt, v.ID)
	if err != nil {
		return fmt.Errorf("update variant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &workflow.NotFoundError{Kind: "variant", ID: v.ID}
	}
	return nil
}

// Delete removes a variant.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM variants WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete variant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &workflow.NotFoundError{Kind: "variant", ID: id}
	}
	return nil
}

// ListByOriginal returns all variants of an original question in
// creation order.
func (r *Repository) ListByOriginal(ctx context.Context, originalID uuid.UUID) ([]models.Variant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+variantColumns+` FROM variants WHERE original_question_id = $1 ORDER BY created_at`, originalID)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	defer rows.Close()

	var out []models.Variant
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}
