// Package variants manages variants of an original question. Drafts are
// authored while the original sits in the creator stage; submission of
// drafts is owned by the workflow engine (all-or-nothing, advancing the
// original). After submission an explainer may flag a defective variant
// and the creator resolves the flag.
package variants

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taalam/backend/internal/models"
	"github.com/taalam/backend/internal/workflow"
)

// QuestionSource loads the parent question so draft operations can check
// its stage. Implemented by the workflow store.
type QuestionSource interface {
	GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error)
}

// VariantStore is the persistence surface the manager needs.
type VariantStore interface {
	Create(ctx context.Context, v *models.Variant) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Variant, error)
	Update(ctx context.Context, v *models.Variant) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByOriginal(ctx context.Context, originalID uuid.UUID) ([]models.Variant, error)
}

// Manager implements the variant draft sub-flow.
type Manager struct {
	store     VariantStore
	questions QuestionSource
	logger    *zap.Logger
	now       func() time.Time
}

// NewManager creates a variant manager.
func NewManager(store VariantStore, questions QuestionSource, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, questions: questions, logger: logger, now: time.Now}
}

// parentInCreatorStage loads the original and checks it is editable by
// the creator. Variants only attach while the original is in
// pending_creator.
func (m *Manager) parentInCreatorStage(ctx context.Context, originalID uuid.UUID) (*models.Question, error) {
	q, err := m.questions.GetQuestion(ctx, originalID)
	if err != nil {
		return nil, err
	}
	if q.Status != models.StatusPendingCreator {
		return nil, &workflow.ValidationError{Violations: []workflow.FieldError{
			{Field: "status", Reason: "variants can only be managed while the original is in pending_creator"},
		}}
	}
	return q, nil
}

func creatorAllowed(actor models.Actor) bool {
	return actor.Role == models.RoleCreator || actor.Role == models.RoleAdmin
}

// Add creates a new draft variant for the original. Content may be empty
// at this point; validation happens at submission.
func (m *Manager) Add(ctx context.Context, originalID uuid.UUID, actor models.Actor, content models.Content) (*models.Variant, error) {
	if !creatorAllowed(actor) {
		return nil, &workflow.AuthorizationError{Role: actor.Role, Required: models.RoleCreator, Action: "add variant"}
	}
	if _, err := m.parentInCreatorStage(ctx, originalID); err != nil {
		return nil, err
	}
	if content.QuestionType == models.TypeTrueFalse && len(content.Options) == 0 {
		content.Options = workflow.TrueFalseOptions()
	}
	now := m.now()
	v := &models.Variant{
		ID:                 uuid.New(),
		OriginalQuestionID: originalID,
		Content:            content,
		Status:             models.VariantDraft,
		CreatedBy:          actor.UserID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := m.store.Create(ctx, v); err != nil {
		return nil, err
	}
	m.logger.Debug("variant draft added",
		zap.String("variant_id", v.ID.String()),
		zap.String("original_id", originalID.String()))
	return v, nil
}

// Update edits a draft variant's content. Submitted variants are frozen.
func (m *Manager) Update(ctx context.Context, variantID uuid.UUID, actor models.Actor, content models.Content) (*models.Variant, error) {
	if !creatorAllowed(actor) {
		return nil, &workflow.AuthorizationError{Role: actor.Role, Required: models.RoleCreator, Action: "update variant"}
	}
	v, err := m.store.GetByID(ctx, variantID)
	if err != nil {
		return nil, err
	}
	if v.Status != models.VariantDraft {
		return nil, &workflow.ValidationError{Violations: []workflow.FieldError{
			{Field: "status", Reason: "only draft variants can be edited"},
		}}
	}
	if _, err := m.parentInCreatorStage(ctx, v.OriginalQuestionID); err != nil {
		return nil, err
	}
	if content.QuestionType == models.TypeTrueFalse && len(content.Options) == 0 {
		content.Options = workflow.TrueFalseOptions()
	}
	v.Content = content
	v.UpdatedAt = m.now()
	if err := m.store.Update(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// Delete removes a draft variant. Allowed only while the parent is in
// pending_creator and the variant has not been submitted downstream.
func (m *Manager) Delete(ctx context.Context, variantID uuid.UUID, actor models.Actor) error {
	if !creatorAllowed(actor) {
		return &workflow.AuthorizationError{Role: actor.Role, Required: models.RoleCreator, Action: "delete variant"}
	}
	v, err := m.store.GetByID(ctx, variantID)
	if err != nil {
		return err
	}
	if v.Status != models.VariantDraft {
		return &workflow.ValidationError{Violations: []workflow.FieldError{
			{Field: "status", Reason: "only draft variants can be deleted"},
		}}
	}
	if _, err := m.parentInCreatorStage(ctx, v.OriginalQuestionID); err != nil {
		return err
	}
	return m.store.Delete(ctx, variantID)
}

// FlagVariant marks a submitted variant defective while the original is
// in the explainer stage. The original keeps its status; the explainer
// cannot complete it until every flagged variant is resolved.
func (m *Manager) FlagVariant(ctx context.Context, variantID uuid.UUID, actor models.Actor, reason string) (*models.Variant, error) {
	if actor.Role != models.RoleExplainer && actor.Role != models.RoleAdmin {
		return nil, &workflow.AuthorizationError{Role: actor.Role, Required: models.RoleExplainer, Action: "flag variant"}
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, &workflow.ValidationError{Violations: []workflow.FieldError{
			{Field: "flag_reason", Reason: "a flag reason is required"},
		}}
	}
	v, err := m.store.GetByID(ctx, variantID)
	if err != nil {
		return nil, err
	}
	if v.Status != models.VariantSubmitted {
		return nil, &workflow.ValidationError{Violations: []workflow.FieldError{
			{Field: "status", Reason: "only submitted variants can be flagged"},
		}}
	}
	q, err := m.questions.GetQuestion(ctx, v.OriginalQuestionID)
	if err != nil {
		return nil, err
	}
	if q.Status != models.StatusPendingExplainer {
		return nil, &workflow.ValidationError{Violations: []workflow.FieldError{
			{Field: "status", Reason: "variants can only be flagged while the original is in pending_explainer"},
		}}
	}
	v.Status = models.VariantFlagged
	v.FlagReason = reason
	v.UpdatedAt = m.now()
	if err := m.store.Update(ctx, v); err != nil {
		return nil, err
	}
	m.logger.Info("variant flagged",
		zap.String("variant_id", v.ID.String()),
		zap.String("original_id", v.OriginalQuestionID.String()),
		zap.String("flagged_by", actor.UserID.String()))
	return v, nil
}

// ResolveVariantFlag rules on a flagged variant. approve requires
// corrected content that passes validation and marks the variant
// resolved; reject dismisses the flag with a reason and returns the
// variant to submitted unchanged.
func (m *Manager) ResolveVariantFlag(ctx context.Context, variantID uuid.UUID, actor models.Actor, outcome workflow.FlagOutcome, content *models.Content, reason string) (*models.Variant, error) {
	if !creatorAllowed(actor) {
		return nil, &workflow.AuthorizationError{Role: actor.Role, Required: models.RoleCreator, Action: "resolve variant flag"}
	}
	if outcome != workflow.FlagApprove && outcome != workflow.FlagReject {
		return nil, &workflow.ValidationError{Violations: []workflow.FieldError{
			{Field: "outcome", Reason: `must be "approve" or "reject"`},
		}}
	}
	v, err := m.store.GetByID(ctx, variantID)
	if err != nil {
		return nil, err
	}
	if v.Status != models.VariantFlagged {
		return nil, &workflow.ValidationError{Violations: []workflow.FieldError{
			{Field: "status", Reason: "variant has no pending flag"},
		}}
	}
	switch outcome {
	case workflow.FlagApprove:
		if content == nil {
			return nil, &workflow.ValidationError{Violations: []workflow.FieldError{
				{Field: "content", Reason: "corrected content is required to approve a variant flag"},
			}}
		}
		if content.QuestionType == models.TypeTrueFalse && len(content.Options) == 0 {
			content.Options = workflow.TrueFalseOptions()
		}
		if verr := workflow.ValidateContent(*content); verr != nil {
			return nil, verr
		}
		v.Content = *content
		v.Status = models.VariantResolved
	case workflow.FlagReject:
		if strings.TrimSpace(reason) == "" {
			return nil, &workflow.ValidationError{Violations: []workflow.FieldError{
				{Field: "reason", Reason: "rejecting a variant flag requires a reason"},
			}}
		}
		v.Status = models.VariantSubmitted
	}
	v.FlagReason = ""
	v.UpdatedAt = m.now()
	if err := m.store.Update(ctx, v); err != nil {
		return nil, err
	}
	m.logger.Info("variant flag resolved",
		zap.String("variant_id", v.ID.String()),
		zap.String("outcome", string(outcome)),
		zap.String("resolved_by", actor.UserID.String()))
	return v, nil
}

// Validate returns the variant's content violations, empty when valid.
// Callers must block submission on a non-empty result.
func (m *Manager) Validate(v *models.Variant) []workflow.FieldError {
	if verr := workflow.ValidateContent(v.Content); verr != nil {
		return verr.Violations
	}
	return nil
}

// List returns all variants of the original, drafts and submitted.
func (m *Manager) List(ctx context.Context, originalID uuid.UUID) ([]models.Variant, error) {
	if _, err := m.questions.GetQuestion(ctx, originalID); err != nil {
		return nil, err
	}
	return m.store.ListByOriginal(ctx, originalID)
}
