package variants

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/taalam/backend/internal/models"
	"github.com/taalam/backend/internal/workflow"
)

type memVariantStore struct {
	variants map[uuid.UUID]*models.Variant
}

func newMemVariantStore() *memVariantStore {
	return &memVariantStore{variants: make(map[uuid.UUID]*models.Variant)}
}

func (s *memVariantStore) Create(_ context.Context, v *models.Variant) error {
	cp := *v
	s.variants[v.ID] = &cp
	return nil
}

func (s *memVariantStore) GetByID(_ context.Context, id uuid.UUID) (*models.Variant, error) {
	v, ok := s.variants[id]
	if !ok {
		return nil, &workflow.NotFoundError{Kind: "variant", ID: id}
	}
	cp := *v
	return &cp, nil
}

func (s *memVariantStore) Update(_ context.Context, v *models.Variant) error {
	if _, ok := s.variants[v.ID]; !ok {
		return &workflow.NotFoundError{Kind: "variant", ID: v.ID}
	}
	cp := *v
	s.variants[v.ID] = &cp
	return nil
}

func (s *memVariantStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(s.variants, id)
	return nil
}

func (s *memVariantStore) ListByOriginal(_ context.Context, originalID uuid.UUID) ([]models.Variant, error) {
	var out []models.Variant
	for _, v := range s.variants {
		if v.OriginalQuestionID == originalID {
			out = append(out, *v)
		}
	}
	return out, nil
}

type memQuestionSource struct {
	questions map[uuid.UUID]*models.Question
}

func (s *memQuestionSource) GetQuestion(_ context.Context, id uuid.UUID) (*models.Question, error) {
	q, ok := s.questions[id]
	if !ok {
		return nil, &workflow.NotFoundError{Kind: "question", ID: id}
	}
	cp := *q
	return &cp, nil
}

func setup(status models.Status) (*Manager, *memVariantStore, *models.Question) {
	store := newMemVariantStore()
	q := &models.Question{
		ID:     uuid.New(),
		Status: status,
		Content: models.Content{
			QuestionText: "original",
			QuestionType: models.TypeMCQ,
		},
	}
	src := &memQuestionSource{questions: map[uuid.UUID]*models.Question{q.ID: q}}
	return NewManager(store, src, nil), store, q
}

func creator() models.Actor {
	return models.Actor{UserID: uuid.New(), Role: models.RoleCreator}
}

func TestAdd_DraftWithEmptyContent(t *testing.T) {
	m, _, q := setup(models.StatusPendingCreator)

	v, err := m.Add(context.Background(), q.ID, creator(), models.Content{QuestionType: models.TypeMCQ})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if v.Status != models.VariantDraft {
		t.Fatalf("expected draft, got %s", v.Status)
	}
	// Empty content is fine at draft time; it only blocks submission.
	if errs := m.Validate(v); len(errs) == 0 {
		t.Fatalf("expected validation violations for empty draft")
	}
}

func TestAdd_TrueFalseGetsCanonicalOptions(t *testing.T) {
	m, _, q := setup(models.StatusPendingCreator)

	v, err := m.Add(context.Background(), q.ID, creator(), models.Content{
		QuestionText: "Water boils at 100C at sea level",
		QuestionType: models.TypeTrueFalse,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if v.Options["A"] != "True" || v.Options["B"] != "False" {
		t.Fatalf("expected canonical true/false options, got %v", v.Options)
	}
}

func TestAdd_RejectedOutsideCreatorStage(t *testing.T) {
	for _, st := range []models.Status{models.StatusPendingProcessor, models.StatusPendingExplainer, models.StatusCompleted} {
		m, _, q := setup(st)
		_, err := m.Add(context.Background(), q.ID, creator(), models.Content{QuestionType: models.TypeMCQ})
		var verr *workflow.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("add at %s: expected ValidationError, got %v", st, err)
		}
	}
}

func TestAdd_RequiresCreatorRole(t *testing.T) {
	m, _, q := setup(models.StatusPendingCreator)
	_, err := m.Add(context.Background(), q.ID, models.Actor{UserID: uuid.New(), Role: models.RoleExplainer}, models.Content{})
	var aerr *workflow.AuthorizationError
	if !errors.As(err, &aerr) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}
}

func TestUpdate_DraftOnly(t *testing.T) {
	m, store, q := setup(models.StatusPendingCreator)
	a := creator()
	v, err := m.Add(context.Background(), q.ID, a, models.Content{QuestionType: models.TypeMCQ})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	updated, err := m.Update(context.Background(), v.ID, a, models.Content{
		QuestionText: "edited",
		QuestionType: models.TypeMCQ,
	})
	if err != nil {
		t.Fatalf("update draft: %v", err)
	}
	if updated.QuestionText != "edited" {
		t.Fatalf("content not applied: %q", updated.QuestionText)
	}

	store.variants[v.ID].Status = models.VariantSubmitted
	_, err = m.Update(context.Background(), v.ID, a, models.Content{QuestionType: models.TypeMCQ})
	var verr *workflow.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError editing a submitted variant, got %v", err)
	}
}

func explainer() models.Actor {
	return models.Actor{UserID: uuid.New(), Role: models.RoleExplainer}
}

// submittedVariant puts a submitted variant in the store with its
// original already in pending_explainer.
func submittedVariant(t *testing.T) (*Manager, *memVariantStore, *models.Variant) {
	t.Helper()
	m, store, q := setup(models.StatusPendingCreator)
	v, err := m.Add(context.Background(), q.ID, creator(), models.Content{
		QuestionText:  "What is 2+2?",
		QuestionType:  models.TypeMCQ,
		Options:       map[string]string{"A": "3", "B": "4", "C": "5", "D": "6"},
		CorrectAnswer: "B",
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	store.variants[v.ID].Status = models.VariantSubmitted
	src := m.questions.(*memQuestionSource)
	src.questions[q.ID].Status = models.StatusPendingExplainer
	out, _ := store.GetByID(context.Background(), v.ID)
	return m, store, out
}

func TestFlagVariant_SubmittedOnly(t *testing.T) {
	m, store, v := submittedVariant(t)

	flagged, err := m.FlagVariant(context.Background(), v.ID, explainer(), "answer key is off by one")
	if err != nil {
		t.Fatalf("flag: %v", err)
	}
	if flagged.Status != models.VariantFlagged || flagged.FlagReason != "answer key is off by one" {
		t.Fatalf("flag not recorded: %+v", flagged)
	}

	// A flagged variant cannot be flagged again.
	_, err = m.FlagVariant(context.Background(), v.ID, explainer(), "still wrong")
	var verr *workflow.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError flagging twice, got %v", err)
	}

	// Drafts cannot be flagged either.
	store.variants[v.ID].Status = models.VariantDraft
	_, err = m.FlagVariant(context.Background(), v.ID, explainer(), "nope")
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError flagging a draft, got %v", err)
	}
}

func TestFlagVariant_Guards(t *testing.T) {
	m, _, v := submittedVariant(t)

	var aerr *workflow.AuthorizationError
	if _, err := m.FlagVariant(context.Background(), v.ID, creator(), "reason"); !errors.As(err, &aerr) {
		t.Fatalf("expected AuthorizationError for creator raiser, got %v", err)
	}
	var verr *workflow.ValidationError
	if _, err := m.FlagVariant(context.Background(), v.ID, explainer(), "   "); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for blank reason, got %v", err)
	}
	// Once the original completes, variant flags go through the
	// question-level flow instead.
	src := m.questions.(*memQuestionSource)
	src.questions[v.OriginalQuestionID].Status = models.StatusCompleted
	if _, err := m.FlagVariant(context.Background(), v.ID, explainer(), "late"); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError after completion, got %v", err)
	}
}

func TestResolveVariantFlag_ApproveNeedsValidContent(t *testing.T) {
	m, _, v := submittedVariant(t)
	if _, err := m.FlagVariant(context.Background(), v.ID, explainer(), "option B repeats A"); err != nil {
		t.Fatalf("flag: %v", err)
	}

	a := creator()
	var verr *workflow.ValidationError
	if _, err := m.ResolveVariantFlag(context.Background(), v.ID, a, workflow.FlagApprove, nil, ""); !errors.As(err, &verr) {
		t.Fatalf("approve without content: expected ValidationError, got %v", err)
	}
	bad := models.Content{
		QuestionType: models.TypeMCQ,
		QuestionText: "What is 2+2?",
		Options:      map[string]string{"A": "4", "B": "4", "C": "5", "D": "6"},
	}
	if _, err := m.ResolveVariantFlag(context.Background(), v.ID, a, workflow.FlagApprove, &bad, ""); !errors.As(err, &verr) {
		t.Fatalf("approve with invalid content: expected ValidationError, got %v", err)
	}

	good := models.Content{
		QuestionType:  models.TypeMCQ,
		QuestionText:  "What is 2+2?",
		Options:       map[string]string{"A": "3", "B": "4", "C": "5", "D": "7"},
		CorrectAnswer: "B",
	}
	resolved, err := m.ResolveVariantFlag(context.Background(), v.ID, a, workflow.FlagApprove, &good, "")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if resolved.Status != models.VariantResolved || resolved.FlagReason != "" {
		t.Fatalf("unexpected resolved state: %+v", resolved)
	}
	if resolved.Options["D"] != "7" {
		t.Fatalf("corrected content not applied: %v", resolved.Options)
	}
}

func TestResolveVariantFlag_RejectRestoresSubmitted(t *testing.T) {
	m, _, v := submittedVariant(t)
	if _, err := m.FlagVariant(context.Background(), v.ID, explainer(), "too similar to original"); err != nil {
		t.Fatalf("flag: %v", err)
	}

	a := creator()
	var verr *workflow.ValidationError
	if _, err := m.ResolveVariantFlag(context.Background(), v.ID, a, workflow.FlagReject, nil, ""); !errors.As(err, &verr) {
		t.Fatalf("reject without reason: expected ValidationError, got %v", err)
	}

	resolved, err := m.ResolveVariantFlag(context.Background(), v.ID, a, workflow.FlagReject, nil, "variation is sufficient")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if resolved.Status != models.VariantSubmitted || resolved.FlagReason != "" {
		t.Fatalf("reject should restore submitted, got %+v", resolved)
	}

	// No pending flag left to resolve.
	if _, err := m.ResolveVariantFlag(context.Background(), v.ID, a, workflow.FlagReject, nil, "again"); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError resolving twice, got %v", err)
	}
}

func TestDelete_Guards(t *testing.T) {
	m, store, q := setup(models.StatusPendingCreator)
	a := creator()
	v, err := m.Add(context.Background(), q.ID, a, models.Content{QuestionType: models.TypeMCQ})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	// Submitted variants cannot be deleted.
	store.variants[v.ID].Status = models.VariantSubmitted
	var verr *workflow.ValidationError
	if !errors.As(m.Delete(context.Background(), v.ID, a), &verr) {
		t.Fatalf("expected ValidationError deleting a submitted variant")
	}

	store.variants[v.ID].Status = models.VariantDraft
	if err := m.Delete(context.Background(), v.ID, a); err != nil {
		t.Fatalf("delete draft: %v", err)
	}
	var nerr *workflow.NotFoundError
	if _, err := m.List(context.Background(), uuid.New()); !errors.As(err, &nerr) {
		t.Fatalf("list for unknown original should be NotFoundError, got %v", err)
	}
}
