package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/taalam/backend/internal/models"
)

// memStore is an in-memory Store for engine tests. It enforces the same
// version guard the SQL store does.
type memStore struct {
	questions map[uuid.UUID]*models.Question
	history   map[uuid.UUID][]models.HistoryEntry
	variants  map[uuid.UUID][]models.Variant
}

func newMemStore() *memStore {
	return &memStore{
		questions: make(map[uuid.UUID]*models.Question),
		history:   make(map[uuid.UUID][]models.HistoryEntry),
		variants:  make(map[uuid.UUID][]models.Variant),
	}
}

func (s *memStore) GetQuestion(_ context.Context, id uuid.UUID) (*models.Question, error) {
	q, ok := s.questions[id]
	if !ok {
		return nil, &NotFoundError{Kind: "question", ID: id}
	}
	cp := *q
	return &cp, nil
}

func (s *memStore) CreateQuestion(_ context.Context, q *models.Question, entry *models.HistoryEntry) error {
	cp := *q
	s.questions[q.ID] = &cp
	if entry != nil {
		s.history[q.ID] = append(s.history[q.ID], *entry)
	}
	return nil
}

func (s *memStore) UpdateQuestion(_ context.Context, q *models.Question, expectedVersion int64, entry *models.HistoryEntry) error {
	stored, ok := s.questions[q.ID]
	if !ok {
		return &NotFoundError{Kind: "question", ID: q.ID}
	}
	if stored.Version != expectedVersion {
		return &StateConflictError{QuestionID: q.ID, Version: expectedVersion}
	}
	cp := *q
	s.questions[q.ID] = &cp
	if entry != nil {
		s.history[q.ID] = append(s.history[q.ID], *entry)
	}
	return nil
}

func (s *memStore) DeleteQuestion(_ context.Context, id uuid.UUID) error {
	delete(s.questions, id)
	delete(s.history, id)
	delete(s.variants, id)
	return nil
}

func (s *memStore) ListQuestions(_ context.Context, f QuestionFilter) ([]models.Question, error) {
	var out []models.Question
	for _, q := range s.questions {
		if f.Status != "" && q.Status != f.Status {
			continue
		}
		if f.ExamID != uuid.Nil && q.ExamID != f.ExamID {
			continue
		}
		if f.Flagged != nil && q.IsFlagged != *f.Flagged {
			continue
		}
		out = append(out, *q)
	}
	return out, nil
}

func (s *memStore) ListHistory(_ context.Context, questionID uuid.UUID) ([]models.HistoryEntry, error) {
	return append([]models.HistoryEntry(nil), s.history[questionID]...), nil
}

func (s *memStore) ListVariants(_ context.Context, originalID uuid.UUID) ([]models.Variant, error) {
	return append([]models.Variant(nil), s.variants[originalID]...), nil
}

func (s *memStore) SubmitVariants(_ context.Context, q *models.Question, expectedVersion int64, variantIDs []uuid.UUID, entry *models.HistoryEntry) error {
	for _, id := range variantIDs {
		found := false
		for i, v := range s.variants[q.ID] {
			if v.ID == id && v.Status == models.VariantDraft {
				s.variants[q.ID][i].Status = models.VariantSubmitted
				found = true
			}
		}
		if !found {
			return errors.New("variant not in draft")
		}
	}
	return s.UpdateQuestion(context.Background(), q, expectedVersion, entry)
}

type fixedClassifier struct{}

func (fixedClassifier) Resolve(_ context.Context, examID, subjectID, topicID uuid.UUID) (models.Classification, error) {
	return models.Classification{
		ExamID: examID, ExamName: "SAT",
		SubjectID: subjectID, SubjectName: "Math",
		TopicID: topicID, TopicName: "Algebra",
	}, nil
}

type recordingNotifier struct {
	events []string
}

func (n *recordingNotifier) QuestionEvent(_ context.Context, _ *models.Question, event string, _ models.Actor) {
	n.events = append(n.events, event)
}

func actor(role models.Role) models.Actor {
	return models.Actor{UserID: uuid.New(), Role: role}
}

func validMCQ() models.Content {
	return models.Content{
		QuestionText:  "What is 2+2?",
		QuestionType:  models.TypeMCQ,
		Options:       map[string]string{"A": "3", "B": "4", "C": "5", "D": "6"},
		CorrectAnswer: "B",
	}
}

func newTestEngine() (*Engine, *memStore, *recordingNotifier) {
	store := newMemStore()
	notifier := &recordingNotifier{}
	return NewEngine(store, fixedClassifier{}, notifier, nil, nil), store, notifier
}

func mustCreate(t *testing.T, e *Engine, gatherer models.Actor, processor *uuid.UUID) *models.Question {
	t.Helper()
	q, err := e.CreateQuestion(context.Background(), gatherer, CreateQuestionInput{
		Content:           validMCQ(),
		ExamID:            uuid.New(),
		SubjectID:         uuid.New(),
		TopicID:           uuid.New(),
		AssignedProcessor: processor,
	})
	if err != nil {
		t.Fatalf("create question: %v", err)
	}
	return q
}

func mustAdvance(t *testing.T, e *Engine, id uuid.UUID, a models.Actor, p AdvancePayload) *models.Question {
	t.Helper()
	q, err := e.Advance(context.Background(), id, a, p)
	if err != nil {
		t.Fatalf("advance as %s: %v", a.Role, err)
	}
	return q
}

// driveToCompleted walks a fresh question down the full happy path and
// returns it in completed.
func driveToCompleted(t *testing.T, e *Engine) *models.Question {
	t.Helper()
	procID := uuid.New()
	gatherer := actor(models.RoleGatherer)
	q := mustCreate(t, e, gatherer, &procID)
	mustAdvance(t, e, q.ID, gatherer, AdvancePayload{})
	mustAdvance(t, e, q.ID, actor(models.RoleProcessor), AdvancePayload{})
	mustAdvance(t, e, q.ID, actor(models.RoleCreator), AdvancePayload{})
	return mustAdvance(t, e, q.ID, actor(models.RoleExplainer), AdvancePayload{Explanation: "2+2=4"})
}

func TestCreateQuestion_DuplicateOptionsRejected(t *testing.T) {
	e, _, _ := newTestEngine()
	content := validMCQ()
	content.Options = map[string]string{"A": "1", "B": " 1 ", "C": "2", "D": "3"}
	content.CorrectAnswer = "C"

	_, err := e.CreateQuestion(context.Background(), actor(models.RoleGatherer), CreateQuestionInput{
		Content: content, ExamID: uuid.New(), SubjectID: uuid.New(), TopicID: uuid.New(),
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	found := false
	for _, v := range verr.Violations {
		if strings.Contains(v.Reason, "duplicate") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a duplicate-option violation, got %v", verr.Violations)
	}
}

func TestAdvance_RequiresAssignedProcessor(t *testing.T) {
	e, store, _ := newTestEngine()
	gatherer := actor(models.RoleGatherer)
	q := mustCreate(t, e, gatherer, nil)

	_, err := e.Advance(context.Background(), q.ID, gatherer, AdvancePayload{})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Violations) != 1 || verr.Violations[0].Field != "assigned_processor" {
		t.Fatalf("expected assigned_processor violation, got %v", verr.Violations)
	}
	// The failed advance must leave no trace.
	stored, _ := store.GetQuestion(context.Background(), q.ID)
	if stored.Status != models.StatusPendingGatherer || stored.Version != 1 {
		t.Fatalf("failed advance mutated the question: %+v", stored)
	}
	hist, _ := store.ListHistory(context.Background(), q.ID)
	if len(hist) != 1 || hist[0].Action != models.ActionCreated {
		t.Fatalf("failed advance appended history: %v", hist)
	}
}

func TestSubmitVariants_ZeroDraftsAdvances(t *testing.T) {
	e, store, _ := newTestEngine()
	procID := uuid.New()
	gatherer := actor(models.RoleGatherer)
	q := mustCreate(t, e, gatherer, &procID)
	mustAdvance(t, e, q.ID, gatherer, AdvancePayload{})
	mustAdvance(t, e, q.ID, actor(models.RoleProcessor), AdvancePayload{})

	out, err := e.SubmitVariants(context.Background(), q.ID, actor(models.RoleCreator))
	if err != nil {
		t.Fatalf("submit with zero variants: %v", err)
	}
	if out.Status != models.StatusPendingExplainer {
		t.Fatalf("expected pending_explainer, got %s", out.Status)
	}
	hist, _ := store.ListHistory(context.Background(), q.ID)
	last := hist[len(hist)-1]
	if last.Action != models.ActionSubmittedToExplainer {
		t.Fatalf("zero-variant submission should record the plain forward edge, got %s", last.Action)
	}
}

func TestHappyPath_OneHistoryEntryPerEdge(t *testing.T) {
	e, store, notifier := newTestEngine()
	q := driveToCompleted(t, e)

	if q.Status != models.StatusCompleted {
		t.Fatalf("expected completed, got %s", q.Status)
	}
	if q.Explanation != "2+2=4" {
		t.Fatalf("explanation not applied: %q", q.Explanation)
	}

	hist, _ := store.ListHistory(context.Background(), q.ID)
	want := []models.Action{
		models.ActionCreated,
		models.ActionSubmittedToProcessor,
		models.ActionApprovedByProcessor,
		models.ActionSubmittedToExplainer,
		models.ActionCompleted,
	}
	if len(hist) != len(want) {
		t.Fatalf("expected %d history entries, got %d", len(want), len(hist))
	}
	for i, a := range want {
		if hist[i].Action != a {
			t.Fatalf("history[%d]: expected %s, got %s", i, a, hist[i].Action)
		}
	}
	if len(notifier.events) != len(want) {
		t.Fatalf("expected one event per committed transition, got %v", notifier.events)
	}
}

func TestFlagAndReject_RestoresCompleted(t *testing.T) {
	e, store, _ := newTestEngine()
	q := driveToCompleted(t, e)
	before, _ := store.GetQuestion(context.Background(), q.ID)
	histBefore, _ := store.ListHistory(context.Background(), q.ID)

	student := actor(models.RoleStudent)
	flagged, err := e.RaiseFlag(context.Background(), q.ID, student, "wrong answer", "")
	if err != nil {
		t.Fatalf("raise flag: %v", err)
	}
	if !flagged.IsFlagged || flagged.FlagStatus != models.FlagStatusPending || flagged.FlagType != models.FlagTypeStudent {
		t.Fatalf("flag fields wrong: %+v", flagged)
	}
	if flagged.Status != models.StatusCompleted {
		t.Fatalf("student flag should hold at completed, got %s", flagged.Status)
	}

	resolved, err := e.ResolveFlag(context.Background(), q.ID, actor(models.RoleProcessor), FlagReject, "not actually wrong")
	if err != nil {
		t.Fatalf("resolve flag: %v", err)
	}
	if resolved.IsFlagged || resolved.FlagStatus != models.FlagStatusRejected {
		t.Fatalf("flag not cleared: %+v", resolved)
	}
	if resolved.Status != models.StatusCompleted {
		t.Fatalf("rejected flag should restore completed, got %s", resolved.Status)
	}
	if resolved.QuestionText != before.QuestionText || resolved.CorrectAnswer != before.CorrectAnswer {
		t.Fatalf("content changed across flag round trip")
	}
	histAfter, _ := store.ListHistory(context.Background(), q.ID)
	if len(histAfter) != len(histBefore)+2 {
		t.Fatalf("expected raise+reject history entries, got %d new", len(histAfter)-len(histBefore))
	}
	if histAfter[len(histAfter)-2].Action != models.ActionFlagRaised || histAfter[len(histAfter)-1].Action != models.ActionFlagRejected {
		t.Fatalf("unexpected flag history tail: %v", histAfter[len(histAfter)-2:])
	}
}

func TestFlagApprove_ReentersPipeline(t *testing.T) {
	e, _, _ := newTestEngine()
	q := driveToCompleted(t, e)

	if _, err := e.RaiseFlag(context.Background(), q.ID, actor(models.RoleStudent), "ambiguous", ""); err != nil {
		t.Fatalf("raise flag: %v", err)
	}
	resolved, err := e.ResolveFlag(context.Background(), q.ID, actor(models.RoleProcessor), FlagApprove, "")
	if err != nil {
		t.Fatalf("approve flag: %v", err)
	}
	if resolved.Status != models.StatusPendingProcessor {
		t.Fatalf("approved student flag should reopen at pending_processor, got %s", resolved.Status)
	}
}

func TestRaiseFlag_DoubleFlagFails(t *testing.T) {
	e, _, _ := newTestEngine()
	q := driveToCompleted(t, e)

	if _, err := e.RaiseFlag(context.Background(), q.ID, actor(models.RoleStudent), "first", ""); err != nil {
		t.Fatalf("first flag: %v", err)
	}
	_, err := e.RaiseFlag(context.Background(), q.ID, actor(models.RoleStudent), "second", "")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError on double flag, got %v", err)
	}
}

func TestResolveFlag_TwiceFails(t *testing.T) {
	e, _, _ := newTestEngine()
	q := driveToCompleted(t, e)

	if _, err := e.RaiseFlag(context.Background(), q.ID, actor(models.RoleStudent), "typo", ""); err != nil {
		t.Fatalf("raise flag: %v", err)
	}
	if _, err := e.ResolveFlag(context.Background(), q.ID, actor(models.RoleProcessor), FlagReject, "fine as-is"); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	_, err := e.ResolveFlag(context.Background(), q.ID, actor(models.RoleProcessor), FlagReject, "again")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError on second resolve, got %v", err)
	}
}

func TestAdvance_BlockedWhileFlagPending(t *testing.T) {
	e, _, _ := newTestEngine()
	procID := uuid.New()
	gatherer := actor(models.RoleGatherer)
	q := mustCreate(t, e, gatherer, &procID)
	mustAdvance(t, e, q.ID, gatherer, AdvancePayload{})
	mustAdvance(t, e, q.ID, actor(models.RoleProcessor), AdvancePayload{})

	// Creator flags instead of authoring variants; the question is held
	// in the processor's queue.
	held, err := e.RaiseFlag(context.Background(), q.ID, actor(models.RoleCreator), "premise is wrong", "")
	if err != nil {
		t.Fatalf("creator flag: %v", err)
	}
	if held.Status != models.StatusPendingProcessor {
		t.Fatalf("creator flag should hold at pending_processor, got %s", held.Status)
	}

	_, err = e.Advance(context.Background(), q.ID, actor(models.RoleProcessor), AdvancePayload{})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError advancing a flagged question, got %v", err)
	}

	// Rejecting the flag returns the question to the creator.
	resolved, err := e.ResolveFlag(context.Background(), q.ID, actor(models.RoleProcessor), FlagReject, "premise holds")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != models.StatusPendingCreator {
		t.Fatalf("rejected creator flag should return to pending_creator, got %s", resolved.Status)
	}
}

func TestExplainerFlag_CreatorResolves(t *testing.T) {
	e, _, _ := newTestEngine()
	procID := uuid.New()
	gatherer := actor(models.RoleGatherer)
	q := mustCreate(t, e, gatherer, &procID)
	mustAdvance(t, e, q.ID, gatherer, AdvancePayload{})
	mustAdvance(t, e, q.ID, actor(models.RoleProcessor), AdvancePayload{})
	mustAdvance(t, e, q.ID, actor(models.RoleCreator), AdvancePayload{})

	held, err := e.RaiseFlag(context.Background(), q.ID, actor(models.RoleExplainer), "variants contradict", "")
	if err != nil {
		t.Fatalf("explainer flag: %v", err)
	}
	if held.Status != models.StatusPendingExplainer {
		t.Fatalf("explainer flag holds in place, got %s", held.Status)
	}

	// The processor is not the resolver here.
	_, err = e.ResolveFlag(context.Background(), q.ID, actor(models.RoleProcessor), FlagApprove, "")
	var aerr *AuthorizationError
	if !errors.As(err, &aerr) {
		t.Fatalf("expected AuthorizationError for wrong resolver, got %v", err)
	}

	resolved, err := e.ResolveFlag(context.Background(), q.ID, actor(models.RoleCreator), FlagApprove, "")
	if err != nil {
		t.Fatalf("creator resolve: %v", err)
	}
	if resolved.Status != models.StatusPendingCreator {
		t.Fatalf("approved explainer flag should return to pending_creator, got %s", resolved.Status)
	}
}

func TestRoleGates(t *testing.T) {
	e, _, _ := newTestEngine()
	procID := uuid.New()
	gatherer := actor(models.RoleGatherer)
	q := mustCreate(t, e, gatherer, &procID)

	cases := []struct {
		name string
		run  func() error
	}{
		{"student cannot create", func() error {
			_, err := e.CreateQuestion(context.Background(), actor(models.RoleStudent), CreateQuestionInput{Content: validMCQ()})
			return err
		}},
		{"processor cannot advance gatherer stage", func() error {
			_, err := e.Advance(context.Background(), q.ID, actor(models.RoleProcessor), AdvancePayload{})
			return err
		}},
		{"gatherer cannot reject", func() error {
			gq := mustCreate(t, e, gatherer, &procID)
			mustAdvance(t, e, gq.ID, gatherer, AdvancePayload{})
			_, err := e.Reject(context.Background(), gq.ID, gatherer, "bad")
			return err
		}},
		{"creator cannot delete", func() error {
			return e.DeleteQuestion(context.Background(), q.ID, actor(models.RoleCreator))
		}},
	}
	for _, tc := range cases {
		var aerr *AuthorizationError
		if !errors.As(tc.run(), &aerr) {
			t.Fatalf("%s: expected AuthorizationError", tc.name)
		}
	}
}

func TestAdmin_MayPerformAnyTransition(t *testing.T) {
	e, _, _ := newTestEngine()
	procID := uuid.New()
	admin := actor(models.RoleAdmin)
	q := mustCreate(t, e, admin, &procID)
	mustAdvance(t, e, q.ID, admin, AdvancePayload{})
	mustAdvance(t, e, q.ID, admin, AdvancePayload{})
	mustAdvance(t, e, q.ID, admin, AdvancePayload{})
	out := mustAdvance(t, e, q.ID, admin, AdvancePayload{Explanation: "because"})
	if out.Status != models.StatusCompleted {
		t.Fatalf("admin walk should complete, got %s", out.Status)
	}
}

func TestSendBack_ThenResubmit(t *testing.T) {
	e, store, _ := newTestEngine()
	procID := uuid.New()
	gatherer := actor(models.RoleGatherer)
	q := mustCreate(t, e, gatherer, &procID)
	mustAdvance(t, e, q.ID, gatherer, AdvancePayload{})

	back, err := e.SendBack(context.Background(), q.ID, actor(models.RoleProcessor), "options too easy")
	if err != nil {
		t.Fatalf("send back: %v", err)
	}
	if back.Status != models.StatusSentBack {
		t.Fatalf("expected sent_back, got %s", back.Status)
	}

	re := mustAdvance(t, e, q.ID, gatherer, AdvancePayload{})
	if re.Status != models.StatusPendingProcessor {
		t.Fatalf("resubmit should land at pending_processor, got %s", re.Status)
	}
	hist, _ := store.ListHistory(context.Background(), q.ID)
	last := hist[len(hist)-1]
	if last.Action != models.ActionResubmittedToProcessor {
		t.Fatalf("resubmission should be recorded distinctly, got %s", last.Action)
	}
}

func TestReject_RequiresReason(t *testing.T) {
	e, _, _ := newTestEngine()
	procID := uuid.New()
	gatherer := actor(models.RoleGatherer)
	q := mustCreate(t, e, gatherer, &procID)
	mustAdvance(t, e, q.ID, gatherer, AdvancePayload{})

	_, err := e.Reject(context.Background(), q.ID, actor(models.RoleProcessor), "   ")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for blank reason, got %v", err)
	}

	out, err := e.Reject(context.Background(), q.ID, actor(models.RoleProcessor), "off topic")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if out.Status != models.StatusRejected || out.RejectionReason != "off topic" {
		t.Fatalf("unexpected rejection state: %+v", out)
	}
}

// racingStore interposes a concurrent writer: once armed, the stored
// version is bumped right after the engine's read, so the engine's
// commit runs against a stale version.
type racingStore struct {
	*memStore
	armed bool
}

func (s *racingStore) GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	q, err := s.memStore.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.armed {
		s.armed = false
		s.memStore.questions[id].Version++
	}
	return q, nil
}

func TestVersionConflict_SurfacedNotRetried(t *testing.T) {
	store := &racingStore{memStore: newMemStore()}
	e := NewEngine(store, fixedClassifier{}, nil, nil, nil)
	procID := uuid.New()
	gatherer := actor(models.RoleGatherer)
	q := mustCreate(t, e, gatherer, &procID)

	store.armed = true
	_, err := e.Advance(context.Background(), q.ID, gatherer, AdvancePayload{})
	var cerr *StateConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected StateConflictError, got %v", err)
	}

	// The losing transition leaves neither a status change nor history.
	stored := store.memStore.questions[q.ID]
	if stored.Status != models.StatusPendingGatherer {
		t.Fatalf("conflicting advance changed status to %s", stored.Status)
	}
	hist, _ := store.ListHistory(context.Background(), q.ID)
	if len(hist) != 1 {
		t.Fatalf("conflicting advance appended history: %v", hist)
	}
}

func TestUpdateContent_RejectsInvalidContent(t *testing.T) {
	e, store, _ := newTestEngine()
	procID := uuid.New()
	gatherer := actor(models.RoleGatherer)
	q := mustCreate(t, e, gatherer, &procID)
	mustAdvance(t, e, q.ID, gatherer, AdvancePayload{})
	mustAdvance(t, e, q.ID, actor(models.RoleProcessor), AdvancePayload{})

	// Whitespace-padded "1" duplicates option A after normalization.
	bad := validMCQ()
	bad.Options = map[string]string{"A": "1", "B": " 1 ", "C": "2", "D": "3"}
	creator := actor(models.RoleCreator)
	_, err := e.UpdateContent(context.Background(), q.ID, creator, UpdateContentInput{Content: &bad})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for duplicate options, got %v", err)
	}
	stored, _ := store.GetQuestion(context.Background(), q.ID)
	if stored.Options["B"] == " 1 " {
		t.Fatalf("invalid content was persisted: %v", stored.Options)
	}

	good := validMCQ()
	good.QuestionText = "What is 3+1?"
	out, err := e.UpdateContent(context.Background(), q.ID, creator, UpdateContentInput{Content: &good})
	if err != nil {
		t.Fatalf("valid edit: %v", err)
	}
	if out.QuestionText != "What is 3+1?" {
		t.Fatalf("valid edit not applied: %q", out.QuestionText)
	}
}

func TestAdminFlag_MustNameRuleWhenAmbiguous(t *testing.T) {
	e, _, _ := newTestEngine()
	q := driveToCompleted(t, e)
	admin := actor(models.RoleAdmin)

	// completed admits both the student and the explainer rule; a bare
	// admin flag cannot pick between them.
	_, err := e.RaiseFlag(context.Background(), q.ID, admin, "stale", "")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for ambiguous admin flag, got %v", err)
	}
	if verr.Violations[0].Field != "flag_type" {
		t.Fatalf("expected flag_type violation, got %v", verr.Violations)
	}

	flagged, err := e.RaiseFlag(context.Background(), q.ID, admin, "stale", models.FlagTypeExplainer)
	if err != nil {
		t.Fatalf("admin flag with named type: %v", err)
	}
	if flagged.FlagType != models.FlagTypeExplainer {
		t.Fatalf("expected explainer flag type recorded, got %s", flagged.FlagType)
	}
	resolved, err := e.ResolveFlag(context.Background(), q.ID, actor(models.RoleProcessor), FlagApprove, "")
	if err != nil {
		t.Fatalf("processor resolve: %v", err)
	}
	if resolved.Status != models.StatusPendingProcessor {
		t.Fatalf("approved explainer flag should reopen at pending_processor, got %s", resolved.Status)
	}
}

func TestAdvance_BlockedByFlaggedVariants(t *testing.T) {
	e, store, _ := newTestEngine()
	procID := uuid.New()
	gatherer := actor(models.RoleGatherer)
	q := mustCreate(t, e, gatherer, &procID)
	mustAdvance(t, e, q.ID, gatherer, AdvancePayload{})
	mustAdvance(t, e, q.ID, actor(models.RoleProcessor), AdvancePayload{})
	mustAdvance(t, e, q.ID, actor(models.RoleCreator), AdvancePayload{})

	store.variants[q.ID] = []models.Variant{
		{ID: uuid.New(), OriginalQuestionID: q.ID, Content: validMCQ(), Status: models.VariantFlagged, FlagReason: "distractor repeats the stem"},
	}
	explainer := actor(models.RoleExplainer)
	_, err := e.Advance(context.Background(), q.ID, explainer, AdvancePayload{Explanation: "2+2=4"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError while a variant flag is pending, got %v", err)
	}

	store.variants[q.ID][0].Status = models.VariantResolved
	store.variants[q.ID][0].FlagReason = ""
	out := mustAdvance(t, e, q.ID, explainer, AdvancePayload{Explanation: "2+2=4"})
	if out.Status != models.StatusCompleted {
		t.Fatalf("expected completed after resolution, got %s", out.Status)
	}
}

func TestSubmitVariants_AllOrNothing(t *testing.T) {
	e, store, _ := newTestEngine()
	procID := uuid.New()
	gatherer := actor(models.RoleGatherer)
	q := mustCreate(t, e, gatherer, &procID)
	mustAdvance(t, e, q.ID, gatherer, AdvancePayload{})
	mustAdvance(t, e, q.ID, actor(models.RoleProcessor), AdvancePayload{})

	creator := actor(models.RoleCreator)
	good := models.Variant{ID: uuid.New(), OriginalQuestionID: q.ID, Content: validMCQ(), Status: models.VariantDraft, CreatedBy: creator.UserID}
	bad := models.Variant{ID: uuid.New(), OriginalQuestionID: q.ID, Content: models.Content{QuestionType: models.TypeMCQ}, Status: models.VariantDraft, CreatedBy: creator.UserID}
	store.variants[q.ID] = []models.Variant{good, bad}

	_, err := e.SubmitVariants(context.Background(), q.ID, creator)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for incomplete draft, got %v", err)
	}
	for _, v := range store.variants[q.ID] {
		if v.Status != models.VariantDraft {
			t.Fatalf("partial submission: variant %s is %s", v.ID, v.Status)
		}
	}
	stored, _ := store.GetQuestion(context.Background(), q.ID)
	if stored.Status != models.StatusPendingCreator {
		t.Fatalf("failed submission moved the question to %s", stored.Status)
	}

	// Fix the bad draft and retry.
	store.variants[q.ID][1].Content = validMCQ()
	out, err := e.SubmitVariants(context.Background(), q.ID, creator)
	if err != nil {
		t.Fatalf("submit after fix: %v", err)
	}
	if out.Status != models.StatusPendingExplainer {
		t.Fatalf("expected pending_explainer, got %s", out.Status)
	}
	for _, v := range store.variants[q.ID] {
		if v.Status != models.VariantSubmitted {
			t.Fatalf("variant %s not submitted: %s", v.ID, v.Status)
		}
	}
	hist, _ := store.ListHistory(context.Background(), q.ID)
	if hist[len(hist)-1].Action != models.ActionVariantsSubmitted {
		t.Fatalf("expected variants_submitted, got %s", hist[len(hist)-1].Action)
	}
}

func TestAdvance_BlockedByOutstandingDrafts(t *testing.T) {
	e, store, _ := newTestEngine()
	procID := uuid.New()
	gatherer := actor(models.RoleGatherer)
	q := mustCreate(t, e, gatherer, &procID)
	mustAdvance(t, e, q.ID, gatherer, AdvancePayload{})
	mustAdvance(t, e, q.ID, actor(models.RoleProcessor), AdvancePayload{})

	creator := actor(models.RoleCreator)
	store.variants[q.ID] = []models.Variant{
		{ID: uuid.New(), OriginalQuestionID: q.ID, Content: validMCQ(), Status: models.VariantDraft, CreatedBy: creator.UserID},
	}
	_, err := e.Advance(context.Background(), q.ID, creator, AdvancePayload{})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError while drafts exist, got %v", err)
	}
}

func TestCompleted_RequiresExplanation(t *testing.T) {
	e, _, _ := newTestEngine()
	procID := uuid.New()
	gatherer := actor(models.RoleGatherer)
	q := mustCreate(t, e, gatherer, &procID)
	mustAdvance(t, e, q.ID, gatherer, AdvancePayload{})
	mustAdvance(t, e, q.ID, actor(models.RoleProcessor), AdvancePayload{})
	mustAdvance(t, e, q.ID, actor(models.RoleCreator), AdvancePayload{})

	_, err := e.Advance(context.Background(), q.ID, actor(models.RoleExplainer), AdvancePayload{})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for missing explanation, got %v", err)
	}
}

func TestTerminalStatuses_CannotAdvance(t *testing.T) {
	e, store, _ := newTestEngine()
	q := driveToCompleted(t, e)

	for _, st := range []models.Status{models.StatusCompleted, models.StatusRejected} {
		store.questions[q.ID].Status = st
		store.questions[q.ID].IsFlagged = false
		_, err := e.Advance(context.Background(), q.ID, actor(models.RoleAdmin), AdvancePayload{})
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("advance from %s: expected ValidationError, got %v", st, err)
		}
	}
}

func TestFlaggableStatuses_Configurable(t *testing.T) {
	store := newMemStore()
	e := NewEngine(store, fixedClassifier{}, nil, []models.Status{models.StatusPendingExplainer}, nil)
	q := driveToCompleted(t, e)

	_, err := e.RaiseFlag(context.Background(), q.ID, actor(models.RoleStudent), "wrong", "")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("completed should not be flaggable under this config, got %v", err)
	}
}

func TestDeleteQuestion_AdminOnlyAndCascades(t *testing.T) {
	e, store, _ := newTestEngine()
	procID := uuid.New()
	q := mustCreate(t, e, actor(models.RoleGatherer), &procID)
	store.variants[q.ID] = []models.Variant{{ID: uuid.New(), OriginalQuestionID: q.ID, Status: models.VariantDraft}}

	if err := e.DeleteQuestion(context.Background(), q.ID, actor(models.RoleAdmin)); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	if _, err := e.Get(context.Background(), q.ID); err == nil {
		t.Fatalf("question still present after delete")
	}
	if len(store.variants[q.ID]) != 0 {
		t.Fatalf("variants not cascaded")
	}
}

func TestClosedStatusSet(t *testing.T) {
	for st := range advanceTable {
		if !models.ValidStatus(st) {
			t.Fatalf("advance table references unknown status %s", st)
		}
	}
	for _, r := range flagTable {
		for _, st := range []models.Status{r.From, r.HoldAt, r.OnApprove, r.OnReject} {
			if !models.ValidStatus(st) {
				t.Fatalf("flag table references unknown status %s", st)
			}
		}
	}
	if models.ValidStatus(models.Status("in_review")) {
		t.Fatalf("unknown status accepted")
	}
}
