package workflow

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taalam/backend/internal/models"
)

// Events emitted to the notifier after a committed transition.
const (
	EventQuestionCreated   = "question_created"
	EventStageChanged      = "stage_changed"
	EventFlagRaised        = "flag_raised"
	EventFlagResolved      = "flag_resolved"
	EventVariantsSubmitted = "variants_submitted"
)

// Store is the persistence boundary for questions, variants and the
// audit log. Write methods that take a history entry must commit the
// question write and the history append atomically, guarded by the
// expected version; a stale version yields StateConflictError and no
// write at all.
type Store interface {
	GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error)
	CreateQuestion(ctx context.Context, q *models.Question, entry *models.HistoryEntry) error
	// UpdateQuestion persists q (whose Version the engine has already
	// bumped) iff the stored version still equals expectedVersion.
	// entry may be nil for content-only edits, which are not audited.
	UpdateQuestion(ctx context.Context, q *models.Question, expectedVersion int64, entry *models.HistoryEntry) error
	DeleteQuestion(ctx context.Context, id uuid.UUID) error
	ListQuestions(ctx context.Context, f QuestionFilter) ([]models.Question, error)
	ListHistory(ctx context.Context, questionID uuid.UUID) ([]models.HistoryEntry, error)
	ListVariants(ctx context.Context, originalID uuid.UUID) ([]models.Variant, error)
	// SubmitVariants marks the given draft variants submitted and applies
	// the question update plus history append in the same transaction.
	SubmitVariants(ctx context.Context, q *models.Question, expectedVersion int64, variantIDs []uuid.UUID, entry *models.HistoryEntry) error
}

// QuestionFilter narrows ListQuestions.
type QuestionFilter struct {
	Status            models.Status
	ExamID            uuid.UUID
	AssignedProcessor uuid.UUID
	Flagged           *bool
}

// Classifier resolves exam/subject/topic IDs to their display names,
// cached on the question at creation time.
type Classifier interface {
	Resolve(ctx context.Context, examID, subjectID, topicID uuid.UUID) (models.Classification, error)
}

// Notifier receives events after a transition has committed. Delivery is
// best-effort; failures never roll back the transition.
type Notifier interface {
	QuestionEvent(ctx context.Context, q *models.Question, event string, actor models.Actor)
}

// NopNotifier discards events.
type NopNotifier struct{}

func (NopNotifier) QuestionEvent(context.Context, *models.Question, string, models.Actor) {}

// Engine owns the question status field and applies every transition
// through the tables in machine.go.
type Engine struct {
	store      Store
	classifier Classifier
	notifier   Notifier
	flaggable  map[models.Status]bool
	logger     *zap.Logger
	now        func() time.Time
}

// NewEngine creates the workflow engine. flaggableStatuses is the
// configured set of statuses a flag may be raised from; empty means the
// default set derived from the flag table.
func NewEngine(store Store, classifier Classifier, notifier Notifier, flaggableStatuses []models.Status, logger *zap.Logger) *Engine {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	flaggable := make(map[models.Status]bool)
	if len(flaggableStatuses) == 0 {
		for _, r := range flagTable {
			flaggable[r.From] = true
		}
	} else {
		for _, s := range flaggableStatuses {
			flaggable[s] = true
		}
	}
	return &Engine{
		store:      store,
		classifier: classifier,
		notifier:   notifier,
		flaggable:  flaggable,
		logger:     logger,
		now:        time.Now,
	}
}

// CreateQuestionInput is the payload for question creation.
type CreateQuestionInput struct {
	Content           models.Content
	ExamID            uuid.UUID
	SubjectID         uuid.UUID
	TopicID           uuid.UUID
	AssignedProcessor *uuid.UUID
}

// CreateQuestion creates a question in pending_gatherer. Only gatherers
// originate questions.
func (e *Engine) CreateQuestion(ctx context.Context, actor models.Actor, in CreateQuestionInput) (*models.Question, error) {
	if !roleAllowed(actor, models.RoleGatherer) {
		return nil, &AuthorizationError{Role: actor.Role, Required: models.RoleGatherer, Action: "create question"}
	}
	if verr := ValidateContent(in.Content); verr != nil {
		return nil, verr
	}
	cls, err := e.classifier.Resolve(ctx, in.ExamID, in.SubjectID, in.TopicID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	q := &models.Question{
		ID:                uuid.New(),
		Content:           in.Content,
		ExamID:            cls.ExamID,
		ExamName:          cls.ExamName,
		SubjectID:         cls.SubjectID,
		SubjectName:       cls.SubjectName,
		TopicID:           cls.TopicID,
		TopicName:         cls.TopicName,
		Status:            models.StatusPendingGatherer,
		AssignedProcessor: in.AssignedProcessor,
		CreatedBy:         actor.UserID,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	entry := e.entry(q.ID, models.ActionCreated, actor, "")
	if err := e.store.CreateQuestion(ctx, q, entry); err != nil {
		return nil, err
	}
	e.logger.Info("question created",
		zap.String("question_id", q.ID.String()),
		zap.String("created_by", actor.UserID.String()))
	e.notifier.QuestionEvent(ctx, q, EventQuestionCreated, actor)
	return q, nil
}

// AdvancePayload carries the per-stage fields an actor may set while
// advancing: the gatherer assigns a processor, the explainer supplies
// the final explanation.
type AdvancePayload struct {
	AssignedProcessor *uuid.UUID
	Explanation       string
}

// Advance moves the question along its forward edge, dispatched from the
// transition table by current status and actor role.
func (e *Engine) Advance(ctx context.Context, id uuid.UUID, actor models.Actor, payload AdvancePayload) (*models.Question, error) {
	q, err := e.store.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.IsFlagged {
		return nil, invalid("status", "a pending flag must be resolved before the question can advance")
	}
	rule, ok := advanceTable[q.Status]
	if !ok {
		return nil, invalid("status", "question in terminal status "+string(q.Status)+" cannot advance")
	}
	if !roleAllowed(actor, rule.Role) {
		return nil, &AuthorizationError{Role: actor.Role, Required: rule.Role, Action: "advance from " + string(q.Status)}
	}

	if payload.AssignedProcessor != nil {
		q.AssignedProcessor = payload.AssignedProcessor
	}
	if payload.Explanation != "" {
		q.Explanation = payload.Explanation
	}

	if q.Status == models.StatusPendingCreator {
		drafts, derr := e.draftVariants(ctx, q.ID)
		if derr != nil {
			return nil, derr
		}
		if len(drafts) > 0 {
			return nil, invalid("variants", "unsubmitted draft variants exist; submit or delete them first")
		}
	}
	if q.Status == models.StatusPendingExplainer {
		flagged, derr := e.flaggedVariants(ctx, q.ID)
		if derr != nil {
			return nil, derr
		}
		if len(flagged) > 0 {
			return nil, invalid("variants", "flagged variants are awaiting resolution")
		}
	}
	if rule.Validate != nil {
		if verr := rule.Validate(q); verr != nil {
			return nil, verr
		}
	}

	return e.commit(ctx, q, rule.Next, e.entry(q.ID, rule.Action, actor, ""), actor, EventStageChanged)
}

// Reject rejects the question with a mandatory reason. Only legal from
// statuses listed in the reject table.
func (e *Engine) Reject(ctx context.Context, id uuid.UUID, actor models.Actor, reason string) (*models.Question, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invalid("reason", "a rejection reason is required")
	}
	q, err := e.store.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	rule, ok := rejectTable[q.Status]
	if !ok {
		return nil, invalid("status", "question in status "+string(q.Status)+" cannot be rejected")
	}
	if !roleAllowed(actor, rule.Role) {
		return nil, &AuthorizationError{Role: actor.Role, Required: rule.Role, Action: "reject"}
	}
	q.RejectionReason = reason
	return e.commit(ctx, q, rule.Next, e.entry(q.ID, rule.Action, actor, reason), actor, EventStageChanged)
}

// SendBack returns the question to the gatherer with a mandatory reason,
// using the explicit sent_back status.
func (e *Engine) SendBack(ctx context.Context, id uuid.UUID, actor models.Actor, reason string) (*models.Question, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invalid("reason", "a send-back reason is required")
	}
	q, err := e.store.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	rule, ok := sendBackTable[q.Status]
	if !ok {
		return nil, invalid("status", "question in status "+string(q.Status)+" cannot be sent back")
	}
	if !roleAllowed(actor, rule.Role) {
		return nil, &AuthorizationError{Role: actor.Role, Required: rule.Role, Action: "send back"}
	}
	return e.commit(ctx, q, rule.Next, e.entry(q.ID, rule.Action, actor, reason), actor, EventStageChanged)
}

// RaiseFlag raises a flag against the question. The question must be in
// a flaggable status, not already flagged, and the reason non-empty.
// flagType is required only for admins when more than one rule applies
// at the status; everyone else's rule follows from their role.
func (e *Engine) RaiseFlag(ctx context.Context, id uuid.UUID, actor models.Actor, reason string, flagType models.FlagType) (*models.Question, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invalid("flag_reason", "a flag reason is required")
	}
	q, err := e.store.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.IsFlagged {
		return nil, invalid("flag", "question is already flagged")
	}
	if !e.flaggable[q.Status] {
		return nil, invalid("status", "questions in status "+string(q.Status)+" cannot be flagged")
	}
	rule, ok := raiseRuleFor(q.Status, actor.Role, flagType)
	if !ok {
		if actor.Role == models.RoleAdmin {
			return nil, invalid("flag_type", "no single flag rule at status "+string(q.Status)+"; name the flag type raised under")
		}
		return nil, &AuthorizationError{Role: actor.Role, Required: flagRaiserFor(q.Status), Action: "flag from " + string(q.Status)}
	}

	q.IsFlagged = true
	q.FlagReason = reason
	q.FlagType = rule.FlagType
	q.FlagStatus = models.FlagStatusPending
	return e.commit(ctx, q, rule.HoldAt, e.entry(q.ID, models.ActionFlagRaised, actor, reason), actor, EventFlagRaised)
}

// FlagOutcome is a flag resolution verdict.
type FlagOutcome string

const (
	FlagApprove FlagOutcome = "approve"
	FlagReject  FlagOutcome = "reject"
)

// ResolveFlag rules on a pending flag. approve clears the flag and moves
// the question to the stage that acts on the accepted problem; reject
// requires a reason and returns the question to the raiser's stage.
// Resolving a question without a pending flag fails.
func (e *Engine) ResolveFlag(ctx context.Context, id uuid.UUID, actor models.Actor, outcome FlagOutcome, reason string) (*models.Question, error) {
	if outcome != FlagApprove && outcome != FlagReject {
		return nil, invalid("outcome", `must be "approve" or "reject"`)
	}
	reason = strings.TrimSpace(reason)
	if outcome == FlagReject && reason == "" {
		return nil, invalid("reason", "a rejection reason is required when rejecting a flag")
	}

	q, err := e.store.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	if !q.IsFlagged || q.FlagStatus != models.FlagStatusPending {
		return nil, invalid("flag", "question has no pending flag to resolve")
	}
	rule, ok := resolveRuleFor(q.Status, q.FlagType)
	if !ok {
		return nil, invalid("flag", "no resolution rule for flag type "+string(q.FlagType)+" at status "+string(q.Status))
	}
	if !roleAllowed(actor, rule.Resolver) {
		return nil, &AuthorizationError{Role: actor.Role, Required: rule.Resolver, Action: "resolve flag"}
	}

	q.IsFlagged = false
	var next models.Status
	var entry *models.HistoryEntry
	if outcome == FlagApprove {
		q.FlagStatus = models.FlagStatusApproved
		next = rule.OnApprove
		entry = e.entry(q.ID, models.ActionFlagApproved, actor, reason)
	} else {
		q.FlagStatus = models.FlagStatusRejected
		next = rule.OnReject
		entry = e.entry(q.ID, models.ActionFlagRejected, actor, reason)
	}
	return e.commit(ctx, q, next, entry, actor, EventFlagResolved)
}

// SubmitVariants validates every draft variant of the original; if all
// pass, the drafts are submitted and the original advances to
// pending_explainer in one transaction. Any failure submits nothing and
// reports which variants are incomplete. Zero drafts is valid.
func (e *Engine) SubmitVariants(ctx context.Context, id uuid.UUID, actor models.Actor) (*models.Question, error) {
	q, err := e.store.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.Status != models.StatusPendingCreator {
		return nil, invalid("status", "variants can only be submitted while the question is in pending_creator")
	}
	if !roleAllowed(actor, models.RoleCreator) {
		return nil, &AuthorizationError{Role: actor.Role, Required: models.RoleCreator, Action: "submit variants"}
	}

	drafts, err := e.draftVariants(ctx, q.ID)
	if err != nil {
		return nil, err
	}
	verr := &ValidationError{}
	ids := make([]uuid.UUID, 0, len(drafts))
	for _, v := range drafts {
		if cerr := ValidateContent(v.Content); cerr != nil {
			for _, f := range cerr.Violations {
				verr.add("variants."+v.ID.String()+"."+f.Field, f.Reason)
			}
			continue
		}
		ids = append(ids, v.ID)
	}
	if !verr.empty() {
		return nil, verr
	}

	entry := e.entry(q.ID, models.ActionVariantsSubmitted, actor, "")
	if len(ids) == 0 {
		// No variants is explicitly allowed; this is the plain forward edge.
		entry.Action = models.ActionSubmittedToExplainer
	}
	expected := q.Version
	q.Status = models.StatusPendingExplainer
	q.Version++
	q.UpdatedAt = e.now()
	if err := e.store.SubmitVariants(ctx, q, expected, ids, entry); err != nil {
		return nil, err
	}
	e.logger.Info("variants submitted",
		zap.String("question_id", q.ID.String()),
		zap.Int("variant_count", len(ids)))
	e.notifier.QuestionEvent(ctx, q, EventVariantsSubmitted, actor)
	return q, nil
}

// UpdateContentInput carries editable question fields for the stage owner.
type UpdateContentInput struct {
	Content           *models.Content
	AssignedProcessor *uuid.UUID
}

// UpdateContent lets the owner of the current stage edit content or
// assignment in place. Edits do not move the question and are not
// audited; only transitions append history.
func (e *Engine) UpdateContent(ctx context.Context, id uuid.UUID, actor models.Actor, in UpdateContentInput) (*models.Question, error) {
	q, err := e.store.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	rule, ok := advanceTable[q.Status]
	if !ok {
		return nil, invalid("status", "question in terminal status "+string(q.Status)+" cannot be edited")
	}
	if !roleAllowed(actor, rule.Role) {
		return nil, &AuthorizationError{Role: actor.Role, Required: rule.Role, Action: "edit at " + string(q.Status)}
	}
	if in.Content != nil {
		if verr := ValidateContent(*in.Content); verr != nil {
			return nil, verr
		}
		q.Content = *in.Content
	}
	if in.AssignedProcessor != nil {
		q.AssignedProcessor = in.AssignedProcessor
	}
	expected := q.Version
	q.Version++
	q.UpdatedAt = e.now()
	if err := e.store.UpdateQuestion(ctx, q, expected, nil); err != nil {
		return nil, err
	}
	return q, nil
}

// DeleteQuestion removes a question and, via the store, its variants.
// Admin only.
func (e *Engine) DeleteQuestion(ctx context.Context, id uuid.UUID, actor models.Actor) error {
	if actor.Role != models.RoleAdmin {
		return &AuthorizationError{Role: actor.Role, Required: models.RoleAdmin, Action: "delete question"}
	}
	if _, err := e.store.GetQuestion(ctx, id); err != nil {
		return err
	}
	return e.store.DeleteQuestion(ctx, id)
}

// Get returns a question by ID.
func (e *Engine) Get(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	return e.store.GetQuestion(ctx, id)
}

// List returns questions matching the filter.
func (e *Engine) List(ctx context.Context, f QuestionFilter) ([]models.Question, error) {
	return e.store.ListQuestions(ctx, f)
}

// History returns the question's audit log in append order.
func (e *Engine) History(ctx context.Context, id uuid.UUID) ([]models.HistoryEntry, error) {
	if _, err := e.store.GetQuestion(ctx, id); err != nil {
		return nil, err
	}
	return e.store.ListHistory(ctx, id)
}

// commit applies the status change with the optimistic version check and
// emits the event once the write has succeeded. Version conflicts are
// surfaced to the caller, never blindly retried: by the time a conflict
// is detected the question may be in a state where the requested
// transition no longer makes sense.
func (e *Engine) commit(ctx context.Context, q *models.Question, next models.Status, entry *models.HistoryEntry, actor models.Actor, event string) (*models.Question, error) {
	expected := q.Version
	prev := q.Status
	q.Status = next
	q.Version++
	q.UpdatedAt = e.now()
	if err := e.store.UpdateQuestion(ctx, q, expected, entry); err != nil {
		return nil, err
	}
	e.logger.Info("question transitioned",
		zap.String("question_id", q.ID.String()),
		zap.String("from", string(prev)),
		zap.String("to", string(next)),
		zap.String("action", string(entry.Action)),
		zap.String("performed_by", actor.UserID.String()))
	e.notifier.QuestionEvent(ctx, q, event, actor)
	return q, nil
}

func (e *Engine) draftVariants(ctx context.Context, originalID uuid.UUID) ([]models.Variant, error) {
	return e.variantsInStatus(ctx, originalID, models.VariantDraft)
}

func (e *Engine) flaggedVariants(ctx context.Context, originalID uuid.UUID) ([]models.Variant, error) {
	return e.variantsInStatus(ctx, originalID, models.VariantFlagged)
}

func (e *Engine) variantsInStatus(ctx context.Context, originalID uuid.UUID, status models.VariantStatus) ([]models.Variant, error) {
	all, err := e.store.ListVariants(ctx, originalID)
	if err != nil {
		return nil, err
	}
	keep := all[:0:0]
	for _, v := range all {
		if v.Status == status {
			keep = append(keep, v)
		}
	}
	return keep, nil
}

func (e *Engine) entry(questionID uuid.UUID, action models.Action, actor models.Actor, reason string) *models.HistoryEntry {
	return &models.HistoryEntry{
		ID:          uuid.New(),
		QuestionID:  questionID,
		Action:      action,
		PerformedBy: actor.UserID,
		Reason:      reason,
		CreatedAt:   e.now(),
	}
}

// flagRaiserFor reports the role entitled to flag from the given status,
// for authorization error messages.
func flagRaiserFor(status models.Status) models.Role {
	for _, r := range flagTable {
		if r.From == status {
			return r.Raiser
		}
	}
	return ""
}
