package workflow

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/taalam/backend/internal/middleware"
	"github.com/taalam/backend/internal/models"
	"github.com/taalam/backend/pkg/response"
)

// Handler exposes the workflow engine over HTTP.
type Handler struct {
	engine *Engine
}

// NewHandler creates a workflow handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// actorFrom builds the explicit actor from the authenticated request.
func actorFrom(c *gin.Context) models.Actor {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	role, _ := c.MustGet(middleware.ContextUserRole).(string)
	return models.Actor{UserID: userID, Role: models.Role(role)}
}

// respondError maps the workflow error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	var verr *ValidationError
	var aerr *AuthorizationError
	var cerr *StateConflictError
	var nerr *NotFoundError
	switch {
	case errors.As(err, &verr):
		response.BadRequest(c, verr.Error())
	case errors.As(err, &aerr):
		response.Forbidden(c, aerr.Error())
	case errors.As(err, &cerr):
		response.Conflict(c, cerr.Error())
	case errors.As(err, &nerr):
		response.NotFound(c, nerr.Error())
	default:
		response.Internal(c, "internal error")
	}
}

// CreateRequest is the body for POST /questions. CorrectAnswer carries
// the stored choice letter.
type CreateRequest struct {
	QuestionText      string              `json:"question_text" binding:"required"`
	QuestionType      models.QuestionType `json:"question_type" binding:"required"`
	Options           map[string]string   `json:"options"`
	CorrectAnswer     string              `json:"correct_answer"`
	Explanation       string              `json:"explanation"`
	ExamID            uuid.UUID           `json:"exam_id" binding:"required"`
	SubjectID         uuid.UUID           `json:"subject_id" binding:"required"`
	TopicID           uuid.UUID           `json:"topic_id" binding:"required"`
	AssignedProcessor *uuid.UUID          `json:"assigned_processor"`
}

// Create handles POST /questions (gatherer originates a question).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	q, err := h.engine.CreateQuestion(c.Request.Context(), actorFrom(c), CreateQuestionInput{
		Content: models.Content{
			QuestionText:  req.QuestionText,
			QuestionType:  req.QuestionType,
			Options:       req.Options,
			CorrectAnswer: req.CorrectAnswer,
			Explanation:   req.Explanation,
		},
		ExamID:            req.ExamID,
		SubjectID:         req.SubjectID,
		TopicID:           req.TopicID,
		AssignedProcessor: req.AssignedProcessor,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, q)
}

// List handles GET /questions with optional status/exam_id/flagged filters.
func (h *Handler) List(c *gin.Context) {
	var f QuestionFilter
	if s := c.Query("status"); s != "" {
		if !models.ValidStatus(models.Status(s)) {
			response.BadRequest(c, "unknown status "+s)
			return
		}
		f.Status = models.Status(s)
	}
	if e := c.Query("exam_id"); e != "" {
		id, err := uuid.Parse(e)
		if err != nil {
			response.BadRequest(c, "invalid exam_id")
			return
		}
		f.ExamID = id
	}
	if fl := c.Query("flagged"); fl != "" {
		flagged := fl == "true"
		f.Flagged = &flagged
	}
	list, err := h.engine.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, gin.H{"questions": list})
}

// Get handles GET /questions/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid question id")
		return
	}
	q, err := h.engine.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, q)
}

// UpdateRequest is the body for PATCH /questions/:id.
type UpdateRequest struct {
	Content           *models.Content `json:"content"`
	AssignedProcessor *uuid.UUID      `json:"assigned_processor"`
}

// Update handles PATCH /questions/:id (stage owner edits in place).
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid question id")
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	q, err := h.engine.UpdateContent(c.Request.Context(), id, actorFrom(c), UpdateContentInput{
		Content:           req.Content,
		AssignedProcessor: req.AssignedProcessor,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, q)
}

// Delete handles DELETE /questions/:id (admin; variants cascade).
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid question id")
		return
	}
	if err := h.engine.DeleteQuestion(c.Request.Context(), id, actorFrom(c)); err != nil {
		respondError(c, err)
		return
	}
	response.NoContent(c)
}

// AdvanceRequest is the body for POST /questions/:id/advance.
type AdvanceRequest struct {
	AssignedProcessor *uuid.UUID `json:"assigned_processor"`
	Explanation       string     `json:"explanation"`
}

// Advance handles POST /questions/:id/advance.
func (h *Handler) Advance(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid question id")
		return
	}
	var req AdvanceRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	q, err := h.engine.Advance(c.Request.Context(), id, actorFrom(c), AdvancePayload{
		AssignedProcessor: req.AssignedProcessor,
		Explanation:       req.Explanation,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, q)
}

// ReasonRequest is the body for reject and send-back operations.
type ReasonRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// Reject handles POST /questions/:id/reject.
func (h *Handler) Reject(c *gin.Context) {
	h.reasoned(c, h.engine.Reject)
}

// SendBack handles POST /questions/:id/send-back.
func (h *Handler) SendBack(c *gin.Context) {
	h.reasoned(c, h.engine.SendBack)
}

// FlagRequest is the body for POST /questions/:id/flag. FlagType is
// required only for admins when the status admits more than one rule.
type FlagRequest struct {
	Reason   string `json:"reason" binding:"required"`
	FlagType string `json:"flag_type"`
}

// Flag handles POST /questions/:id/flag.
func (h *Handler) Flag(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid question id")
		return
	}
	var req FlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	q, err := h.engine.RaiseFlag(c.Request.Context(), id, actorFrom(c), req.Reason, models.FlagType(req.FlagType))
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, q)
}

func (h *Handler) reasoned(c *gin.Context, op func(ctx context.Context, id uuid.UUID, actor models.Actor, reason string) (*models.Question, error)) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid question id")
		return
	}
	var req ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	q, err := op(c.Request.Context(), id, actorFrom(c), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, q)
}

// ResolveFlagRequest is the body for POST /questions/:id/flag/resolve.
type ResolveFlagRequest struct {
	Outcome string `json:"outcome" binding:"required"`
	Reason  string `json:"reason"`
}

// ResolveFlag handles POST /questions/:id/flag/resolve.
func (h *Handler) ResolveFlag(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid question id")
		return
	}
	var req ResolveFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	q, err := h.engine.ResolveFlag(c.Request.Context(), id, actorFrom(c), FlagOutcome(req.Outcome), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, q)
}

// History handles GET /questions/:id/history.
func (h *Handler) History(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid question id")
		return
	}
	entries, err := h.engine.History(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, gin.H{"history": entries})
}

// SubmitVariants handles POST /questions/:id/variants/submit.
func (h *Handler) SubmitVariants(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid question id")
		return
	}
	q, err := h.engine.SubmitVariants(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, q)
}
