package variants

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/taalam/backend/internal/middleware"
	"github.com/taalam/backend/internal/models"
	"github.com/taalam/backend/internal/workflow"
	"github.com/taalam/backend/pkg/response"
)

// Handler exposes variant draft management over HTTP.
type Handler struct {
	manager *Manager
}

// NewHandler creates a variants handler.
func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

func actorFrom(c *gin.Context) models.Actor {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	role, _ := c.MustGet(middleware.ContextUserRole).(string)
	return models.Actor{UserID: userID, Role: models.Role(role)}
}

func respondError(c *gin.Context, err error) {
	var verr *workflow.ValidationError
	var aerr *workflow.AuthorizationError
	var nerr *workflow.NotFoundError
	switch {
	case errors.As(err, &verr):
		response.BadRequest(c, verr.Error())
	case errors.As(err, &aerr):
		response.Forbidden(c, aerr.Error())
	case errors.As(err, &nerr):
		response.NotFound(c, nerr.Error())
	default:
		response.Internal(c, "internal error")
	}
}

// ContentRequest carries variant content. CorrectAnswer accepts the
// UI-level display form ("Option A", "True", "False") and is mapped to
// the stored letter before persistence; the mapping round-trips.
type ContentRequest struct {
	QuestionText  string              `json:"question_text"`
	QuestionType  models.QuestionType `json:"question_type"`
	Options       map[string]string   `json:"options"`
	CorrectAnswer string              `json:"correct_answer"`
	Explanation   string              `json:"explanation"`
}

func (r ContentRequest) toContent() models.Content {
	return models.Content{
		QuestionText:  r.QuestionText,
		QuestionType:  r.QuestionType,
		Options:       r.Options,
		CorrectAnswer: workflow.StoredAnswer(r.QuestionType, r.CorrectAnswer),
		Explanation:   r.Explanation,
	}
}

// Create handles POST /questions/:id/variants (creator adds a draft).
func (h *Handler) Create(c *gin.Context) {
	originalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid question id")
		return
	}
	var req ContentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	v, err := h.manager.Add(c.Request.Context(), originalID, actorFrom(c), req.toContent())
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, v)
}

// Update handles PATCH /variants/:id.
func (h *Handler) Update(c *gin.Context) {
	variantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid variant id")
		return
	}
	var req ContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	v, err := h.manager.Update(c.Request.Context(), variantID, actorFrom(c), req.toContent())
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, v)
}

// Delete handles DELETE /variants/:id.
func (h *Handler) Delete(c *gin.Context) {
	variantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid variant id")
		return
	}
	if err := h.manager.Delete(c.Request.Context(), variantID, actorFrom(c)); err != nil {
		respondError(c, err)
		return
	}
	response.NoContent(c)
}

// FlagRequest is the body for POST /variants/:id/flag.
type FlagRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// Flag handles POST /variants/:id/flag (explainer flags a submitted
// variant back to the creator).
func (h *Handler) Flag(c *gin.Context) {
	variantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid variant id")
		return
	}
	var req FlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	v, err := h.manager.FlagVariant(c.Request.Context(), variantID, actorFrom(c), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, v)
}

// ResolveFlagRequest is the body for POST /variants/:id/flag/resolve.
// Content carries the corrected variant on approve; Reason explains a
// reject.
type ResolveFlagRequest struct {
	Outcome string          `json:"outcome" binding:"required"`
	Content *ContentRequest `json:"content"`
	Reason  string          `json:"reason"`
}

// ResolveFlag handles POST /variants/:id/flag/resolve.
func (h *Handler) ResolveFlag(c *gin.Context) {
	variantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid variant id")
		return
	}
	var req ResolveFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	var content *models.Content
	if req.Content != nil {
		cc := req.Content.toContent()
		content = &cc
	}
	v, err := h.manager.ResolveVariantFlag(c.Request.Context(), variantID, actorFrom(c),
		workflow.FlagOutcome(req.Outcome), content, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, v)
}

// List handles GET /questions/:id/variants. Each variant is returned
// with its current validation state so the creator dashboard can show
// which drafts are incomplete.
func (h *Handler) List(c *gin.Context) {
	originalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid question id")
		return
	}
	list, err := h.manager.List(c.Request.Context(), originalID)
	if err != nil {
		respondError(c, err)
		return
	}
	type variantWithValidation struct {
		models.Variant
		Violations []workflow.FieldError `json:"violations,omitempty"`
	}
	out := make([]variantWithValidation, 0, len(list))
	for i := range list {
		out = append(out, variantWithValidation{
			Variant:    list[i],
			Violations: h.manager.Validate(&list[i]),
		})
	}
	response.OK(c, gin.H{"variants": out})
}
