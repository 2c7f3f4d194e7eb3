package catalog

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/taalam/backend/internal/models"
	"github.com/taalam/backend/pkg/response"
)

// Handler handles catalog HTTP endpoints.
type Handler struct {
	repo *Repository
}

// NewHandler creates a catalog handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// NameRequest is the body for create/update of any catalog entity.
type NameRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateExam handles POST /exams.
func (h *Handler) CreateExam(c *gin.Context) {
	var req NameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "name required")
		return
	}
	e := &models.Exam{Name: strings.TrimSpace(req.Name)}
	if e.Name == "" {
		response.BadRequest(c, "name must not be empty")
		return
	}
	if err := h.repo.CreateExam(c.Request.Context(), e); err != nil {
		response.Internal(c, "failed to create exam")
		return
	}
	response.Created(c, e)
}

// ListExams handles GET /exams.
func (h *Handler) ListExams(c *gin.Context) {
	list, err := h.repo.ListExams(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to list exams")
		return
	}
	response.OK(c, gin.H{"exams": list})
}

// UpdateExam handles PATCH /exams/:id.
func (h *Handler) UpdateExam(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid exam id")
		return
	}
	var req NameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "name required")
		return
	}
	if err := h.repo.UpdateExam(c.Request.Context(), id, strings.TrimSpace(req.Name)); err != nil {
		response.NotFound(c, "exam not found")
		return
	}
	response.OK(c, gin.H{"id": id, "name": req.Name})
}

// DeleteExam handles DELETE /exams/:id.
func (h *Handler) DeleteExam(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid exam id")
		return
	}
	if err := h.repo.DeleteExam(c.Request.Context(), id); err != nil {
		response.NotFound(c, "exam not found")
		return
	}
	response.NoContent(c)
}

// CreateSubjectRequest is the body for POST /subjects.
type CreateSubjectRequest struct {
	ExamID uuid.UUID `json:"exam_id" binding:"required"`
	Name   string    `json:"name" binding:"required"`
}

// CreateSubject handles POST /subjects.
func (h *Handler) CreateSubject(c *gin.Context) {
	var req CreateSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "exam_id and name required")
		return
	}
	s := &models.Subject{ExamID: req.ExamID, Name: strings.TrimSpace(req.Name)}
	if err := h.repo.CreateSubject(c.Request.Context(), s); err != nil {
		response.Internal(c, "failed to create subject")
		return
	}
	response.Created(c, s)
}

// ListSubjects handles GET /subjects?exam_id=.
func (h *Handler) ListSubjects(c *gin.Context) {
	var examID uuid.UUID
	if e := c.Query("exam_id"); e != "" {
		id, err := uuid.Parse(e)
		if err != nil {
			response.BadRequest(c, "invalid exam_id")
			return
		}
		examID = id
	}
	list, err := h.repo.ListSubjects(c.Request.Context(), examID)
	if err != nil {
		response.Internal(c, "failed to list subjects")
		return
	}
	response.OK(c, gin.H{"subjects": list})
}

// DeleteSubject handles DELETE /subjects/:id.
func (h *Handler) DeleteSubject(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid subject id")
		return
	}
	if err := h.repo.DeleteSubject(c.Request.Context(), id); err != nil {
		response.NotFound(c, "subject not found")
		return
	}
	response.NoContent(c)
}

// CreateTopicRequest is the body for POST /topics.
type CreateTopicRequest struct {
	SubjectID uuid.UUID `json:"subject_id" binding:"required"`
	Name      string    `json:"name" binding:"required"`
}

// CreateTopic handles POST /topics.
func (h *Handler) CreateTopic(c *gin.Context) {
	var req CreateTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "subject_id and name required")
		return
	}
	t := &models.Topic{SubjectID: req.SubjectID, Name: strings.TrimSpace(req.Name)}
	if err := h.repo.CreateTopic(c.Request.Context(), t); err != nil {
		response.Internal(c, "failed to create topic")
		return
	}
	response.Created(c, t)
}

// ListTopics handles GET /topics?subject_id=.
func (h *Handler) ListTopics(c *gin.Context) {
	var subjectID uuid.UUID
	if s := c.Query("subject_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			response.BadRequest(c, "invalid subject_id")
			return
		}
		subjectID = id
	}
	list, err := h.repo.ListTopics(c.Request.Context(), subjectID)
	if err != nil {
		response.Internal(c, "failed to list topics")
		return
	}
	response.OK(c, gin.H{"topics": list})
}

// DeleteTopic handles DELETE /topics/:id.
func (h *Handler) DeleteTopic(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid topic id")
		return
	}
	if err := h.repo.DeleteTopic(c.Request.Context(), id); err != nil {
		response.NotFound(c, "topic not found")
		return
	}
	response.NoContent(c)
}
