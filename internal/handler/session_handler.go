package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type sessionService interface {
	Create(ctx context.Context, req dto.CreateSessionRequest) (*dto.SessionMutationResult, error)
	Update(ctx context.Context, id string, req dto.UpdateSessionRequest) (*dto.SessionMutationResult, error)
	UpdateStatus(ctx context.Context, id string, req dto.UpdateSessionStatusRequest) (*dto.SessionMutationResult, error)
	Delete(ctx context.Context, id string) (*dto.SessionDeleteResult, error)
	Siblings(ctx context.Context, id string) ([]models.Session, error)
	List(ctx context.Context, query dto.ListSessionsQuery) ([]dto.SessionView, error)
	Progress(ctx context.Context, subjectID, classID string, group *string) (*dto.ProgressView, error)
	EligibleSubjects(ctx context.Context, classID string, kind models.SessionKind, group *string) ([]dto.EligibleSubject, error)
	SharedClasses(ctx context.Context, subjectID, classID string) ([]models.Class, error)
	SuggestTeachers(ctx context.Context, subjectID string) ([]models.Teacher, error)
	Propagate(ctx context.Context, req dto.PropagateRequest) (*dto.PropagationResponse, error)
}

// SessionHandler exposes timetable session endpoints.
type SessionHandler struct {
	service sessionService
}

// NewSessionHandler constructs the handler.
func NewSessionHandler(svc *service.SessionService) *SessionHandler {
	return &SessionHandler{service: svc}
}

// List godoc
// @Summary List sessions
// @Description Sessions annotated with their effective status and learning progress.
// @Tags Sessions
// @Produce json
// @Param from query string false "First date (YYYY-MM-DD)"
// @Param to query string false "Last date (YYYY-MM-DD)"
// @Param class_id query string false "Class ID"
// @Param teacher_id query string false "Teacher ID"
// @Param room_id query string false "Room ID"
// @Param subject_id query string false "Subject ID"
// @Param kind query string false "CLASS or EXAM"
// @Success 200 {object} response.Envelope
// @Router /sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	var query dto.ListSessionsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid session filter"))
		return
	}
	sessions, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}

// Create godoc
// @Summary Create session
// @Description Creates a class or exam session. Shared subjects fan out to the selected classes as one joint group.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body dto.CreateSessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /sessions [post]
func (h *SessionHandler) Create(c *gin.Context) {
	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid session payload"))
		return
	}
	result, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, result.Sessions, nil, clampMeta(result.Clamped))
}

// Update godoc
// @Summary Update session
// @Description Group-level fields apply to every session of the joint group. The note applies to the addressed session only.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.UpdateSessionRequest true "Session patch"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [patch]
func (h *SessionHandler) Update(c *gin.Context) {
	var req dto.UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid session patch"))
		return
	}
	result, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result.Sessions, nil, clampMeta(result.Clamped))
}

// UpdateStatus godoc
// @Summary Change session status
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.UpdateSessionStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/status [patch]
func (h *SessionHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateSessionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	result, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result.Sessions, nil)
}

// Delete godoc
// @Summary Delete session
// @Description Deletes the session together with every session of its joint group.
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [delete]
func (h *SessionHandler) Delete(c *gin.Context) {
	result, err := h.service.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Siblings godoc
// @Summary List joint group members
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/siblings [get]
func (h *SessionHandler) Siblings(c *gin.Context) {
	siblings, err := h.service.Siblings(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, siblings, nil)
}

// Propagate godoc
// @Summary Continue a week into the next one
// @Description Copies the class sessions of the week starting at weekStart forward, skipping finished subjects, holidays and existing copies.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body dto.PropagateRequest true "Week start"
// @Success 200 {object} response.Envelope
// @Router /sessions/propagate [post]
func (h *SessionHandler) Propagate(c *gin.Context) {
	var req dto.PropagateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid propagate payload"))
		return
	}
	result, err := h.service.Propagate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Progress godoc
// @Summary Learning progress of a subject for a class
// @Tags Progress
// @Produce json
// @Param subject_id query string true "Subject ID"
// @Param class_id query string true "Class ID"
// @Param group query string false "Cohort"
// @Success 200 {object} response.Envelope
// @Router /progress [get]
func (h *SessionHandler) Progress(c *gin.Context) {
	subjectID := c.Query("subject_id")
	classID := c.Query("class_id")
	if subjectID == "" || classID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "subject_id and class_id are required"))
		return
	}
	progress, err := h.service.Progress(c.Request.Context(), subjectID, classID, optionalQuery(c, "group"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, progress, nil)
}

// EligibleSubjects godoc
// @Summary Subjects selectable for a class
// @Tags Progress
// @Produce json
// @Param id path string true "Class ID"
// @Param kind query string false "CLASS (default) or EXAM"
// @Param group query string false "Cohort"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/eligible-subjects [get]
func (h *SessionHandler) EligibleSubjects(c *gin.Context) {
	kind := models.SessionKind(c.Query("kind"))
	subjects, err := h.service.EligibleSubjects(c.Request.Context(), c.Param("id"), kind, optionalQuery(c, "group"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects, nil)
}

// SharedClasses godoc
// @Summary Classes a subject can be jointly taught to
// @Tags Subjects
// @Produce json
// @Param id path string true "Subject ID"
// @Param class_id query string true "Originating class ID"
// @Success 200 {object} response.Envelope
// @Router /subjects/{id}/shared-classes [get]
func (h *SessionHandler) SharedClasses(c *gin.Context) {
	classID := c.Query("class_id")
	if classID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "class_id is required"))
		return
	}
	classes, err := h.service.SharedClasses(c.Request.Context(), c.Param("id"), classID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, nil)
}

// Teachers godoc
// @Summary Responsible teachers of a subject
// @Tags Subjects
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Router /subjects/{id}/teachers [get]
func (h *SessionHandler) Teachers(c *gin.Context) {
	teachers, err := h.service.SuggestTeachers(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teachers, nil)
}

func clampMeta(notices []dto.ClampNotice) map[string]interface{} {
	if len(notices) == 0 {
		return nil
	}
	return map[string]interface{}{"clamped": notices}
}

func optionalQuery(c *gin.Context, key string) *string {
	value, ok := c.GetQuery(key)
	if !ok || value == "" {
		return nil
	}
	return &value
}
