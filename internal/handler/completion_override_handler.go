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

type completionOverrideService interface {
	Get(ctx context.Context, subjectID, classID string) (*models.CompletionOverride, error)
	Set(ctx context.Context, req dto.SetCompletionOverrideRequest) (*models.CompletionOverride, error)
}

// CompletionOverrideHandler reads and writes manual completion records.
type CompletionOverrideHandler struct {
	service completionOverrideService
}

// NewCompletionOverrideHandler constructs the handler.
func NewCompletionOverrideHandler(svc *service.CompletionOverrideService) *CompletionOverrideHandler {
	return &CompletionOverrideHandler{service: svc}
}

// Get godoc
// @Summary Get completion override
// @Tags Progress
// @Produce json
// @Param subject_id query string true "Subject ID"
// @Param class_id query string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /completion-overrides [get]
func (h *CompletionOverrideHandler) Get(c *gin.Context) {
	override, err := h.service.Get(c.Request.Context(), c.Query("subject_id"), c.Query("class_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, override, nil)
}

// Put godoc
// @Summary Write completion override
// @Description Optimistic write: expectedVersion must equal the stored version (0 when none exists).
// @Tags Progress
// @Accept json
// @Produce json
// @Param payload body dto.SetCompletionOverrideRequest true "Override payload"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /completion-overrides [put]
func (h *CompletionOverrideHandler) Put(c *gin.Context) {
	var req dto.SetCompletionOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid completion override payload"))
		return
	}
	override, err := h.service.Set(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, override, nil)
}
