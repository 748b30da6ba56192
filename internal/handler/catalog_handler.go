package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type catalogService interface {
	Subjects(ctx context.Context, majorID string) ([]models.Subject, error)
	Subject(ctx context.Context, id string) (*models.Subject, error)
	Classes(ctx context.Context, majorID string) ([]models.Class, error)
	Class(ctx context.Context, id string) (*models.Class, error)
	Teacher(ctx context.Context, id string) (*models.Teacher, error)
}

// CatalogHandler exposes subjects, classes and teachers for timetable forms.
type CatalogHandler struct {
	service catalogService
}

// NewCatalogHandler constructs the handler.
func NewCatalogHandler(svc *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{service: svc}
}

// Subjects godoc
// @Summary List subjects
// @Tags Subjects
// @Produce json
// @Param major query string false "Filter by major"
// @Success 200 {object} response.Envelope
// @Router /subjects [get]
func (h *CatalogHandler) Subjects(c *gin.Context) {
	subjects, err := h.service.Subjects(c.Request.Context(), c.Query("major"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects, nil)
}

// Subject godoc
// @Summary Get subject by id
// @Tags Subjects
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Router /subjects/{id} [get]
func (h *CatalogHandler) Subject(c *gin.Context) {
	subject, err := h.service.Subject(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subject, nil)
}

// Classes godoc
// @Summary List classes
// @Tags Classes
// @Produce json
// @Param major query string false "Filter by major"
// @Success 200 {object} response.Envelope
// @Router /classes [get]
func (h *CatalogHandler) Classes(c *gin.Context) {
	classes, err := h.service.Classes(c.Request.Context(), c.Query("major"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, nil)
}

// Class godoc
// @Summary Get class by id
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id} [get]
func (h *CatalogHandler) Class(c *gin.Context) {
	class, err := h.service.Class(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Teacher godoc
// @Summary Get teacher by id
// @Tags Teachers
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id} [get]
func (h *CatalogHandler) Teacher(c *gin.Context) {
	teacher, err := h.service.Teacher(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teacher, nil)
}
