package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type holidayServiceMock struct {
	from, to string
	created  dto.CreateHolidayRequest
}

func (m *holidayServiceMock) List(_ context.Context, from, to string) ([]models.Holiday, error) {
	m.from, m.to = from, to
	return []models.Holiday{{ID: "h1", Name: "Christmas"}}, nil
}

func (m *holidayServiceMock) Create(_ context.Context, req dto.CreateHolidayRequest) (*models.Holiday, error) {
	m.created = req
	return &models.Holiday{ID: "h2", Name: req.Name}, nil
}

func (m *holidayServiceMock) Delete(_ context.Context, id string) error {
	if id != "h1" {
		return appErrors.Clone(appErrors.ErrNotFound, "holiday not found")
	}
	return nil
}

type overrideServiceMock struct {
	stored *models.CompletionOverride
}

func (m *overrideServiceMock) Get(_ context.Context, subjectID, classID string) (*models.CompletionOverride, error) {
	if m.stored == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "completion override not found")
	}
	return m.stored, nil
}

func (m *overrideServiceMock) Set(_ context.Context, req dto.SetCompletionOverrideRequest) (*models.CompletionOverride, error) {
	if req.ExpectedVersion != 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "stale version")
	}
	m.stored = &models.CompletionOverride{SubjectID: req.SubjectID, ClassID: req.ClassID, ManualCompleted: req.ManualCompleted, Version: 1}
	return m.stored, nil
}

func TestHolidayHandlerEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &holidayServiceMock{}
	h := &HolidayHandler{service: mock}
	router := gin.New()
	router.GET("/holidays", h.List)
	router.POST("/holidays", h.Create)
	router.DELETE("/holidays/:id", h.Delete)

	w := perform(router, http.MethodGet, "/holidays?from=2024-12-01&to=2024-12-31", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-12-01", mock.from)
	assert.Equal(t, "2024-12-31", mock.to)

	w = perform(router, http.MethodPost, "/holidays", []byte(`{"name":"Christmas","startDate":"2024-12-25","endDate":"2024-12-26"}`))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "2024-12-26", mock.created.EndDate)

	assert.Equal(t, http.StatusNoContent, perform(router, http.MethodDelete, "/holidays/h1", nil).Code)
	assert.Equal(t, http.StatusNotFound, perform(router, http.MethodDelete, "/holidays/h9", nil).Code)
}

func TestCompletionOverrideHandlerEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &CompletionOverrideHandler{service: &overrideServiceMock{}}
	router := gin.New()
	router.GET("/completion-overrides", h.Get)
	router.PUT("/completion-overrides", h.Put)

	assert.Equal(t, http.StatusNotFound, perform(router, http.MethodGet, "/completion-overrides?subject_id=math&class_id=10A", nil).Code)

	w := perform(router, http.MethodPut, "/completion-overrides", []byte(`{"subjectId":"math","classId":"10A","manualCompleted":true,"expectedVersion":0}`))
	require.Equal(t, http.StatusOK, w.Code)

	w = perform(router, http.MethodPut, "/completion-overrides", []byte(`{"subjectId":"math","classId":"10A","expectedVersion":3}`))
	require.Equal(t, http.StatusPreconditionFailed, w.Code)
	assert.Equal(t, "PRECONDITION_FAILED", decode(t, w).Error.Code)

	assert.Equal(t, http.StatusOK, perform(router, http.MethodGet, "/completion-overrides?subject_id=math&class_id=10A", nil).Code)
}
