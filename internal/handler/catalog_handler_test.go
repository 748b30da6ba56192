package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type catalogServiceMock struct {
	major string
}

func (m *catalogServiceMock) Subjects(_ context.Context, majorID string) ([]models.Subject, error) {
	m.major = majorID
	return []models.Subject{{ID: "net", MajorID: majorID}}, nil
}

func (m *catalogServiceMock) Subject(_ context.Context, id string) (*models.Subject, error) {
	return &models.Subject{ID: id}, nil
}

func (m *catalogServiceMock) Classes(_ context.Context, majorID string) ([]models.Class, error) {
	m.major = majorID
	return []models.Class{}, nil
}

func (m *catalogServiceMock) Class(context.Context, string) (*models.Class, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
}

func (m *catalogServiceMock) Teacher(_ context.Context, id string) (*models.Teacher, error) {
	return &models.Teacher{ID: id}, nil
}

func TestCatalogHandlerEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &catalogServiceMock{}
	h := &CatalogHandler{service: mock}
	router := gin.New()
	router.GET("/subjects", h.Subjects)
	router.GET("/subjects/:id", h.Subject)
	router.GET("/classes", h.Classes)
	router.GET("/classes/:id", h.Class)
	router.GET("/teachers/:id", h.Teacher)

	w := perform(router, http.MethodGet, "/subjects?major=ict", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ict", mock.major)
	var subjects []models.Subject
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &subjects))
	assert.Equal(t, "net", subjects[0].ID)

	assert.Equal(t, http.StatusOK, perform(router, http.MethodGet, "/subjects/net", nil).Code)
	assert.Equal(t, http.StatusOK, perform(router, http.MethodGet, "/classes", nil).Code)
	assert.Equal(t, "", mock.major)
	assert.Equal(t, http.StatusNotFound, perform(router, http.MethodGet, "/classes/c9", nil).Code)
	assert.Equal(t, http.StatusOK, perform(router, http.MethodGet, "/teachers/t1", nil).Code)
}
