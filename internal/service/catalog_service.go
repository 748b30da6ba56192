package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type catalogSubjects interface {
	ListAll(ctx context.Context) ([]models.Subject, error)
	ListByMajor(ctx context.Context, majorID string) ([]models.Subject, error)
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type catalogClasses interface {
	ListAll(ctx context.Context) ([]models.Class, error)
	ListByMajor(ctx context.Context, majorID string) ([]models.Class, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type catalogTeachers interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

// CatalogService serves the read-only reference data the timetable is built from.
type CatalogService struct {
	subjects catalogSubjects
	classes  catalogClasses
	teachers catalogTeachers
	logger   *zap.Logger
}

// NewCatalogService constructs CatalogService.
func NewCatalogService(subjects catalogSubjects, classes catalogClasses, teachers catalogTeachers, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{subjects: subjects, classes: classes, teachers: teachers, logger: logger}
}

// Subjects lists subjects, optionally restricted to one major.
func (s *CatalogService) Subjects(ctx context.Context, majorID string) ([]models.Subject, error) {
	var (
		subjects []models.Subject
		err      error
	)
	if majorID == "" {
		subjects, err = s.subjects.ListAll(ctx)
	} else {
		subjects, err = s.subjects.ListByMajor(ctx, majorID)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	return subjects, nil
}

// Subject returns a subject by id.
func (s *CatalogService) Subject(ctx context.Context, id string) (*models.Subject, error) {
	subject, err := s.subjects.FindByID(ctx, id)
	return subject, notFoundOr(err, "subject")
}

// Classes lists classes, optionally restricted to one major.
func (s *CatalogService) Classes(ctx context.Context, majorID string) ([]models.Class, error) {
	var (
		classes []models.Class
		err     error
	)
	if majorID == "" {
		classes, err = s.classes.ListAll(ctx)
	} else {
		classes, err = s.classes.ListByMajor(ctx, majorID)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return classes, nil
}

// Class returns a class by id.
func (s *CatalogService) Class(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.classes.FindByID(ctx, id)
	return class, notFoundOr(err, "class")
}

// Teacher returns a teacher by id.
func (s *CatalogService) Teacher(ctx context.Context, id string) (*models.Teacher, error) {
	teacher, err := s.teachers.FindByID(ctx, id)
	return teacher, notFoundOr(err, "teacher")
}

func notFoundOr(err error, entity string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, entity+" not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load "+entity)
}
