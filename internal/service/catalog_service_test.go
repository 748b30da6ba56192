package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

func (s subjectStub) ListByMajor(_ context.Context, majorID string) ([]models.Subject, error) {
	var out []models.Subject
	for _, subject := range s.subjects {
		if subject.MajorID == majorID {
			out = append(out, subject)
		}
	}
	return out, nil
}

func (s classStub) ListByMajor(_ context.Context, majorID string) ([]models.Class, error) {
	var out []models.Class
	for _, class := range s.classes {
		if class.MajorID == majorID {
			out = append(out, class)
		}
	}
	return out, nil
}

func (s teacherStub) FindByID(_ context.Context, id string) (*models.Teacher, error) {
	for _, teacher := range s.teachers {
		if teacher.ID == id {
			found := teacher
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

type brokenTeachers struct{}

func (brokenTeachers) FindByID(context.Context, string) (*models.Teacher, error) {
	return nil, errors.New("connection reset")
}

func TestCatalogServiceFiltersByMajor(t *testing.T) {
	svc := NewCatalogService(subjectStub{fixtureSubjects}, classStub{fixtureClasses}, teacherStub{}, nil)

	all, err := svc.Subjects(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, len(fixtureSubjects))

	ict, err := svc.Classes(context.Background(), "ict")
	require.NoError(t, err)
	require.Len(t, ict, 2)
	assert.Equal(t, "c1", ict[0].ID)

	biz, err := svc.Subjects(context.Background(), "biz")
	require.NoError(t, err)
	require.Len(t, biz, 1)
	assert.Equal(t, "acct", biz[0].ID)
}

func TestCatalogServiceLookups(t *testing.T) {
	teachers := teacherStub{teachers: []models.Teacher{{ID: "t1", FullName: "Teacher One"}}}
	svc := NewCatalogService(subjectStub{fixtureSubjects}, classStub{fixtureClasses}, teachers, nil)

	subject, err := svc.Subject(context.Background(), "pe")
	require.NoError(t, err)
	assert.True(t, subject.IsShared)

	_, err = svc.Class(context.Background(), "c9")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	teacher, err := svc.Teacher(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "Teacher One", teacher.FullName)

	broken := NewCatalogService(subjectStub{}, classStub{}, brokenTeachers{}, nil)
	_, err = broken.Teacher(context.Background(), "t1")
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}
