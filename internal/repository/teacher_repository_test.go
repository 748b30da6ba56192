package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeacherRepositoryFindByIDs(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	rows := sqlmock.NewRows([]string{"id", "full_name", "email", "active", "created_at", "updated_at"}).
		AddRow("t1", "Teacher A", "a@example.com", true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM teachers WHERE id = ANY($1) AND active = TRUE")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)

	teachers, err := repo.FindByIDs(context.Background(), []string{"t1", "t9"})
	require.NoError(t, err)
	require.Len(t, teachers, 1)
	assert.Equal(t, "Teacher A", teachers[0].FullName)

	none, err := repo.FindByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepositoriesListAll(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	subjects := NewSubjectRepository(db)
	classes := NewClassRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + subjectColumns + " FROM subjects ORDER BY name ASC")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "name", "total_periods", "major_id", "is_shared", "responsible_teacher_1", "responsible_teacher_2", "responsible_teacher_3", "created_at", "updated_at"}).
			AddRow("pe", "PE", "Physical Education", 8, "culture", true, "t1", nil, "t3", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM classes WHERE major_id = $1 ORDER BY name ASC")).
		WithArgs("ict").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "major_id", "created_at", "updated_at"}).
			AddRow("c1", "XI ICT 1", "ict", now, now).
			AddRow("c2", "XI ICT 2", "ict", now, now))

	subjectList, err := subjects.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, subjectList, 1)
	assert.True(t, subjectList[0].IsShared)
	assert.Equal(t, []string{"t1", "t3"}, subjectList[0].ResponsibleTeacherIDs())

	classList, err := classes.ListByMajor(context.Background(), "ict")
	require.NoError(t, err)
	assert.Len(t, classList, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}
