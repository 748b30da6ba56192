package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func TestCompletionOverrideRepositoryGet(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewCompletionOverrideRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM completion_overrides WHERE subject_id = $1 AND class_id = $2")).
		WithArgs("math", "c1").
		WillReturnRows(sqlmock.NewRows([]string{"subject_id", "class_id", "manual_completed", "paid_completed", "status_override", "meta", "version", "updated_by", "updated_at"}).
			AddRow("math", "c1", false, false, "completed", []byte(`{"source":"import"}`), 3, nil, time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("FROM completion_overrides WHERE subject_id = $1 AND class_id = $2")).
		WithArgs("math", "c2").
		WillReturnError(sql.ErrNoRows)

	override, err := repo.Get(context.Background(), "math", "c1")
	require.NoError(t, err)
	require.NotNil(t, override)
	assert.True(t, override.MarksComplete())
	assert.Equal(t, 3, override.Version)

	missing, err := repo.Get(context.Background(), "math", "c2")
	require.NoError(t, err)
	assert.Nil(t, missing)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompletionOverrideRepositoryUpsertVersioning(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewCompletionOverrideRepository(db)

	override := &models.CompletionOverride{SubjectID: "math", ClassID: "c1", ManualCompleted: true}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO completion_overrides")).
		WithArgs("math", "c1", true, false, nil, sqlmock.AnyArg(), nil, sqlmock.AnyArg(), 0).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1))
	require.NoError(t, repo.Upsert(context.Background(), override, 0))
	assert.Equal(t, 1, override.Version)
	assert.Equal(t, "{}", string(override.Meta))

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO completion_overrides")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}))
	err := repo.Upsert(context.Background(), override, 0)
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}
