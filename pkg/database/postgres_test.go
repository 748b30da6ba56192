package database

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5433, User: "app", Password: "secret", Name: "timetable", SSLMode: "disable"})
	assert.Equal(t, "host=db port=5433 user=app password=secret dbname=timetable sslmode=disable", dsn)
}

func TestEnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	sqlxDB := sqlx.NewDb(db, "sqlmock")

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS teachers")).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, EnsureSchema(context.Background(), sqlxDB))

	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))
	err = EnsureSchema(context.Background(), sqlxDB)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apply timetable schema")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableSchemaCoversRepositories(t *testing.T) {
	for _, table := range []string{"sessions", "subjects", "classes", "teachers", "holidays", "completion_overrides"} {
		assert.Contains(t, timetableSchema, "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
}
