package scheduler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func requireConflict(t *testing.T, err error, resource string) *models.SessionConflictError {
	t.Helper()
	require.Error(t, err)
	var conflictErr *models.SessionConflictError
	require.True(t, errors.As(err, &conflictErr), "expected conflict error, got %v", err)
	assert.Equal(t, resource, conflictErr.Resource)
	assert.Equal(t, resource, conflictErr.Conflict.Resource)
	return conflictErr
}

func TestConflictCheckerRoomOverlapWithoutSharedSignature(t *testing.T) {
	checker := NewConflictChecker(NewSharedPolicy(nil), testCatalog())
	date := day(2024, 3, 4)
	existing := classSession(sessionFields{id: "s1", class: "c1", subject: "math", teacher: "t1", room: "R101", date: date, start: 1, count: 2})
	candidate := classSession(sessionFields{class: "c3", subject: "math", teacher: "t1", room: "R101", date: date, start: 2, count: 2})

	conflictErr := requireConflict(t, checker.Check(candidate, []models.Session{existing}), ResourceRoom)
	assert.Equal(t, "s1", conflictErr.Conflict.SessionID)
	assert.Contains(t, conflictErr.Message, "R101")
}

func TestConflictCheckerClassOverlap(t *testing.T) {
	checker := NewConflictChecker(NewSharedPolicy(nil), testCatalog())
	date := day(2024, 3, 4)
	existing := classSession(sessionFields{id: "s1", class: "c1", subject: "math", teacher: "t1", room: "R101", date: date, start: 3, count: 2})
	candidate := classSession(sessionFields{class: "c1", subject: "net", teacher: "t2", room: "LAB", date: date, start: 4, count: 1})

	conflictErr := requireConflict(t, checker.Check(candidate, []models.Session{existing}), ResourceClass)
	assert.Contains(t, conflictErr.Message, "XI ICT 1")
}

func TestConflictCheckerTeacherOverlap(t *testing.T) {
	checker := NewConflictChecker(NewSharedPolicy(nil), testCatalog())
	date := day(2024, 3, 4)
	existing := classSession(sessionFields{id: "s1", class: "c1", subject: "math", teacher: "t1", room: "R101", date: date, start: 6, count: 3})
	candidate := classSession(sessionFields{class: "c3", subject: "acct", teacher: "t1", room: "R202", date: date, start: 8, count: 2})

	requireConflict(t, checker.Check(candidate, []models.Session{existing}), ResourceTeacher)
}

func TestConflictCheckerAllowsAdjacentAndOtherDates(t *testing.T) {
	checker := NewConflictChecker(NewSharedPolicy(nil), testCatalog())
	date := day(2024, 3, 4)
	existing := []models.Session{
		classSession(sessionFields{id: "s1", class: "c1", subject: "math", teacher: "t1", room: "R101", date: date, start: 1, count: 2}),
		classSession(sessionFields{id: "s2", class: "c1", subject: "math", teacher: "t1", room: "R101", date: day(2024, 3, 5), start: 3, count: 2}),
	}
	candidate := classSession(sessionFields{class: "c1", subject: "math", teacher: "t1", room: "R101", date: date, start: 3, count: 2})

	assert.NoError(t, checker.Check(candidate, existing))
}

func TestConflictCheckerAllowsJointGroupMembers(t *testing.T) {
	checker := NewConflictChecker(NewSharedPolicy(nil), testCatalog())
	date := day(2024, 3, 4)
	existing := classSession(sessionFields{id: "s1", class: "c1", subject: "net", teacher: "t2", room: "LAB", date: date, start: 1, count: 3})
	sibling := classSession(sessionFields{class: "c2", subject: "net", teacher: "t2", room: "LAB", date: date, start: 1, count: 3})

	assert.NoError(t, checker.Check(sibling, []models.Session{existing}))
}

func TestConflictCheckerSignatureWithoutSharedSubjectStillConflicts(t *testing.T) {
	checker := NewConflictChecker(NewSharedPolicy(nil), testCatalog())
	date := day(2024, 3, 4)
	existing := classSession(sessionFields{id: "s1", class: "c1", subject: "math", teacher: "t1", room: "R101", date: date, start: 1, count: 2})
	candidate := classSession(sessionFields{class: "c3", subject: "math", teacher: "t1", room: "R101", date: date, start: 1, count: 2})

	requireConflict(t, checker.Check(candidate, []models.Session{existing}), ResourceRoom)
}

func TestConflictCheckerExcludesSelfAndSiblings(t *testing.T) {
	checker := NewConflictChecker(NewSharedPolicy(nil), testCatalog())
	date := day(2024, 3, 4)
	s1 := classSession(sessionFields{id: "s1", class: "c1", subject: "net", teacher: "t2", room: "LAB", date: date, start: 1, count: 2})
	s2 := classSession(sessionFields{id: "s2", class: "c2", subject: "net", teacher: "t2", room: "LAB", date: date, start: 1, count: 2})
	all := []models.Session{s1, s2}

	moved := s1
	moved.TeacherID = "t9"
	assert.Error(t, checker.Check(moved, all), "s2 keeps the old teacher so the signature no longer matches")
	assert.NoError(t, checker.Check(moved, all, "s2"))
}

func TestConflictCheckerRejectsInvalidWindow(t *testing.T) {
	checker := NewConflictChecker(NewSharedPolicy(nil), testCatalog())
	candidate := classSession(sessionFields{class: "c1", subject: "math", teacher: "t1", room: "R101", date: day(2024, 3, 4), start: 4, count: 3})

	err := checker.Check(candidate, nil)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}
