package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func TestProgressOfFinishesSubjectAfterFullCurriculum(t *testing.T) {
	catalog := testCatalog()
	math, _ := catalog.Subject("math")
	var sessions []models.Session
	for i := 0; i < 5; i++ {
		sessions = append(sessions, classSession(sessionFields{
			id: string(rune('a' + i)), class: "c1", subject: "math", teacher: "t1", room: "R101",
			date: day(2024, 3, 4+i), start: 1, count: 2,
		}))
	}

	progress := ProgressOf("math", "c1", math.TotalPeriods, sessions, nil)
	assert.Equal(t, 10, progress.Learned)
	assert.Equal(t, 0, progress.Remaining)
	assert.True(t, progress.Finished())

	eligibility := Evaluate(math, "c1", nil, sessions, nil)
	assert.False(t, eligibility.AllowsClass(), "a sixth class session must be rejected")
	assert.True(t, eligibility.AllowsExam())

	exam := sessions[0]
	exam.ID = "exam"
	exam.Kind = models.SessionKindExam
	exam.Date = day(2024, 3, 15)
	eligibility = Evaluate(math, "c1", nil, append(sessions, exam), nil)
	assert.False(t, eligibility.AllowsExam(), "only one exam per subject and class")
}

func TestProgressOfIgnoresOffExamsAndOtherCohorts(t *testing.T) {
	date := day(2024, 3, 4)
	off := classSession(sessionFields{id: "off", class: "c1", subject: "math", teacher: "t1", room: "R101", date: date, start: 1, count: 2})
	off.Status = models.SessionStatusOff
	exam := classSession(sessionFields{id: "exam", class: "c1", subject: "math", teacher: "t1", room: "R101", date: date, start: 3, count: 2})
	exam.Kind = models.SessionKindExam
	labA := classSession(sessionFields{id: "lab-a", class: "c1", subject: "math", teacher: "t1", room: "R101", date: date, start: 6, count: 3})
	labA.Group = strPtr("A")
	whole := classSession(sessionFields{id: "whole", class: "c1", subject: "math", teacher: "t1", room: "R101", date: day(2024, 3, 5), start: 1, count: 1})
	other := classSession(sessionFields{id: "other", class: "c2", subject: "math", teacher: "t1", room: "R101", date: date, start: 9, count: 2})
	all := []models.Session{off, exam, labA, whole, other}

	assert.Equal(t, Progress{Total: 10, Learned: 1, Remaining: 9}, ProgressOf("math", "c1", 10, all, nil))
	assert.Equal(t, Progress{Total: 10, Learned: 3, Remaining: 7}, ProgressOf("math", "c1", 10, all, strPtr("A")))
	assert.Equal(t, 0, ProgressOf("math", "c1", 10, all, strPtr("B")).Learned)
}

func TestProgressRemainingIsMonotonic(t *testing.T) {
	var sessions []models.Session
	previous := ProgressOf("net", "c1", 20, sessions, nil).Remaining
	for i := 0; i < 8; i++ {
		sessions = append(sessions, classSession(sessionFields{
			id: string(rune('a' + i)), class: "c1", subject: "net", teacher: "t2", room: "LAB",
			date: day(2024, 4, 1+i), start: 1, count: 3,
		}))
		current := ProgressOf("net", "c1", 20, sessions, nil).Remaining
		assert.LessOrEqual(t, current, previous)
		assert.GreaterOrEqual(t, current, 0)
		previous = current
	}
	assert.Equal(t, 0, previous)
}

func TestFitPeriodCount(t *testing.T) {
	fitted, clamped := FitPeriodCount(3, 2)
	assert.Equal(t, 2, fitted)
	assert.True(t, clamped)

	fitted, clamped = FitPeriodCount(2, 5)
	assert.Equal(t, 2, fitted)
	assert.False(t, clamped)

	fitted, clamped = FitPeriodCount(2, -1)
	assert.Equal(t, 0, fitted)
	assert.True(t, clamped)
}

func TestEvaluateHonoursCompletionOverride(t *testing.T) {
	catalog := testCatalog()
	math, _ := catalog.Subject("math")

	manual := &models.CompletionOverride{SubjectID: "math", ClassID: "c1", ManualCompleted: true}
	eligibility := Evaluate(math, "c1", nil, nil, manual)
	assert.True(t, eligibility.Finished)
	assert.True(t, eligibility.Overridden)
	assert.Equal(t, 10, eligibility.Progress.Remaining)
	assert.False(t, eligibility.Allows(models.SessionKindClass))
	assert.True(t, eligibility.Allows(models.SessionKindExam))

	meta := &models.CompletionOverride{SubjectID: "math", ClassID: "c1", StatusOverride: strPtr(models.CompletionStatusCompleted)}
	assert.True(t, Evaluate(math, "c1", nil, nil, meta).Finished)

	pending := &models.CompletionOverride{SubjectID: "math", ClassID: "c1", StatusOverride: strPtr("in_progress")}
	assert.False(t, Evaluate(math, "c1", nil, nil, pending).Finished)
}
