package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func newTestPropagator(catalog Catalog) *Propagator {
	return NewPropagator(NewSharedPolicy(nil), catalog, WithIDGenerator(sequentialIDs("new")))
}

func TestPropagateCopiesWeekForward(t *testing.T) {
	source := classSession(sessionFields{id: "s1", class: "c1", subject: "math", teacher: "t1", room: "R101", date: day(2024, 3, 4), start: 1, count: 2})
	source.Status = models.SessionStatusCompleted
	source.Note = "chapter 3"
	week := []models.Session{source}

	result := newTestPropagator(testCatalog()).Propagate(week, week, nil)

	require.Len(t, result.Created, 1)
	created := result.Created[0]
	assert.Equal(t, "new-1", created.ID)
	assert.Equal(t, day(2024, 3, 11), created.Date)
	assert.Equal(t, 1, created.StartPeriod)
	assert.Equal(t, 2, created.PeriodCount)
	assert.Equal(t, models.SessionStatusPending, created.Status)
	assert.Equal(t, "chapter 3", created.Note)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, "1 sessions created", result.Summary())
}

func TestPropagateSkipsHolidayWithWarning(t *testing.T) {
	source := classSession(sessionFields{id: "s1", class: "c1", subject: "math", teacher: "t1", room: "R101", date: day(2023, 12, 25), start: 1, count: 2})
	holidays := HolidayList{{Name: "New Year", StartDate: day(2024, 1, 1), EndDate: day(2024, 1, 3)}}

	result := newTestPropagator(testCatalog()).Propagate([]models.Session{source}, []models.Session{source}, holidays)

	assert.Empty(t, result.Created)
	require.Len(t, result.Warnings, 1)
	warning := result.Warnings[0]
	assert.Equal(t, models.WarningHolidaySkipped, warning.Kind)
	assert.Equal(t, "c1", warning.ClassID)
	assert.Contains(t, warning.Message, "New Year")
	assert.Contains(t, warning.Message, "XI ICT 1")
	assert.Equal(t, warning.Message, result.Summary())
	assert.Equal(t, []PropagationSkip{{SourceID: "s1", ClassID: "c1", Reason: SkipHoliday}}, result.Skipped)
}

func TestPropagateClampsToRemainingPeriods(t *testing.T) {
	catalog := NewCatalog([]models.Subject{{ID: "math", Name: "Mathematics", TotalPeriods: 5, MajorID: "common"}}, testClasses())
	earlier := classSession(sessionFields{id: "s0", class: "c1", subject: "math", teacher: "t1", room: "R101", date: day(2024, 2, 26), start: 1, count: 2})
	source := classSession(sessionFields{id: "s1", class: "c1", subject: "math", teacher: "t1", room: "R101", date: day(2024, 3, 4), start: 1, count: 2})

	result := newTestPropagator(catalog).Propagate([]models.Session{source}, []models.Session{earlier, source}, nil)

	require.Len(t, result.Created, 1)
	assert.Equal(t, 1, result.Created[0].PeriodCount)
	assert.Empty(t, result.Warnings, "nothing remains after the copy so no near-completion warning")
}

func TestPropagateLedgerPreventsOverscheduling(t *testing.T) {
	catalog := NewCatalog([]models.Subject{{ID: "math", TotalPeriods: 6, MajorID: "common"}}, testClasses())
	monday := classSession(sessionFields{id: "mon", class: "c1", subject: "math", teacher: "t1", room: "R101", date: day(2024, 3, 4), start: 1, count: 2})
	wednesday := classSession(sessionFields{id: "wed", class: "c1", subject: "math", teacher: "t1", room: "R101", date: day(2024, 3, 6), start: 1, count: 2})
	week := []models.Session{wednesday, monday}

	result := newTestPropagator(catalog).Propagate(week, week, nil)

	require.Len(t, result.Created, 1)
	assert.Equal(t, day(2024, 3, 11), result.Created[0].Date, "sources are processed in date order")
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, SkipComplete, result.Skipped[0].Reason)
	assert.Equal(t, "wed", result.Skipped[0].SourceID)
}

func TestPropagateWarnsNearCompletionOnce(t *testing.T) {
	catalog := NewCatalog([]models.Subject{{ID: "math", Name: "Mathematics", TotalPeriods: 9, MajorID: "common"}}, testClasses())
	monday := classSession(sessionFields{id: "mon", class: "c1", subject: "math", teacher: "t1", room: "R101", date: day(2024, 3, 4), start: 1, count: 2})
	wednesday := classSession(sessionFields{id: "wed", class: "c1", subject: "math", teacher: "t1", room: "R101", date: day(2024, 3, 6), start: 3, count: 1})
	week := []models.Session{monday, wednesday}

	result := newTestPropagator(catalog).Propagate(week, week, nil)

	assert.Len(t, result.Created, 2)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, models.WarningNearCompletion, result.Warnings[0].Kind)
	assert.Contains(t, result.Warnings[0].Message, "4 periods remaining")
}

func TestPropagateJointGroupProcessedOnce(t *testing.T) {
	date := day(2024, 3, 4)
	s1 := classSession(sessionFields{id: "s1", class: "c1", subject: "net", teacher: "t2", room: "LAB", date: date, start: 2, count: 3})
	s2 := classSession(sessionFields{id: "s2", class: "c2", subject: "net", teacher: "t2", room: "LAB", date: date, start: 2, count: 3})
	week := []models.Session{s1, s2}

	result := newTestPropagator(testCatalog()).Propagate(week, week, nil)

	require.Len(t, result.Created, 2)
	assert.Equal(t, SignatureOf(result.Created[0]), SignatureOf(result.Created[1]))
	assert.ElementsMatch(t, []string{"c1", "c2"}, []string{result.Created[0].ClassID, result.Created[1].ClassID})
	assert.Empty(t, result.Skipped)
}

func TestPropagateIsIdempotent(t *testing.T) {
	date := day(2024, 3, 4)
	week := []models.Session{
		classSession(sessionFields{id: "s1", class: "c1", subject: "net", teacher: "t2", room: "LAB", date: date, start: 1, count: 2}),
		classSession(sessionFields{id: "s2", class: "c2", subject: "net", teacher: "t2", room: "LAB", date: date, start: 1, count: 2}),
		classSession(sessionFields{id: "s3", class: "c3", subject: "acct", teacher: "t3", room: "R202", date: day(2024, 3, 5), start: 6, count: 2}),
	}

	first := newTestPropagator(testCatalog()).Propagate(week, week, nil)
	second := newTestPropagator(testCatalog()).Propagate(week, week, nil)
	require.Len(t, first.Created, 3)
	assert.Equal(t, first.Created, second.Created)

	persisted := append(append([]models.Session{}, week...), first.Created...)
	rerun := newTestPropagator(testCatalog()).Propagate(week, persisted, nil)
	assert.Empty(t, rerun.Created)
	for _, skipped := range rerun.Skipped {
		assert.Equal(t, SkipExists, skipped.Reason)
	}
}

func TestPropagateSkipsExamsAndConflicts(t *testing.T) {
	exam := classSession(sessionFields{id: "exam", class: "c1", subject: "math", teacher: "t1", room: "R101", date: day(2024, 3, 4), start: 6, count: 2})
	exam.Kind = models.SessionKindExam
	source := classSession(sessionFields{id: "s1", class: "c1", subject: "math", teacher: "t1", room: "R101", date: day(2024, 3, 4), start: 1, count: 2})
	blocker := classSession(sessionFields{id: "b1", class: "c3", subject: "acct", teacher: "t3", room: "R101", date: day(2024, 3, 11), start: 2, count: 1})
	week := []models.Session{exam, source}

	result := newTestPropagator(testCatalog()).Propagate(week, []models.Session{exam, source, blocker}, nil)

	assert.Empty(t, result.Created)
	assert.Empty(t, result.Warnings, "conflicts are skipped without a warning")
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, SkipConflict, result.Skipped[0].Reason)
}

func TestPropagateRecordsCopySource(t *testing.T) {
	source := classSession(sessionFields{id: "s1", class: "c1", subject: "math", teacher: "t1", room: "R101", date: day(2024, 3, 4), start: 1, count: 2})
	week := []models.Session{source}

	result := newTestPropagator(testCatalog()).Propagate(week, week, nil)

	require.Len(t, result.Created, 1)
	assert.Equal(t, "s1", result.SourceOf(result.Created[0].ID))
	assert.Equal(t, "unknown", result.SourceOf("unknown"))
}

func TestNearCompletionUsesWrittenSessions(t *testing.T) {
	catalog := NewCatalog([]models.Subject{{ID: "math", Name: "Mathematics", TotalPeriods: 10, MajorID: "common"}}, testClasses())
	earlier := classSession(sessionFields{id: "s0", class: "c1", subject: "math", teacher: "t1", room: "R101", date: day(2024, 2, 26), start: 1, count: 2})
	source := classSession(sessionFields{id: "s1", class: "c1", subject: "math", teacher: "t1", room: "R101", date: day(2024, 3, 4), start: 1, count: 2})
	propagator := newTestPropagator(catalog)

	planned := propagator.Propagate([]models.Session{source}, []models.Session{earlier, source}, nil)
	require.Len(t, planned.Created, 1)
	require.Len(t, planned.Warnings, 1)
	assert.Contains(t, planned.Warnings[0].Message, "4 periods remaining")

	none := propagator.NearCompletion([]models.Session{source, source}, []models.Session{earlier, source})
	assert.Empty(t, none, "6 periods remain while the copy is unwritten")

	written := propagator.NearCompletion([]models.Session{source, source}, []models.Session{earlier, source, planned.Created[0]})
	require.Len(t, written, 1)
	assert.Equal(t, models.WarningNearCompletion, written[0].Kind)
	assert.Contains(t, written[0].Message, "4 periods remaining")
}
