package scheduler

import (
	"fmt"
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func strPtr(v string) *string {
	return &v
}

func testClasses() []models.Class {
	return []models.Class{
		{ID: "c1", Name: "XI ICT 1", MajorID: "ict"},
		{ID: "c2", Name: "XI ICT 2", MajorID: "ict"},
		{ID: "c3", Name: "XI BIZ 1", MajorID: "biz"},
	}
}

func testSubjects() []models.Subject {
	return []models.Subject{
		{ID: "math", Name: "Mathematics", TotalPeriods: 10, MajorID: "common"},
		{ID: "net", Name: "Networking", TotalPeriods: 20, MajorID: "ict"},
		{ID: "pe", Name: "Sports", TotalPeriods: 8, MajorID: "culture", IsShared: true},
		{ID: "acct", Name: "Accounting", TotalPeriods: 12, MajorID: "biz"},
	}
}

func testCatalog() Catalog {
	return NewCatalog(testSubjects(), testClasses())
}

type sessionFields struct {
	id, class, subject, teacher, room string
	date                              time.Time
	start, count                      int
}

func classSession(fields sessionFields) models.Session {
	return models.Session{
		ID:          fields.id,
		Kind:        models.SessionKindClass,
		ClassID:     fields.class,
		SubjectID:   fields.subject,
		TeacherID:   fields.teacher,
		RoomID:      fields.room,
		Date:        fields.date,
		StartPeriod: fields.start,
		PeriodCount: fields.count,
		Status:      models.SessionStatusPending,
	}
}

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}
