package scheduler

import "github.com/noah-isme/sma-timetable-api/internal/models"

// Progress is the period arithmetic for one (subject, class, group) triple.
type Progress struct {
	Total     int `json:"total"`
	Learned   int `json:"learned"`
	Remaining int `json:"remaining"`
}

// Finished reports whether no curriculum periods remain.
func (p Progress) Finished() bool {
	return p.Remaining == 0
}

// ProgressOf sums periods of class-type sessions matching subject, class and group,
// ignoring sessions marked off.
func ProgressOf(subjectID, classID string, totalPeriods int, all []models.Session, group *string) Progress {
	learned := 0
	for _, s := range all {
		if s.Kind != models.SessionKindClass || s.Status == models.SessionStatusOff {
			continue
		}
		if s.SubjectID != subjectID || s.ClassID != classID || !sameGroup(s.Group, group) {
			continue
		}
		learned += s.PeriodCount
	}
	remaining := totalPeriods - learned
	if remaining < 0 {
		remaining = 0
	}
	return Progress{Total: totalPeriods, Learned: learned, Remaining: remaining}
}

// FitPeriodCount clamps a requested period count to what is left of the curriculum.
// clamped is true when the returned value is smaller than requested.
func FitPeriodCount(requested, remaining int) (fitted int, clamped bool) {
	if remaining < 0 {
		remaining = 0
	}
	if requested > remaining {
		return remaining, true
	}
	return requested, false
}

func sameGroup(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// ProgressKey identifies a (subject, class, group) triple.
type ProgressKey struct {
	SubjectID string
	ClassID   string
	Group     string
}

// ProgressKeyOf returns the progress key of a session.
func ProgressKeyOf(s models.Session) ProgressKey {
	return ProgressKey{SubjectID: s.SubjectID, ClassID: s.ClassID, Group: s.GroupLabel()}
}

// Ledger tracks periods scheduled during one batch so later items see earlier ones.
type Ledger map[ProgressKey]int

// Add records periods scheduled for key.
func (l Ledger) Add(key ProgressKey, periods int) {
	l[key] += periods
}

// Scheduled returns periods already recorded for key.
func (l Ledger) Scheduled(key ProgressKey) int {
	return l[key]
}
