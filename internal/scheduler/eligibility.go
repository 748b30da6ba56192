package scheduler

import "github.com/noah-isme/sma-timetable-api/internal/models"

// Eligibility merges period arithmetic with stored completion overrides.
type Eligibility struct {
	Progress      Progress `json:"progress"`
	Finished      bool     `json:"finished"`
	Overridden    bool     `json:"overridden"`
	ExamScheduled bool     `json:"exam_scheduled"`
}

// Evaluate is the single eligibility policy consulted before creating sessions.
// A subject is finished when no periods remain or when the override marks it complete.
func Evaluate(subject models.Subject, classID string, group *string, all []models.Session, override *models.CompletionOverride) Eligibility {
	progress := ProgressOf(subject.ID, classID, subject.TotalPeriods, all, group)
	overridden := override.MarksComplete()
	return Eligibility{
		Progress:      progress,
		Finished:      progress.Finished() || overridden,
		Overridden:    overridden,
		ExamScheduled: HasExam(subject.ID, classID, all),
	}
}

// AllowsClass reports whether new class sessions may be created.
func (e Eligibility) AllowsClass() bool {
	return !e.Finished
}

// AllowsExam reports whether an exam may be created: only once, and only when finished.
func (e Eligibility) AllowsExam() bool {
	return e.Finished && !e.ExamScheduled
}

// Allows dispatches on the session kind.
func (e Eligibility) Allows(kind models.SessionKind) bool {
	if kind == models.SessionKindExam {
		return e.AllowsExam()
	}
	return e.AllowsClass()
}

// HasExam reports whether an exam session exists for the subject/class pair.
func HasExam(subjectID, classID string, all []models.Session) bool {
	for _, s := range all {
		if s.Kind == models.SessionKindExam && s.SubjectID == subjectID && s.ClassID == classID {
			return true
		}
	}
	return false
}
