package scheduler

import (
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// DefaultGeneralMajors are the major scopes whose subjects are never implicitly shared.
var DefaultGeneralMajors = []string{"common", "culture"}

// Catalog is the read-only subject and class lookup the rules evaluate against.
type Catalog struct {
	Subjects map[string]models.Subject
	Classes  []models.Class
}

// NewCatalog indexes subjects by id.
func NewCatalog(subjects []models.Subject, classes []models.Class) Catalog {
	index := make(map[string]models.Subject, len(subjects))
	for _, subject := range subjects {
		index[subject.ID] = subject
	}
	return Catalog{Subjects: index, Classes: classes}
}

// Subject returns the subject with the given id.
func (c Catalog) Subject(id string) (models.Subject, bool) {
	subject, ok := c.Subjects[id]
	return subject, ok
}

// ClassName returns the class display name, falling back to its id.
func (c Catalog) ClassName(id string) string {
	for _, class := range c.Classes {
		if class.ID == id && class.Name != "" {
			return class.Name
		}
	}
	return id
}

// SubjectName returns the subject display name, falling back to its id.
func (c Catalog) SubjectName(id string) string {
	if subject, ok := c.Subjects[id]; ok && subject.Name != "" {
		return subject.Name
	}
	return id
}

// Signature identifies one physical meeting taught to several classes at once.
type Signature struct {
	SubjectID   string
	TeacherID   string
	RoomID      string
	Date        time.Time
	StartPeriod int
}

// SignatureOf returns the joint-teaching signature of a session.
func SignatureOf(s models.Session) Signature {
	return Signature{
		SubjectID:   s.SubjectID,
		TeacherID:   s.TeacherID,
		RoomID:      s.RoomID,
		Date:        models.DateOnly(s.Date),
		StartPeriod: s.StartPeriod,
	}
}

// SharedPolicy decides which subjects are taught jointly across classes.
type SharedPolicy struct {
	generalMajors map[string]struct{}
}

// NewSharedPolicy builds a policy; an empty list falls back to DefaultGeneralMajors.
func NewSharedPolicy(generalMajors []string) SharedPolicy {
	if len(generalMajors) == 0 {
		generalMajors = DefaultGeneralMajors
	}
	set := make(map[string]struct{}, len(generalMajors))
	for _, major := range generalMajors {
		set[major] = struct{}{}
	}
	return SharedPolicy{generalMajors: set}
}

// IsGeneral reports whether a major id is one of the general (non-specialised) scopes.
func (p SharedPolicy) IsGeneral(majorID string) bool {
	if majorID == "" {
		return true
	}
	_, ok := p.generalMajors[majorID]
	return ok
}

// IsShared reports whether a subject is taught jointly. Explicitly flagged subjects are
// always shared; major-specific subjects are shared once another class in that major exists.
func (p SharedPolicy) IsShared(subject models.Subject, classes []models.Class, currentClassID string) bool {
	if subject.IsShared {
		return true
	}
	if p.IsGeneral(subject.MajorID) {
		return false
	}
	for _, class := range classes {
		if class.ID != currentClassID && class.MajorID == subject.MajorID {
			return true
		}
	}
	return false
}

// SharedClasses lists the classes a shared subject may fan out to, current class first.
func (p SharedPolicy) SharedClasses(subject models.Subject, classes []models.Class, currentClassID string) []models.Class {
	var current *models.Class
	var result []models.Class
	for i := range classes {
		class := classes[i]
		if class.ID == currentClassID {
			current = &class
			continue
		}
		if subject.IsShared && p.IsGeneral(subject.MajorID) {
			result = append(result, class)
			continue
		}
		if class.MajorID == subject.MajorID {
			result = append(result, class)
		}
	}
	if current != nil {
		result = append([]models.Class{*current}, result...)
	}
	return result
}

// InSameGroup reports whether two sessions belong to one joint-teaching group.
func (p SharedPolicy) InSameGroup(a, b models.Session, catalog Catalog) bool {
	if SignatureOf(a) != SignatureOf(b) {
		return false
	}
	subject, ok := catalog.Subject(a.SubjectID)
	if !ok {
		return false
	}
	return p.IsShared(subject, catalog.Classes, a.ClassID)
}

// Siblings returns every session that must be edited, moved or deleted together with
// session, in snapshot order. The result always contains session itself.
func (p SharedPolicy) Siblings(session models.Session, all []models.Session, catalog Catalog) []models.Session {
	subject, ok := catalog.Subject(session.SubjectID)
	if !ok || !p.IsShared(subject, catalog.Classes, session.ClassID) {
		return []models.Session{session}
	}

	signature := SignatureOf(session)
	var group []models.Session
	found := false
	for _, candidate := range all {
		if SignatureOf(candidate) != signature {
			continue
		}
		if session.ID != "" && candidate.ID == session.ID {
			found = true
		}
		group = append(group, candidate)
	}
	if !found {
		group = append([]models.Session{session}, group...)
	}
	return group
}

// SessionIDs collects ids from a slice of sessions, skipping empty ids.
func SessionIDs(sessions []models.Session) []string {
	ids := make([]string, 0, len(sessions))
	for _, s := range sessions {
		if s.ID != "" {
			ids = append(ids, s.ID)
		}
	}
	return ids
}
