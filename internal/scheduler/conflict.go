package scheduler

import (
	"fmt"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// Conflict resources, in the order they are checked.
const (
	ResourceClass   = "CLASS"
	ResourceRoom    = "ROOM"
	ResourceTeacher = "TEACHER"
)

// ConflictChecker decides whether a candidate session may be placed.
type ConflictChecker struct {
	policy  SharedPolicy
	catalog Catalog
}

// NewConflictChecker builds a checker for the given catalog.
func NewConflictChecker(policy SharedPolicy, catalog Catalog) *ConflictChecker {
	return &ConflictChecker{policy: policy, catalog: catalog}
}

// Check validates the candidate window and scans all sessions on the same date.
// It returns ErrInvalidWindow (wrapped), a *models.SessionConflictError for the first
// collision found, or nil. Sessions whose ids appear in exclude are ignored, as is
// the candidate itself.
func (c *ConflictChecker) Check(candidate models.Session, all []models.Session, exclude ...string) error {
	if err := ValidateWindow(candidate.StartPeriod, candidate.PeriodCount); err != nil {
		return err
	}

	skip := make(map[string]struct{}, len(exclude)+1)
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	if candidate.ID != "" {
		skip[candidate.ID] = struct{}{}
	}

	day := models.DateOnly(candidate.Date)
	window := WindowOf(candidate)
	for _, existing := range all {
		if _, ignored := skip[existing.ID]; ignored && existing.ID != "" {
			continue
		}
		if !models.DateOnly(existing.Date).Equal(day) {
			continue
		}
		other := WindowOf(existing)
		if !window.Overlaps(other) {
			continue
		}
		if existing.ClassID == candidate.ClassID {
			return c.conflict(ResourceClass, fmt.Sprintf("class %s already has a session in %s", c.catalog.ClassName(existing.ClassID), other), existing)
		}
		joint := c.policy.InSameGroup(candidate, existing, c.catalog)
		if existing.RoomID == candidate.RoomID && !joint {
			return c.conflict(ResourceRoom, fmt.Sprintf("room %s is already booked in %s", existing.RoomID, other), existing)
		}
		if existing.TeacherID == candidate.TeacherID && !joint {
			return c.conflict(ResourceTeacher, fmt.Sprintf("teacher %s is already teaching in %s", existing.TeacherID, other), existing)
		}
	}
	return nil
}

func (c *ConflictChecker) conflict(resource, message string, existing models.Session) error {
	return &models.SessionConflictError{
		Resource: resource,
		Message:  message,
		Conflict: models.SessionConflict{
			SessionID:   existing.ID,
			ClassID:     existing.ClassID,
			TeacherID:   existing.TeacherID,
			RoomID:      existing.RoomID,
			SubjectID:   existing.SubjectID,
			Date:        existing.Date,
			StartPeriod: existing.StartPeriod,
			PeriodCount: existing.PeriodCount,
			Resource:    resource,
		},
	}
}
