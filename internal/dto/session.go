package dto

import (
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// CreateSessionRequest describes a new class or exam session. When the subject is shared,
// SelectedSharedClasses lists the extra classes that join the same meeting.
type CreateSessionRequest struct {
	Kind                  models.SessionKind `json:"kind" validate:"required,oneof=CLASS EXAM"`
	TeacherID             string             `json:"teacherId" validate:"required"`
	SubjectID             string             `json:"subjectId" validate:"required"`
	ClassID               string             `json:"classId" validate:"required"`
	RoomID                string             `json:"roomId" validate:"required"`
	Group                 *string            `json:"group" validate:"omitempty,max=32"`
	Date                  string             `json:"date" validate:"required,datetime=2006-01-02"`
	StartPeriod           int                `json:"startPeriod" validate:"required,min=1,max=10"`
	PeriodCount           int                `json:"periodCount" validate:"required,min=1,max=5"`
	Note                  string             `json:"note" validate:"omitempty,max=500"`
	SelectedSharedClasses []string           `json:"selectedSharedClasses" validate:"omitempty,dive,required"`
}

// UpdateSessionRequest patches a session. Every field except Note applies to the whole joint group.
type UpdateSessionRequest struct {
	TeacherID   *string               `json:"teacherId" validate:"omitempty,min=1"`
	RoomID      *string               `json:"roomId" validate:"omitempty,min=1"`
	Date        *string               `json:"date" validate:"omitempty,datetime=2006-01-02"`
	StartPeriod *int                  `json:"startPeriod" validate:"omitempty,min=1,max=10"`
	PeriodCount *int                  `json:"periodCount" validate:"omitempty,min=1,max=5"`
	Status      *models.SessionStatus `json:"status" validate:"omitempty,oneof=PENDING ONGOING COMPLETED OFF MAKEUP"`
	Note        *string               `json:"note" validate:"omitempty,max=500"`
}

// Empty reports whether the patch changes nothing.
func (r UpdateSessionRequest) Empty() bool {
	return r.TeacherID == nil && r.RoomID == nil && r.Date == nil && r.StartPeriod == nil &&
		r.PeriodCount == nil && r.Status == nil && r.Note == nil
}

// UpdateSessionStatusRequest changes the stored status of a joint group.
type UpdateSessionStatusRequest struct {
	Status models.SessionStatus `json:"status" validate:"required,oneof=PENDING ONGOING COMPLETED OFF MAKEUP"`
}

// ListSessionsQuery binds the filters of the session listing.
type ListSessionsQuery struct {
	From      string `form:"from" validate:"omitempty,datetime=2006-01-02"`
	To        string `form:"to" validate:"omitempty,datetime=2006-01-02"`
	ClassID   string `form:"class_id"`
	TeacherID string `form:"teacher_id"`
	RoomID    string `form:"room_id"`
	SubjectID string `form:"subject_id"`
	Kind      string `form:"kind" validate:"omitempty,oneof=CLASS EXAM"`
}

// ClampNotice reports that a class session was shortened to the remaining curriculum periods.
type ClampNotice struct {
	ClassID   string `json:"classId"`
	Requested int    `json:"requested"`
	Applied   int    `json:"applied"`
}

// SessionMutationResult lists every session written by a create or update.
type SessionMutationResult struct {
	Sessions []models.Session `json:"sessions"`
	Clamped  []ClampNotice    `json:"clamped,omitempty"`
}

// SessionDeleteResult lists the ids removed together.
type SessionDeleteResult struct {
	DeletedIDs []string `json:"deletedIds"`
}

// ProgressView is the curriculum progress of a subject for one class and group.
type ProgressView struct {
	SubjectID     string  `json:"subjectId"`
	ClassID       string  `json:"classId"`
	Group         *string `json:"group,omitempty"`
	Total         int     `json:"total"`
	Learned       int     `json:"learned"`
	Remaining     int     `json:"remaining"`
	Finished      bool    `json:"finished"`
	Overridden    bool    `json:"overridden"`
	ExamScheduled bool    `json:"examScheduled"`
}

// SessionView annotates a stored session for display.
type SessionView struct {
	models.Session
	EffectiveStatus models.SessionStatus `json:"effectiveStatus"`
	SubjectName     string               `json:"subjectName"`
	ClassName       string               `json:"className"`
	Shared          bool                 `json:"shared"`
	Progress        *ProgressView        `json:"progress,omitempty"`
}

// EligibleSubject is a subject that may be scheduled for a class.
type EligibleSubject struct {
	Subject  models.Subject `json:"subject"`
	Progress ProgressView   `json:"progress"`
	Shared   bool           `json:"shared"`
}

// PropagateRequest copies the week starting at WeekStart forward.
type PropagateRequest struct {
	WeekStart string `json:"weekStart" validate:"required,datetime=2006-01-02"`
}

// PropagationSkipView explains why a source session was not copied.
type PropagationSkipView struct {
	SourceID string `json:"sourceId"`
	ClassID  string `json:"classId"`
	Reason   string `json:"reason"`
}

// PropagationResponse reports the outcome of a week propagation.
type PropagationResponse struct {
	WeekStart time.Time                   `json:"weekStart"`
	Created   []models.Session            `json:"created"`
	Warnings  []models.PropagationWarning `json:"warnings"`
	Skipped   []PropagationSkipView       `json:"skipped"`
	Summary   string                      `json:"summary"`
}

// CreateHolidayRequest registers a holiday range.
type CreateHolidayRequest struct {
	Name      string `json:"name" validate:"required,max=120"`
	StartDate string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"endDate" validate:"required,datetime=2006-01-02"`
}

// SetCompletionOverrideRequest writes the manual completion record of a subject/class pair.
type SetCompletionOverrideRequest struct {
	SubjectID       string         `json:"subjectId" validate:"required"`
	ClassID         string         `json:"classId" validate:"required"`
	ManualCompleted bool           `json:"manualCompleted"`
	PaidCompleted   bool           `json:"paidCompleted"`
	StatusOverride  *string        `json:"statusOverride" validate:"omitempty,oneof=completed"`
	Meta            map[string]any `json:"meta"`
	ExpectedVersion int            `json:"expectedVersion" validate:"min=0"`
	UpdatedBy       *string        `json:"updatedBy"`
}

// MetricsSnapshot summarises process metrics for the JSON metrics endpoint.
type MetricsSnapshot struct {
	RequestsTotal            uint64            `json:"requestsTotal"`
	AverageRequestDurationMs float64           `json:"averageRequestDurationMs"`
	CacheHits                uint64            `json:"cacheHits"`
	CacheMisses              uint64            `json:"cacheMisses"`
	CacheHitRatio            float64           `json:"cacheHitRatio"`
	Conflicts                map[string]uint64 `json:"conflicts"`
	Goroutines               int               `json:"goroutines"`
	GeneratedAt              time.Time         `json:"generatedAt"`
}
