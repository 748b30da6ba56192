package models

import "time"

// SessionKind distinguishes regular teaching from exams.
type SessionKind string

const (
	SessionKindClass SessionKind = "CLASS"
	SessionKindExam  SessionKind = "EXAM"
)

// SessionStatus is the stored (override) status of a session.
type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "PENDING"
	SessionStatusOngoing   SessionStatus = "ONGOING"
	SessionStatusCompleted SessionStatus = "COMPLETED"
	SessionStatusOff       SessionStatus = "OFF"
	SessionStatusMakeup    SessionStatus = "MAKEUP"
)

// Valid reports whether the status is one of the known values.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusPending, SessionStatusOngoing, SessionStatusCompleted, SessionStatusOff, SessionStatusMakeup:
		return true
	}
	return false
}

// Session is one scheduled class or exam occupying a contiguous period window on a date.
type Session struct {
	ID          string        `db:"id" json:"id"`
	Kind        SessionKind   `db:"kind" json:"kind"`
	TeacherID   string        `db:"teacher_id" json:"teacher_id"`
	SubjectID   string        `db:"subject_id" json:"subject_id"`
	ClassID     string        `db:"class_id" json:"class_id"`
	RoomID      string        `db:"room_id" json:"room_id"`
	Group       *string       `db:"cohort" json:"group,omitempty"`
	Date        time.Time     `db:"session_date" json:"date"`
	StartPeriod int           `db:"start_period" json:"start_period"`
	PeriodCount int           `db:"period_count" json:"period_count"`
	Status      SessionStatus `db:"status" json:"status"`
	Note        string        `db:"note" json:"note"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// GroupLabel returns the cohort label or "" for the whole class.
func (s Session) GroupLabel() string {
	if s.Group == nil {
		return ""
	}
	return *s.Group
}

// SessionFilter narrows session listings.
type SessionFilter struct {
	From      *time.Time
	To        *time.Time
	ClassID   string
	TeacherID string
	RoomID    string
	SubjectID string
	Kind      SessionKind
}

// SessionConflict describes the existing session a candidate collided with.
type SessionConflict struct {
	SessionID   string    `json:"session_id"`
	ClassID     string    `json:"class_id"`
	TeacherID   string    `json:"teacher_id"`
	RoomID      string    `json:"room_id"`
	SubjectID   string    `json:"subject_id"`
	Date        time.Time `json:"date"`
	StartPeriod int       `json:"start_period"`
	PeriodCount int       `json:"period_count"`
	Resource    string    `json:"resource"`
}

// SessionConflictError is returned when a candidate overlaps an existing session.
type SessionConflictError struct {
	Resource string          `json:"resource"`
	Message  string          `json:"message"`
	Conflict SessionConflict `json:"conflict"`
}

// Error implements the error interface for conflict errors.
func (e *SessionConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
