package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// CompletionStatusCompleted is the metadata override marking a subject finished.
const CompletionStatusCompleted = "completed"

// CompletionOverride is a manual completion record for a subject/class pair.
type CompletionOverride struct {
	SubjectID       string         `db:"subject_id" json:"subject_id"`
	ClassID         string         `db:"class_id" json:"class_id"`
	ManualCompleted bool           `db:"manual_completed" json:"manual_completed"`
	PaidCompleted   bool           `db:"paid_completed" json:"paid_completed"`
	StatusOverride  *string        `db:"status_override" json:"status_override,omitempty"`
	Meta            types.JSONText `db:"meta" json:"meta"`
	Version         int            `db:"version" json:"version"`
	UpdatedBy       *string        `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// MarksComplete reports whether any completion source on the record is set.
func (o *CompletionOverride) MarksComplete() bool {
	if o == nil {
		return false
	}
	if o.ManualCompleted || o.PaidCompleted {
		return true
	}
	return o.StatusOverride != nil && *o.StatusOverride == CompletionStatusCompleted
}
