package models

// WarningKind classifies propagation warnings.
type WarningKind string

const (
	WarningHolidaySkipped WarningKind = "HOLIDAY_SKIPPED"
	WarningNearCompletion WarningKind = "NEAR_COMPLETION"
)

// PropagationWarning is a structured, locale-independent propagation notice.
type PropagationWarning struct {
	Kind      WarningKind `json:"kind"`
	ClassID   string      `json:"class_id"`
	SubjectID string      `json:"subject_id"`
	Group     string      `json:"group,omitempty"`
	Message   string      `json:"message"`
}
