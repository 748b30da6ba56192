// Package scheduler holds the pure timetable rules: session windows, joint-teaching
// groups, conflict detection, curriculum progress, display status and week propagation.
// Nothing here performs I/O; callers pass a snapshot of sessions and lookups.
package scheduler

import (
	"errors"
	"fmt"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// Period grid: 1-5 morning, 6-10 afternoon.
const (
	FirstPeriod       = 1
	LastMorningPeriod = 5
	LastPeriod        = 10
)

// ErrInvalidWindow is returned when a period range is out of the grid or crosses
// the morning/afternoon boundary.
var ErrInvalidWindow = errors.New("invalid session window")

// Window is the half-open period range [Start, End).
type Window struct {
	Start int
	End   int
}

// NewWindow builds the window for a start period and period count.
func NewWindow(start, count int) Window {
	return Window{Start: start, End: start + count}
}

// WindowOf returns the period window occupied by a session.
func WindowOf(s models.Session) Window {
	return NewWindow(s.StartPeriod, s.PeriodCount)
}

// Overlaps reports whether two windows share at least one period.
func (w Window) Overlaps(other Window) bool {
	return w.Start < other.End && other.Start < w.End
}

// Last returns the last period inside the window.
func (w Window) Last() int {
	return w.End - 1
}

func (w Window) String() string {
	if w.End-w.Start <= 1 {
		return fmt.Sprintf("period %d", w.Start)
	}
	return fmt.Sprintf("periods %d-%d", w.Start, w.Last())
}

// ValidateWindow checks that a period range fits inside a single half of the day.
func ValidateWindow(start, count int) error {
	if start < FirstPeriod || start > LastPeriod {
		return fmt.Errorf("%w: start period %d outside %d-%d", ErrInvalidWindow, start, FirstPeriod, LastPeriod)
	}
	if count < 1 {
		return fmt.Errorf("%w: period count must be at least 1", ErrInvalidWindow)
	}
	limit := LastPeriod + 1
	if start <= LastMorningPeriod {
		limit = LastMorningPeriod + 1
	}
	if start+count > limit {
		return fmt.Errorf("%w: periods %d-%d cross the morning/afternoon boundary", ErrInvalidWindow, start, start+count-1)
	}
	return nil
}

// MaxPeriodCount returns the longest window that can start at the given period.
func MaxPeriodCount(start int) int {
	if start <= LastMorningPeriod {
		return LastMorningPeriod + 1 - start
	}
	return LastPeriod + 1 - start
}
