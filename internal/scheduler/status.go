package scheduler

import (
	"fmt"
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// PeriodClock maps periods on a date to wall-clock instants.
type PeriodClock struct {
	Location       *time.Location
	MorningStart   time.Duration
	AfternoonStart time.Duration
	PeriodLength   time.Duration
}

// DefaultPeriodClock starts mornings at 07:00 and afternoons at 13:00 with 45 minute periods, in UTC.
func DefaultPeriodClock() PeriodClock {
	return PeriodClock{
		Location:       time.UTC,
		MorningStart:   7 * time.Hour,
		AfternoonStart: 13 * time.Hour,
		PeriodLength:   45 * time.Minute,
	}
}

// ParsePeriodClock builds a clock from "HH:MM" start times and a timezone name.
func ParsePeriodClock(morning, afternoon string, length time.Duration, timezone string) (PeriodClock, error) {
	clock := DefaultPeriodClock()
	if timezone != "" {
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			return PeriodClock{}, fmt.Errorf("load timezone %q: %w", timezone, err)
		}
		clock.Location = loc
	}
	if morning != "" {
		offset, err := parseClockTime(morning)
		if err != nil {
			return PeriodClock{}, err
		}
		clock.MorningStart = offset
	}
	if afternoon != "" {
		offset, err := parseClockTime(afternoon)
		if err != nil {
			return PeriodClock{}, err
		}
		clock.AfternoonStart = offset
	}
	if length > 0 {
		clock.PeriodLength = length
	}
	return clock, nil
}

func parseClockTime(raw string) (time.Duration, error) {
	parsed, err := time.Parse("15:04", raw)
	if err != nil {
		return 0, fmt.Errorf("parse clock time %q: %w", raw, err)
	}
	return time.Duration(parsed.Hour())*time.Hour + time.Duration(parsed.Minute())*time.Minute, nil
}

// PeriodStart returns the instant a period begins on the given date.
func (c PeriodClock) PeriodStart(date time.Time, period int) time.Time {
	y, m, d := date.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, c.location())
	if period <= LastMorningPeriod {
		return midnight.Add(c.MorningStart + time.Duration(period-FirstPeriod)*c.PeriodLength)
	}
	return midnight.Add(c.AfternoonStart + time.Duration(period-LastMorningPeriod-1)*c.PeriodLength)
}

// Bounds returns the start and end instants of a session window.
func (c PeriodClock) Bounds(date time.Time, startPeriod, periodCount int) (time.Time, time.Time) {
	if periodCount < 1 {
		periodCount = 1
	}
	start := c.PeriodStart(date, startPeriod)
	end := c.PeriodStart(date, startPeriod+periodCount-1).Add(c.PeriodLength)
	return start, end
}

// EffectiveStatus derives the display status. OFF and MAKEUP always win; otherwise the
// status follows the clock: pending before the window, ongoing inside it, completed after.
func (c PeriodClock) EffectiveStatus(s models.Session, now time.Time) models.SessionStatus {
	if s.Status == models.SessionStatusOff || s.Status == models.SessionStatusMakeup {
		return s.Status
	}
	start, end := c.Bounds(s.Date, s.StartPeriod, s.PeriodCount)
	switch {
	case now.Before(start):
		return models.SessionStatusPending
	case now.Before(end):
		return models.SessionStatusOngoing
	default:
		return models.SessionStatusCompleted
	}
}

func (c PeriodClock) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}
