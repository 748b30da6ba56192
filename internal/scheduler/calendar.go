package scheduler

import (
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// HolidayCalendar maps a date to the holiday blocking it, if any.
type HolidayCalendar interface {
	HolidayFor(date time.Time) (models.Holiday, bool)
}

// HolidayList is an in-memory calendar over a loaded set of holidays.
type HolidayList []models.Holiday

// HolidayFor returns the first holiday containing date.
func (l HolidayList) HolidayFor(date time.Time) (models.Holiday, bool) {
	for _, holiday := range l {
		if holiday.Contains(date) {
			return holiday, true
		}
	}
	return models.Holiday{}, false
}
