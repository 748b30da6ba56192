package models

import "time"

// Holiday blocks every session on the dates of its inclusive range.
type Holiday struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Contains reports whether date falls inside the holiday, compared by calendar day.
func (h Holiday) Contains(date time.Time) bool {
	day := DateOnly(date)
	return !day.Before(DateOnly(h.StartDate)) && !day.After(DateOnly(h.EndDate))
}

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
