package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// HolidayRepository persists holiday ranges.
type HolidayRepository struct {
	db *sqlx.DB
}

// NewHolidayRepository constructs a holiday repository.
func NewHolidayRepository(db *sqlx.DB) *HolidayRepository {
	return &HolidayRepository{db: db}
}

// List returns holidays overlapping the optional [from, to] range.
func (r *HolidayRepository) List(ctx context.Context, from, to *time.Time) ([]models.Holiday, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if from != nil {
		where = append(where, fmt.Sprintf("end_date >= $%d", len(args)+1))
		args = append(args, models.DateOnly(*from))
	}
	if to != nil {
		where = append(where, fmt.Sprintf("start_date <= $%d", len(args)+1))
		args = append(args, models.DateOnly(*to))
	}
	query := fmt.Sprintf("SELECT id, name, start_date, end_date, created_at FROM holidays WHERE %s ORDER BY start_date ASC", strings.Join(where, " AND "))

	var holidays []models.Holiday
	if err := r.db.SelectContext(ctx, &holidays, query, args...); err != nil {
		return nil, fmt.Errorf("list holidays: %w", err)
	}
	return holidays, nil
}

// FindCovering returns the first holiday containing date, or nil when there is none.
func (r *HolidayRepository) FindCovering(ctx context.Context, date time.Time) (*models.Holiday, error) {
	const query = `SELECT id, name, start_date, end_date, created_at FROM holidays WHERE start_date <= $1 AND end_date >= $1 ORDER BY start_date ASC LIMIT 1`
	var holiday models.Holiday
	if err := r.db.GetContext(ctx, &holiday, query, models.DateOnly(date)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find covering holiday: %w", err)
	}
	return &holiday, nil
}

// Create inserts a holiday.
func (r *HolidayRepository) Create(ctx context.Context, holiday *models.Holiday) error {
	if holiday.ID == "" {
		holiday.ID = uuid.NewString()
	}
	holiday.StartDate = models.DateOnly(holiday.StartDate)
	holiday.EndDate = models.DateOnly(holiday.EndDate)
	holiday.CreatedAt = time.Now().UTC()

	const query = `INSERT INTO holidays (id, name, start_date, end_date, created_at) VALUES (:id, :name, :start_date, :end_date, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, holiday); err != nil {
		return fmt.Errorf("create holiday: %w", err)
	}
	return nil
}

// Delete removes a holiday by id.
func (r *HolidayRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM holidays WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete holiday: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("holiday rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
