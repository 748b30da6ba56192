package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// ClassRepository provides lookups for classes.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// ListAll returns every class ordered by name.
func (r *ClassRepository) ListAll(ctx context.Context) ([]models.Class, error) {
	const query = `SELECT id, name, major_id, created_at, updated_at FROM classes ORDER BY name ASC`
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}

// ListByMajor returns classes enrolled in the major.
func (r *ClassRepository) ListByMajor(ctx context.Context, majorID string) ([]models.Class, error) {
	const query = `SELECT id, name, major_id, created_at, updated_at FROM classes WHERE major_id = $1 ORDER BY name ASC`
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, majorID); err != nil {
		return nil, fmt.Errorf("list classes by major: %w", err)
	}
	return classes, nil
}

// FindByID returns a class by id.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	const query = `SELECT id, name, major_id, created_at, updated_at FROM classes WHERE id = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}
