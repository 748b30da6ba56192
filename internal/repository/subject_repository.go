package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

const subjectColumns = `id, code, name, total_periods, major_id, is_shared, responsible_teacher_1, responsible_teacher_2, responsible_teacher_3, created_at, updated_at`

// SubjectRepository handles lookups for curriculum subjects.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository creates a new repository instance.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// ListAll returns every subject ordered by name.
func (r *SubjectRepository) ListAll(ctx context.Context) ([]models.Subject, error) {
	query := "SELECT " + subjectColumns + " FROM subjects ORDER BY name ASC"
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

// ListByMajor returns subjects owned by the given major.
func (r *SubjectRepository) ListByMajor(ctx context.Context, majorID string) ([]models.Subject, error) {
	query := "SELECT " + subjectColumns + " FROM subjects WHERE major_id = $1 ORDER BY name ASC"
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, majorID); err != nil {
		return nil, fmt.Errorf("list subjects by major: %w", err)
	}
	return subjects, nil
}

// FindByID fetches a subject by id.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	query := "SELECT " + subjectColumns + " FROM subjects WHERE id = $1"
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		return nil, err
	}
	return &subject, nil
}
