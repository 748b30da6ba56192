package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// ErrVersionConflict is returned when an override was modified since it was read.
var ErrVersionConflict = errors.New("completion override version mismatch")

const completionOverrideColumns = `subject_id, class_id, manual_completed, paid_completed, status_override, meta, version, updated_by, updated_at`

// CompletionOverrideRepository persists manual completion records.
type CompletionOverrideRepository struct {
	db *sqlx.DB
}

// NewCompletionOverrideRepository constructs the repository.
func NewCompletionOverrideRepository(db *sqlx.DB) *CompletionOverrideRepository {
	return &CompletionOverrideRepository{db: db}
}

// Get returns the override for a subject/class pair, or nil when none exists.
func (r *CompletionOverrideRepository) Get(ctx context.Context, subjectID, classID string) (*models.CompletionOverride, error) {
	query := "SELECT " + completionOverrideColumns + " FROM completion_overrides WHERE subject_id = $1 AND class_id = $2"
	var override models.CompletionOverride
	if err := r.db.GetContext(ctx, &override, query, subjectID, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get completion override: %w", err)
	}
	return &override, nil
}

// ListByClass returns every override recorded for a class.
func (r *CompletionOverrideRepository) ListByClass(ctx context.Context, classID string) ([]models.CompletionOverride, error) {
	query := "SELECT " + completionOverrideColumns + " FROM completion_overrides WHERE class_id = $1"
	var overrides []models.CompletionOverride
	if err := r.db.SelectContext(ctx, &overrides, query, classID); err != nil {
		return nil, fmt.Errorf("list completion overrides: %w", err)
	}
	return overrides, nil
}

// Upsert writes the override when the stored version equals expectedVersion.
// A new row starts at version 1 and must be written with expectedVersion 0.
func (r *CompletionOverrideRepository) Upsert(ctx context.Context, override *models.CompletionOverride, expectedVersion int) error {
	if len(override.Meta) == 0 {
		override.Meta = types.JSONText("{}")
	}
	override.UpdatedAt = time.Now().UTC()

	const query = `INSERT INTO completion_overrides (subject_id, class_id, manual_completed, paid_completed, status_override, meta, version, updated_by, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $8)
ON CONFLICT (subject_id, class_id) DO UPDATE SET
	manual_completed = EXCLUDED.manual_completed,
	paid_completed = EXCLUDED.paid_completed,
	status_override = EXCLUDED.status_override,
	meta = EXCLUDED.meta,
	version = completion_overrides.version + 1,
	updated_by = EXCLUDED.updated_by,
	updated_at = EXCLUDED.updated_at
WHERE completion_overrides.version = $9
RETURNING version`

	var version int
	err := r.db.QueryRowxContext(ctx, query,
		override.SubjectID,
		override.ClassID,
		override.ManualCompleted,
		override.PaidCompleted,
		override.StatusOverride,
		override.Meta,
		override.UpdatedBy,
		override.UpdatedAt,
		expectedVersion,
	).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrVersionConflict
		}
		return fmt.Errorf("upsert completion override: %w", err)
	}
	override.Version = version
	return nil
}
