package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

const sessionColumns = `id, kind, teacher_id, subject_id, class_id, room_id, cohort, session_date, start_period, period_count, status, note, created_at, updated_at`

// SessionRepository provides persistence for scheduled sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) ext(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns sessions matching the filter ordered by date and period.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.Session, error) {
	var conditions []string
	var args []interface{}

	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("session_date >= $%d", len(args)+1))
		args = append(args, models.DateOnly(*filter.From))
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("session_date <= $%d", len(args)+1))
		args = append(args, models.DateOnly(*filter.To))
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.RoomID != "" {
		conditions = append(conditions, fmt.Sprintf("room_id = $%d", len(args)+1))
		args = append(args, filter.RoomID)
	}
	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.Kind != "" {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)+1))
		args = append(args, filter.Kind)
	}

	query := "SELECT " + sessionColumns + " FROM sessions"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY session_date ASC, start_period ASC, class_id ASC"

	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// FindByID loads a session by id.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	query := "SELECT " + sessionColumns + " FROM sessions WHERE id = $1"
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListByDate returns every session on a date. Pass a transaction to read inside it.
func (r *SessionRepository) ListByDate(ctx context.Context, exec sqlx.ExtContext, date time.Time) ([]models.Session, error) {
	query := "SELECT " + sessionColumns + " FROM sessions WHERE session_date = $1 ORDER BY start_period ASC, class_id ASC"
	var sessions []models.Session
	if err := sqlx.SelectContext(ctx, r.ext(exec), &sessions, query, models.DateOnly(date)); err != nil {
		return nil, fmt.Errorf("list sessions by date: %w", err)
	}
	return sessions, nil
}

// ListByClass returns every session of a class.
func (r *SessionRepository) ListByClass(ctx context.Context, classID string) ([]models.Session, error) {
	query := "SELECT " + sessionColumns + " FROM sessions WHERE class_id = $1 ORDER BY session_date ASC, start_period ASC"
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, classID); err != nil {
		return nil, fmt.Errorf("list sessions by class: %w", err)
	}
	return sessions, nil
}

// ListForProgress returns sessions of a subject for the given classes. Pass a transaction
// to read inside it.
func (r *SessionRepository) ListForProgress(ctx context.Context, exec sqlx.ExtContext, subjectID string, classIDs []string) ([]models.Session, error) {
	if len(classIDs) == 0 {
		return nil, nil
	}
	query := "SELECT " + sessionColumns + " FROM sessions WHERE subject_id = $1 AND class_id = ANY($2) ORDER BY session_date ASC, start_period ASC"
	var sessions []models.Session
	if err := sqlx.SelectContext(ctx, r.ext(exec), &sessions, query, subjectID, pq.Array(classIDs)); err != nil {
		return nil, fmt.Errorf("list sessions by subject: %w", err)
	}
	return sessions, nil
}

// ExistsExam reports whether an exam session is already scheduled for the subject and class.
func (r *SessionRepository) ExistsExam(ctx context.Context, exec sqlx.ExtContext, subjectID, classID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM sessions WHERE subject_id = $1 AND class_id = $2 AND kind = $3)`
	var exists bool
	if err := sqlx.GetContext(ctx, r.ext(exec), &exists, query, subjectID, classID, models.SessionKindExam); err != nil {
		return false, fmt.Errorf("check exam exists: %w", err)
	}
	return exists, nil
}

// LockProgress serialises writers booking periods of one subject for one class.
// Callers take these locks before any LockDate and in ascending class order.
func (r *SessionRepository) LockProgress(ctx context.Context, exec sqlx.ExtContext, subjectID, classID string) error {
	key := "progress:" + subjectID + ":" + classID
	if _, err := r.ext(exec).ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return fmt.Errorf("lock subject progress: %w", err)
	}
	return nil
}

// LockDate serialises writers touching the same date until the transaction ends.
func (r *SessionRepository) LockDate(ctx context.Context, exec sqlx.ExtContext, date time.Time) error {
	key := "sessions:" + models.DateOnly(date).Format(time.DateOnly)
	if _, err := r.ext(exec).ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return fmt.Errorf("lock session date: %w", err)
	}
	return nil
}

// CreateBatch inserts sessions, assigning ids and timestamps when missing.
func (r *SessionRepository) CreateBatch(ctx context.Context, exec sqlx.ExtContext, sessions []models.Session) error {
	const query = `INSERT INTO sessions (id, kind, teacher_id, subject_id, class_id, room_id, cohort, session_date, start_period, period_count, status, note, created_at, updated_at)
VALUES (:id, :kind, :teacher_id, :subject_id, :class_id, :room_id, :cohort, :session_date, :start_period, :period_count, :status, :note, :created_at, :updated_at)`
	target := r.ext(exec)
	now := time.Now().UTC()
	for i := range sessions {
		payload := sessions[i]
		if payload.ID == "" {
			payload.ID = uuid.NewString()
		}
		if payload.Status == "" {
			payload.Status = models.SessionStatusPending
		}
		payload.Date = models.DateOnly(payload.Date)
		if payload.CreatedAt.IsZero() {
			payload.CreatedAt = now
		}
		payload.UpdatedAt = now

		if _, err := sqlx.NamedExecContext(ctx, target, query, &payload); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		sessions[i] = payload
	}
	return nil
}

// UpdateBatch rewrites the mutable fields of each session. A missing row aborts with sql.ErrNoRows.
func (r *SessionRepository) UpdateBatch(ctx context.Context, exec sqlx.ExtContext, sessions []models.Session) error {
	const query = `UPDATE sessions SET teacher_id = :teacher_id, room_id = :room_id, session_date = :session_date, start_period = :start_period,
period_count = :period_count, status = :status, note = :note, updated_at = :updated_at WHERE id = :id`
	target := r.ext(exec)
	now := time.Now().UTC()
	for i := range sessions {
		sessions[i].Date = models.DateOnly(sessions[i].Date)
		sessions[i].UpdatedAt = now
		result, err := sqlx.NamedExecContext(ctx, target, query, &sessions[i])
		if err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("session rows affected: %w", err)
		}
		if affected == 0 {
			return sql.ErrNoRows
		}
	}
	return nil
}

// DeleteBatch removes sessions by id. If any id is already gone it returns sql.ErrNoRows.
func (r *SessionRepository) DeleteBatch(ctx context.Context, exec sqlx.ExtContext, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	result, err := r.ext(exec).ExecContext(ctx, `DELETE FROM sessions WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("session rows affected: %w", err)
	}
	if affected != int64(len(ids)) {
		return sql.ErrNoRows
	}
	return nil
}
