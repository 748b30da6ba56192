package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type sessionStore interface {
	List(ctx context.Context, filter models.SessionFilter) ([]models.Session, error)
	FindByID(ctx context.Context, id string) (*models.Session, error)
	ListByDate(ctx context.Context, exec sqlx.ExtContext, date time.Time) ([]models.Session, error)
	ListByClass(ctx context.Context, classID string) ([]models.Session, error)
	ListForProgress(ctx context.Context, exec sqlx.ExtContext, subjectID string, classIDs []string) ([]models.Session, error)
	ExistsExam(ctx context.Context, exec sqlx.ExtContext, subjectID, classID string) (bool, error)
	LockProgress(ctx context.Context, exec sqlx.ExtContext, subjectID, classID string) error
	LockDate(ctx context.Context, exec sqlx.ExtContext, date time.Time) error
	CreateBatch(ctx context.Context, exec sqlx.ExtContext, sessions []models.Session) error
	UpdateBatch(ctx context.Context, exec sqlx.ExtContext, sessions []models.Session) error
	DeleteBatch(ctx context.Context, exec sqlx.ExtContext, ids []string) error
}

type subjectReader interface {
	ListAll(ctx context.Context) ([]models.Subject, error)
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type classReader interface {
	ListAll(ctx context.Context) ([]models.Class, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type teacherReader interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.Teacher, error)
}

type holidayReader interface {
	List(ctx context.Context, from, to *time.Time) ([]models.Holiday, error)
	FindCovering(ctx context.Context, date time.Time) (*models.Holiday, error)
}

type completionOverrideReader interface {
	Get(ctx context.Context, subjectID, classID string) (*models.CompletionOverride, error)
	ListByClass(ctx context.Context, classID string) ([]models.CompletionOverride, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// propagationFailed marks a propagated copy that could not be written for reasons other than a conflict.
const propagationFailed = "failed"

var errNothingRemaining = errors.New("no curriculum periods remaining")

// SessionServiceConfig carries timetable rules from configuration.
type SessionServiceConfig struct {
	GeneralMajors           []string
	Clock                   scheduler.PeriodClock
	NearCompletionThreshold int
	PropagationOffsetDays   int
	ProgressTTL             time.Duration
}

// SessionService schedules class and exam sessions.
type SessionService struct {
	sessions  sessionStore
	subjects  subjectReader
	classes   classReader
	teachers  teacherReader
	holidays  holidayReader
	overrides completionOverrideReader
	tx        txProvider
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	policy    scheduler.SharedPolicy
	cfg       SessionServiceConfig
	now       func() time.Time
	newID     func() string
}

// NewSessionService wires the session service.
func NewSessionService(
	sessions sessionStore,
	subjects subjectReader,
	classes classReader,
	teachers teacherReader,
	holidays holidayReader,
	overrides completionOverrideReader,
	tx txProvider,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg SessionServiceConfig,
) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Clock.PeriodLength <= 0 {
		cfg.Clock = scheduler.DefaultPeriodClock()
	}
	return &SessionService{
		sessions:  sessions,
		subjects:  subjects,
		classes:   classes,
		teachers:  teachers,
		holidays:  holidays,
		overrides: overrides,
		tx:        tx,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		policy:    scheduler.NewSharedPolicy(cfg.GeneralMajors),
		cfg:       cfg,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Create validates and stores a session, fanning out to the selected classes of a shared
// subject. Either every member is written or none is.
func (s *SessionService) Create(ctx context.Context, req dto.CreateSessionRequest) (*dto.SessionMutationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	if err := scheduler.ValidateWindow(req.StartPeriod, req.PeriodCount); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	catalog, err := s.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	subject, ok := catalog.Subject(req.SubjectID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("subject %s not found", req.SubjectID))
	}
	if !hasClass(catalog, req.ClassID) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("class %s not found", req.ClassID))
	}
	if err := s.ensureNotHoliday(ctx, date); err != nil {
		return nil, err
	}

	classIDs, err := s.targetClasses(subject, catalog, req.ClassID, req.SelectedSharedClasses)
	if err != nil {
		return nil, err
	}
	overrides := make(map[string]*models.CompletionOverride, len(classIDs))
	for _, classID := range classIDs {
		override, err := s.overrides.Get(ctx, subject.ID, classID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load completion override")
		}
		overrides[classID] = override
	}

	group := normaliseGroup(req.Group)
	result := &dto.SessionMutationResult{}
	var candidates []models.Session
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.lockProgress(ctx, tx, subject.ID, classIDs); err != nil {
			return err
		}
		if err := s.sessions.LockDate(ctx, tx, date); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock schedule date")
		}
		history, err := s.sessions.ListForProgress(ctx, tx, subject.ID, classIDs)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject progress")
		}

		candidates = make([]models.Session, 0, len(classIDs))
		for _, classID := range classIDs {
			eligibility := scheduler.Evaluate(subject, classID, group, history, overrides[classID])
			if !eligibility.Allows(req.Kind) {
				return notEligible(catalog, subject, classID, req.Kind, eligibility)
			}
			if req.Kind == models.SessionKindExam {
				exists, err := s.sessions.ExistsExam(ctx, tx, subject.ID, classID)
				if err != nil {
					return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing exams")
				}
				if exists {
					return notEligible(catalog, subject, classID, req.Kind, scheduler.Eligibility{ExamScheduled: true})
				}
			}

			count := req.PeriodCount
			if req.Kind == models.SessionKindClass {
				fitted, clamped := scheduler.FitPeriodCount(count, eligibility.Progress.Remaining)
				if clamped {
					result.Clamped = append(result.Clamped, dto.ClampNotice{ClassID: classID, Requested: count, Applied: fitted})
				}
				count = fitted
			}

			candidates = append(candidates, models.Session{
				ID:          s.newID(),
				Kind:        req.Kind,
				TeacherID:   req.TeacherID,
				SubjectID:   subject.ID,
				ClassID:     classID,
				RoomID:      req.RoomID,
				Group:       group,
				Date:        date,
				StartPeriod: req.StartPeriod,
				PeriodCount: count,
				Status:      models.SessionStatusPending,
				Note:        req.Note,
			})
		}

		current, err := s.sessions.ListByDate(ctx, tx, date)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sessions")
		}
		if err := s.checkAll(catalog, candidates, current, nil); err != nil {
			return err
		}
		if err := s.sessions.CreateBatch(ctx, tx, candidates); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create sessions")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterMutation(ctx, "create", candidates)
	s.logger.Info("sessions created",
		zap.String("subject_id", subject.ID),
		zap.Strings("session_ids", scheduler.SessionIDs(candidates)),
		zap.Int("clamped", len(result.Clamped)),
	)
	result.Sessions = candidates
	return result, nil
}

// Update patches a session and every sibling of its joint group in one transaction.
func (s *SessionService) Update(ctx context.Context, id string, req dto.UpdateSessionRequest) (*dto.SessionMutationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session update payload")
	}
	if req.Empty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no fields to update")
	}
	return s.update(ctx, id, req, "update")
}

// UpdateStatus changes the stored status of a session's joint group.
func (s *SessionService) UpdateStatus(ctx context.Context, id string, req dto.UpdateSessionStatusRequest) (*dto.SessionMutationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	status := req.Status
	return s.update(ctx, id, dto.UpdateSessionRequest{Status: &status}, "status")
}

func (s *SessionService) update(ctx context.Context, id string, req dto.UpdateSessionRequest, operation string) (*dto.SessionMutationResult, error) {
	var newDate *time.Time
	if req.Date != nil {
		parsed, err := parseDate(*req.Date)
		if err != nil {
			return nil, err
		}
		newDate = &parsed
	}

	existing, err := s.findSession(ctx, id)
	if err != nil {
		return nil, err
	}
	oldDate := models.DateOnly(existing.Date)
	targetDate := oldDate
	if newDate != nil {
		targetDate = *newDate
	}
	if !targetDate.Equal(oldDate) {
		if err := s.ensureNotHoliday(ctx, targetDate); err != nil {
			return nil, err
		}
	}

	catalog, err := s.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	subject, ok := catalog.Subject(existing.SubjectID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInternal, fmt.Sprintf("subject %s of session %s is missing", existing.SubjectID, existing.ID))
	}

	// Period counts only change when the count or the OFF status changes.
	reclamp := req.PeriodCount != nil || req.Status != nil
	var guarded []string
	if reclamp {
		guarded = s.groupClassIDs(subject, catalog, existing.ClassID)
	}

	result := &dto.SessionMutationResult{}
	var updated []models.Session
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.lockProgress(ctx, tx, subject.ID, guarded); err != nil {
			return err
		}
		for _, date := range lockOrder(oldDate, targetDate) {
			if err := s.sessions.LockDate(ctx, tx, date); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock schedule date")
			}
		}
		sameDay, err := s.sessions.ListByDate(ctx, tx, oldDate)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sessions")
		}
		fresh, ok := findByID(sameDay, id)
		if !ok {
			return appErrors.Clone(appErrors.ErrConflict, "session was modified concurrently, reload and retry")
		}
		group := s.policy.Siblings(fresh, sameDay, catalog)

		updated = make([]models.Session, len(group))
		for i, member := range group {
			updated[i] = applyPatch(member, req, newDate, member.ID == id)
		}
		if reclamp {
			for _, member := range updated {
				if !containsString(guarded, member.ClassID) {
					return appErrors.Clone(appErrors.ErrConflict, "session group changed concurrently, reload and retry")
				}
			}
			notices, err := s.clampGroup(ctx, tx, subject, catalog, updated)
			if err != nil {
				return err
			}
			result.Clamped = notices
		}

		current := sameDay
		if !targetDate.Equal(oldDate) {
			if current, err = s.sessions.ListByDate(ctx, tx, targetDate); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sessions")
			}
		}
		if err := s.checkAll(catalog, updated, current, scheduler.SessionIDs(group)); err != nil {
			return err
		}
		if err := s.sessions.UpdateBatch(ctx, tx, updated); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrConflict, "session was modified concurrently, reload and retry")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update sessions")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterMutation(ctx, operation, updated)
	s.logger.Info("sessions updated",
		zap.String("operation", operation),
		zap.String("session_id", id),
		zap.Strings("session_ids", scheduler.SessionIDs(updated)),
	)
	result.Sessions = updated
	return result, nil
}

// Delete removes a session together with its joint-group siblings.
func (s *SessionService) Delete(ctx context.Context, id string) (*dto.SessionDeleteResult, error) {
	existing, err := s.findSession(ctx, id)
	if err != nil {
		return nil, err
	}
	catalog, err := s.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}

	var removed []models.Session
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.sessions.LockDate(ctx, tx, existing.Date); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock schedule date")
		}
		sameDay, err := s.sessions.ListByDate(ctx, tx, existing.Date)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sessions")
		}
		fresh, ok := findByID(sameDay, id)
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		removed = s.policy.Siblings(fresh, sameDay, catalog)
		if err := s.sessions.DeleteBatch(ctx, tx, scheduler.SessionIDs(removed)); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrConflict, "session was modified concurrently, reload and retry")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete sessions")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterMutation(ctx, "delete", removed)
	ids := scheduler.SessionIDs(removed)
	s.logger.Info("sessions deleted", zap.String("session_id", id), zap.Strings("session_ids", ids))
	return &dto.SessionDeleteResult{DeletedIDs: ids}, nil
}

// Siblings returns the joint group of a session, the session itself included.
func (s *SessionService) Siblings(ctx context.Context, id string) ([]models.Session, error) {
	existing, err := s.findSession(ctx, id)
	if err != nil {
		return nil, err
	}
	catalog, err := s.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	sameDay, err := s.sessions.ListByDate(ctx, nil, existing.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sessions")
	}
	return s.policy.Siblings(*existing, sameDay, catalog), nil
}

// List returns sessions annotated with effective status and subject progress.
func (s *SessionService) List(ctx context.Context, query dto.ListSessionsQuery) ([]dto.SessionView, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session query")
	}
	filter := models.SessionFilter{
		ClassID:   query.ClassID,
		TeacherID: query.TeacherID,
		RoomID:    query.RoomID,
		SubjectID: query.SubjectID,
		Kind:      models.SessionKind(query.Kind),
	}
	if query.From != "" {
		from, err := parseDate(query.From)
		if err != nil {
			return nil, err
		}
		filter.From = &from
	}
	if query.To != "" {
		to, err := parseDate(query.To)
		if err != nil {
			return nil, err
		}
		filter.To = &to
	}

	var sessions []models.Session
	var catalog scheduler.Catalog
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sessions, err = s.sessions.List(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		catalog, err = s.loadCatalog(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}

	history, err := s.progressHistory(ctx, sessions)
	if err != nil {
		return nil, err
	}

	now := s.now()
	views := make([]dto.SessionView, 0, len(sessions))
	for _, session := range sessions {
		subject, known := catalog.Subject(session.SubjectID)
		view := dto.SessionView{
			Session:         session,
			EffectiveStatus: s.cfg.Clock.EffectiveStatus(session, now),
			SubjectName:     catalog.SubjectName(session.SubjectID),
			ClassName:       catalog.ClassName(session.ClassID),
		}
		if known {
			view.Shared = s.policy.IsShared(subject, catalog.Classes, session.ClassID)
			if session.Kind == models.SessionKindClass {
				progress := scheduler.ProgressOf(subject.ID, session.ClassID, subject.TotalPeriods, history[subject.ID], session.Group)
				view.Progress = &dto.ProgressView{
					SubjectID:     subject.ID,
					ClassID:       session.ClassID,
					Group:         session.Group,
					Total:         progress.Total,
					Learned:       progress.Learned,
					Remaining:     progress.Remaining,
					Finished:      progress.Finished(),
					ExamScheduled: scheduler.HasExam(subject.ID, session.ClassID, history[subject.ID]),
				}
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// progressHistory loads, per subject, every session of the classes present in sessions.
func (s *SessionService) progressHistory(ctx context.Context, sessions []models.Session) (map[string][]models.Session, error) {
	classesBySubject := make(map[string][]string)
	for _, session := range sessions {
		if !containsString(classesBySubject[session.SubjectID], session.ClassID) {
			classesBySubject[session.SubjectID] = append(classesBySubject[session.SubjectID], session.ClassID)
		}
	}

	history := make(map[string][]models.Session, len(classesBySubject))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for subjectID, classIDs := range classesBySubject {
		subjectID, classIDs := subjectID, classIDs
		g.Go(func() error {
			list, err := s.sessions.ListForProgress(gctx, nil, subjectID, classIDs)
			if err != nil {
				return err
			}
			mu.Lock()
			history[subjectID] = list
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject progress")
	}
	return history, nil
}

// Progress reports the curriculum progress of a subject for a class and optional group.
func (s *SessionService) Progress(ctx context.Context, subjectID, classID string, group *string) (*dto.ProgressView, error) {
	if subjectID == "" || classID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subject_id and class_id are required")
	}
	group = normaliseGroup(group)
	// The generation is read before the database so a mutation committed meanwhile
	// retires whatever this call writes back.
	generation, cacheable := s.cache.ProgressGeneration(ctx, subjectID)
	key := repository.ProgressCacheKey(subjectID, classID, group, generation)

	if cacheable {
		var cached dto.ProgressView
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	subject, err := s.subjects.FindByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	history, err := s.sessions.ListForProgress(ctx, nil, subjectID, []string{classID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject progress")
	}
	override, err := s.overrides.Get(ctx, subjectID, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load completion override")
	}

	view := progressView(subjectID, classID, group, scheduler.Evaluate(*subject, classID, group, history, override))
	if cacheable {
		_ = s.cache.Set(ctx, key, view, s.cfg.ProgressTTL)
	}
	return &view, nil
}

// EligibleSubjects lists subjects that may be scheduled for the class as the given kind.
func (s *SessionService) EligibleSubjects(ctx context.Context, classID string, kind models.SessionKind, group *string) ([]dto.EligibleSubject, error) {
	if kind == "" {
		kind = models.SessionKindClass
	}
	if kind != models.SessionKindClass && kind != models.SessionKindExam {
		return nil, appErrors.Clone(appErrors.ErrValidation, "kind must be CLASS or EXAM")
	}
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	var (
		subjects  []models.Subject
		classes   []models.Class
		history   []models.Session
		overrides []models.CompletionOverride
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		subjects, err = s.subjects.ListAll(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		classes, err = s.classes.ListAll(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		history, err = s.sessions.ListByClass(gctx, classID)
		return err
	})
	g.Go(func() error {
		var err error
		overrides, err = s.overrides.ListByClass(gctx, classID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load eligibility data")
	}

	bySubject := make(map[string]*models.CompletionOverride, len(overrides))
	for i := range overrides {
		bySubject[overrides[i].SubjectID] = &overrides[i]
	}

	group = normaliseGroup(group)
	eligible := make([]dto.EligibleSubject, 0, len(subjects))
	for _, subject := range subjects {
		// A shared subject of another specialised major never fans out to this class.
		if !s.policy.IsGeneral(subject.MajorID) && subject.MajorID != class.MajorID {
			continue
		}
		eligibility := scheduler.Evaluate(subject, classID, group, history, bySubject[subject.ID])
		if !eligibility.Allows(kind) {
			continue
		}
		eligible = append(eligible, dto.EligibleSubject{
			Subject:  subject,
			Progress: progressView(subject.ID, classID, group, eligibility),
			Shared:   s.policy.IsShared(subject, classes, classID),
		})
	}
	return eligible, nil
}

// SharedClasses lists the classes a subject can be jointly taught to, the given class first.
func (s *SessionService) SharedClasses(ctx context.Context, subjectID, classID string) ([]models.Class, error) {
	catalog, err := s.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	subject, ok := catalog.Subject(subjectID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
	}
	if !s.policy.IsShared(subject, catalog.Classes, classID) {
		for _, class := range catalog.Classes {
			if class.ID == classID {
				return []models.Class{class}, nil
			}
		}
		return []models.Class{}, nil
	}
	return s.policy.SharedClasses(subject, catalog.Classes, classID), nil
}

// SuggestTeachers returns the responsible teachers of a subject in their configured order.
func (s *SessionService) SuggestTeachers(ctx context.Context, subjectID string) ([]models.Teacher, error) {
	subject, err := s.subjects.FindByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	ids := subject.ResponsibleTeacherIDs()
	if len(ids) == 0 {
		return []models.Teacher{}, nil
	}
	teachers, err := s.teachers.FindByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teachers")
	}
	rank := make(map[string]int, len(ids))
	for i, id := range ids {
		rank[id] = i
	}
	sort.SliceStable(teachers, func(i, j int) bool { return rank[teachers[i].ID] < rank[teachers[j].ID] })
	return teachers, nil
}

// Propagate copies the class sessions of the week starting at req.WeekStart forward.
// Each copy is written in its own transaction; a copy that collides with a booking made
// since the snapshot was read is skipped, not fatal.
func (s *SessionService) Propagate(ctx context.Context, req dto.PropagateRequest) (*dto.PropagationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid propagation payload")
	}
	weekStart, err := parseDate(req.WeekStart)
	if err != nil {
		return nil, err
	}
	offset := s.cfg.PropagationOffsetDays
	if offset <= 0 {
		offset = 7
	}
	weekEnd := weekStart.AddDate(0, 0, 6)
	targetFrom := weekStart.AddDate(0, 0, offset)
	targetTo := weekEnd.AddDate(0, 0, offset)

	var (
		week     []models.Session
		all      []models.Session
		holidays []models.Holiday
		catalog  scheduler.Catalog
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		week, err = s.sessions.List(gctx, models.SessionFilter{From: &weekStart, To: &weekEnd})
		return err
	})
	g.Go(func() error {
		var err error
		all, err = s.sessions.List(gctx, models.SessionFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		holidays, err = s.holidays.List(gctx, &targetFrom, &targetTo)
		return err
	})
	g.Go(func() error {
		var err error
		catalog, err = s.loadCatalog(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load propagation snapshot")
	}

	propagator := scheduler.NewPropagator(s.policy, catalog,
		scheduler.WithIDGenerator(s.newID),
		scheduler.WithOffsetDays(offset),
		scheduler.WithNearCompletionThreshold(s.cfg.NearCompletionThreshold),
	)
	planned := propagator.Propagate(week, all, scheduler.HolidayList(holidays))

	outcome := scheduler.PropagationResult{Skipped: planned.Skipped}
	checker := scheduler.NewConflictChecker(s.policy, catalog)
	for _, session := range planned.Created {
		persisted, err := s.persistPropagated(ctx, checker, catalog, session)
		if err == nil {
			outcome.Created = append(outcome.Created, persisted)
			continue
		}
		reason := propagationFailed
		var conflict *models.SessionConflictError
		switch {
		case errors.As(err, &conflict):
			reason = scheduler.SkipConflict
			s.metrics.RecordConflict(conflict.Resource)
		case errors.Is(err, errNothingRemaining):
			reason = scheduler.SkipComplete
		default:
			s.logger.Error("failed to persist propagated session", zap.String("class_id", session.ClassID), zap.Time("date", session.Date), zap.Error(err))
		}
		outcome.Skipped = append(outcome.Skipped, scheduler.PropagationSkip{SourceID: planned.SourceOf(session.ID), ClassID: session.ClassID, Reason: reason})
	}
	outcome.Warnings = s.persistedWarnings(ctx, propagator, planned, week, all, outcome.Created)

	s.metrics.RecordPropagation("created", len(outcome.Created))
	skipCounts := make(map[string]int)
	for _, skip := range outcome.Skipped {
		skipCounts[skip.Reason]++
	}
	for reason, count := range skipCounts {
		s.metrics.RecordPropagation(reason, count)
	}
	s.afterMutation(ctx, "propagate", outcome.Created)
	s.logger.Info("week propagated",
		zap.String("week_start", req.WeekStart),
		zap.Int("created", len(outcome.Created)),
		zap.Int("skipped", len(outcome.Skipped)),
		zap.Int("failed", skipCounts[propagationFailed]),
		zap.Int("warnings", len(outcome.Warnings)),
	)

	skipped := make([]dto.PropagationSkipView, 0, len(outcome.Skipped))
	for _, skip := range outcome.Skipped {
		skipped = append(skipped, dto.PropagationSkipView{SourceID: skip.SourceID, ClassID: skip.ClassID, Reason: skip.Reason})
	}
	created := outcome.Created
	if created == nil {
		created = []models.Session{}
	}
	warnings := outcome.Warnings
	if warnings == nil {
		warnings = []models.PropagationWarning{}
	}
	return &dto.PropagationResponse{
		WeekStart: weekStart,
		Created:   created,
		Warnings:  warnings,
		Skipped:   skipped,
		Summary:   outcome.Summary(),
	}, nil
}

// persistPropagated writes one copy after re-reading the class's progress and the target
// date under their locks. The copy is trimmed to the periods still remaining.
func (s *SessionService) persistPropagated(ctx context.Context, checker *scheduler.ConflictChecker, catalog scheduler.Catalog, session models.Session) (models.Session, error) {
	total := 0
	if subject, ok := catalog.Subject(session.SubjectID); ok {
		total = subject.TotalPeriods
	}
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.lockProgress(ctx, tx, session.SubjectID, []string{session.ClassID}); err != nil {
			return err
		}
		if err := s.sessions.LockDate(ctx, tx, session.Date); err != nil {
			return err
		}
		history, err := s.sessions.ListForProgress(ctx, tx, session.SubjectID, []string{session.ClassID})
		if err != nil {
			return err
		}
		progress := scheduler.ProgressOf(session.SubjectID, session.ClassID, total, history, session.Group)
		fitted, _ := scheduler.FitPeriodCount(session.PeriodCount, progress.Remaining)
		if fitted == 0 {
			return errNothingRemaining
		}
		session.PeriodCount = fitted

		current, err := s.sessions.ListByDate(ctx, tx, session.Date)
		if err != nil {
			return err
		}
		if err := checker.Check(session, current); err != nil {
			return err
		}
		return s.sessions.CreateBatch(ctx, tx, []models.Session{session})
	})
	return session, err
}

// persistedWarnings keeps the holiday warnings of the plan and recomputes near-completion
// warnings from a fresh read taken after the copies were written.
func (s *SessionService) persistedWarnings(ctx context.Context, propagator *scheduler.Propagator, planned scheduler.PropagationResult, week, all, created []models.Session) []models.PropagationWarning {
	warnings := make([]models.PropagationWarning, 0, len(planned.Warnings))
	holidaySkipped := make(map[string]struct{})
	for _, w := range planned.Warnings {
		if w.Kind == models.WarningHolidaySkipped {
			warnings = append(warnings, w)
		}
	}
	for _, skip := range planned.Skipped {
		if skip.Reason == scheduler.SkipHoliday {
			holidaySkipped[skip.SourceID] = struct{}{}
		}
	}

	members := make([]models.Session, 0, len(week))
	for _, session := range week {
		if _, skipped := holidaySkipped[session.ID]; !skipped && session.Kind == models.SessionKindClass {
			members = append(members, session)
		}
	}

	var ledger []models.Session
	history, err := s.progressHistory(ctx, members)
	if err != nil {
		s.logger.Warn("completion warnings fall back to the propagation snapshot", zap.Error(err))
		ledger = append(append(ledger, all...), created...)
	} else {
		for _, sessions := range history {
			ledger = append(ledger, sessions...)
		}
	}
	return append(warnings, propagator.NearCompletion(members, ledger)...)
}

func (s *SessionService) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit transaction")
	}
	return nil
}

// lockProgress takes the per class progress locks of a subject in ascending class order.
func (s *SessionService) lockProgress(ctx context.Context, tx *sqlx.Tx, subjectID string, classIDs []string) error {
	ordered := append([]string(nil), classIDs...)
	sort.Strings(ordered)
	for i, classID := range ordered {
		if i > 0 && ordered[i-1] == classID {
			continue
		}
		if err := s.sessions.LockProgress(ctx, tx, subjectID, classID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock subject progress")
		}
	}
	return nil
}

// groupClassIDs lists every class a joint group of the subject taught to classID may span.
func (s *SessionService) groupClassIDs(subject models.Subject, catalog scheduler.Catalog, classID string) []string {
	if !s.policy.IsShared(subject, catalog.Classes, classID) {
		return []string{classID}
	}
	ids := []string{classID}
	for _, class := range s.policy.SharedClasses(subject, catalog.Classes, classID) {
		if class.ID != classID {
			ids = append(ids, class.ID)
		}
	}
	return ids
}

func (s *SessionService) loadCatalog(ctx context.Context) (scheduler.Catalog, error) {
	var subjects []models.Subject
	var classes []models.Class
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		subjects, err = s.subjects.ListAll(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		classes, err = s.classes.ListAll(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return scheduler.Catalog{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable catalog")
	}
	return scheduler.NewCatalog(subjects, classes), nil
}

func (s *SessionService) findSession(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

func (s *SessionService) ensureNotHoliday(ctx context.Context, date time.Time) error {
	holiday, err := s.holidays.FindCovering(ctx, date)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check holidays")
	}
	if holiday != nil {
		return appErrors.Clone(appErrors.ErrHolidayBlocked, fmt.Sprintf("%s falls on holiday %q", date.Format(time.DateOnly), holiday.Name))
	}
	return nil
}

func (s *SessionService) targetClasses(subject models.Subject, catalog scheduler.Catalog, classID string, selected []string) ([]string, error) {
	ids := []string{classID}
	if len(selected) == 0 {
		return ids, nil
	}
	if !s.policy.IsShared(subject, catalog.Classes, classID) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s is not a shared subject", subject.Name))
	}
	allowed := make(map[string]struct{})
	for _, class := range s.policy.SharedClasses(subject, catalog.Classes, classID) {
		allowed[class.ID] = struct{}{}
	}
	for _, id := range selected {
		if containsString(ids, id) {
			continue
		}
		if _, ok := allowed[id]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("class %s cannot join %s", id, subject.Name))
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// checkAll runs the conflict checker for each candidate against the fresh read, ignoring
// rows in exclude and counting candidates already staged in this batch.
func (s *SessionService) checkAll(catalog scheduler.Catalog, candidates, current []models.Session, exclude []string) error {
	checker := scheduler.NewConflictChecker(s.policy, catalog)
	staged := make([]models.Session, 0, len(current)+len(candidates))
	for _, session := range current {
		if !containsString(exclude, session.ID) {
			staged = append(staged, session)
		}
	}
	for _, candidate := range candidates {
		if err := checker.Check(candidate, staged); err != nil {
			return s.checkError(err)
		}
		staged = append(staged, candidate)
	}
	return nil
}

func (s *SessionService) checkError(err error) error {
	var conflict *models.SessionConflictError
	if errors.As(err, &conflict) {
		s.metrics.RecordConflict(conflict.Resource)
		return appErrors.Wrap(conflict, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, conflict.Message)
	}
	if errors.Is(err, scheduler.ErrInvalidWindow) {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "conflict check failed")
}

// clampGroup fits the period count of each class member to what its curriculum still allows.
// The caller must hold the progress locks of every member class.
func (s *SessionService) clampGroup(ctx context.Context, exec sqlx.ExtContext, subject models.Subject, catalog scheduler.Catalog, members []models.Session) ([]dto.ClampNotice, error) {
	classIDs := make([]string, 0, len(members))
	for _, member := range members {
		classIDs = append(classIDs, member.ClassID)
	}
	history, err := s.sessions.ListForProgress(ctx, exec, subject.ID, classIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject progress")
	}

	var notices []dto.ClampNotice
	for i, member := range members {
		if member.Kind != models.SessionKindClass || member.Status == models.SessionStatusOff {
			continue
		}
		others := make([]models.Session, 0, len(history))
		for _, h := range history {
			if h.ID != member.ID {
				others = append(others, h)
			}
		}
		progress := scheduler.ProgressOf(subject.ID, member.ClassID, subject.TotalPeriods, others, member.Group)
		fitted, clamped := scheduler.FitPeriodCount(member.PeriodCount, progress.Remaining)
		if fitted == 0 {
			return nil, appErrors.Clone(appErrors.ErrNotEligible, fmt.Sprintf("%s has no remaining periods for %s", subject.Name, catalog.ClassName(member.ClassID)))
		}
		if clamped {
			notices = append(notices, dto.ClampNotice{ClassID: member.ClassID, Requested: member.PeriodCount, Applied: fitted})
			members[i].PeriodCount = fitted
		}
	}
	return notices, nil
}

func (s *SessionService) afterMutation(ctx context.Context, operation string, sessions []models.Session) {
	s.metrics.RecordMutation(operation, len(sessions))
	seen := make(map[string]struct{})
	for _, session := range sessions {
		if _, ok := seen[session.SubjectID]; ok {
			continue
		}
		seen[session.SubjectID] = struct{}{}
		_ = s.cache.InvalidateProgress(ctx, session.SubjectID)
	}
}

func applyPatch(member models.Session, req dto.UpdateSessionRequest, date *time.Time, addressed bool) models.Session {
	if req.TeacherID != nil {
		member.TeacherID = *req.TeacherID
	}
	if req.RoomID != nil {
		member.RoomID = *req.RoomID
	}
	if date != nil {
		member.Date = *date
	}
	if req.StartPeriod != nil {
		member.StartPeriod = *req.StartPeriod
	}
	if req.PeriodCount != nil {
		member.PeriodCount = *req.PeriodCount
	}
	if req.Status != nil {
		member.Status = *req.Status
	}
	if req.Note != nil && addressed {
		member.Note = *req.Note
	}
	return member
}

func notEligible(catalog scheduler.Catalog, subject models.Subject, classID string, kind models.SessionKind, e scheduler.Eligibility) error {
	className := catalog.ClassName(classID)
	switch {
	case kind == models.SessionKindClass:
		return appErrors.Clone(appErrors.ErrNotEligible, fmt.Sprintf("%s is already complete for %s", subject.Name, className))
	case e.ExamScheduled:
		return appErrors.Clone(appErrors.ErrNotEligible, fmt.Sprintf("an exam for %s is already scheduled for %s", subject.Name, className))
	default:
		return appErrors.Clone(appErrors.ErrNotEligible, fmt.Sprintf("%s still has %d periods remaining for %s", subject.Name, e.Progress.Remaining, className))
	}
}

func progressView(subjectID, classID string, group *string, e scheduler.Eligibility) dto.ProgressView {
	return dto.ProgressView{
		SubjectID:     subjectID,
		ClassID:       classID,
		Group:         group,
		Total:         e.Progress.Total,
		Learned:       e.Progress.Learned,
		Remaining:     e.Progress.Remaining,
		Finished:      e.Finished,
		Overridden:    e.Overridden,
		ExamScheduled: e.ExamScheduled,
	}
}

func parseDate(raw string) (time.Time, error) {
	date, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "dates must use YYYY-MM-DD")
	}
	return date, nil
}

func normaliseGroup(group *string) *string {
	if group == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*group)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func lockOrder(a, b time.Time) []time.Time {
	switch {
	case a.Equal(b):
		return []time.Time{a}
	case a.Before(b):
		return []time.Time{a, b}
	default:
		return []time.Time{b, a}
	}
}

func findByID(sessions []models.Session, id string) (models.Session, bool) {
	for _, session := range sessions {
		if session.ID == id {
			return session, true
		}
	}
	return models.Session{}, false
}

func hasClass(catalog scheduler.Catalog, classID string) bool {
	for _, class := range catalog.Classes {
		if class.ID == classID {
			return true
		}
	}
	return false
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
