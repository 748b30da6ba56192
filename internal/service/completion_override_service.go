package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type completionOverrideRepository interface {
	Get(ctx context.Context, subjectID, classID string) (*models.CompletionOverride, error)
	Upsert(ctx context.Context, override *models.CompletionOverride, expectedVersion int) error
}

// CompletionOverrideService reads and writes versioned manual completion records.
type CompletionOverrideService struct {
	repo      completionOverrideRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCompletionOverrideService constructs the service.
func NewCompletionOverrideService(repo completionOverrideRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *CompletionOverrideService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompletionOverrideService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// Get returns the override of a subject/class pair.
func (s *CompletionOverrideService) Get(ctx context.Context, subjectID, classID string) (*models.CompletionOverride, error) {
	if subjectID == "" || classID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subject_id and class_id are required")
	}
	override, err := s.repo.Get(ctx, subjectID, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load completion override")
	}
	if override == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "completion override not found")
	}
	return override, nil
}

// Set writes the override if nobody changed it since ExpectedVersion was read.
func (s *CompletionOverrideService) Set(ctx context.Context, req dto.SetCompletionOverrideRequest) (*models.CompletionOverride, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid completion override payload")
	}
	override := &models.CompletionOverride{
		SubjectID:       req.SubjectID,
		ClassID:         req.ClassID,
		ManualCompleted: req.ManualCompleted,
		PaidCompleted:   req.PaidCompleted,
		StatusOverride:  req.StatusOverride,
		UpdatedBy:       req.UpdatedBy,
	}
	if req.Meta != nil {
		raw, err := json.Marshal(req.Meta)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "meta must be a JSON object")
		}
		override.Meta = types.JSONText(raw)
	}

	if err := s.repo.Upsert(ctx, override, req.ExpectedVersion); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, appErrors.Wrap(err, appErrors.ErrPreconditionFailed.Code, appErrors.ErrPreconditionFailed.Status, "completion override was changed by someone else, reload and retry")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save completion override")
	}

	_ = s.cache.InvalidateProgress(ctx, req.SubjectID)
	s.logger.Info("completion override saved",
		zap.String("subject_id", override.SubjectID),
		zap.String("class_id", override.ClassID),
		zap.Int("version", override.Version),
		zap.Bool("completed", override.MarksComplete()),
	)
	return override, nil
}
