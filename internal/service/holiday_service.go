package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type holidayRepository interface {
	List(ctx context.Context, from, to *time.Time) ([]models.Holiday, error)
	FindCovering(ctx context.Context, date time.Time) (*models.Holiday, error)
	Create(ctx context.Context, holiday *models.Holiday) error
	Delete(ctx context.Context, id string) error
}

// HolidayService manages the holiday calendar that blocks scheduling.
type HolidayService struct {
	repo      holidayRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewHolidayService constructs a HolidayService.
func NewHolidayService(repo holidayRepository, validate *validator.Validate, logger *zap.Logger) *HolidayService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HolidayService{repo: repo, validator: validate, logger: logger}
}

// List returns holidays overlapping the optional YYYY-MM-DD range.
func (s *HolidayService) List(ctx context.Context, from, to string) ([]models.Holiday, error) {
	var fromDate, toDate *time.Time
	if from != "" {
		parsed, err := parseDate(from)
		if err != nil {
			return nil, err
		}
		fromDate = &parsed
	}
	if to != "" {
		parsed, err := parseDate(to)
		if err != nil {
			return nil, err
		}
		toDate = &parsed
	}
	holidays, err := s.repo.List(ctx, fromDate, toDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list holidays")
	}
	return holidays, nil
}

// HolidayFor returns the holiday covering date, or nil.
func (s *HolidayService) HolidayFor(ctx context.Context, date time.Time) (*models.Holiday, error) {
	holiday, err := s.repo.FindCovering(ctx, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check holidays")
	}
	return holiday, nil
}

// Create registers a holiday range.
func (s *HolidayService) Create(ctx context.Context, req dto.CreateHolidayRequest) (*models.Holiday, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid holiday payload")
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "endDate must not be before startDate")
	}

	holiday := &models.Holiday{Name: req.Name, StartDate: start, EndDate: end}
	if err := s.repo.Create(ctx, holiday); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create holiday")
	}
	s.logger.Info("holiday created", zap.String("holiday_id", holiday.ID), zap.String("name", holiday.Name))
	return holiday, nil
}

// Delete removes a holiday.
func (s *HolidayService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "holiday not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete holiday")
	}
	s.logger.Info("holiday deleted", zap.String("holiday_id", id))
	return nil
}
