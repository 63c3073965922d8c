package dose

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pillcare/pillcare/pkg/date"
)

var (
	ErrTreatmentNotFound = errors.New("treatment not found")
	ErrInvalidRange      = errors.New("start_date must not be after end_date")
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "dose").Logger(),
		now:    time.Now,
	}
}

// Record stores what happened to one scheduled dose. A taken dose without
// an actual time is stamped with the current time.
func (s *Service) Record(ctx context.Context, treatmentID uuid.UUID, req *RecordRequest) (*Record, error) {
	patientID, err := s.repo.PatientOf(ctx, treatmentID)
	if err != nil {
		return nil, err
	}
	d := &Record{
		TreatmentID:   treatmentID,
		PatientID:     patientID,
		ScheduledTime: req.ScheduledTime,
		ActualTime:    req.ActualTime,
		Status:        req.Status,
		Notes:         req.Notes,
	}
	if d.Status == StatusTaken && d.ActualTime == nil {
		now := s.now()
		d.ActualTime = &now
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("record dose: %w", err)
	}
	s.logger.Info().Str("treatment_id", treatmentID.String()).Str("status", string(d.Status)).Msg("dose recorded")
	return d, nil
}

// List returns the treatment's records scheduled between the start and end
// days inclusive. Nil bounds are open.
func (s *Service) List(ctx context.Context, treatmentID uuid.UUID, start, end *date.Date) ([]*Record, error) {
	if start != nil && end != nil && start.After(*end) {
		return nil, ErrInvalidRange
	}
	if _, err := s.repo.PatientOf(ctx, treatmentID); err != nil {
		return nil, err
	}
	var rng Range
	if start != nil {
		rng.From = start.Time
	}
	if end != nil {
		rng.To = end.AddDays(1).Time
	}
	return s.repo.ListByTreatment(ctx, treatmentID, rng)
}

// MarkMissed closes every pending dose scheduled more than grace ago.
func (s *Service) MarkMissed(ctx context.Context, grace time.Duration) ([]*Record, error) {
	missed, err := s.repo.MarkMissed(ctx, s.now().Add(-grace))
	if err != nil {
		return nil, err
	}
	if len(missed) > 0 {
		s.logger.Info().Int("count", len(missed)).Msg("pending doses marked missed")
	}
	return missed, nil
}
