package alarm

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pillcare/pillcare/internal/platform/db"
	"github.com/pillcare/pillcare/pkg/date"
)

var (
	ErrNotFound          = errors.New("alarm not found")
	ErrTreatmentNotFound = errors.New("treatment not found")
)

type Service struct {
	repo   Repository
	tx     db.Transactor
	logger zerolog.Logger
}

func NewService(repo Repository, tx db.Transactor, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		tx:     tx,
		logger: logger.With().Str("component", "alarm").Logger(),
	}
}

func (s *Service) requireTreatment(ctx context.Context, treatmentID uuid.UUID) error {
	ok, err := s.repo.TreatmentExists(ctx, treatmentID)
	if err != nil {
		return fmt.Errorf("check treatment: %w", err)
	}
	if !ok {
		return ErrTreatmentNotFound
	}
	return nil
}

func (s *Service) List(ctx context.Context, treatmentID uuid.UUID) ([]*Alarm, error) {
	if err := s.requireTreatment(ctx, treatmentID); err != nil {
		return nil, err
	}
	return s.repo.ListByTreatment(ctx, treatmentID)
}

func (s *Service) Create(ctx context.Context, treatmentID uuid.UUID, req *CreateRequest) (*Alarm, error) {
	if err := s.requireTreatment(ctx, treatmentID); err != nil {
		return nil, err
	}
	a := req.toAlarm(treatmentID)
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create alarm: %w", err)
	}
	s.logger.Info().Str("treatment_id", treatmentID.String()).Str("time", a.Time).Msg("alarm created")
	return a, nil
}

func (s *Service) Update(ctx context.Context, treatmentID, id uuid.UUID, req *UpdateRequest) (*Alarm, error) {
	a, err := s.repo.Get(ctx, treatmentID, id)
	if err != nil {
		return nil, err
	}
	req.apply(a)
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Delete(ctx context.Context, treatmentID, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, treatmentID, id); err != nil {
		return err
	}
	s.logger.Info().Str("treatment_id", treatmentID.String()).Str("alarm_id", id.String()).Msg("alarm deleted")
	return nil
}

// Sync replaces every alarm of the treatment with reqs in one transaction.
func (s *Service) Sync(ctx context.Context, treatmentID uuid.UUID, reqs []CreateRequest) ([]*Alarm, error) {
	if err := s.requireTreatment(ctx, treatmentID); err != nil {
		return nil, err
	}
	out := make([]*Alarm, 0, len(reqs))
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.DeleteByTreatment(ctx, treatmentID); err != nil {
			return fmt.Errorf("clear alarms: %w", err)
		}
		for i := range reqs {
			a := reqs[i].toAlarm(treatmentID)
			if err := s.repo.Create(ctx, a); err != nil {
				return fmt.Errorf("create alarm %d: %w", i, err)
			}
			out = append(out, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("treatment_id", treatmentID.String()).Int("alarms", len(out)).Msg("alarms synced")
	return out, nil
}

// Due returns the alarms that fire at hhmm on day.
func (s *Service) Due(ctx context.Context, day date.Date, hhmm string) ([]*Due, error) {
	return s.repo.ListDue(ctx, day, hhmm)
}
