package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrNotFound = errors.New("alert not found")

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "alert").Logger(),
	}
}

func (s *Service) List(ctx context.Context, f Filter, skip, limit int) ([]*Alert, int, error) {
	return s.repo.List(ctx, f, skip, limit)
}

func (s *Service) MarkRead(ctx context.Context, id uuid.UUID, caregiver *uuid.UUID) error {
	return s.repo.MarkRead(ctx, id, caregiver)
}

func (s *Service) MarkAllRead(ctx context.Context, caregiver *uuid.UUID) (int, error) {
	return s.repo.MarkAllRead(ctx, caregiver)
}

// Raise stores a new unread alert.
func (s *Service) Raise(ctx context.Context, a *Alert) error {
	if a.Severity == "" {
		a.Severity = SeverityMedium
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return fmt.Errorf("raise alert: %w", err)
	}
	s.logger.Info().Str("alert_id", a.ID.String()).Str("type", string(a.Type)).
		Str("patient_id", a.PatientID.String()).Msg("alert raised")
	return nil
}

// RaiseOnce raises a unless an alert of the same type already exists for
// its treatment since the given time. It reports whether a was stored.
func (s *Service) RaiseOnce(ctx context.Context, a *Alert, since time.Time) (bool, error) {
	if a.TreatmentID != nil {
		exists, err := s.repo.Exists(ctx, *a.TreatmentID, a.Type, since)
		if err != nil {
			return false, fmt.Errorf("check alert: %w", err)
		}
		if exists {
			return false, nil
		}
	}
	if err := s.Raise(ctx, a); err != nil {
		return false, err
	}
	return true, nil
}
