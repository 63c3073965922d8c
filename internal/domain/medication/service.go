package medication

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrNotFound  = errors.New("medication not found")
	ErrDuplicate = errors.New("a similar medication already exists")
	ErrInUse     = errors.New("medication is used by treatments")
	ErrInvalid   = errors.New("invalid medication filter")
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "medication").Logger(),
	}
}

func (s *Service) Create(ctx context.Context, req *CreateRequest) (*Medication, error) {
	m := req.toMedication()
	existing, err := s.repo.FindSimilar(ctx, m.Name, m.Dosage, m.Unit)
	if err != nil {
		return nil, fmt.Errorf("find similar medication: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicate, existing.FullName())
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("create medication: %w", err)
	}
	s.logger.Info().Str("medication_id", m.ID.String()).Str("name", m.FullName()).Msg("medication created")
	return m, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Medication, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter, skip, limit int) ([]*Medication, int, error) {
	if f.Unit != "" && !f.Unit.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown unit %q", ErrInvalid, f.Unit)
	}
	return s.repo.List(ctx, f, skip, limit)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req *UpdateRequest) (*Medication, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	req.apply(m)
	if err := s.repo.Update(ctx, m); err != nil {
		return nil, err
	}
	s.logger.Info().Str("medication_id", id.String()).Msg("medication updated")
	return m, nil
}

// Delete removes a medication that no active treatment uses. Treatments in
// other states still reference the row, so the store may refuse with
// ErrInUse as well.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	n, err := s.repo.ActiveTreatments(ctx, id)
	if err != nil {
		return fmt.Errorf("count treatments: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("%w: %d active treatments", ErrInUse, n)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("medication_id", id.String()).Msg("medication deleted")
	return nil
}

// Interactions checks id against each of others. Unknown ids in others are
// skipped.
func (s *Service) Interactions(ctx context.Context, id uuid.UUID, others []uuid.UUID) ([]*Interaction, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	out := []*Interaction{}
	for _, oid := range others {
		if oid == id {
			continue
		}
		other, err := s.repo.GetByID(ctx, oid)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if in := interactionBetween(m, other); in != nil {
			out = append(out, in)
		}
	}
	return out, nil
}
