package patient

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/rs/zerolog"

	"github.com/pillcare/pillcare/pkg/date"
)

var (
	ErrNotFound         = errors.New("patient not found")
	ErrEmailTaken       = errors.New("a patient with this email already exists")
	ErrHasTreatments    = errors.New("patient still has treatments")
	ErrInvalidPhone     = errors.New("invalid phone number")
	ErrInvalidBirthDate = errors.New("invalid date of birth")
	ErrInvalidGender    = errors.New("invalid gender")
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "patient").Logger(),
		now:    time.Now,
	}
}

func (s *Service) Create(ctx context.Context, req *CreateRequest, caregiverID uuid.UUID) (*Patient, error) {
	p := req.toPatient()
	if err := s.checkBirthDate(p.DateOfBirth); err != nil {
		return nil, err
	}
	phone, err := NormalizePhone(p.Phone)
	if err != nil {
		return nil, err
	}
	p.Phone = phone
	if caregiverID != uuid.Nil {
		p.CaregiverID = &caregiverID
	}
	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("create patient: %w", err)
	}
	s.logger.Info().Str("patient_id", p.ID.String()).Msg("patient created")
	return p, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns the patients of caregiver, or every patient when caregiver
// is nil.
func (s *Service) List(ctx context.Context, caregiver *uuid.UUID, f ListFilter, skip, limit int) ([]*Patient, int, error) {
	if f.Gender != "" && f.Gender != GenderMale && f.Gender != GenderFemale && f.Gender != GenderOther {
		return nil, 0, fmt.Errorf("%w: %s", ErrInvalidGender, f.Gender)
	}
	return s.repo.List(ctx, caregiver, f, skip, limit)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req *UpdateRequest) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	req.apply(p)
	if req.Phone != nil {
		if p.Phone, err = NormalizePhone(p.Phone); err != nil {
			return nil, err
		}
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info().Str("patient_id", id.String()).Msg("patient updated")
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("patient_id", id.String()).Msg("patient deleted")
	return nil
}

func (s *Service) Stats(ctx context.Context, id uuid.UUID) (*Stats, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	st, err := s.repo.Stats(ctx, id, date.Of(s.now()))
	if err != nil {
		return nil, err
	}
	if st.TotalDoses > 0 {
		st.ComplianceRate = math.Round(float64(st.TakenDoses)/float64(st.TotalDoses)*10000) / 100
	}
	return st, nil
}

func (s *Service) checkBirthDate(born date.Date) error {
	today := date.Of(s.now())
	if born.After(today) {
		return fmt.Errorf("%w: date of birth cannot be in the future", ErrInvalidBirthDate)
	}
	if ageOn(born, today) > maxAgeYears {
		return fmt.Errorf("%w: age over %d years", ErrInvalidBirthDate, maxAgeYears)
	}
	return nil
}

// NormalizePhone parses raw, reading numbers without a country code as
// DefaultRegion, and returns it in E.164 form.
func NormalizePhone(raw string) (string, error) {
	num, err := phonenumbers.Parse(raw, DefaultRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("%w: %s", ErrInvalidPhone, raw)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
