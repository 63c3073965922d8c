package treatment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pillcare/pillcare/pkg/date"
)

var (
	ErrNotFound           = errors.New("treatment not found")
	ErrPatientNotFound    = errors.New("patient not found")
	ErrMedicationNotFound = errors.New("medication not found")
	ErrInvalidStatus      = errors.New("invalid treatment status")
	ErrInvalidDosage      = errors.New("dosage must not be blank")
)

// ConflictError is returned by Create when the conflict checker objects.
type ConflictError struct {
	Conflict Conflict
}

func (e *ConflictError) Error() string {
	return "conflict detected: " + e.Conflict.Message
}

// ExpiringSoonDays is the dashboard look-ahead for expiring treatments.
const ExpiringSoonDays = 7

type Service struct {
	repo      Repository
	refs      References
	conflicts ConflictChecker
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(repo Repository, refs References, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		refs:      refs,
		conflicts: NoConflicts,
		logger:    logger.With().Str("component", "treatment").Logger(),
		now:       time.Now,
	}
}

// SetConflictChecker replaces the default checker, which never objects.
func (s *Service) SetConflictChecker(c ConflictChecker) {
	if c == nil {
		c = NoConflicts
	}
	s.conflicts = c
}

func (s *Service) Create(ctx context.Context, req *CreateRequest, createdByID uuid.UUID) (*Treatment, error) {
	if strings.TrimSpace(req.Dosage) == "" {
		return nil, ErrInvalidDosage
	}
	ok, err := s.refs.PatientExists(ctx, req.PatientID)
	if err != nil {
		return nil, fmt.Errorf("check patient: %w", err)
	}
	if !ok {
		return nil, ErrPatientNotFound
	}
	ok, err = s.refs.MedicationExists(ctx, req.MedicationID)
	if err != nil {
		return nil, fmt.Errorf("check medication: %w", err)
	}
	if !ok {
		return nil, ErrMedicationNotFound
	}

	conflict, err := s.CheckMedicationConflicts(ctx, req.PatientID, req.MedicationID)
	if err != nil {
		return nil, err
	}
	if conflict != nil {
		return nil, &ConflictError{Conflict: *conflict}
	}

	t := req.toTreatment()
	t.Status = StatusActive
	if createdByID != uuid.Nil {
		t.CreatedByID = &createdByID
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create treatment: %w", err)
	}
	s.logger.Info().Str("treatment_id", t.ID.String()).
		Str("patient_id", t.PatientID.String()).Msg("treatment created")
	return t, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Treatment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Activate(ctx context.Context, id uuid.UUID) (*Treatment, error) {
	return s.transition(ctx, id, StatusActive, "")
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Treatment, error) {
	return s.transition(ctx, id, StatusCancelled, "")
}

// Suspend records the reason as a "Suspendido:" line in the notes.
func (s *Service) Suspend(ctx context.Context, id uuid.UUID, reason string) (*Treatment, error) {
	return s.transition(ctx, id, StatusSuspended, "Suspendido: "+reason)
}

// Complete records non-empty notes as a "Completado:" line.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, notes string) (*Treatment, error) {
	line := ""
	if notes != "" {
		line = "Completado: " + notes
	}
	return s.transition(ctx, id, StatusCompleted, line)
}

// transition overwrites the status whatever it was before.
func (s *Service) transition(ctx context.Context, id uuid.UUID, to Status, note string) (*Treatment, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := t.Status
	t.Status = to
	if note != "" {
		t.Notes = appendNote(t.Notes, note)
	}
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("update treatment status: %w", err)
	}
	s.logger.Info().Str("treatment_id", id.String()).
		Str("from", string(from)).Str("to", string(to)).Msg("treatment status changed")
	return t, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req *UpdateRequest) (*Treatment, error) {
	if req.Status != nil && !req.Status.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, *req.Status)
	}
	if req.Dosage != nil && strings.TrimSpace(*req.Dosage) == "" {
		return nil, ErrInvalidDosage
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	req.apply(t)
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("update treatment: %w", err)
	}
	return t, nil
}

// Query returns a page of treatments matching every present filter.
// caregiverID identifies the caller; rows are not restricted by it.
func (s *Service) Query(ctx context.Context, caregiverID uuid.UUID, f Filter, skip, limit int) ([]*Treatment, int, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = 100
	}
	if f.Status != nil && !f.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: %s", ErrInvalidStatus, *f.Status)
	}
	return s.repo.List(ctx, f, skip, limit)
}

// CheckMedicationConflicts asks the configured checker about adding
// medicationID to patientID's regimen.
func (s *Service) CheckMedicationConflicts(ctx context.Context, patientID, medicationID uuid.UUID) (*Conflict, error) {
	c, err := s.conflicts.Check(ctx, patientID, medicationID)
	if err != nil {
		return nil, fmt.Errorf("check medication conflicts: %w", err)
	}
	return c, nil
}

func (s *Service) ListActiveByPatient(ctx context.Context, patientID uuid.UUID) ([]*Treatment, error) {
	active := StatusActive
	items, _, err := s.repo.List(ctx, Filter{PatientID: &patientID, Status: &active}, 0, 0)
	return items, err
}

// Expiring lists active treatments ending between today and daysAhead days
// from now. A nil caregiver covers every caregiver.
func (s *Service) Expiring(ctx context.Context, caregiver *uuid.UUID, daysAhead int) ([]*Treatment, error) {
	if daysAhead < 0 {
		daysAhead = 0
	}
	today := date.Of(s.now())
	return s.repo.ListExpiring(ctx, caregiver, today, today.AddDays(daysAhead))
}

// EndingOn lists every active treatment whose last day is day. Callers
// that sweep on their own clock pass the day explicitly.
func (s *Service) EndingOn(ctx context.Context, day date.Date) ([]*Treatment, error) {
	return s.repo.ListExpiring(ctx, nil, day, day)
}

func (s *Service) DashboardSummary(ctx context.Context, caregiver *uuid.UUID) (*DashboardSummary, error) {
	counts, err := s.repo.CountByStatus(ctx, caregiver)
	if err != nil {
		return nil, err
	}
	expiring, err := s.Expiring(ctx, caregiver, ExpiringSoonDays)
	if err != nil {
		return nil, err
	}
	tally, err := s.repo.TallyDoses(ctx, caregiver, date.Of(s.now()))
	if err != nil {
		return nil, err
	}

	sum := &DashboardSummary{
		ActiveTreatments:    counts[StatusActive],
		CompletedTreatments: counts[StatusCompleted],
		SuspendedTreatments: counts[StatusSuspended],
		CancelledTreatments: counts[StatusCancelled],
		ExpiringSoon:        len(expiring),
		DosesToday:          tally.Today,
		MissedDosesToday:    tally.MissedToday,
	}
	for _, n := range counts {
		sum.TotalTreatments += n
	}
	if recorded := tally.Taken + tally.Missed; recorded > 0 {
		sum.OverallComplianceRate = math.Round(float64(tally.Taken)/float64(recorded)*10000) / 100
	}
	return sum, nil
}

// BulkCreate creates each item independently; one failure does not stop
// the rest.
func (s *Service) BulkCreate(ctx context.Context, reqs []CreateRequest, createdByID uuid.UUID) *BulkResult {
	res := &BulkResult{Treatments: []*Treatment{}, Errors: []BulkError{}}
	for i := range reqs {
		t, err := s.Create(ctx, &reqs[i], createdByID)
		if err != nil {
			res.Errors = append(res.Errors, BulkError{Index: i, Error: err.Error()})
			continue
		}
		res.Treatments = append(res.Treatments, t)
	}
	res.Created = len(res.Treatments)
	res.Failed = len(res.Errors)
	if res.Failed > 0 {
		s.logger.Warn().Int("created", res.Created).Int("failed", res.Failed).Msg("bulk create finished with errors")
	}
	return res
}
