package treatment

import (
	"context"

	"github.com/google/uuid"

	"github.com/pillcare/pillcare/pkg/date"
)

// Repository persists treatments. GetByID returns ErrNotFound when the id
// does not resolve. A nil createdBy means every caregiver.
type Repository interface {
	Create(ctx context.Context, t *Treatment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Treatment, error)
	Update(ctx context.Context, t *Treatment) error
	List(ctx context.Context, f Filter, skip, limit int) ([]*Treatment, int, error)
	ListExpiring(ctx context.Context, createdBy *uuid.UUID, from, to date.Date) ([]*Treatment, error)
	CountByStatus(ctx context.Context, createdBy *uuid.UUID) (map[Status]int, error)
	TallyDoses(ctx context.Context, createdBy *uuid.UUID, day date.Date) (*DoseTally, error)
}

// References answers existence questions about rows a treatment points at.
type References interface {
	PatientExists(ctx context.Context, id uuid.UUID) (bool, error)
	MedicationExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// ConflictChecker decides whether adding a medication to a patient's
// regimen is unsafe. A nil Conflict means none was found.
type ConflictChecker interface {
	Check(ctx context.Context, patientID, medicationID uuid.UUID) (*Conflict, error)
}

type ConflictCheckerFunc func(ctx context.Context, patientID, medicationID uuid.UUID) (*Conflict, error)

func (f ConflictCheckerFunc) Check(ctx context.Context, patientID, medicationID uuid.UUID) (*Conflict, error) {
	return f(ctx, patientID, medicationID)
}

// NoConflicts never reports a conflict.
var NoConflicts ConflictChecker = ConflictCheckerFunc(func(context.Context, uuid.UUID, uuid.UUID) (*Conflict, error) {
	return nil, nil
})
