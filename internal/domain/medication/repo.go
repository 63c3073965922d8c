package medication

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, m *Medication) error
	GetByID(ctx context.Context, id uuid.UUID) (*Medication, error)
	Update(ctx context.Context, m *Medication) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter, skip, limit int) ([]*Medication, int, error)
	// FindSimilar returns a medication with the same name (ignoring case),
	// dosage and unit, or nil.
	FindSimilar(ctx context.Context, name, dosage string, unit Unit) (*Medication, error)
	// ActiveTreatments counts active treatments prescribing id.
	ActiveTreatments(ctx context.Context, id uuid.UUID) (int, error)
}
