package patient

import (
	"context"

	"github.com/google/uuid"

	"github.com/pillcare/pillcare/pkg/date"
)

// Repository persists patients. Missing rows surface as ErrNotFound and a
// duplicate email as ErrEmailTaken. A nil caregiver lists every patient.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, caregiver *uuid.UUID, f ListFilter, skip, limit int) ([]*Patient, int, error)
	Stats(ctx context.Context, id uuid.UUID, today date.Date) (*Stats, error)
}
