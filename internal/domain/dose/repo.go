package dose

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *Record) error
	ListByTreatment(ctx context.Context, treatmentID uuid.UUID, rng Range) ([]*Record, error)
	// PatientOf returns the patient of the treatment or ErrTreatmentNotFound.
	PatientOf(ctx context.Context, treatmentID uuid.UUID) (uuid.UUID, error)
	// MarkMissed flips pending records scheduled before cutoff to missed and
	// returns them.
	MarkMissed(ctx context.Context, cutoff time.Time) ([]*Record, error)
}
