package alarm

import (
	"context"

	"github.com/google/uuid"

	"github.com/pillcare/pillcare/pkg/date"
)

type Repository interface {
	Create(ctx context.Context, a *Alarm) error
	// Get returns the alarm only when it belongs to treatmentID.
	Get(ctx context.Context, treatmentID, id uuid.UUID) (*Alarm, error)
	Update(ctx context.Context, a *Alarm) error
	Delete(ctx context.Context, treatmentID, id uuid.UUID) error
	ListByTreatment(ctx context.Context, treatmentID uuid.UUID) ([]*Alarm, error)
	DeleteByTreatment(ctx context.Context, treatmentID uuid.UUID) error
	// ListDue returns active alarms set to hhmm whose treatment is active
	// and runs on day.
	ListDue(ctx context.Context, day date.Date, hhmm string) ([]*Due, error)
	TreatmentExists(ctx context.Context, treatmentID uuid.UUID) (bool, error)
}
