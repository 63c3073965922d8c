package alert

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Alert) error
	List(ctx context.Context, f Filter, skip, limit int) ([]*Alert, int, error)
	MarkRead(ctx context.Context, id uuid.UUID, caregiver *uuid.UUID) error
	MarkAllRead(ctx context.Context, caregiver *uuid.UUID) (int, error)
	// Exists reports whether an alert of type t was raised for the
	// treatment at or after since.
	Exists(ctx context.Context, treatmentID uuid.UUID, t Type, since time.Time) (bool, error)
}
