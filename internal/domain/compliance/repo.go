package compliance

import (
	"context"

	"github.com/google/uuid"

	"github.com/pillcare/pillcare/pkg/date"
)

type Repository interface {
	Window(ctx context.Context, treatmentID uuid.UUID) (*Window, error)
	// DailyCounts groups the treatment's taken and missed doses by
	// scheduled day within [from, to]. Days without records are omitted.
	DailyCounts(ctx context.Context, treatmentID uuid.UUID, from, to date.Date) ([]DayCount, error)
	Totals(ctx context.Context, treatmentID uuid.UUID) (*Totals, error)
	// Counts returns active and completed treatments overlapping the filter
	// period with their dose counts inside it.
	Counts(ctx context.Context, f AnalyticsFilter) ([]*TreatmentCounts, error)
}
