package compliance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pillcare/pillcare/pkg/date"
)

var (
	ErrTreatmentNotFound = errors.New("treatment not found")
	ErrInvalidPeriod     = errors.New("invalid period")
)

const (
	DefaultDays      = 30
	MaxDays          = 365
	DefaultThreshold = 80.0
)

type Service struct {
	repo      Repository
	threshold float64
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService builds the compliance service. Treatments whose rate falls
// below threshold percent are counted as needing attention.
func NewService(repo Repository, threshold float64, logger zerolog.Logger) *Service {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Service{
		repo:      repo,
		threshold: threshold,
		logger:    logger.With().Str("component", "compliance").Logger(),
		now:       time.Now,
	}
}

// Report measures the treatment over the last days days, today included.
// Only days inside the treatment dates are scheduled.
func (s *Service) Report(ctx context.Context, treatmentID uuid.UUID, days int) (*Report, error) {
	if days < 1 || days > MaxDays {
		return nil, fmt.Errorf("%w: days must be between 1 and %d", ErrInvalidPeriod, MaxDays)
	}
	w, err := s.repo.Window(ctx, treatmentID)
	if err != nil {
		return nil, err
	}
	end := date.Of(s.now())
	start := end.AddDays(-(days - 1))
	rep := &Report{
		TreatmentID: w.TreatmentID,
		PatientID:   w.PatientID,
		PeriodStart: start,
		PeriodEnd:   end,
		TotalDays:   days,
		Daily:       []Day{},
	}
	from, to, ok := w.overlap(start, end)
	if !ok {
		return rep, nil
	}
	counts, err := s.repo.DailyCounts(ctx, treatmentID, from, to)
	if err != nil {
		return nil, err
	}
	byDay := make(map[string]DayCount, len(counts))
	for _, c := range counts {
		byDay[c.Day.String()] = c
	}
	for d := from; !d.After(to); d = d.AddDays(1) {
		c := byDay[d.String()]
		rep.Daily = append(rep.Daily, Day{
			Date:      d,
			Scheduled: w.Frequency,
			Taken:     c.Taken,
			Missed:    c.Missed,
			Rate:      rate(c.Taken, w.Frequency),
		})
		rep.ScheduledDoses += w.Frequency
		rep.TakenDoses += c.Taken
		rep.MissedDoses += c.Missed
	}
	rep.ComplianceRate = rate(rep.TakenDoses, rep.ScheduledDoses)
	return rep, nil
}

// Stats summarises the treatment's progress up to today.
func (s *Service) Stats(ctx context.Context, treatmentID uuid.UUID) (*Stats, error) {
	w, err := s.repo.Window(ctx, treatmentID)
	if err != nil {
		return nil, err
	}
	tot, err := s.repo.Totals(ctx, treatmentID)
	if err != nil {
		return nil, err
	}
	today := date.Of(s.now())
	st := &Stats{
		TreatmentID: treatmentID,
		TotalDays:   w.StartDate.DaysUntil(w.EndDate) + 1,
		Taken:       tot.Taken,
		Missed:      tot.Missed,
		Pending:     tot.Pending,
	}
	if !today.Before(w.StartDate) {
		st.DaysCompleted = min(w.StartDate.DaysUntil(today)+1, st.TotalDays)
	}
	st.DaysRemaining = max(today.DaysUntil(w.EndDate), 0)
	st.Scheduled = w.Frequency * st.DaysCompleted
	st.ComplianceRate = rate(st.Taken, st.Scheduled)
	return st, nil
}

// Analytics aggregates compliance across every treatment matching f.
func (s *Service) Analytics(ctx context.Context, f AnalyticsFilter) (*Analytics, error) {
	if f.To.IsZero() {
		f.To = date.Of(s.now())
	}
	if f.From.IsZero() {
		f.From = f.To.AddDays(-(DefaultDays - 1))
	}
	if f.From.After(f.To) {
		return nil, fmt.Errorf("%w: start_date after end_date", ErrInvalidPeriod)
	}
	rows, err := s.repo.Counts(ctx, f)
	if err != nil {
		return nil, err
	}
	out := &Analytics{
		PeriodStart: f.From,
		PeriodEnd:   f.To,
		Treatments:  make([]*TreatmentCompliance, 0, len(rows)),
		Threshold:   s.threshold,
	}
	for _, r := range rows {
		tc := &TreatmentCompliance{
			TreatmentID: r.TreatmentID,
			PatientID:   r.PatientID,
			Scheduled:   r.scheduledIn(f.From, f.To),
			Taken:       r.Taken,
			Missed:      r.Missed,
		}
		tc.ComplianceRate = rate(tc.Taken, tc.Scheduled)
		if tc.Scheduled > 0 && tc.ComplianceRate < s.threshold {
			out.NeedingAttention++
		}
		out.Treatments = append(out.Treatments, tc)
		out.Scheduled += tc.Scheduled
		out.Taken += tc.Taken
		out.Missed += tc.Missed
	}
	out.OverallRate = rate(out.Taken, out.Scheduled)
	return out, nil
}
