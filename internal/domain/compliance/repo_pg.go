package compliance

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pillcare/pillcare/internal/platform/db"
	"github.com/pillcare/pillcare/pkg/date"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *repoPG) Window(ctx context.Context, treatmentID uuid.UUID) (*Window, error) {
	var w Window
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, patient_id, frequency, start_date, end_date, status
		FROM treatments WHERE id = $1`, treatmentID,
	).Scan(&w.TreatmentID, &w.PatientID, &w.Frequency, &w.StartDate, &w.EndDate, &w.Status)
	if db.IsNoRows(err) {
		return nil, ErrTreatmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *repoPG) DailyCounts(ctx context.Context, treatmentID uuid.UUID, from, to date.Date) ([]DayCount, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT scheduled_time::date AS day,
			COUNT(*) FILTER (WHERE status = 'taken'),
			COUNT(*) FILTER (WHERE status = 'missed')
		FROM dose_records
		WHERE treatment_id = $1 AND scheduled_time::date BETWEEN $2 AND $3
		GROUP BY day ORDER BY day`, treatmentID, from, to)
	if err != nil {
		return nil, fmt.Errorf("daily dose counts: %w", err)
	}
	defer rows.Close()
	var out []DayCount
	for rows.Next() {
		var d DayCount
		if err := rows.Scan(&d.Day, &d.Taken, &d.Missed); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *repoPG) Totals(ctx context.Context, treatmentID uuid.UUID) (*Totals, error) {
	var t Totals
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE status = 'taken'),
			COUNT(*) FILTER (WHERE status = 'missed'),
			COUNT(*) FILTER (WHERE status = 'pending')
		FROM dose_records WHERE treatment_id = $1`, treatmentID,
	).Scan(&t.Taken, &t.Missed, &t.Pending)
	if err != nil {
		return nil, fmt.Errorf("dose totals: %w", err)
	}
	return &t, nil
}

func (r *repoPG) Counts(ctx context.Context, f AnalyticsFilter) ([]*TreatmentCounts, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT t.id, t.patient_id, t.frequency, t.start_date, t.end_date, t.status,
			COUNT(d.id) FILTER (WHERE d.status = 'taken'),
			COUNT(d.id) FILTER (WHERE d.status = 'missed')
		FROM treatments t
		LEFT JOIN dose_records d ON d.treatment_id = t.id
			AND d.scheduled_time::date BETWEEN $1 AND $2
		WHERE t.status IN ('active', 'completed')
			AND t.start_date <= $2 AND t.end_date >= $1
			AND ($3::uuid IS NULL OR t.created_by_id = $3)
			AND ($4::uuid IS NULL OR t.patient_id = $4)
		GROUP BY t.id
		ORDER BY t.created_at, t.id`, f.From, f.To, f.CreatedBy, f.PatientID)
	if err != nil {
		return nil, fmt.Errorf("compliance counts: %w", err)
	}
	defer rows.Close()
	var out []*TreatmentCounts
	for rows.Next() {
		var c TreatmentCounts
		if err := rows.Scan(&c.TreatmentID, &c.PatientID, &c.Frequency, &c.StartDate, &c.EndDate,
			&c.Status, &c.Taken, &c.Missed); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}
