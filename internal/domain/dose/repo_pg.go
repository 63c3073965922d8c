package dose

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pillcare/pillcare/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const recordCols = `id, treatment_id, patient_id, scheduled_time, actual_time, status, notes, created_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var d Record
	if err := row.Scan(&d.ID, &d.TreatmentID, &d.PatientID, &d.ScheduledTime, &d.ActualTime,
		&d.Status, &d.Notes, &d.CreatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func collect(rows pgx.Rows) ([]*Record, error) {
	defer rows.Close()
	items := []*Record{}
	for rows.Next() {
		d, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *repoPG) Create(ctx context.Context, d *Record) error {
	d.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO dose_records (id, treatment_id, patient_id, scheduled_time, actual_time, status, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at`,
		d.ID, d.TreatmentID, d.PatientID, d.ScheduledTime, d.ActualTime, d.Status, d.Notes,
	).Scan(&d.CreatedAt)
}

func (r *repoPG) ListByTreatment(ctx context.Context, treatmentID uuid.UUID, rng Range) ([]*Record, error) {
	q := db.NewSearchQuery("dose_records", recordCols)
	q.Eq("treatment_id", treatmentID)
	if !rng.From.IsZero() {
		q.Add("scheduled_time >= $%d", rng.From)
	}
	if !rng.To.IsZero() {
		q.Add("scheduled_time < $%d", rng.To)
	}
	q.OrderBy("scheduled_time, id")
	rows, err := r.conn(ctx).Query(ctx, q.DataSQL(0, 0), q.DataArgs(0, 0)...)
	if err != nil {
		return nil, fmt.Errorf("list dose records: %w", err)
	}
	return collect(rows)
}

func (r *repoPG) PatientOf(ctx context.Context, treatmentID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT patient_id FROM treatments WHERE id = $1`, treatmentID).Scan(&id)
	if db.IsNoRows(err) {
		return uuid.Nil, ErrTreatmentNotFound
	}
	return id, err
}

func (r *repoPG) MarkMissed(ctx context.Context, cutoff time.Time) ([]*Record, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		UPDATE dose_records SET status = 'missed'
		WHERE status = 'pending' AND scheduled_time < $1
		RETURNING `+recordCols, cutoff)
	if err != nil {
		return nil, fmt.Errorf("mark missed doses: %w", err)
	}
	return collect(rows)
}
