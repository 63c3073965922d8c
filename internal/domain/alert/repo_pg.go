package alert

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

const alertCols = `id, patient_id, treatment_id, type, severity, message, is_read, created_at`

// ownedBy restricts a statement on alerts to patients of caregiver.
const ownedBy = `patient_id IN (SELECT id FROM patients WHERE caregiver_id = $%d)`

func scanAlert(row pgx.Row) (*Alert, error) {
	var a Alert
	if err := row.Scan(&a.ID, &a.PatientID, &a.TreatmentID, &a.Type, &a.Severity,
		&a.Message, &a.IsRead, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repoPG) Create(ctx context.Context, a *Alert) error {
	a.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO alerts (id, patient_id, treatment_id, type, severity, message)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING is_read, created_at`,
		a.ID, a.PatientID, a.TreatmentID, a.Type, a.Severity, a.Message,
	).Scan(&a.IsRead, &a.CreatedAt)
}

func (r *repoPG) List(ctx context.Context, f Filter, skip, limit int) ([]*Alert, int, error) {
	q := db.NewSearchQuery("alerts", alertCols)
	if f.Caregiver != nil {
		q.Add(ownedBy, *f.Caregiver)
	}
	if f.PatientID != nil {
		q.Eq("patient_id", *f.PatientID)
	}
	if f.UnreadOnly {
		q.Add("NOT is_read")
	}
	q.OrderBy("created_at DESC, id")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count alerts: %w", err)
	}
	rows, err := r.conn(ctx).Query(ctx, q.DataSQL(limit, skip), q.DataArgs(limit, skip)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()
	items := []*Alert{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *repoPG) MarkRead(ctx context.Context, id uuid.UUID, caregiver *uuid.UUID) error {
	sql := `UPDATE alerts SET is_read = TRUE WHERE id = $1`
	args := []interface{}{id}
	if caregiver != nil {
		sql += " AND " + fmt.Sprintf(ownedBy, 2)
		args = append(args, *caregiver)
	}
	tag, err := r.conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) MarkAllRead(ctx context.Context, caregiver *uuid.UUID) (int, error) {
	sql := `UPDATE alerts SET is_read = TRUE WHERE NOT is_read`
	var args []interface{}
	if caregiver != nil {
		sql += " AND " + fmt.Sprintf(ownedBy, 1)
		args = append(args, *caregiver)
	}
	tag, err := r.conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *repoPG) Exists(ctx context.Context, treatmentID uuid.UUID, t Type, since time.Time) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM alerts WHERE treatment_id = $1 AND type = $2 AND created_at >= $3)`,
		treatmentID, t, since).Scan(&ok)
	return ok, err
}
