package treatment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
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

const treatmentCols = `id, patient_id, medication_id, dosage, frequency, duration_days,
	start_date, end_date, instructions, notes, status, created_by_id, created_at, updated_at`

func scanTreatment(row pgx.Row) (*Treatment, error) {
	var t Treatment
	err := row.Scan(&t.ID, &t.PatientID, &t.MedicationID, &t.Dosage, &t.Frequency, &t.DurationDays,
		&t.StartDate, &t.EndDate, &t.Instructions, &t.Notes, &t.Status, &t.CreatedByID,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repoPG) Create(ctx context.Context, t *Treatment) error {
	t.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO treatments (id, patient_id, medication_id, dosage, frequency, duration_days,
			start_date, end_date, instructions, notes, status, created_by_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at`,
		t.ID, t.PatientID, t.MedicationID, t.Dosage, t.Frequency, t.DurationDays,
		t.StartDate, t.EndDate, t.Instructions, t.Notes, t.Status, t.CreatedByID,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Treatment, error) {
	t, err := scanTreatment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+treatmentCols+` FROM treatments WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	return t, err
}

func (r *repoPG) Update(ctx context.Context, t *Treatment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE treatments SET dosage=$2, frequency=$3, duration_days=$4, start_date=$5,
			end_date=$6, instructions=$7, notes=$8, status=$9, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		t.ID, t.Dosage, t.Frequency, t.DurationDays, t.StartDate,
		t.EndDate, t.Instructions, t.Notes, t.Status,
	).Scan(&t.UpdatedAt)
	if db.IsNoRows(err) {
		return ErrNotFound
	}
	return err
}

func (r *repoPG) List(ctx context.Context, f Filter, skip, limit int) ([]*Treatment, int, error) {
	q := db.NewSearchQuery("treatments", treatmentCols)
	if f.PatientID != nil {
		q.Eq("patient_id", *f.PatientID)
	}
	if f.Status != nil {
		q.Eq("status", *f.Status)
	}
	if f.MedicationID != nil {
		q.Eq("medication_id", *f.MedicationID)
	}
	q.OrderBy("created_at, id")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count treatments: %w", err)
	}
	items, err := r.query(ctx, q.DataSQL(limit, skip), q.DataArgs(limit, skip)...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repoPG) ListExpiring(ctx context.Context, createdBy *uuid.UUID, from, to date.Date) ([]*Treatment, error) {
	q := db.NewSearchQuery("treatments", treatmentCols)
	q.Eq("status", StatusActive)
	q.Add("end_date BETWEEN $%d AND $%d", from, to)
	if createdBy != nil {
		q.Eq("created_by_id", *createdBy)
	}
	q.OrderBy("end_date, id")
	return r.query(ctx, q.DataSQL(0, 0), q.DataArgs(0, 0)...)
}

func (r *repoPG) query(ctx context.Context, sql string, args ...interface{}) ([]*Treatment, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query treatments: %w", err)
	}
	defer rows.Close()
	var items []*Treatment
	for rows.Next() {
		t, err := scanTreatment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

func (r *repoPG) CountByStatus(ctx context.Context, createdBy *uuid.UUID) (map[Status]int, error) {
	sql := `SELECT status, COUNT(*) FROM treatments`
	var args []interface{}
	if createdBy != nil {
		sql += ` WHERE created_by_id = $1`
		args = append(args, *createdBy)
	}
	rows, err := r.conn(ctx).Query(ctx, sql+` GROUP BY status`, args...)
	if err != nil {
		return nil, fmt.Errorf("count treatments by status: %w", err)
	}
	defer rows.Close()
	counts := make(map[Status]int)
	for rows.Next() {
		var s Status
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		counts[s] = n
	}
	return counts, rows.Err()
}

func (r *repoPG) TallyDoses(ctx context.Context, createdBy *uuid.UUID, day date.Date) (*DoseTally, error) {
	sql := `
		SELECT
			COUNT(*) FILTER (WHERE d.scheduled_time::date = $1),
			COUNT(*) FILTER (WHERE d.scheduled_time::date = $1 AND d.status = 'missed'),
			COUNT(*) FILTER (WHERE d.status = 'taken'),
			COUNT(*) FILTER (WHERE d.status = 'missed')
		FROM dose_records d
		JOIN treatments t ON t.id = d.treatment_id
		WHERE t.status = 'active'`
	args := []interface{}{day}
	if createdBy != nil {
		sql += ` AND t.created_by_id = $2`
		args = append(args, *createdBy)
	}
	var tally DoseTally
	err := r.conn(ctx).QueryRow(ctx, sql, args...).
		Scan(&tally.Today, &tally.MissedToday, &tally.Taken, &tally.Missed)
	if err != nil {
		return nil, fmt.Errorf("tally doses: %w", err)
	}
	return &tally, nil
}

type referencesPG struct{ pool *pgxpool.Pool }

// NewReferencesPG checks patient and medication rows directly.
func NewReferencesPG(pool *pgxpool.Pool) References {
	return &referencesPG{pool: pool}
}

func (r *referencesPG) PatientExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1)`, id)
}

func (r *referencesPG) MedicationExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM medications WHERE id = $1)`, id)
}

func (r *referencesPG) exists(ctx context.Context, sql string, id uuid.UUID) (bool, error) {
	var ok bool
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, sql, id).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}
