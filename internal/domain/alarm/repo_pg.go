package alarm

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

const alarmCols = `a.id, a.treatment_id, a.time, a.is_active, a.sound_enabled, a.visual_enabled,
	COALESCE(a.description, ''), a.created_at, a.updated_at`

func scanAlarm(row pgx.Row, extra ...interface{}) (*Alarm, error) {
	var a Alarm
	dest := append([]interface{}{&a.ID, &a.TreatmentID, &a.Time, &a.IsActive, &a.SoundEnabled,
		&a.VisualEnabled, &a.Description, &a.CreatedAt, &a.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repoPG) Create(ctx context.Context, a *Alarm) error {
	a.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO alarms (id, treatment_id, time, is_active, sound_enabled, visual_enabled, description)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		a.ID, a.TreatmentID, a.Time, a.IsActive, a.SoundEnabled, a.VisualEnabled, a.Description,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *repoPG) Get(ctx context.Context, treatmentID, id uuid.UUID) (*Alarm, error) {
	a, err := scanAlarm(r.conn(ctx).QueryRow(ctx,
		`SELECT `+alarmCols+` FROM alarms a WHERE a.id = $1 AND a.treatment_id = $2`, id, treatmentID))
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	return a, err
}

func (r *repoPG) Update(ctx context.Context, a *Alarm) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE alarms SET time=$3, is_active=$4, sound_enabled=$5, visual_enabled=$6,
			description=$7, updated_at=NOW()
		WHERE id = $1 AND treatment_id = $2
		RETURNING updated_at`,
		a.ID, a.TreatmentID, a.Time, a.IsActive, a.SoundEnabled, a.VisualEnabled, a.Description,
	).Scan(&a.UpdatedAt)
	if db.IsNoRows(err) {
		return ErrNotFound
	}
	return err
}

func (r *repoPG) Delete(ctx context.Context, treatmentID, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM alarms WHERE id = $1 AND treatment_id = $2`, id, treatmentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListByTreatment(ctx context.Context, treatmentID uuid.UUID) ([]*Alarm, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+alarmCols+` FROM alarms a WHERE a.treatment_id = $1 ORDER BY a.time, a.id`, treatmentID)
	if err != nil {
		return nil, fmt.Errorf("list alarms: %w", err)
	}
	defer rows.Close()
	items := []*Alarm{}
	for rows.Next() {
		a, err := scanAlarm(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *repoPG) DeleteByTreatment(ctx context.Context, treatmentID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM alarms WHERE treatment_id = $1`, treatmentID)
	return err
}

func (r *repoPG) ListDue(ctx context.Context, day date.Date, hhmm string) ([]*Due, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+alarmCols+`, t.patient_id
		FROM alarms a JOIN treatments t ON t.id = a.treatment_id
		WHERE a.is_active AND a.time = $1 AND t.status = 'active'
			AND $2 BETWEEN t.start_date AND t.end_date
		ORDER BY a.id`, hhmm, day)
	if err != nil {
		return nil, fmt.Errorf("list due alarms: %w", err)
	}
	defer rows.Close()
	var items []*Due
	for rows.Next() {
		var patientID uuid.UUID
		a, err := scanAlarm(rows, &patientID)
		if err != nil {
			return nil, err
		}
		items = append(items, &Due{Alarm: *a, PatientID: patientID})
	}
	return items, rows.Err()
}

func (r *repoPG) TreatmentExists(ctx context.Context, treatmentID uuid.UUID) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM treatments WHERE id = $1)`, treatmentID).Scan(&ok)
	return ok, err
}
