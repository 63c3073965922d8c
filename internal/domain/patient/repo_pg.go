package patient

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

const patientCols = `id, name, email, phone, date_of_birth, gender, address, emergency_contact,
	medical_history, allergies, caregiver_id, timezone, preferred_language, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Phone, &p.DateOfBirth, &p.Gender, &p.Address,
		&p.EmergencyContact, &p.MedicalHistory, &p.Allergies, &p.CaregiverID, &p.Timezone,
		&p.PreferredLanguage, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (id, name, email, phone, date_of_birth, gender, address,
			emergency_contact, medical_history, allergies, caregiver_id, timezone, preferred_language)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Email, p.Phone, p.DateOfBirth, p.Gender, p.Address,
		p.EmergencyContact, p.MedicalHistory, p.Allergies, p.CaregiverID, p.Timezone, p.PreferredLanguage,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	return p, err
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patients SET name=$2, email=$3, phone=$4, address=$5, emergency_contact=$6,
			medical_history=$7, allergies=$8, timezone=$9, preferred_language=$10, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.Name, p.Email, p.Phone, p.Address, p.EmergencyContact,
		p.MedicalHistory, p.Allergies, p.Timezone, p.PreferredLanguage,
	).Scan(&p.UpdatedAt)
	switch {
	case db.IsNoRows(err):
		return ErrNotFound
	case db.IsUniqueViolation(err):
		return ErrEmailTaken
	}
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if db.IsForeignKeyViolation(err) {
		return ErrHasTreatments
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, caregiver *uuid.UUID, f ListFilter, skip, limit int) ([]*Patient, int, error) {
	q := db.NewSearchQuery("patients", patientCols)
	if caregiver != nil {
		q.Eq("caregiver_id", *caregiver)
	}
	if f.Search != "" {
		q.Contains(f.Search, "name", "email")
	}
	if f.Gender != "" {
		q.Eq("gender", f.Gender)
	}
	q.OrderBy("name, id")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}
	rows, err := r.conn(ctx).Query(ctx, q.DataSQL(limit, skip), q.DataArgs(limit, skip)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *repoPG) Stats(ctx context.Context, id uuid.UUID, today date.Date) (*Stats, error) {
	var s Stats
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM treatments WHERE patient_id = $1),
			(SELECT COUNT(*) FROM treatments WHERE patient_id = $1 AND status = 'active' AND end_date >= $2),
			(SELECT COUNT(*) FROM treatments WHERE patient_id = $1 AND status = 'completed'),
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'taken'),
			COUNT(*) FILTER (WHERE status = 'missed'),
			MAX(actual_time) FILTER (WHERE status = 'taken'),
			MIN(scheduled_time) FILTER (WHERE status = 'pending' AND scheduled_time > NOW())
		FROM dose_records WHERE patient_id = $1`, id, today,
	).Scan(&s.TotalTreatments, &s.ActiveTreatments, &s.CompletedTreatments,
		&s.TotalDoses, &s.TakenDoses, &s.MissedDoses, &s.LastDoseTime, &s.NextDoseTime)
	if err != nil {
		return nil, fmt.Errorf("patient stats: %w", err)
	}
	return &s, nil
}
