package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pillcare/pillcare/internal/platform/db"
)

var ErrUnknownTreatment = errors.New("treatment not found")

// Contact is what a reminder email needs to know about a treatment.
type Contact struct {
	PatientName    string
	Timezone       string
	MedicationName string
	Dosage         string
	CaregiverEmail string
}

// Directory resolves the people and medication behind a treatment.
type Directory interface {
	Lookup(ctx context.Context, treatmentID uuid.UUID) (*Contact, error)
}

type directoryPG struct{ pool *pgxpool.Pool }

func NewDirectoryPG(pool *pgxpool.Pool) Directory {
	return &directoryPG{pool: pool}
}

func (d *directoryPG) Lookup(ctx context.Context, treatmentID uuid.UUID) (*Contact, error) {
	var c Contact
	err := d.pool.QueryRow(ctx, `
		SELECT p.name, p.timezone, m.name, t.dosage, COALESCE(u.email, '')
		FROM treatments t
		JOIN patients p ON p.id = t.patient_id
		JOIN medications m ON m.id = t.medication_id
		LEFT JOIN users u ON u.id = p.caregiver_id AND u.is_active
		WHERE t.id = $1`, treatmentID,
	).Scan(&c.PatientName, &c.Timezone, &c.MedicationName, &c.Dosage, &c.CaregiverEmail)
	if db.IsNoRows(err) {
		return nil, ErrUnknownTreatment
	}
	if err != nil {
		return nil, fmt.Errorf("lookup treatment %s: %w", treatmentID, err)
	}
	return &c, nil
}
