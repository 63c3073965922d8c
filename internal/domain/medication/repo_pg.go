package medication

import (
	"context"
	"fmt"

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

const medicationCols = `id, name, description, dosage, unit, instructions, side_effects,
	contraindications, brand_name, generic_name, manufacturer, created_at, updated_at`

func scanMedication(row pgx.Row) (*Medication, error) {
	var m Medication
	err := row.Scan(&m.ID, &m.Name, &m.Description, &m.Dosage, &m.Unit, &m.Instructions,
		&m.SideEffects, &m.Contraindications, &m.BrandName, &m.GenericName, &m.Manufacturer,
		&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repoPG) Create(ctx context.Context, m *Medication) error {
	m.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medications (id, name, description, dosage, unit, instructions, side_effects,
			contraindications, brand_name, generic_name, manufacturer)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		m.ID, m.Name, m.Description, m.Dosage, m.Unit, m.Instructions, m.SideEffects,
		m.Contraindications, m.BrandName, m.GenericName, m.Manufacturer,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Medication, error) {
	m, err := scanMedication(r.conn(ctx).QueryRow(ctx,
		`SELECT `+medicationCols+` FROM medications WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	return m, err
}

func (r *repoPG) Update(ctx context.Context, m *Medication) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE medications SET name=$2, description=$3, dosage=$4, unit=$5, instructions=$6,
			side_effects=$7, contraindications=$8, brand_name=$9, generic_name=$10,
			manufacturer=$11, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		m.ID, m.Name, m.Description, m.Dosage, m.Unit, m.Instructions, m.SideEffects,
		m.Contraindications, m.BrandName, m.GenericName, m.Manufacturer,
	).Scan(&m.UpdatedAt)
	if db.IsNoRows(err) {
		return ErrNotFound
	}
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM medications WHERE id = $1`, id)
	if db.IsForeignKeyViolation(err) {
		return ErrInUse
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter, skip, limit int) ([]*Medication, int, error) {
	q := db.NewSearchQuery("medications", medicationCols)
	if f.Search != "" {
		q.Contains(f.Search, "name", "brand_name", "generic_name", "description")
	}
	if f.Unit != "" {
		q.Eq("unit", f.Unit)
	}
	q.OrderBy("name, id")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count medications: %w", err)
	}
	rows, err := r.conn(ctx).Query(ctx, q.DataSQL(limit, skip), q.DataArgs(limit, skip)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list medications: %w", err)
	}
	defer rows.Close()
	var items []*Medication
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}

func (r *repoPG) FindSimilar(ctx context.Context, name, dosage string, unit Unit) (*Medication, error) {
	m, err := scanMedication(r.conn(ctx).QueryRow(ctx,
		`SELECT `+medicationCols+` FROM medications
		WHERE LOWER(name) = LOWER($1) AND dosage = $2 AND unit = $3
		LIMIT 1`, name, dosage, unit))
	if db.IsNoRows(err) {
		return nil, nil
	}
	return m, err
}

func (r *repoPG) ActiveTreatments(ctx context.Context, id uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM treatments WHERE medication_id = $1 AND status = 'active'`, id,
	).Scan(&n)
	return n, err
}
