package account

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

const userCols = `id, email, name, hashed_password, role, is_active, phone, timezone, language,
	last_login, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.HashedPassword, &u.Role, &u.IsActive, &u.Phone,
		&u.Timezone, &u.Language, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *repoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (id, email, name, hashed_password, role, is_active, phone, timezone, language)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		u.ID, u.Email, u.Name, u.HashedPassword, u.Role, u.IsActive, u.Phone, u.Timezone, u.Language,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (r *repoPG) get(ctx context.Context, where string, arg interface{}) (*User, error) {
	u, err := scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE `+where, arg))
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	return u, err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.get(ctx, "id = $1", id)
}

func (r *repoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.get(ctx, "LOWER(email) = LOWER($1)", email)
}

func (r *repoPG) Update(ctx context.Context, u *User) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE users SET name=$2, phone=$3, timezone=$4, language=$5, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		u.ID, u.Name, u.Phone, u.Timezone, u.Language,
	).Scan(&u.UpdatedAt)
	if db.IsNoRows(err) {
		return ErrNotFound
	}
	return err
}

func (r *repoPG) exec(ctx context.Context, sql string, args ...interface{}) error {
	tag, err := r.conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) SetPassword(ctx context.Context, id uuid.UUID, hashed string) error {
	return r.exec(ctx, `UPDATE users SET hashed_password=$2, updated_at=NOW() WHERE id = $1`, id, hashed)
}

func (r *repoPG) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.exec(ctx, `UPDATE users SET is_active=$2, updated_at=NOW() WHERE id = $1`, id, active)
}

func (r *repoPG) TouchLastLogin(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, `UPDATE users SET last_login=NOW() WHERE id = $1`, id)
}

func (r *repoPG) List(ctx context.Context, skip, limit int) ([]*User, int, error) {
	q := db.NewSearchQuery("users", userCols)
	q.OrderBy("created_at, id")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	rows, err := r.conn(ctx).Query(ctx, q.DataSQL(limit, skip), q.DataArgs(limit, skip)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	items := []*User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, u)
	}
	return items, total, rows.Err()
}
