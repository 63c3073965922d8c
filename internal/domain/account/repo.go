package account

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	SetPassword(ctx context.Context, id uuid.UUID, hashed string) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	TouchLastLogin(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, skip, limit int) ([]*User, int, error)
}
