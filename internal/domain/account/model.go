package account

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultTimezone = "America/Mexico_City"
	DefaultLanguage = "es"
)

// User is a login account. Caregivers own patients and treatments.
type User struct {
	ID             uuid.UUID  `json:"id"`
	Email          string     `json:"email"`
	Name           string     `json:"name"`
	HashedPassword string     `json:"-"`
	Role           string     `json:"role"`
	IsActive       bool       `json:"is_active"`
	Phone          *string    `json:"phone"`
	Timezone       string     `json:"timezone"`
	Language       string     `json:"language"`
	LastLogin      *time.Time `json:"last_login"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// RegisterRequest creates a caregiver or patient account. Admins are only
// created from the command line.
type RegisterRequest struct {
	Email           string  `json:"email" validate:"required,email,max=255"`
	Name            string  `json:"name" validate:"required,max=255"`
	Password        string  `json:"password" validate:"required,min=8,max=72"`
	ConfirmPassword string  `json:"confirm_password" validate:"required,eqfield=Password"`
	Role            string  `json:"role" validate:"omitempty,oneof=caregiver patient"`
	Phone           *string `json:"phone" validate:"omitempty,max=32"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	User        *User  `json:"user"`
}

// UpdateRequest carries the profile fields a user may change; nil means
// untouched.
type UpdateRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=255"`
	Phone    *string `json:"phone" validate:"omitempty,max=32"`
	Timezone *string `json:"timezone" validate:"omitempty,timezone"`
	Language *string `json:"language" validate:"omitempty,max=8"`
}

func (u *UpdateRequest) apply(usr *User) {
	if u.Name != nil {
		usr.Name = strings.TrimSpace(*u.Name)
	}
	if u.Phone != nil {
		usr.Phone = u.Phone
	}
	if u.Timezone != nil {
		usr.Timezone = *u.Timezone
	}
	if u.Language != nil {
		usr.Language = *u.Language
	}
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
