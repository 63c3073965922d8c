package alarm

import (
	"time"

	"github.com/google/uuid"
)

// Alarm is a daily reminder at a wall-clock time for one treatment.
type Alarm struct {
	ID            uuid.UUID `json:"id"`
	TreatmentID   uuid.UUID `json:"treatment_id"`
	Time          string    `json:"time"`
	IsActive      bool      `json:"is_active"`
	SoundEnabled  bool      `json:"sound_enabled"`
	VisualEnabled bool      `json:"visual_enabled"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Due is an alarm that should fire now, with the patient it belongs to.
type Due struct {
	Alarm
	PatientID uuid.UUID `json:"patient_id"`
}

type CreateRequest struct {
	Time          string  `json:"time" validate:"required,hhmm"`
	IsActive      *bool   `json:"is_active"`
	SoundEnabled  *bool   `json:"sound_enabled"`
	VisualEnabled *bool   `json:"visual_enabled"`
	Description   *string `json:"description" validate:"omitempty,max=500"`
}

func (r *CreateRequest) toAlarm(treatmentID uuid.UUID) *Alarm {
	a := &Alarm{
		TreatmentID:   treatmentID,
		Time:          r.Time,
		IsActive:      boolOr(r.IsActive, true),
		SoundEnabled:  boolOr(r.SoundEnabled, true),
		VisualEnabled: boolOr(r.VisualEnabled, true),
	}
	if r.Description != nil {
		a.Description = *r.Description
	}
	return a
}

// UpdateRequest carries the mutable alarm fields; nil means untouched.
type UpdateRequest struct {
	Time          *string `json:"time" validate:"omitempty,hhmm"`
	IsActive      *bool   `json:"is_active"`
	SoundEnabled  *bool   `json:"sound_enabled"`
	VisualEnabled *bool   `json:"visual_enabled"`
	Description   *string `json:"description" validate:"omitempty,max=500"`
}

func (u *UpdateRequest) apply(a *Alarm) {
	if u.Time != nil {
		a.Time = *u.Time
	}
	if u.IsActive != nil {
		a.IsActive = *u.IsActive
	}
	if u.SoundEnabled != nil {
		a.SoundEnabled = *u.SoundEnabled
	}
	if u.VisualEnabled != nil {
		a.VisualEnabled = *u.VisualEnabled
	}
	if u.Description != nil {
		a.Description = *u.Description
	}
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
