package patient

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pillcare/pillcare/pkg/date"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

const (
	DefaultTimezone = "America/Mexico_City"
	DefaultLanguage = "es"
	// DefaultRegion is used to read phone numbers written without a
	// country code.
	DefaultRegion = "MX"
	maxAgeYears   = 120
)

type EmergencyContact struct {
	Name         string  `json:"name" validate:"required,max=255"`
	Phone        string  `json:"phone" validate:"required,min=10,max=20"`
	Relationship string  `json:"relationship" validate:"required,max=100"`
	Email        *string `json:"email,omitempty" validate:"omitempty,email"`
}

type Patient struct {
	ID                uuid.UUID        `json:"id"`
	Name              string           `json:"name"`
	Email             string           `json:"email"`
	Phone             string           `json:"phone"`
	DateOfBirth       date.Date        `json:"date_of_birth"`
	Gender            Gender           `json:"gender"`
	Address           string           `json:"address"`
	EmergencyContact  EmergencyContact `json:"emergency_contact"`
	MedicalHistory    []string         `json:"medical_history"`
	Allergies         []string         `json:"allergies"`
	CaregiverID       *uuid.UUID       `json:"caregiver_id"`
	Timezone          string           `json:"timezone"`
	PreferredLanguage string           `json:"preferred_language"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// AgeOn returns the patient's age in whole years on day.
func (p *Patient) AgeOn(day date.Date) int {
	return ageOn(p.DateOfBirth, day)
}

func ageOn(born, day date.Date) int {
	age := day.Year() - born.Year()
	if day.Month() < born.Month() || (day.Month() == born.Month() && day.Day() < born.Day()) {
		age--
	}
	return age
}

type CreateRequest struct {
	Name              string           `json:"name" validate:"required,max=255"`
	Email             string           `json:"email" validate:"required,email,max=255"`
	Phone             string           `json:"phone" validate:"required,min=10,max=20"`
	DateOfBirth       date.Date        `json:"date_of_birth" validate:"required"`
	Gender            Gender           `json:"gender" validate:"required,oneof=male female other"`
	Address           string           `json:"address" validate:"required"`
	EmergencyContact  EmergencyContact `json:"emergency_contact" validate:"required"`
	MedicalHistory    []string         `json:"medical_history"`
	Allergies         []string         `json:"allergies"`
	Timezone          string           `json:"timezone" validate:"omitempty,timezone"`
	PreferredLanguage string           `json:"preferred_language" validate:"omitempty,max=8"`
}

func (r *CreateRequest) toPatient() *Patient {
	p := &Patient{
		Name:              strings.TrimSpace(r.Name),
		Email:             strings.ToLower(strings.TrimSpace(r.Email)),
		Phone:             r.Phone,
		DateOfBirth:       r.DateOfBirth,
		Gender:            r.Gender,
		Address:           r.Address,
		EmergencyContact:  r.EmergencyContact,
		MedicalHistory:    cleanList(r.MedicalHistory),
		Allergies:         cleanList(r.Allergies),
		Timezone:          r.Timezone,
		PreferredLanguage: r.PreferredLanguage,
	}
	if p.Timezone == "" {
		p.Timezone = DefaultTimezone
	}
	if p.PreferredLanguage == "" {
		p.PreferredLanguage = DefaultLanguage
	}
	return p
}

// UpdateRequest carries the mutable patient fields; nil means untouched.
type UpdateRequest struct {
	Name              *string           `json:"name" validate:"omitempty,min=1,max=255"`
	Email             *string           `json:"email" validate:"omitempty,email,max=255"`
	Phone             *string           `json:"phone" validate:"omitempty,min=10,max=20"`
	Address           *string           `json:"address" validate:"omitempty,min=1"`
	EmergencyContact  *EmergencyContact `json:"emergency_contact"`
	MedicalHistory    []string          `json:"medical_history"`
	Allergies         []string          `json:"allergies"`
	Timezone          *string           `json:"timezone" validate:"omitempty,timezone"`
	PreferredLanguage *string           `json:"preferred_language" validate:"omitempty,max=8"`
}

func (u *UpdateRequest) apply(p *Patient) {
	if u.Name != nil {
		p.Name = strings.TrimSpace(*u.Name)
	}
	if u.Email != nil {
		p.Email = strings.ToLower(strings.TrimSpace(*u.Email))
	}
	if u.Phone != nil {
		p.Phone = *u.Phone
	}
	if u.Address != nil {
		p.Address = *u.Address
	}
	if u.EmergencyContact != nil {
		p.EmergencyContact = *u.EmergencyContact
	}
	if u.MedicalHistory != nil {
		p.MedicalHistory = cleanList(u.MedicalHistory)
	}
	if u.Allergies != nil {
		p.Allergies = cleanList(u.Allergies)
	}
	if u.Timezone != nil {
		p.Timezone = *u.Timezone
	}
	if u.PreferredLanguage != nil {
		p.PreferredLanguage = *u.PreferredLanguage
	}
}

type ListFilter struct {
	Search string
	Gender Gender
}

// Stats summarises a patient's treatments and dose history.
type Stats struct {
	TotalTreatments     int        `json:"total_treatments"`
	ActiveTreatments    int        `json:"active_treatments"`
	CompletedTreatments int        `json:"completed_treatments"`
	TotalDoses          int        `json:"total_doses_scheduled"`
	TakenDoses          int        `json:"total_doses_taken"`
	MissedDoses         int        `json:"total_doses_missed"`
	ComplianceRate      float64    `json:"compliance_rate"`
	LastDoseTime        *time.Time `json:"last_dose_time"`
	NextDoseTime        *time.Time `json:"next_dose_time"`
}

// cleanList drops blank entries and duplicates, keeping first-seen order.
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
