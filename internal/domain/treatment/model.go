package treatment

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pillcare/pillcare/pkg/date"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

var validStatuses = map[Status]bool{
	StatusActive: true, StatusSuspended: true, StatusCancelled: true, StatusCompleted: true,
}

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool { return validStatuses[s] }

// Treatment is a prescribed course of one medication for one patient.
type Treatment struct {
	ID           uuid.UUID  `json:"id"`
	PatientID    uuid.UUID  `json:"patient_id"`
	MedicationID uuid.UUID  `json:"medication_id"`
	Dosage       string     `json:"dosage"`
	Frequency    int        `json:"frequency"`
	DurationDays int        `json:"duration_days"`
	StartDate    date.Date  `json:"start_date"`
	EndDate      date.Date  `json:"end_date"`
	Instructions *string    `json:"instructions"`
	Notes        *string    `json:"notes"`
	Status       Status     `json:"status"`
	CreatedByID  *uuid.UUID `json:"created_by_id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsActive reports whether the treatment is active on day.
func (t *Treatment) IsActive(day date.Date) bool {
	return t.Status == StatusActive && !day.Before(t.StartDate) && !day.After(t.EndDate)
}

// CreateRequest is the inbound shape for a new treatment.
type CreateRequest struct {
	PatientID    uuid.UUID `json:"patient_id" validate:"required"`
	MedicationID uuid.UUID `json:"medication_id" validate:"required"`
	Dosage       string    `json:"dosage" validate:"required,notblank,max=100"`
	Frequency    int       `json:"frequency" validate:"required,min=1,max=24"`
	DurationDays int       `json:"duration_days" validate:"required,min=1,max=3650"`
	StartDate    date.Date `json:"start_date" validate:"required"`
	EndDate      date.Date `json:"end_date" validate:"required"`
	Instructions *string   `json:"instructions" validate:"omitempty,max=1000"`
	Notes        *string   `json:"notes" validate:"omitempty,max=1000"`
}

func (r *CreateRequest) toTreatment() *Treatment {
	return &Treatment{
		PatientID:    r.PatientID,
		MedicationID: r.MedicationID,
		Dosage:       strings.TrimSpace(r.Dosage),
		Frequency:    r.Frequency,
		DurationDays: r.DurationDays,
		StartDate:    r.StartDate,
		EndDate:      r.EndDate,
		Instructions: r.Instructions,
		Notes:        r.Notes,
	}
}

// UpdateRequest lists the mutable fields of a treatment. A nil field is
// left untouched.
type UpdateRequest struct {
	Dosage       *string    `json:"dosage" validate:"omitempty,notblank,max=100"`
	Frequency    *int       `json:"frequency" validate:"omitempty,min=1,max=24"`
	DurationDays *int       `json:"duration_days" validate:"omitempty,min=1,max=3650"`
	StartDate    *date.Date `json:"start_date"`
	EndDate      *date.Date `json:"end_date"`
	Instructions *string    `json:"instructions" validate:"omitempty,max=1000"`
	Notes        *string    `json:"notes" validate:"omitempty,max=1000"`
	Status       *Status    `json:"status" validate:"omitempty,oneof=active suspended cancelled completed"`
}

func (u *UpdateRequest) apply(t *Treatment) {
	if u.Dosage != nil {
		t.Dosage = strings.TrimSpace(*u.Dosage)
	}
	if u.Frequency != nil {
		t.Frequency = *u.Frequency
	}
	if u.DurationDays != nil {
		t.DurationDays = *u.DurationDays
	}
	if u.StartDate != nil {
		t.StartDate = *u.StartDate
	}
	if u.EndDate != nil {
		t.EndDate = *u.EndDate
	}
	if u.Instructions != nil {
		t.Instructions = u.Instructions
	}
	if u.Notes != nil {
		t.Notes = u.Notes
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
}

// Filter narrows a treatment query. Present fields are AND-ed.
type Filter struct {
	PatientID    *uuid.UUID
	Status       *Status
	MedicationID *uuid.UUID
}

// Conflict describes why a medication should not be added to a patient's
// regimen.
type Conflict struct {
	Message string `json:"message"`
}

// DoseTally counts dose records of active treatments. Today and
// MissedToday cover the given day; Taken and Missed cover all time.
type DoseTally struct {
	Today       int
	MissedToday int
	Taken       int
	Missed      int
}

type DashboardSummary struct {
	TotalTreatments       int     `json:"total_treatments"`
	ActiveTreatments      int     `json:"active_treatments"`
	CompletedTreatments   int     `json:"completed_treatments"`
	SuspendedTreatments   int     `json:"suspended_treatments"`
	CancelledTreatments   int     `json:"cancelled_treatments"`
	ExpiringSoon          int     `json:"expiring_soon"`
	DosesToday            int     `json:"doses_today"`
	MissedDosesToday      int     `json:"missed_doses_today"`
	OverallComplianceRate float64 `json:"overall_compliance_rate"`
}

// BulkError reports one rejected item of a bulk create by its position.
type BulkError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

type BulkResult struct {
	Created    int          `json:"created"`
	Failed     int          `json:"failed"`
	Treatments []*Treatment `json:"treatments"`
	Errors     []BulkError  `json:"errors"`
}

// appendNote adds line to notes on its own line, keeping what was there.
func appendNote(notes *string, line string) *string {
	if notes == nil || strings.TrimSpace(*notes) == "" {
		return &line
	}
	joined := *notes + "\n" + line
	return &joined
}
