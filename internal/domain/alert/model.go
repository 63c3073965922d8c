package alert

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeMissedDose    Type = "missed_dose"
	TypeLateDose      Type = "late_dose"
	TypeLowCompliance Type = "low_compliance"
	TypeTreatmentEnd  Type = "treatment_end"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type Alert struct {
	ID          uuid.UUID  `json:"id"`
	PatientID   uuid.UUID  `json:"patient_id"`
	TreatmentID *uuid.UUID `json:"treatment_id"`
	Type        Type       `json:"type"`
	Severity    Severity   `json:"severity"`
	Message     string     `json:"message"`
	IsRead      bool       `json:"is_read"`
	CreatedAt   time.Time  `json:"created_at"`
}

type Filter struct {
	// Caregiver limits alerts to patients of this caregiver; nil means all.
	Caregiver  *uuid.UUID
	PatientID  *uuid.UUID
	UnreadOnly bool
}
