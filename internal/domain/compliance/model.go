package compliance

import (
	"math"

	"github.com/google/uuid"

	"github.com/pillcare/pillcare/pkg/date"
)

// Window is the part of a treatment that compliance is measured against.
type Window struct {
	TreatmentID uuid.UUID
	PatientID   uuid.UUID
	Frequency   int
	StartDate   date.Date
	EndDate     date.Date
	Status      string
}

// overlap clips [from, to] to the treatment dates and reports whether any
// day remains.
func (w *Window) overlap(from, to date.Date) (date.Date, date.Date, bool) {
	if w.StartDate.After(from) {
		from = w.StartDate
	}
	if w.EndDate.Before(to) {
		to = w.EndDate
	}
	return from, to, !from.After(to)
}

// scheduledIn is frequency times the treatment days inside [from, to].
func (w *Window) scheduledIn(from, to date.Date) int {
	from, to, ok := w.overlap(from, to)
	if !ok {
		return 0
	}
	return w.Frequency * (from.DaysUntil(to) + 1)
}

type DayCount struct {
	Day    date.Date
	Taken  int
	Missed int
}

type Totals struct {
	Taken   int
	Missed  int
	Pending int
}

// TreatmentCounts is a window with its taken and missed doses in a period.
type TreatmentCounts struct {
	Window
	Taken  int
	Missed int
}

type Day struct {
	Date      date.Date `json:"date"`
	Scheduled int       `json:"scheduled"`
	Taken     int       `json:"taken"`
	Missed    int       `json:"missed"`
	Rate      float64   `json:"compliance_rate"`
}

type Report struct {
	TreatmentID    uuid.UUID `json:"treatment_id"`
	PatientID      uuid.UUID `json:"patient_id"`
	PeriodStart    date.Date `json:"period_start"`
	PeriodEnd      date.Date `json:"period_end"`
	TotalDays      int       `json:"total_days"`
	ScheduledDoses int       `json:"scheduled_doses"`
	TakenDoses     int       `json:"taken_doses"`
	MissedDoses    int       `json:"missed_doses"`
	ComplianceRate float64   `json:"compliance_rate"`
	Daily          []Day     `json:"daily_compliance"`
}

type Stats struct {
	TreatmentID    uuid.UUID `json:"treatment_id"`
	TotalDays      int       `json:"total_days"`
	DaysCompleted  int       `json:"days_completed"`
	DaysRemaining  int       `json:"days_remaining"`
	Scheduled      int       `json:"total_doses_scheduled"`
	Taken          int       `json:"total_doses_taken"`
	Missed         int       `json:"total_doses_missed"`
	Pending        int       `json:"total_doses_pending"`
	ComplianceRate float64   `json:"compliance_rate"`
}

type AnalyticsFilter struct {
	CreatedBy *uuid.UUID
	PatientID *uuid.UUID
	From      date.Date
	To        date.Date
}

type TreatmentCompliance struct {
	TreatmentID    uuid.UUID `json:"treatment_id"`
	PatientID      uuid.UUID `json:"patient_id"`
	Scheduled      int       `json:"scheduled_doses"`
	Taken          int       `json:"taken_doses"`
	Missed         int       `json:"missed_doses"`
	ComplianceRate float64   `json:"compliance_rate"`
}

type Analytics struct {
	PeriodStart      date.Date              `json:"period_start"`
	PeriodEnd        date.Date              `json:"period_end"`
	Treatments       []*TreatmentCompliance `json:"treatments"`
	Scheduled        int                    `json:"scheduled_doses"`
	Taken            int                    `json:"taken_doses"`
	Missed           int                    `json:"missed_doses"`
	OverallRate      float64                `json:"overall_compliance_rate"`
	Threshold        float64                `json:"threshold"`
	NeedingAttention int                    `json:"treatments_needing_attention"`
}

// rate is taken over scheduled as a percentage with two decimals, or 0
// when nothing was scheduled.
func rate(taken, scheduled int) float64 {
	if scheduled <= 0 {
		return 0
	}
	return math.Round(float64(taken)/float64(scheduled)*10000) / 100
}
