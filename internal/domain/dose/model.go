package dose

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusTaken   Status = "taken"
	StatusMissed  Status = "missed"
	StatusPending Status = "pending"
	StatusSnoozed Status = "snoozed"
)

// Record is one scheduled intake of a treatment and what happened to it.
type Record struct {
	ID            uuid.UUID  `json:"id"`
	TreatmentID   uuid.UUID  `json:"treatment_id"`
	PatientID     uuid.UUID  `json:"patient_id"`
	ScheduledTime time.Time  `json:"scheduled_time"`
	ActualTime    *time.Time `json:"actual_time"`
	Status        Status     `json:"status"`
	Notes         *string    `json:"notes"`
	CreatedAt     time.Time  `json:"created_at"`
}

// DelayMinutes is how late (positive) or early (negative) the dose was
// taken, or nil when it has no actual time.
func (r *Record) DelayMinutes() *int {
	if r.ActualTime == nil {
		return nil
	}
	m := int(r.ActualTime.Sub(r.ScheduledTime).Round(time.Minute) / time.Minute)
	return &m
}

// view is the JSON projection of a Record, adding the derived delay.
type view struct {
	*Record
	DelayMinutes *int `json:"delay_minutes"`
}

func (r *Record) toView() view {
	return view{Record: r, DelayMinutes: r.DelayMinutes()}
}

type RecordRequest struct {
	ScheduledTime time.Time  `json:"scheduled_time" validate:"required"`
	ActualTime    *time.Time `json:"actual_time"`
	Status        Status     `json:"status" validate:"required,oneof=taken missed pending snoozed"`
	Notes         *string    `json:"notes" validate:"omitempty,max=1000"`
}

// Range bounds a listing by scheduled time; zero ends are open.
type Range struct {
	From time.Time
	To   time.Time
}
