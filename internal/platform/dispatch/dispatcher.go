// Package dispatch runs the reminder sweep. It publishes alarms that fell due
// since the previous sweep, closes overdue doses and raises caregiver alerts.
// Every date it derives comes from the sweep's UTC clock.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pillcare/pillcare/internal/domain/alarm"
	"github.com/pillcare/pillcare/internal/domain/alert"
	"github.com/pillcare/pillcare/internal/domain/dose"
	"github.com/pillcare/pillcare/internal/domain/treatment"
	"github.com/pillcare/pillcare/internal/platform/notification"
	"github.com/pillcare/pillcare/pkg/date"
)

type AlarmSource interface {
	Due(ctx context.Context, day date.Date, hhmm string) ([]*alarm.Due, error)
}

type DoseCloser interface {
	MarkMissed(ctx context.Context, grace time.Duration) ([]*dose.Record, error)
}

type TreatmentSource interface {
	EndingOn(ctx context.Context, day date.Date) ([]*treatment.Treatment, error)
}

type AlertRaiser interface {
	Raise(ctx context.Context, a *alert.Alert) error
	RaiseOnce(ctx context.Context, a *alert.Alert, since time.Time) (bool, error)
}

type Mailer interface {
	Send(ctx context.Context, templateID, recipient string, data map[string]string) error
}

// Reminder is the MQTT payload for one fired alarm.
type Reminder struct {
	AlarmID       uuid.UUID `json:"alarm_id"`
	TreatmentID   uuid.UUID `json:"treatment_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	Time          string    `json:"time"`
	SoundEnabled  bool      `json:"sound_enabled"`
	VisualEnabled bool      `json:"visual_enabled"`
	Description   string    `json:"description"`
	FiredAt       time.Time `json:"fired_at"`
}

const (
	// maxCatchUp bounds how many past minutes one sweep replays after a
	// stall or a long interval.
	maxCatchUp = time.Hour
	// maxAlertAttempts bounds retries of a missed-dose alert whose dose is
	// already marked missed.
	maxAlertAttempts = 5
)

// missedDose is a dose already marked missed whose alert still has to be
// raised.
type missedDose struct {
	Record   *dose.Record
	Attempts int
}

type Config struct {
	Interval    time.Duration
	Grace       time.Duration
	TopicPrefix string
}

// Dispatcher ties the sweep together. Mailer may be nil, in which case
// alerts are stored but not emailed.
type Dispatcher struct {
	cfg        Config
	alarms     AlarmSource
	doses      DoseCloser
	treatments TreatmentSource
	alerts     AlertRaiser
	directory  Directory
	publisher  Publisher
	mailer     Mailer
	logger     zerolog.Logger
	now        func() time.Time

	mu sync.Mutex
	// cursor is the last minute whose alarms were looked up.
	cursor time.Time
	retry  []*missedDose
}

func New(cfg Config, alarms AlarmSource, doses DoseCloser, treatments TreatmentSource, alerts AlertRaiser,
	directory Directory, publisher Publisher, mailer Mailer, logger zerolog.Logger) *Dispatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "pillcare"
	}
	return &Dispatcher{
		cfg:        cfg,
		alarms:     alarms,
		doses:      doses,
		treatments: treatments,
		alerts:     alerts,
		directory:  directory,
		publisher:  publisher,
		mailer:     mailer,
		logger:     logger.With().Str("component", "dispatch").Logger(),
		now:        time.Now,
	}
}

// Start sweeps once immediately and then every interval. It blocks until
// ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info().Dur("interval", d.cfg.Interval).Msg("reminder dispatcher started")
	d.Tick(ctx)

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("reminder dispatcher stopped")
			return
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Tick runs one sweep. Each step logs its own failures so one broken step
// does not hold back the others.
func (d *Dispatcher) Tick(ctx context.Context) {
	now := d.now().UTC()
	if err := d.publishDue(ctx, now); err != nil {
		d.logger.Error().Err(err).Msg("publish due alarms")
	}
	if err := d.closeMissed(ctx); err != nil {
		d.logger.Error().Err(err).Msg("mark missed doses")
	}
	if err := d.warnEnding(ctx, now); err != nil {
		d.logger.Error().Err(err).Msg("raise treatment end alerts")
	}
}

// publishDue looks up every minute since the previous sweep, so a long
// interval or a tick landing late in a minute does not skip alarms. The
// first sweep only covers the current minute.
func (d *Dispatcher) publishDue(ctx context.Context, now time.Time) error {
	current := now.Truncate(time.Minute)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cursor.IsZero() {
		d.cursor = current.Add(-time.Minute)
	}
	from := d.cursor.Add(time.Minute)
	if oldest := current.Add(-maxCatchUp); from.Before(oldest) {
		d.logger.Warn().Time("from", from).Time("to", oldest).Msg("reminder backlog skipped")
		from = oldest
	}
	for m := from; !m.After(current); m = m.Add(time.Minute) {
		if err := d.publishMinute(ctx, m, now); err != nil {
			return err
		}
		d.cursor = m
	}
	return nil
}

func (d *Dispatcher) publishMinute(ctx context.Context, minute, now time.Time) error {
	hhmm := minute.Format("15:04")
	due, err := d.alarms.Due(ctx, date.Of(minute), hhmm)
	if err != nil {
		return err
	}
	for _, a := range due {
		payload, err := json.Marshal(Reminder{
			AlarmID:       a.ID,
			TreatmentID:   a.TreatmentID,
			PatientID:     a.PatientID,
			Time:          a.Time,
			SoundEnabled:  a.SoundEnabled,
			VisualEnabled: a.VisualEnabled,
			Description:   a.Description,
			FiredAt:       now,
		})
		if err != nil {
			return err
		}
		topic := d.Topic(a.TreatmentID)
		if err := d.publisher.Publish(ctx, topic, payload); err != nil {
			d.logger.Error().Err(err).Str("topic", topic).Msg("reminder not published")
			continue
		}
	}
	if len(due) > 0 {
		d.logger.Info().Int("count", len(due)).Str("time", hhmm).Msg("reminders published")
	}
	return nil
}

// Topic is the MQTT topic reminders for a treatment are published on.
func (d *Dispatcher) Topic(treatmentID uuid.UUID) string {
	return d.cfg.TopicPrefix + "/alarms/" + treatmentID.String()
}

// closeMissed marks overdue doses missed and alerts on each. A dose whose
// alert fails stays queued for the next sweep, because MarkMissed will not
// return it again.
func (d *Dispatcher) closeMissed(ctx context.Context) error {
	d.mu.Lock()
	queue := d.retry
	d.retry = nil
	d.mu.Unlock()

	missed, markErr := d.doses.MarkMissed(ctx, d.cfg.Grace)
	for _, rec := range missed {
		queue = append(queue, &missedDose{Record: rec})
	}

	var retry []*missedDose
	for _, m := range queue {
		err := d.alertMissed(ctx, m.Record)
		if err == nil {
			continue
		}
		m.Attempts++
		log := d.logger.With().Err(err).Str("dose_id", m.Record.ID.String()).Int("attempt", m.Attempts).Logger()
		if errors.Is(err, ErrUnknownTreatment) || m.Attempts >= maxAlertAttempts {
			log.Error().Msg("missed dose alert dropped")
			continue
		}
		log.Warn().Msg("missed dose alert deferred")
		retry = append(retry, m)
	}

	d.mu.Lock()
	d.retry = append(d.retry, retry...)
	d.mu.Unlock()
	return markErr
}

func (d *Dispatcher) alertMissed(ctx context.Context, rec *dose.Record) error {
	c, err := d.directory.Lookup(ctx, rec.TreatmentID)
	if err != nil {
		return err
	}
	at := localClock(rec.ScheduledTime, c.Timezone)
	tid := rec.TreatmentID
	a := &alert.Alert{
		PatientID:   rec.PatientID,
		TreatmentID: &tid,
		Type:        alert.TypeMissedDose,
		Severity:    alert.SeverityHigh,
		Message:     fmt.Sprintf("%s missed the %s dose of %s (%s)", c.PatientName, at, c.MedicationName, c.Dosage),
	}
	if err := d.alerts.Raise(ctx, a); err != nil {
		return err
	}
	d.mail(ctx, notification.TemplateMissedDose, c.CaregiverEmail, map[string]string{
		"patient_name":   c.PatientName,
		"scheduled_time": at,
		"medication":     c.MedicationName,
		"dosage":         c.Dosage,
	})
	return nil
}

// warnEnding raises a single treatment_end alert for every active treatment
// whose last day is tomorrow.
func (d *Dispatcher) warnEnding(ctx context.Context, now time.Time) error {
	items, err := d.treatments.EndingOn(ctx, date.Of(now).AddDays(1))
	if err != nil {
		return err
	}
	for _, t := range items {
		c, err := d.directory.Lookup(ctx, t.ID)
		if err != nil {
			d.logger.Error().Err(err).Str("treatment_id", t.ID.String()).Msg("ending treatment without context")
			continue
		}
		tid := t.ID
		a := &alert.Alert{
			PatientID:   t.PatientID,
			TreatmentID: &tid,
			Type:        alert.TypeTreatmentEnd,
			Severity:    alert.SeverityLow,
			Message:     fmt.Sprintf("%s treatment for %s ends on %s", c.MedicationName, c.PatientName, t.EndDate),
		}
		raised, err := d.alerts.RaiseOnce(ctx, a, t.StartDate.Time)
		if err != nil {
			return err
		}
		if !raised {
			continue
		}
		d.mail(ctx, notification.TemplateTreatmentEnd, c.CaregiverEmail, map[string]string{
			"medication":   c.MedicationName,
			"patient_name": c.PatientName,
			"end_date":     t.EndDate.String(),
		})
	}
	return nil
}

func (d *Dispatcher) mail(ctx context.Context, templateID, to string, data map[string]string) {
	if d.mailer == nil || to == "" {
		return
	}
	if err := d.mailer.Send(ctx, templateID, to, data); err != nil {
		d.logger.Warn().Err(err).Str("template", templateID).Msg("alert email not sent")
	}
}

// localClock renders t as HH:MM in the patient's zone, falling back to UTC.
func localClock(t time.Time, tz string) string {
	loc, err := time.LoadLocation(tz)
	if err != nil || tz == "" {
		loc = time.UTC
	}
	return t.In(loc).Format("15:04")
}
