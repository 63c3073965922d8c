// Package notification renders caregiver alert emails and delivers them
// over SMTP.
package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"
)

// EmailSender delivers a single plain-text email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

const (
	TemplateMissedDose    = "missed-dose"
	TemplateTreatmentEnd  = "treatment-ending"
	TemplateLowCompliance = "low-compliance"
	TemplateWelcome       = "caregiver-welcome"
)

type Template struct {
	ID      string
	Subject string
	Body    string
}

// TemplateEngine holds {{key}} templates keyed by ID.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]Template
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]Template)}
	for _, t := range []Template{
		{
			ID:      TemplateMissedDose,
			Subject: "Missed dose: {{patient_name}}",
			Body:    "{{patient_name}} missed the {{scheduled_time}} dose of {{medication}} ({{dosage}}).",
		},
		{
			ID:      TemplateTreatmentEnd,
			Subject: "Treatment ending: {{patient_name}}",
			Body:    "The {{medication}} treatment for {{patient_name}} ends on {{end_date}}.",
		},
		{
			ID:      TemplateLowCompliance,
			Subject: "Low compliance: {{patient_name}}",
			Body:    "Compliance for {{patient_name}} on {{medication}} dropped to {{rate}}% over the last {{days}} days.",
		},
		{
			ID:      TemplateWelcome,
			Subject: "Welcome to PillCare 360",
			Body:    "Hello {{name}}, your caregiver account is ready.",
		},
	} {
		e.templates[t.ID] = t
	}
	return e
}

func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = t
}

// Render substitutes data into the template. Placeholders without data
// are left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject, body = t.Subject, t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

// Notifier renders a template and hands it to the configured sender.
type Notifier struct {
	sender    EmailSender
	templates *TemplateEngine
	logger    zerolog.Logger
}

func NewNotifier(sender EmailSender, templates *TemplateEngine, logger zerolog.Logger) *Notifier {
	if templates == nil {
		templates = NewTemplateEngine()
	}
	return &Notifier{sender: sender, templates: templates, logger: logger}
}

func (n *Notifier) Send(ctx context.Context, templateID, recipient string, data map[string]string) error {
	if recipient == "" {
		return nil
	}
	subject, body, err := n.templates.Render(templateID, data)
	if err != nil {
		return fmt.Errorf("render template: %w", err)
	}
	if err := n.sender.SendEmail(ctx, recipient, subject, body); err != nil {
		n.logger.Error().Err(err).Str("template", templateID).Str("to", recipient).Msg("email delivery failed")
		return err
	}
	n.logger.Debug().Str("template", templateID).Str("to", recipient).Msg("email sent")
	return nil
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	Timeout  time.Duration
}

// SMTPSender sends mail through gomail. Dialing happens per message.
type SMTPSender struct {
	cfg    SMTPConfig
	dialer *gomail.Dialer
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SMTPSender{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
	}
}

func (s *SMTPSender) SendEmail(ctx context.Context, to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", s.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(msg)
	}()

	wait := s.cfg.Timeout
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 && d < wait {
			wait = d
		}
	}

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send to %s: %w", to, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return context.DeadlineExceeded
	}
}

// LogSender writes emails to the log instead of sending them. Used when
// SMTP is not configured.
type LogSender struct {
	Logger zerolog.Logger
}

func (s LogSender) SendEmail(_ context.Context, to, subject, _ string) error {
	s.Logger.Info().Str("to", to).Str("subject", subject).Msg("smtp disabled, email not sent")
	return nil
}

type EmailCall struct {
	To      string
	Subject string
	Body    string
}

// MockEmailSender records calls for tests.
type MockEmailSender struct {
	mu    sync.Mutex
	calls []EmailCall
	Err   error
}

func (m *MockEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, EmailCall{To: to, Subject: subject, Body: body})
	return m.Err
}

func (m *MockEmailSender) Calls() []EmailCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmailCall, len(m.calls))
	copy(out, m.calls)
	return out
}
