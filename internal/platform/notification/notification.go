// Package notification delivers workflow events (handoffs, critical triage
// alerts, certificate readiness) to staff over email or SMS. Dispatch is
// fire-and-forget: a delivery failure is reported in the summary and logged,
// it never blocks or fails the workflow transition that triggered it.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Channel is the delivery mechanism for a notification.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Notification is a single outbound message.
type Notification struct {
	ID         string            `json:"id"`
	Channel    Channel           `json:"channel"`
	Recipient  string            `json:"recipient"`
	Subject    string            `json:"subject,omitempty"`
	Body       string            `json:"body"`
	TemplateID string            `json:"template_id,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
	Status     string            `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
	SentAt     *time.Time        `json:"sent_at,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// EmailSender sends email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender sends SMS messages.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// LogEmailSender writes emails to the log instead of delivering them. Used
// until an SMTP relay is configured for the clinic.
type LogEmailSender struct {
	Logger zerolog.Logger
}

func (s *LogEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.Logger.Info().
		Str("channel", "email").
		Str("to", to).
		Str("subject", subject).
		Int("body_len", len(body)).
		Msg("notification delivered to log")
	return nil
}

// LogSMSSender writes SMS messages to the log instead of delivering them.
type LogSMSSender struct {
	Logger zerolog.Logger
}

func (s *LogSMSSender) SendSMS(_ context.Context, to, body string) error {
	s.Logger.Info().
		Str("channel", "sms").
		Str("to", to).
		Int("body_len", len(body)).
		Msg("notification delivered to log")
	return nil
}

// Template is a reusable notification template with {{key}} placeholders.
type Template struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Subject string  `json:"subject"`
	Body    string  `json:"body"`
	Channel Channel `json:"channel"`
}

// TemplateEngine stores templates and renders them with data maps.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the workflow templates
// pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      "station-handoff",
			Name:    "Station Handoff",
			Subject: "Patient ready at {{next_station}}",
			Body:    "Patient {{patient_id}} has completed {{from_station}} and is routed to {{next_station}}. Estimated wait: {{estimated_wait}}.",
			Channel: ChannelEmail,
		},
		{
			ID:      "critical-alert",
			Name:    "Critical Triage Alert",
			Subject: "URGENT: critical triage finding for patient {{patient_id}}",
			Body:    "Triage flagged: {{alert_message}}. Suggested action: {{suggested_action}}. Patient routed directly to the doctor.",
			Channel: ChannelSMS,
		},
		{
			ID:      "questionnaire-complete",
			Name:    "Questionnaire Complete",
			Subject: "Questionnaire complete for patient {{patient_id}}",
			Body:    "Patient {{patient_id}} finished the intake questionnaire ({{exam_type}}) and is waiting for station routing.",
			Channel: ChannelEmail,
		},
		{
			ID:      "certificate-ready",
			Name:    "Certificate Ready",
			Subject: "Fitness certificate ready for patient {{patient_id}}",
			Body:    "The journey for patient {{patient_id}} is complete. The fitness certificate can be issued at the certificate desk.",
			Channel: ChannelEmail,
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render performs {{key}} substitution. Unknown keys in the template are
// left in place.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (Template, error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return Template{}, fmt.Errorf("template %q not found", templateID)
	}

	out := *t
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		out.Subject = strings.ReplaceAll(out.Subject, placeholder, v)
		out.Body = strings.ReplaceAll(out.Body, placeholder, v)
	}
	return out, nil
}

// Recipient is one delivery target for a dispatch.
type Recipient struct {
	Channel Channel `json:"channel"`
	Address string  `json:"address"`
}

// DispatchResult summarises one dispatch across all recipients.
type DispatchResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
	Total  int `json:"total"`
}

// Dispatcher renders templates and fans a notification out to recipients.
type Dispatcher struct {
	email     EmailSender
	sms       SMSSender
	templates *TemplateEngine
	logger    zerolog.Logger

	mu   sync.RWMutex
	sent map[string]*Notification
}

func NewDispatcher(email EmailSender, sms SMSSender, templates *TemplateEngine, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		email:     email,
		sms:       sms,
		templates: templates,
		logger:    logger,
		sent:      make(map[string]*Notification),
	}
}

// Dispatch renders templateID with data and sends it to every recipient on
// that recipient's channel. Delivery errors are absorbed into the result and
// the log; the returned error covers only render failures.
func (d *Dispatcher) Dispatch(ctx context.Context, templateID string, data map[string]string, recipients []Recipient) (DispatchResult, error) {
	tpl, err := d.templates.Render(templateID, data)
	if err != nil {
		return DispatchResult{}, err
	}

	res := DispatchResult{Total: len(recipients)}
	for _, rcpt := range recipients {
		n := &Notification{
			ID:         uuid.New().String(),
			Channel:    rcpt.Channel,
			Recipient:  rcpt.Address,
			Subject:    tpl.Subject,
			Body:       tpl.Body,
			TemplateID: templateID,
			Data:       data,
			CreatedAt:  time.Now().UTC(),
		}

		var sendErr error
		switch rcpt.Channel {
		case ChannelEmail:
			sendErr = d.email.SendEmail(ctx, rcpt.Address, tpl.Subject, tpl.Body)
		case ChannelSMS:
			sendErr = d.sms.SendSMS(ctx, rcpt.Address, tpl.Body)
		default:
			sendErr = fmt.Errorf("unsupported channel %q", rcpt.Channel)
		}

		if sendErr != nil {
			n.Status = "failed"
			n.Error = sendErr.Error()
			res.Failed++
			d.logger.Warn().
				Err(sendErr).
				Str("template", templateID).
				Str("recipient", rcpt.Address).
				Msg("notification delivery failed")
		} else {
			n.Status = "sent"
			at := time.Now().UTC()
			n.SentAt = &at
			res.Sent++
		}

		d.mu.Lock()
		d.sent[n.ID] = n
		d.mu.Unlock()
	}
	return res, nil
}

// DispatchAsync runs Dispatch on its own goroutine with a bounded timeout,
// detached from the caller's context so a finished request cannot cancel
// delivery. The caller gets nothing back; outcomes land in the log.
func (d *Dispatcher) DispatchAsync(templateID string, data map[string]string, recipients []Recipient) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		res, err := d.Dispatch(ctx, templateID, data, recipients)
		if err != nil {
			d.logger.Warn().Err(err).Str("template", templateID).Msg("notification dispatch failed")
			return
		}
		d.logger.Info().
			Str("template", templateID).
			Int("sent", res.Sent).
			Int("failed", res.Failed).
			Int("total", res.Total).
			Msg("notification dispatched")
	}()
}

// Get retrieves a previously dispatched notification by id.
func (d *Dispatcher) Get(id string) (*Notification, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.sent[id]
	if !ok {
		return nil, fmt.Errorf("notification %q not found", id)
	}
	return n, nil
}

// Stats returns notification counts grouped by status.
func (d *Dispatcher) Stats() map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	stats := make(map[string]int)
	for _, n := range d.sent {
		stats[n.Status]++
	}
	return stats
}

// -- Test doubles --

// EmailCall records one SendEmail invocation.
type EmailCall struct {
	To      string
	Subject string
	Body    string
}

// MockEmailSender is a test double for EmailSender.
type MockEmailSender struct {
	mu         sync.Mutex
	calls      []EmailCall
	ShouldFail bool
}

func (m *MockEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, EmailCall{To: to, Subject: subject, Body: body})
	if m.ShouldFail {
		return errors.New("smtp unavailable")
	}
	return nil
}

// Calls returns a copy of the recorded calls.
func (m *MockEmailSender) Calls() []EmailCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmailCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// SMSCall records one SendSMS invocation.
type SMSCall struct {
	To   string
	Body string
}

// MockSMSSender is a test double for SMSSender.
type MockSMSSender struct {
	mu         sync.Mutex
	calls      []SMSCall
	ShouldFail bool
}

func (m *MockSMSSender) SendSMS(_ context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, SMSCall{To: to, Body: body})
	if m.ShouldFail {
		return errors.New("sms gateway unavailable")
	}
	return nil
}

// Calls returns a copy of the recorded calls.
func (m *MockSMSSender) Calls() []SMSCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SMSCall, len(m.calls))
	copy(out, m.calls)
	return out
}
