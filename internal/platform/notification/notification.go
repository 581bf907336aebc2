// Package notification delivers booking notifications and emails on a
// fire-and-forget contract. Callers hand a message to a Dispatcher and move
// on; delivery failures are logged here and never reach the caller.
package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event names a booking lifecycle notification. Each event has a template
// of the same id.
type Event string

const (
	EventBookingRequested   Event = "booking-requested"
	EventBookingConfirmed   Event = "booking-confirmed"
	EventBookingCancelled   Event = "booking-cancelled"
	EventBookingRescheduled Event = "booking-rescheduled"
	EventBookingCompleted   Event = "booking-completed"
	EventSessionReminder    Event = "session-reminder"
)

// Message is an in-app notification for one recipient.
type Message struct {
	RecipientID string `json:"recipient_id"`
	BookingID   string `json:"booking_id"`
	Type        Event  `json:"type"`
	Text        string `json:"text"`
	// SessionStart is set on reminders to the start time they announce.
	SessionStart time.Time `json:"session_start"`
}

// Email is an outbound email.
type Email struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"html_body"`
}

// Dispatcher accepts notifications for asynchronous delivery. All methods
// return immediately.
type Dispatcher interface {
	Notify(ctx context.Context, m Message)
	SendEmail(ctx context.Context, e Email)
	ScheduleReminder(ctx context.Context, m Message, at time.Time)
}

// ReminderCheck is consulted when a reminder fires. A reminder whose booking
// was cancelled or moved since it was scheduled is not delivered.
type ReminderCheck interface {
	ReminderDue(ctx context.Context, m Message) (bool, error)
}

// InboxSink stores an in-app notification.
type InboxSink interface {
	Deliver(ctx context.Context, m Message) error
}

// EmailSender is the interface for sending email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// LogInbox writes notifications to the log. Used until an inbox service is
// wired in.
type LogInbox struct {
	Logger zerolog.Logger
}

func (l LogInbox) Deliver(_ context.Context, m Message) error {
	l.Logger.Info().
		Str("recipient", m.RecipientID).
		Str("booking_id", m.BookingID).
		Str("type", string(m.Type)).
		Msg("notification delivered")
	return nil
}

// LogEmailSender writes emails to the log without sending them.
type LogEmailSender struct {
	Logger zerolog.Logger
}

func (l LogEmailSender) SendEmail(_ context.Context, to, subject, _ string) error {
	l.Logger.Info().Str("to", to).Str("subject", subject).Msg("email sent")
	return nil
}

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

var errDeliveryFailed = errors.New("delivery failed")

// MockInbox is a test double for InboxSink.
type MockInbox struct {
	mu         sync.Mutex
	messages   []Message
	ShouldFail bool
}

func (m *MockInbox) Deliver(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	if m.ShouldFail {
		return errDeliveryFailed
	}
	return nil
}

// Messages returns a copy of delivered messages.
func (m *MockInbox) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// EmailCall records a single call to SendEmail.
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
		return errDeliveryFailed
	}
	return nil
}

// Calls returns a copy of recorded email calls.
func (m *MockEmailSender) Calls() []EmailCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmailCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// Reminder is a scheduled reminder captured by RecordingDispatcher.
type Reminder struct {
	Message Message
	At      time.Time
}

// RecordingDispatcher captures dispatched items synchronously. Test double
// for Dispatcher.
type RecordingDispatcher struct {
	mu        sync.Mutex
	messages  []Message
	emails    []Email
	reminders []Reminder
}

func (r *RecordingDispatcher) Notify(_ context.Context, m Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
}

func (r *RecordingDispatcher) SendEmail(_ context.Context, e Email) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emails = append(r.emails, e)
}

func (r *RecordingDispatcher) ScheduleReminder(_ context.Context, m Message, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reminders = append(r.reminders, Reminder{Message: m, At: at})
}

func (r *RecordingDispatcher) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

func (r *RecordingDispatcher) Emails() []Email {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Email(nil), r.emails...)
}

func (r *RecordingDispatcher) Reminders() []Reminder {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Reminder(nil), r.reminders...)
}

// Reset clears everything recorded so far.
func (r *RecordingDispatcher) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages, r.emails, r.reminders = nil, nil, nil
}
