package notification

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// InProcessConfig sizes the in-process dispatcher.
type InProcessConfig struct {
	Workers   int
	QueueSize int
	// Timeout bounds each delivery attempt.
	Timeout time.Duration
	// Reminders, when set, filters reminders at fire time.
	Reminders ReminderCheck
}

type jobKind int

const (
	jobNotify jobKind = iota
	jobEmail
	jobReminder
)

type job struct {
	kind  jobKind
	msg   Message
	email Email
}

// InProcessDispatcher delivers through a bounded queue drained by a fixed
// set of goroutines. A full queue drops the item and logs it; callers never
// block. Reminders are held in timers and are lost on restart.
type InProcessDispatcher struct {
	inbox     InboxSink
	email     EmailSender
	logger    zerolog.Logger
	timeout   time.Duration
	reminders ReminderCheck

	jobs chan job
	wg   sync.WaitGroup

	mu     sync.Mutex
	closed bool
	timers map[*time.Timer]struct{}
}

func NewInProcessDispatcher(inbox InboxSink, email EmailSender, logger zerolog.Logger, cfg InProcessConfig) *InProcessDispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	d := &InProcessDispatcher{
		inbox:     inbox,
		email:     email,
		logger:    logger.With().Str("component", "notification").Logger(),
		timeout:   cfg.Timeout,
		reminders: cfg.Reminders,
		jobs:      make(chan job, cfg.QueueSize),
		timers:    make(map[*time.Timer]struct{}),
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

func (d *InProcessDispatcher) Notify(_ context.Context, m Message) {
	d.enqueue(job{kind: jobNotify, msg: m})
}

func (d *InProcessDispatcher) SendEmail(_ context.Context, e Email) {
	d.enqueue(job{kind: jobEmail, email: e})
}

// ScheduleReminder queues m for delivery at at. Times already past are
// skipped.
func (d *InProcessDispatcher) ScheduleReminder(_ context.Context, m Message, at time.Time) {
	delay := time.Until(at)
	if delay <= 0 {
		d.logger.Debug().Str("booking_id", m.BookingID).Time("at", at).Msg("reminder time already passed, skipping")
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.logDrop(job{kind: jobReminder, msg: m}, "dispatcher closed")
		return
	}
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		d.mu.Lock()
		delete(d.timers, t)
		d.mu.Unlock()
		d.enqueue(job{kind: jobReminder, msg: m})
	})
	d.timers[t] = struct{}{}
}

func (d *InProcessDispatcher) enqueue(j job) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.logDrop(j, "dispatcher closed")
		return
	}
	select {
	case d.jobs <- j:
	default:
		d.logDrop(j, "queue full")
	}
}

func (d *InProcessDispatcher) logDrop(j job, reason string) {
	evt := d.logger.Warn().Str("reason", reason)
	switch j.kind {
	case jobNotify, jobReminder:
		evt = evt.Str("recipient", j.msg.RecipientID).Str("booking_id", j.msg.BookingID).Str("type", string(j.msg.Type))
	case jobEmail:
		evt = evt.Str("recipient", j.email.To).Str("type", "email")
	}
	evt.Msg("notification dropped")
}

func (d *InProcessDispatcher) work() {
	defer d.wg.Done()
	for j := range d.jobs {
		d.deliver(j)
	}
}

func (d *InProcessDispatcher) deliver(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	switch j.kind {
	case jobReminder:
		if !d.reminderDue(ctx, j.msg) {
			return
		}
		fallthrough
	case jobNotify:
		if err := d.inbox.Deliver(ctx, j.msg); err != nil {
			d.logger.Warn().Err(err).
				Str("recipient", j.msg.RecipientID).
				Str("booking_id", j.msg.BookingID).
				Str("type", string(j.msg.Type)).
				Msg("notification delivery failed")
		}
	case jobEmail:
		if err := d.email.SendEmail(ctx, j.email.To, j.email.Subject, j.email.HTMLBody); err != nil {
			d.logger.Warn().Err(err).
				Str("recipient", j.email.To).
				Str("type", "email").
				Msg("email delivery failed")
		}
	}
}

func (d *InProcessDispatcher) reminderDue(ctx context.Context, m Message) bool {
	if d.reminders == nil {
		return true
	}
	due, err := d.reminders.ReminderDue(ctx, m)
	if err != nil {
		d.logger.Warn().Err(err).
			Str("recipient", m.RecipientID).
			Str("booking_id", m.BookingID).
			Str("type", string(m.Type)).
			Msg("reminder check failed")
		return false
	}
	if !due {
		d.logger.Debug().Str("booking_id", m.BookingID).Str("recipient", m.RecipientID).Msg("reminder no longer due, dropping")
	}
	return due
}

// Close stops pending reminders, stops accepting work and waits for queued
// deliveries to finish.
func (d *InProcessDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for t := range d.timers {
		t.Stop()
	}
	d.timers = nil
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
}
