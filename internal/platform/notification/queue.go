package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// Task types processed by the worker.
const (
	TypeNotificationSend = "notification:send"
	TypeEmailSend        = "email:send"
	TypeReminderSend     = "reminder:send"
)

// QueueName is the asynq queue booking side effects are enqueued on.
const QueueName = "notifications"

const (
	enqueueTimeout = 2 * time.Second
	maxRetry       = 5
)

func NewNotificationTask(m Message) (*asynq.Task, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeNotificationSend, b), nil
}

func NewEmailTask(e Email) (*asynq.Task, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeEmailSend, b), nil
}

// NewReminderTask builds a reminder task and the options that delay it
// until fireAt.
func NewReminderTask(m Message, fireAt time.Time) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeReminderSend, b)
	opts := []asynq.Option{asynq.ProcessAt(fireAt)}
	if m.BookingID != "" {
		// One reminder per booking, recipient and start time; a repeated
		// confirm is a no-op.
		opts = append(opts, asynq.TaskID(fmt.Sprintf("reminder:%s:%s:%d", m.BookingID, m.RecipientID, fireAt.Unix())))
	}
	return task, opts, nil
}

// enqueuer is the part of *asynq.Client the dispatcher uses.
type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueDispatcher hands notifications to Redis through asynq so they survive
// restarts and are retried by the worker. Enqueue failures are logged.
type QueueDispatcher struct {
	client enqueuer
	logger zerolog.Logger
}

func NewQueueDispatcher(client *asynq.Client, logger zerolog.Logger) *QueueDispatcher {
	return &QueueDispatcher{
		client: client,
		logger: logger.With().Str("component", "notification").Logger(),
	}
}

func (q *QueueDispatcher) Notify(ctx context.Context, m Message) {
	task, err := NewNotificationTask(m)
	q.enqueue(ctx, task, err, m.RecipientID, string(m.Type))
}

func (q *QueueDispatcher) SendEmail(ctx context.Context, e Email) {
	task, err := NewEmailTask(e)
	q.enqueue(ctx, task, err, e.To, "email")
}

func (q *QueueDispatcher) ScheduleReminder(ctx context.Context, m Message, at time.Time) {
	task, opts, err := NewReminderTask(m, at)
	q.enqueue(ctx, task, err, m.RecipientID, string(m.Type), opts...)
}

func (q *QueueDispatcher) enqueue(ctx context.Context, task *asynq.Task, buildErr error, recipient, typ string, opts ...asynq.Option) {
	if buildErr != nil {
		q.logger.Warn().Err(buildErr).Str("recipient", recipient).Str("type", typ).Msg("build task failed")
		return
	}
	// Detached from the request so a finished HTTP call does not cancel the
	// enqueue, but still bounded.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enqueueTimeout)
	defer cancel()

	opts = append([]asynq.Option{asynq.Queue(QueueName), asynq.MaxRetry(maxRetry)}, opts...)
	if _, err := q.client.EnqueueContext(ctx, task, opts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return
		}
		q.logger.Warn().Err(err).Str("recipient", recipient).Str("type", typ).Msg("enqueue failed")
	}
}

// NewWorkerMux routes queued tasks to the delivery sinks. Malformed payloads
// are not retried. Reminders pass through check first when it is non-nil.
func NewWorkerMux(inbox InboxSink, email EmailSender, check ReminderCheck, logger zerolog.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeNotificationSend, handleMessage(inbox, nil, logger))
	mux.HandleFunc(TypeReminderSend, handleMessage(inbox, check, logger))
	mux.HandleFunc(TypeEmailSend, handleEmail(email, logger))
	return mux
}

func handleMessage(inbox InboxSink, check ReminderCheck, logger zerolog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var m Message
		if err := json.Unmarshal(task.Payload(), &m); err != nil {
			logger.Error().Err(err).Str("task", task.Type()).Msg("invalid task payload")
			return fmt.Errorf("decode %s: %v: %w", task.Type(), err, asynq.SkipRetry)
		}
		if check != nil {
			due, err := check.ReminderDue(ctx, m)
			if err != nil {
				return fmt.Errorf("check reminder %s: %w", m.BookingID, err)
			}
			if !due {
				logger.Debug().Str("booking_id", m.BookingID).Str("recipient", m.RecipientID).Msg("reminder no longer due, dropping")
				return nil
			}
		}
		if err := inbox.Deliver(ctx, m); err != nil {
			logger.Warn().Err(err).
				Str("recipient", m.RecipientID).
				Str("booking_id", m.BookingID).
				Str("type", string(m.Type)).
				Msg("notification delivery failed")
			return err
		}
		return nil
	}
}

func handleEmail(sender EmailSender, logger zerolog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var e Email
		if err := json.Unmarshal(task.Payload(), &e); err != nil {
			logger.Error().Err(err).Str("task", task.Type()).Msg("invalid task payload")
			return fmt.Errorf("decode %s: %v: %w", task.Type(), err, asynq.SkipRetry)
		}
		if err := sender.SendEmail(ctx, e.To, e.Subject, e.HTMLBody); err != nil {
			logger.Warn().Err(err).Str("recipient", e.To).Str("type", "email").Msg("email delivery failed")
			return err
		}
		return nil
	}
}
