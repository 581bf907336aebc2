package booking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mindcare/mindcare/internal/platform/apperror"
	"github.com/mindcare/mindcare/internal/platform/notification"
)

// ReminderCheck decides at fire time whether a session reminder still
// describes the booking. Reminders are never withdrawn when a booking is
// cancelled or moved; they are dropped here instead.
type ReminderCheck struct {
	repo Repository
	loc  *time.Location
}

func NewReminderCheck(repo Repository, loc *time.Location) *ReminderCheck {
	if loc == nil {
		loc = time.UTC
	}
	return &ReminderCheck{repo: repo, loc: loc}
}

// ReminderDue reports whether m should be delivered: the booking must still
// be confirmed and start at the time the reminder was scheduled for.
func (r *ReminderCheck) ReminderDue(ctx context.Context, m notification.Message) (bool, error) {
	id, err := uuid.Parse(m.BookingID)
	if err != nil || m.SessionStart.IsZero() {
		return false, nil
	}
	b, err := r.repo.Get(ctx, id)
	if apperror.KindOf(err) == apperror.KindNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	b.Date = time.Date(b.Date.Year(), b.Date.Month(), b.Date.Day(), 0, 0, 0, 0, r.loc)
	return b.Status == StatusConfirmed && b.StartsAt().Equal(m.SessionStart), nil
}
