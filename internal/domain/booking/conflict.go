package booking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mindcare/mindcare/internal/domain/availability"
	"github.com/mindcare/mindcare/internal/domain/directory"
	"github.com/mindcare/mindcare/internal/domain/timerange"
	"github.com/mindcare/mindcare/internal/platform/apperror"
)

// Reason explains why a slot is not free.
type Reason string

const (
	ReasonProfessionalUnavailable Reason = "professional_unavailable"
	ReasonSlotNotOffered          Reason = "slot_not_offered"
	ReasonAlreadyBooked           Reason = "already_booked"
)

type SlotCheck struct {
	Free   bool   `json:"free"`
	Reason Reason `json:"reason,omitempty"`
}

func (c SlotCheck) message() string {
	switch c.Reason {
	case ReasonProfessionalUnavailable:
		return "professional unavailable"
	case ReasonSlotNotOffered:
		return "slot not offered"
	case ReasonAlreadyBooked:
		return "already booked"
	}
	return "free"
}

// DayReader reads a professional's availability for one weekday.
type DayReader interface {
	GetDay(ctx context.Context, professionalID string, weekday timerange.Weekday) (*availability.Day, error)
}

// ProfessionalResolver maps a professional reference to its account.
type ProfessionalResolver interface {
	ActiveProfessionalByRef(ctx context.Context, ref string) (*directory.Participant, error)
}

// ConflictChecker answers whether a professional's slot is free on a date.
// It only reads; callers that act on the answer must hold the slot lock.
type ConflictChecker struct {
	days     DayReader
	dir      ProfessionalResolver
	bookings Repository
}

func NewConflictChecker(days DayReader, dir ProfessionalResolver, bookings Repository) *ConflictChecker {
	return &ConflictChecker{days: days, dir: dir, bookings: bookings}
}

func (c *ConflictChecker) IsSlotFree(ctx context.Context, professionalRef string, date time.Time, start, end string) (SlotCheck, error) {
	return c.IsSlotFreeExcluding(ctx, professionalRef, date, start, end, uuid.Nil)
}

// IsSlotFreeExcluding is IsSlotFree ignoring the booking exclude, so that a
// booking re-validating or moving its own slot does not conflict with itself.
func (c *ConflictChecker) IsSlotFreeExcluding(ctx context.Context, professionalRef string, date time.Time, start, end string, exclude uuid.UUID) (SlotCheck, error) {
	slot := timerange.Slot{Start: start, End: end}
	if err := timerange.ValidateSlot(slot); err != nil {
		return SlotCheck{}, err
	}
	pro, err := c.dir.ActiveProfessionalByRef(ctx, professionalRef)
	if err != nil {
		return SlotCheck{}, err
	}

	day, err := c.days.GetDay(ctx, pro.AccountID, timerange.WeekdayOf(date))
	if apperror.KindOf(err) == apperror.KindNotFound {
		return SlotCheck{Reason: ReasonProfessionalUnavailable}, nil
	}
	if err != nil {
		return SlotCheck{}, err
	}
	if !day.Available {
		return SlotCheck{Reason: ReasonProfessionalUnavailable}, nil
	}
	if !timerange.Contains(day.Slots, slot) {
		return SlotCheck{Reason: ReasonSlotNotOffered}, nil
	}

	taken, err := c.bookings.ExistsActive(ctx, professionalRef, date, slot, exclude)
	if err != nil {
		return SlotCheck{}, err
	}
	if taken {
		return SlotCheck{Reason: ReasonAlreadyBooked}, nil
	}
	return SlotCheck{Free: true}, nil
}
