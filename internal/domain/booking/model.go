// Package booking holds the booking state machine, the conflict checker that
// decides whether a professional's slot is free on a date, and the lifecycle
// service that moves bookings between states.
package booking

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/mindcare/mindcare/internal/domain/timerange"
	"github.com/mindcare/mindcare/internal/platform/apperror"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusConfirmed   Status = "confirmed"
	StatusRescheduled Status = "rescheduled"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
)

var allowedTransitions = map[Status][]Status{
	StatusPending:     {StatusConfirmed, StatusCancelled},
	StatusConfirmed:   {StatusCompleted, StatusCancelled, StatusRescheduled},
	StatusRescheduled: {StatusConfirmed, StatusCancelled},
}

// AllStatuses lists every status, non-terminal first.
func AllStatuses() []Status {
	return []Status{StatusPending, StatusConfirmed, StatusRescheduled, StatusCompleted, StatusCancelled}
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to Status) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Active reports whether a booking in this status still holds its slot.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusRescheduled
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func ParseStatus(s string) (Status, error) {
	for _, st := range AllStatuses() {
		if string(st) == s {
			return st, nil
		}
	}
	return "", apperror.Validation("booking.ParseStatus", "unknown status %q", s)
}

type Modality string

const (
	ModalityVideo    Modality = "video"
	ModalityAudio    Modality = "audio"
	ModalityChat     Modality = "chat"
	ModalityInPerson Modality = "in_person"
)

func ParseModality(s string) (Modality, error) {
	switch m := Modality(s); m {
	case ModalityVideo, ModalityAudio, ModalityChat, ModalityInPerson:
		return m, nil
	}
	return "", apperror.Validation("booking.ParseModality", "unknown modality %q", s)
}

// Booking is one scheduled session. UserRef and ProfessionalRef are
// directory references, never account ids.
type Booking struct {
	ID                 uuid.UUID `json:"id"`
	UserRef            string    `json:"user_ref"`
	ProfessionalRef    string    `json:"professional_ref"`
	Date               time.Time `json:"date"`
	Start              string    `json:"start_time"`
	End                string    `json:"end_time"`
	Modality           Modality  `json:"modality"`
	Concern            string    `json:"concern,omitempty"`
	Notes              string    `json:"notes,omitempty"`
	Status             Status    `json:"status"`
	MeetingLink        string    `json:"meeting_link,omitempty"`
	MeetingPassword    string    `json:"meeting_password,omitempty"`
	CancellationReason string    `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (b *Booking) Slot() timerange.Slot {
	return timerange.Slot{Start: b.Start, End: b.End}
}

// StartsAt is the session start as an instant in the date's location.
func (b *Booking) StartsAt() time.Time {
	m, _ := timerange.ParseClock(b.Start)
	return time.Date(b.Date.Year(), b.Date.Month(), b.Date.Day(), m/60, m%60, 0, 0, b.Date.Location())
}

// MarshalJSON renders Date as YYYY-MM-DD.
func (b Booking) MarshalJSON() ([]byte, error) {
	type plain Booking
	return json.Marshal(struct {
		plain
		Date string `json:"date"`
	}{plain: plain(b), Date: timerange.FormatDate(b.Date)})
}
