package booking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mindcare/mindcare/internal/domain/timerange"
)

// ListFilter narrows ListByParty. An empty Status matches every status.
type ListFilter struct {
	Status Status
	Limit  int
	Offset int
}

type Repository interface {
	// Insert stores a new booking. A second active booking for the same
	// professional, date and slot fails with SlotUnavailable.
	Insert(ctx context.Context, b *Booking) error
	Get(ctx context.Context, id uuid.UUID) (*Booking, error)
	// UpdateStatus writes b's mutable fields only if the stored status is
	// still from. A concurrent change makes it fail with InvalidTransition.
	UpdateStatus(ctx context.Context, b *Booking, from Status) error
	// ExistsActive reports whether an active booking other than exclude holds
	// the slot. Pass uuid.Nil to exclude nothing.
	ExistsActive(ctx context.Context, professionalRef string, date time.Time, slot timerange.Slot, exclude uuid.UUID) (bool, error)
	ActiveSlots(ctx context.Context, professionalRef string, date time.Time) ([]timerange.Slot, error)
	ListByParty(ctx context.Context, ref string, f ListFilter) ([]*Booking, int, error)
}
