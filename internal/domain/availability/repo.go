package availability

import (
	"context"

	"github.com/google/uuid"

	"github.com/mindcare/mindcare/internal/domain/timerange"
)

type Repository interface {
	// CreateWeek inserts the day records of a new calendar. It fails with
	// AlreadyInitialized if the professional already has any.
	CreateWeek(ctx context.Context, days []*Day) error
	ListByProfessional(ctx context.Context, professionalID string) ([]*Day, error)
	GetDay(ctx context.Context, professionalID string, weekday timerange.Weekday) (*Day, error)
	GetDayByID(ctx context.Context, id uuid.UUID) (*Day, error)
	// SaveDay overwrites the available flag and the full slot list of d.
	SaveDay(ctx context.Context, d *Day) error
}
