// Package availability stores each professional's weekly slot calendar: one
// record per weekday holding the offered slots and an available flag.
package availability

import (
	"time"

	"github.com/google/uuid"

	"github.com/mindcare/mindcare/internal/domain/timerange"
)

// Day is one professional's offer for one weekday. Available is never true
// while Slots is empty.
type Day struct {
	ID             uuid.UUID         `json:"id"`
	ProfessionalID string            `json:"-"`
	Weekday        timerange.Weekday `json:"weekday"`
	Slots          []timerange.Slot  `json:"slots"`
	Available      bool              `json:"available"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Offers reports whether the day is open and lists slot exactly.
func (d *Day) Offers(slot timerange.Slot) bool {
	return d.Available && timerange.Contains(d.Slots, slot)
}

// DayUpdate replaces the slots of one weekday. A nil Available means
// "available whenever there are slots".
type DayUpdate struct {
	Weekday   timerange.Weekday `json:"weekday"`
	Slots     []timerange.Slot  `json:"slots"`
	Available *bool             `json:"available,omitempty"`
}

func resolveAvailable(slots []timerange.Slot, flag *bool) bool {
	if len(slots) == 0 {
		return false
	}
	return flag == nil || *flag
}

func emptyWeek(professionalID string) []*Day {
	days := make([]*Day, 0, 7)
	for _, w := range timerange.AllWeekdays() {
		days = append(days, &Day{
			ID:             uuid.New(),
			ProfessionalID: professionalID,
			Weekday:        w,
			Slots:          []timerange.Slot{},
		})
	}
	return days
}
