// Package timerange holds the pure time arithmetic used by availability and
// booking: HH:MM clock parsing, slot validation, overlap, weekday mapping and
// fixed-duration slot grids. Nothing here touches storage or the clock except
// through arguments.
package timerange

import (
	"fmt"
	"iter"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mindcare/mindcare/internal/platform/apperror"
)

const (
	DateLayout    = "2006-01-02"
	minutesPerDay = 24 * 60
)

var clockPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// Slot is a half-open [Start, End) interval within a day, in HH:MM form.
type Slot struct {
	Start string `json:"start_time"`
	End   string `json:"end_time"`
}

func (s Slot) String() string { return s.Start + "-" + s.End }

// IsValidTimeFormat reports whether t is a zero-padded 24h HH:MM clock value.
func IsValidTimeFormat(t string) bool {
	return clockPattern.MatchString(t)
}

// ParseClock converts HH:MM into minutes since midnight.
func ParseClock(t string) (int, error) {
	m := clockPattern.FindStringSubmatch(t)
	if m == nil {
		return 0, apperror.Validation("timerange.ParseClock", "invalid time %q, expected HH:MM", t)
	}
	h, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	return h*60 + mm, nil
}

// FormatClock converts minutes since midnight back into HH:MM.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// IsValidRange reports whether end is strictly after start. Malformed input
// is never a valid range.
func IsValidRange(start, end string) bool {
	s, err := ParseClock(start)
	if err != nil {
		return false
	}
	e, err := ParseClock(end)
	if err != nil {
		return false
	}
	return e > s
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd string) (bool, error) {
	as, err := ParseClock(aStart)
	if err != nil {
		return false, err
	}
	ae, err := ParseClock(aEnd)
	if err != nil {
		return false, err
	}
	bs, err := ParseClock(bStart)
	if err != nil {
		return false, err
	}
	be, err := ParseClock(bEnd)
	if err != nil {
		return false, err
	}
	return as < be && bs < ae, nil
}

// ValidateSlot checks format and ordering of a single slot.
func ValidateSlot(s Slot) error {
	const op = "timerange.ValidateSlot"
	if !IsValidTimeFormat(s.Start) {
		return apperror.Validation(op, "invalid start time %q, expected HH:MM", s.Start)
	}
	if !IsValidTimeFormat(s.End) {
		return apperror.Validation(op, "invalid end time %q, expected HH:MM", s.End)
	}
	if !IsValidRange(s.Start, s.End) {
		return apperror.Validation(op, "end time %s must be after start time %s", s.End, s.Start)
	}
	return nil
}

// ValidateSlots checks every slot and then every pair for overlap. Slot
// counts per day are small so the pairwise comparison is fine.
func ValidateSlots(slots []Slot) error {
	const op = "timerange.ValidateSlots"
	for i, s := range slots {
		if err := ValidateSlot(s); err != nil {
			return apperror.Validation(op, "slot %d: %s", i, err.(*apperror.Error).Message)
		}
	}
	for i := 0; i < len(slots); i++ {
		for j := i + 1; j < len(slots); j++ {
			overlap, _ := Overlaps(slots[i].Start, slots[i].End, slots[j].Start, slots[j].End)
			if overlap {
				return apperror.Validation(op, "slot %d (%s) overlaps slot %d (%s)", j, slots[j], i, slots[i])
			}
		}
	}
	return nil
}

// SortSlots returns a copy of slots ordered by start, then end. Input must
// already be valid.
func SortSlots(slots []Slot) []Slot {
	out := make([]Slot, len(slots))
	copy(out, slots)
	sort.SliceStable(out, func(i, j int) bool {
		si, _ := ParseClock(out[i].Start)
		sj, _ := ParseClock(out[j].Start)
		if si != sj {
			return si < sj
		}
		ei, _ := ParseClock(out[i].End)
		ej, _ := ParseClock(out[j].End)
		return ei < ej
	})
	return out
}

// Contains reports whether slots holds exactly target.
func Contains(slots []Slot, target Slot) bool {
	for _, s := range slots {
		if s.Start == target.Start && s.End == target.End {
			return true
		}
	}
	return false
}

// Grid yields contiguous slots of the given duration that fit inside
// [start, end). The sequence is computed lazily and may be ranged over any
// number of times. A trailing remainder shorter than minutes is dropped.
func Grid(start, end string, minutes int) (iter.Seq[Slot], error) {
	const op = "timerange.Grid"
	if err := ValidateSlot(Slot{Start: start, End: end}); err != nil {
		return nil, apperror.Validation(op, "%s", err.(*apperror.Error).Message)
	}
	if minutes <= 0 || minutes > minutesPerDay {
		return nil, apperror.Validation(op, "duration must be between 1 and %d minutes, got %d", minutesPerDay, minutes)
	}
	s, _ := ParseClock(start)
	e, _ := ParseClock(end)
	return func(yield func(Slot) bool) {
		for cur := s; cur+minutes <= e; cur += minutes {
			if !yield(Slot{Start: FormatClock(cur), End: FormatClock(cur + minutes)}) {
				return
			}
		}
	}, nil
}

// Weekday is a canonical lower-case day name.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

var canonicalWeek = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var stdWeekday = map[Weekday]time.Weekday{
	Monday: time.Monday, Tuesday: time.Tuesday, Wednesday: time.Wednesday,
	Thursday: time.Thursday, Friday: time.Friday, Saturday: time.Saturday, Sunday: time.Sunday,
}

// AllWeekdays returns the seven days in canonical order, Monday first.
func AllWeekdays() []Weekday {
	out := make([]Weekday, len(canonicalWeek))
	copy(out, canonicalWeek)
	return out
}

// ParseWeekday accepts a day name in any case.
func ParseWeekday(s string) (Weekday, error) {
	w := Weekday(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := stdWeekday[w]; !ok {
		return "", apperror.Validation("timerange.ParseWeekday", "unknown weekday %q", s)
	}
	return w, nil
}

// Index is the position of w in the canonical week (Monday = 0), or -1.
func (w Weekday) Index() int {
	for i, d := range canonicalWeek {
		if d == w {
			return i
		}
	}
	return -1
}

// WeekdayOf returns the canonical weekday of a calendar date.
func WeekdayOf(date time.Time) Weekday {
	for w, d := range stdWeekday {
		if d == date.Weekday() {
			return w
		}
	}
	return ""
}

// NextOccurrence returns the first calendar date on or after now's date
// that falls on w. Today is eligible when it is the target weekday; callers
// that need a cutoff apply it themselves.
func NextOccurrence(w Weekday, now time.Time) (time.Time, error) {
	target, ok := stdWeekday[w]
	if !ok {
		return time.Time{}, apperror.Validation("timerange.NextOccurrence", "unknown weekday %q", w)
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	delta := (int(target) - int(today.Weekday()) + 7) % 7
	return today.AddDate(0, 0, delta), nil
}

// ParseDate parses a YYYY-MM-DD calendar date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, apperror.Validation("timerange.ParseDate", "invalid date %q, expected YYYY-MM-DD", s)
	}
	return d, nil
}

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(d time.Time) string {
	return d.Format(DateLayout)
}
