package availability

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mindcare/mindcare/internal/domain/directory"
	"github.com/mindcare/mindcare/internal/domain/timerange"
	"github.com/mindcare/mindcare/internal/platform/apperror"
	"github.com/mindcare/mindcare/internal/platform/auth"
	"github.com/mindcare/mindcare/internal/platform/telemetry"
)

// Transactor runs fn in one database transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Directory resolves the participants behind accounts and references.
type Directory interface {
	ByAccount(ctx context.Context, accountID string) (*directory.Participant, error)
	ActiveProfessionalByRef(ctx context.Context, ref string) (*directory.Participant, error)
}

// BookedSlots lists the slots held by non-terminal bookings on a date.
type BookedSlots interface {
	ActiveSlots(ctx context.Context, professionalRef string, date time.Time) ([]timerange.Slot, error)
}

var expectedErrs = []error{
	apperror.ErrValidation, apperror.ErrForbidden, apperror.ErrNotFound,
	apperror.ErrAlreadyInitialized, apperror.ErrNotInitialized,
}

type Service struct {
	repo   Repository
	tx     Transactor
	dir    Directory
	booked BookedSlots
	loc    *time.Location
	tracer trace.Tracer
	now    func() time.Time
}

func NewService(repo Repository, tx Transactor, dir Directory, booked BookedSlots, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:   repo,
		tx:     tx,
		dir:    dir,
		booked: booked,
		loc:    loc,
		tracer: telemetry.Tracer("mindcare/availability"),
		now:    time.Now,
	}
}

func (s *Service) start(ctx context.Context, op, professionalID string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, op, trace.WithAttributes(attribute.String("professional.id", professionalID)))
}

// authorize allows only the professional who owns the calendar.
func authorize(op string, caller auth.Identity, professionalID string) error {
	if !caller.IsProfessional() {
		return apperror.Forbidden(op, "only professionals manage availability")
	}
	if caller.ID != professionalID {
		return apperror.Forbidden(op, "cannot manage another professional's availability")
	}
	return nil
}

// Initialize creates the seven empty, unavailable days of a new calendar.
func (s *Service) Initialize(ctx context.Context, caller auth.Identity, professionalID string) (days []*Day, err error) {
	const op = "availability.Initialize"
	ctx, span := s.start(ctx, op, professionalID)
	defer func() { telemetry.End(span, err, expectedErrs...) }()

	if err := authorize(op, caller, professionalID); err != nil {
		return nil, err
	}
	p, err := s.dir.ByAccount(ctx, professionalID)
	if err != nil {
		return nil, err
	}
	if !p.IsActiveProfessional() {
		return nil, apperror.Forbidden(op, "account is not an active professional")
	}

	days = emptyWeek(professionalID)
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		existing, err := s.repo.ListByProfessional(ctx, professionalID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return apperror.AlreadyInitialized(op, "availability already initialized")
		}
		return s.repo.CreateWeek(ctx, days)
	})
	if err != nil {
		return nil, err
	}
	return days, nil
}

// Get returns the full calendar in canonical weekday order.
func (s *Service) Get(ctx context.Context, caller auth.Identity, professionalID string) (days []*Day, err error) {
	const op = "availability.Get"
	ctx, span := s.start(ctx, op, professionalID)
	defer func() { telemetry.End(span, err, expectedErrs...) }()

	if err := authorize(op, caller, professionalID); err != nil {
		return nil, err
	}
	days, err = s.repo.ListByProfessional(ctx, professionalID)
	if err != nil {
		return nil, err
	}
	if len(days) == 0 {
		return nil, apperror.NotInitialized(op, "availability has not been initialized")
	}
	sortDays(days)
	return days, nil
}

func sortDays(days []*Day) {
	slices.SortFunc(days, func(a, b *Day) int { return a.Weekday.Index() - b.Weekday.Index() })
}

// GetDay reads one weekday without an ownership check. It backs the
// conflict checker, which runs on behalf of clients.
func (s *Service) GetDay(ctx context.Context, professionalID string, weekday timerange.Weekday) (*Day, error) {
	if _, err := timerange.ParseWeekday(string(weekday)); err != nil {
		return nil, err
	}
	return s.repo.GetDay(ctx, professionalID, weekday)
}

// prepare validates slots and returns the sorted list and resulting flag.
func prepare(slots []timerange.Slot, available *bool) ([]timerange.Slot, bool, error) {
	if slots == nil {
		slots = []timerange.Slot{}
	}
	if err := timerange.ValidateSlots(slots); err != nil {
		return nil, false, err
	}
	sorted := timerange.SortSlots(slots)
	return sorted, resolveAvailable(sorted, available), nil
}

// UpdateDay replaces the slots of one weekday. Submitting the same list twice
// leaves the same stored state.
func (s *Service) UpdateDay(ctx context.Context, caller auth.Identity, professionalID string, weekday timerange.Weekday, slots []timerange.Slot, available *bool) (day *Day, err error) {
	const op = "availability.UpdateDay"
	ctx, span := s.start(ctx, op, professionalID)
	span.SetAttributes(attribute.String("availability.weekday", string(weekday)))
	defer func() { telemetry.End(span, err, expectedErrs...) }()

	if err := authorize(op, caller, professionalID); err != nil {
		return nil, err
	}
	if _, err := timerange.ParseWeekday(string(weekday)); err != nil {
		return nil, err
	}
	sorted, avail, err := prepare(slots, available)
	if err != nil {
		return nil, err
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		d, err := s.repo.GetDay(ctx, professionalID, weekday)
		if err != nil {
			return err
		}
		d.Slots, d.Available = sorted, avail
		if err := s.repo.SaveDay(ctx, d); err != nil {
			return err
		}
		day = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return day, nil
}

// UpdateDayByID is UpdateDay addressed by record id. A record owned by
// another professional is Forbidden.
func (s *Service) UpdateDayByID(ctx context.Context, caller auth.Identity, id uuid.UUID, slots []timerange.Slot, available *bool) (*Day, error) {
	const op = "availability.UpdateDayByID"
	d, err := s.repo.GetDayByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(op, caller, d.ProfessionalID); err != nil {
		return nil, err
	}
	return s.UpdateDay(ctx, caller, d.ProfessionalID, d.Weekday, slots, available)
}

// BulkUpdate applies several day updates all-or-nothing. Every update is
// validated before anything is written, and a weekday may appear once.
func (s *Service) BulkUpdate(ctx context.Context, caller auth.Identity, professionalID string, updates []DayUpdate) (days []*Day, err error) {
	const op = "availability.BulkUpdate"
	ctx, span := s.start(ctx, op, professionalID)
	span.SetAttributes(attribute.Int("availability.updates", len(updates)))
	defer func() { telemetry.End(span, err, expectedErrs...) }()

	if err := authorize(op, caller, professionalID); err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return nil, apperror.Validation(op, "at least one day update is required")
	}

	type prepared struct {
		weekday   timerange.Weekday
		slots     []timerange.Slot
		available bool
	}
	plan := make([]prepared, 0, len(updates))
	seen := make(map[timerange.Weekday]bool, len(updates))
	for i, u := range updates {
		w, err := timerange.ParseWeekday(string(u.Weekday))
		if err != nil {
			return nil, apperror.Validation(op, "update %d: unknown weekday %q", i, u.Weekday)
		}
		if seen[w] {
			return nil, apperror.Validation(op, "update %d: weekday %s appears more than once", i, w)
		}
		seen[w] = true
		sorted, avail, err := prepare(u.Slots, u.Available)
		if err != nil {
			return nil, apperror.Validation(op, "%s: %s", w, err.(*apperror.Error).Message)
		}
		plan = append(plan, prepared{weekday: w, slots: sorted, available: avail})
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		out := make([]*Day, 0, len(plan))
		for _, p := range plan {
			d, err := s.repo.GetDay(ctx, professionalID, p.weekday)
			if err != nil {
				return err
			}
			d.Slots, d.Available = p.slots, p.available
			if err := s.repo.SaveDay(ctx, d); err != nil {
				return err
			}
			out = append(out, d)
		}
		days = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortDays(days)
	return days, nil
}

// ClearDay removes every slot of a weekday. The record itself is kept.
func (s *Service) ClearDay(ctx context.Context, caller auth.Identity, professionalID string, weekday timerange.Weekday) (*Day, error) {
	return s.UpdateDay(ctx, caller, professionalID, weekday, []timerange.Slot{}, nil)
}

// GenerateDay fills a weekday with back-to-back slots of the given length
// between start and end.
func (s *Service) GenerateDay(ctx context.Context, caller auth.Identity, professionalID string, weekday timerange.Weekday, start, end string, minutes int) (*Day, error) {
	grid, err := timerange.Grid(start, end, minutes)
	if err != nil {
		return nil, err
	}
	var slots []timerange.Slot
	for slot := range grid {
		slots = append(slots, slot)
	}
	if len(slots) == 0 {
		return nil, apperror.Validation("availability.GenerateDay",
			"no %d minute slot fits between %s and %s", minutes, start, end)
	}
	return s.UpdateDay(ctx, caller, professionalID, weekday, slots, nil)
}

// OpenSlots lists the offered slots of a professional on a date that no
// non-terminal booking holds. Past dates are rejected.
func (s *Service) OpenSlots(ctx context.Context, professionalRef string, date time.Time) (open []timerange.Slot, err error) {
	const op = "availability.OpenSlots"
	ctx, span := s.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("professional.ref", professionalRef),
		attribute.String("booking.date", timerange.FormatDate(date)),
	))
	defer func() { telemetry.End(span, err, expectedErrs...) }()

	if date.Before(s.today()) {
		return nil, apperror.Validation(op, "date %s is in the past", timerange.FormatDate(date))
	}
	p, err := s.dir.ActiveProfessionalByRef(ctx, professionalRef)
	if err != nil {
		return nil, err
	}
	d, err := s.repo.GetDay(ctx, p.AccountID, timerange.WeekdayOf(date))
	if apperror.KindOf(err) == apperror.KindNotFound {
		return []timerange.Slot{}, nil
	}
	if err != nil {
		return nil, err
	}
	open = []timerange.Slot{}
	if !d.Available {
		return open, nil
	}
	taken, err := s.booked.ActiveSlots(ctx, professionalRef, date)
	if err != nil {
		return nil, err
	}
	for _, slot := range d.Slots {
		if !timerange.Contains(taken, slot) {
			open = append(open, slot)
		}
	}
	return open, nil
}

func (s *Service) today() time.Time {
	now := s.now().In(s.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
}
