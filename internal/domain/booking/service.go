package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mindcare/mindcare/internal/domain/directory"
	"github.com/mindcare/mindcare/internal/domain/timerange"
	"github.com/mindcare/mindcare/internal/platform/apperror"
	"github.com/mindcare/mindcare/internal/platform/auth"
	"github.com/mindcare/mindcare/internal/platform/meeting"
	"github.com/mindcare/mindcare/internal/platform/notification"
	"github.com/mindcare/mindcare/internal/platform/telemetry"
)

// Transactor runs fn in one transaction and takes advisory locks inside it.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	LockKey(ctx context.Context, key string) error
}

// Directory resolves callers and booking parties.
type Directory interface {
	ProfessionalResolver
	ByAccount(ctx context.Context, accountID string) (*directory.Participant, error)
	ByRef(ctx context.Context, ref string) (*directory.Participant, error)
}

type Config struct {
	// Location decides what "today" is and where session times live.
	Location *time.Location
	// ReminderLead is how long before the session start a reminder fires.
	ReminderLead time.Duration
}

var expectedErrs = []error{
	apperror.ErrValidation, apperror.ErrSlotUnavailable, apperror.ErrInvalidTransition,
	apperror.ErrForbidden, apperror.ErrNotFound,
}

type Service struct {
	repo      Repository
	checker   *ConflictChecker
	tx        Transactor
	dir       Directory
	meetings  meeting.Issuer
	notify    notification.Dispatcher
	templates *notification.TemplateEngine
	logger    zerolog.Logger
	tracer    trace.Tracer
	cfg       Config
	now       func() time.Time
}

func NewService(
	repo Repository,
	checker *ConflictChecker,
	tx Transactor,
	dir Directory,
	meetings meeting.Issuer,
	notify notification.Dispatcher,
	templates *notification.TemplateEngine,
	logger zerolog.Logger,
	cfg Config,
) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{
		repo:      repo,
		checker:   checker,
		tx:        tx,
		dir:       dir,
		meetings:  meetings,
		notify:    notify,
		templates: templates,
		logger:    logger.With().Str("component", "booking").Logger(),
		tracer:    telemetry.Tracer("mindcare/booking"),
		cfg:       cfg,
		now:       time.Now,
	}
}

// CreateRequest is a client's request for one offered slot.
type CreateRequest struct {
	ProfessionalRef string `json:"professional_ref"`
	Date            string `json:"date"`
	Start           string `json:"start_time"`
	End             string `json:"end_time"`
	Modality        string `json:"modality"`
	Concern         string `json:"concern"`
	Notes           string `json:"notes"`
}

// RescheduleRequest moves a confirmed booking to another slot.
type RescheduleRequest struct {
	Date   string `json:"date"`
	Start  string `json:"start_time"`
	End    string `json:"end_time"`
	Reason string `json:"reason"`
}

// slotKey names the advisory lock serializing writers of one slot.
func slotKey(professionalRef string, date time.Time, slot timerange.Slot) string {
	return fmt.Sprintf("booking:%s:%s:%s", professionalRef, timerange.FormatDate(date), slot)
}

func (s *Service) today() time.Time {
	now := s.now().In(s.cfg.Location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.cfg.Location)
}

// localize pins a stored calendar date to the booking location.
func (s *Service) localize(b *Booking) *Booking {
	b.Date = time.Date(b.Date.Year(), b.Date.Month(), b.Date.Day(), 0, 0, 0, 0, s.cfg.Location)
	return b
}

// parseFutureSlot validates a date and slot a booking is about to claim.
func (s *Service) parseFutureSlot(op, date, start, end string) (time.Time, timerange.Slot, error) {
	d, err := timerange.ParseDate(date, s.cfg.Location)
	if err != nil {
		return time.Time{}, timerange.Slot{}, err
	}
	if d.Before(s.today()) {
		return time.Time{}, timerange.Slot{}, apperror.Validation(op, "date %s is in the past", date)
	}
	slot := timerange.Slot{Start: start, End: end}
	if err := timerange.ValidateSlot(slot); err != nil {
		return time.Time{}, timerange.Slot{}, err
	}
	return d, slot, nil
}

func (s *Service) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, op, trace.WithAttributes(attrs...))
}

// claim re-runs the conflict check under the slot lock. It must be called
// inside a transaction.
func (s *Service) claim(ctx context.Context, op, professionalRef string, date time.Time, slot timerange.Slot, exclude uuid.UUID) error {
	if err := s.tx.LockKey(ctx, slotKey(professionalRef, date, slot)); err != nil {
		return err
	}
	check, err := s.checker.IsSlotFreeExcluding(ctx, professionalRef, date, slot.Start, slot.End, exclude)
	if err != nil {
		return err
	}
	if !check.Free {
		return apperror.SlotUnavailable(op, "slot %s on %s is not available: %s",
			slot, timerange.FormatDate(date), check.message())
	}
	return nil
}

// Create books an offered slot for the calling client. The booking starts
// Pending and the professional is notified.
func (s *Service) Create(ctx context.Context, caller auth.Identity, req CreateRequest) (b *Booking, err error) {
	const op = "booking.Create"
	ctx, span := s.start(ctx, op, attribute.String("professional.ref", req.ProfessionalRef))
	defer func() { telemetry.End(span, err, expectedErrs...) }()

	if !caller.IsClient() {
		return nil, apperror.Forbidden(op, "only clients can request bookings")
	}
	me, err := s.dir.ByAccount(ctx, caller.ID)
	if err != nil && apperror.KindOf(err) != apperror.KindNotFound {
		return nil, fmt.Errorf("%s: resolve caller: %w", op, err)
	}
	if err != nil || !me.Active {
		return nil, apperror.Forbidden(op, "account is not registered as an active client")
	}
	modality, err := ParseModality(req.Modality)
	if err != nil {
		return nil, err
	}
	date, slot, err := s.parseFutureSlot(op, req.Date, req.Start, req.End)
	if err != nil {
		return nil, err
	}
	pro, err := s.dir.ActiveProfessionalByRef(ctx, req.ProfessionalRef)
	if err != nil {
		return nil, err
	}

	b = &Booking{
		ID:              uuid.New(),
		UserRef:         me.Ref,
		ProfessionalRef: pro.Ref,
		Date:            date,
		Start:           slot.Start,
		End:             slot.End,
		Modality:        modality,
		Concern:         strings.TrimSpace(req.Concern),
		Notes:           strings.TrimSpace(req.Notes),
		Status:          StatusPending,
	}
	span.SetAttributes(attribute.String("booking.id", b.ID.String()))

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.claim(ctx, op, pro.Ref, date, slot, uuid.Nil); err != nil {
			return err
		}
		return s.repo.Insert(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("booking_id", b.ID.String()).Str("professional_ref", pro.Ref).Msg("booking created")
	s.announce(ctx, b, notification.EventBookingRequested, "", pro)
	return b, nil
}

// party is the caller's side of a booking.
type party int

const (
	notParty party = iota
	clientParty
	professionalParty
)

func (s *Service) partyOf(ctx context.Context, caller auth.Identity, b *Booking) (party, error) {
	me, err := s.dir.ByAccount(ctx, caller.ID)
	if apperror.KindOf(err) == apperror.KindNotFound {
		return notParty, nil
	}
	if err != nil {
		return notParty, err
	}
	switch {
	case caller.IsClient() && me.Ref == b.UserRef:
		return clientParty, nil
	case caller.IsProfessional() && me.Ref == b.ProfessionalRef:
		return professionalParty, nil
	}
	return notParty, nil
}

// load fetches a booking and requires the caller to be one of its parties.
func (s *Service) load(ctx context.Context, op string, caller auth.Identity, id uuid.UUID) (*Booking, party, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, notParty, err
	}
	side, err := s.partyOf(ctx, caller, b)
	if err != nil {
		return nil, notParty, err
	}
	if side == notParty {
		return nil, notParty, apperror.Forbidden(op, "not a party to booking %s", id)
	}
	return s.localize(b), side, nil
}

func (s *Service) Get(ctx context.Context, caller auth.Identity, id uuid.UUID) (*Booking, error) {
	b, _, err := s.load(ctx, "booking.Get", caller, id)
	return b, err
}

// ListMine pages through the caller's bookings, newest session first.
func (s *Service) ListMine(ctx context.Context, caller auth.Identity, f ListFilter) ([]*Booking, int, error) {
	me, err := s.dir.ByAccount(ctx, caller.ID)
	if apperror.KindOf(err) == apperror.KindNotFound {
		return []*Booking{}, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	items, total, err := s.repo.ListByParty(ctx, me.Ref, f)
	if err != nil {
		return nil, 0, err
	}
	for _, b := range items {
		s.localize(b)
	}
	return items, total, nil
}

// Confirm accepts a booking. The professional confirms a Pending booking; the
// client confirms a Rescheduled one. The slot is re-validated first and a
// meeting resource is attached if the booking has none.
func (s *Service) Confirm(ctx context.Context, caller auth.Identity, id uuid.UUID) (b *Booking, err error) {
	const op = "booking.Confirm"
	ctx, span := s.start(ctx, op, attribute.String("booking.id", id.String()))
	defer func() { telemetry.End(span, err, expectedErrs...) }()

	b, side, err := s.load(ctx, op, caller, id)
	if err != nil {
		return nil, err
	}
	from := b.Status
	switch {
	case from == StatusPending && side != professionalParty:
		return nil, apperror.Forbidden(op, "only the professional can confirm a pending booking")
	case from == StatusRescheduled && side != clientParty:
		return nil, apperror.Forbidden(op, "only the client can accept a rescheduled booking")
	case !CanTransition(from, StatusConfirmed):
		return nil, apperror.InvalidTransition(op, "cannot confirm a %s booking", from)
	}

	// Issued outside the transaction; discarded if the transition loses.
	if b.MeetingLink == "" {
		res, err := s.meetings.Issue(ctx, b.ID.String())
		if err != nil {
			return nil, fmt.Errorf("%s: issue meeting: %w", op, err)
		}
		b.MeetingLink, b.MeetingPassword = res.JoinURL, res.Password
	}
	b.Status = StatusConfirmed

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.claim(ctx, op, b.ProfessionalRef, b.Date, b.Slot(), b.ID); err != nil {
			return err
		}
		return s.repo.UpdateStatus(ctx, b, from)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("booking_id", b.ID.String()).Str("from", string(from)).Msg("booking confirmed")
	parties := s.parties(ctx, b)
	s.announce(ctx, b, notification.EventBookingConfirmed, "", parties...)
	s.scheduleReminders(ctx, b, parties)
	return b, nil
}

// Cancel ends an active booking on behalf of either party.
func (s *Service) Cancel(ctx context.Context, caller auth.Identity, id uuid.UUID, reason string) (b *Booking, err error) {
	const op = "booking.Cancel"
	ctx, span := s.start(ctx, op, attribute.String("booking.id", id.String()))
	defer func() { telemetry.End(span, err, expectedErrs...) }()

	b, _, err = s.load(ctx, op, caller, id)
	if err != nil {
		return nil, err
	}
	from := b.Status
	if !CanTransition(from, StatusCancelled) {
		return nil, apperror.InvalidTransition(op, "cannot cancel a %s booking", from)
	}
	b.Status = StatusCancelled
	b.CancellationReason = strings.TrimSpace(reason)

	if err := s.repo.UpdateStatus(ctx, b, from); err != nil {
		return nil, err
	}

	s.logger.Info().Str("booking_id", b.ID.String()).Str("from", string(from)).Msg("booking cancelled")
	s.announce(ctx, b, notification.EventBookingCancelled, b.CancellationReason, s.parties(ctx, b)...)
	return b, nil
}

// Complete marks a confirmed session as held. Professional only.
func (s *Service) Complete(ctx context.Context, caller auth.Identity, id uuid.UUID) (b *Booking, err error) {
	const op = "booking.Complete"
	ctx, span := s.start(ctx, op, attribute.String("booking.id", id.String()))
	defer func() { telemetry.End(span, err, expectedErrs...) }()

	b, side, err := s.load(ctx, op, caller, id)
	if err != nil {
		return nil, err
	}
	if side != professionalParty {
		return nil, apperror.Forbidden(op, "only the assigned professional can complete a booking")
	}
	from := b.Status
	if !CanTransition(from, StatusCompleted) {
		return nil, apperror.InvalidTransition(op, "cannot complete a %s booking", from)
	}
	b.Status = StatusCompleted

	if err := s.repo.UpdateStatus(ctx, b, from); err != nil {
		return nil, err
	}

	s.logger.Info().Str("booking_id", b.ID.String()).Msg("booking completed")
	if client, err := s.dir.ByRef(ctx, b.UserRef); err == nil {
		s.announce(ctx, b, notification.EventBookingCompleted, "", client)
	} else {
		s.warn(b, "", "resolve client", err)
	}
	return b, nil
}

// Reschedule moves a confirmed booking to another offered slot of the same
// professional. The booking becomes Rescheduled until the client confirms.
func (s *Service) Reschedule(ctx context.Context, caller auth.Identity, id uuid.UUID, req RescheduleRequest) (b *Booking, err error) {
	const op = "booking.Reschedule"
	ctx, span := s.start(ctx, op, attribute.String("booking.id", id.String()))
	defer func() { telemetry.End(span, err, expectedErrs...) }()

	b, side, err := s.load(ctx, op, caller, id)
	if err != nil {
		return nil, err
	}
	if side != professionalParty {
		return nil, apperror.Forbidden(op, "only the assigned professional can reschedule a booking")
	}
	from := b.Status
	if !CanTransition(from, StatusRescheduled) {
		return nil, apperror.InvalidTransition(op, "cannot reschedule a %s booking", from)
	}
	date, slot, err := s.parseFutureSlot(op, req.Date, req.Start, req.End)
	if err != nil {
		return nil, err
	}

	b.Date, b.Start, b.End = date, slot.Start, slot.End
	b.Status = StatusRescheduled
	b.CancellationReason = strings.TrimSpace(req.Reason)

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.claim(ctx, op, b.ProfessionalRef, date, slot, b.ID); err != nil {
			return err
		}
		return s.repo.UpdateStatus(ctx, b, from)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("booking_id", b.ID.String()).Str("date", req.Date).Str("slot", slot.String()).Msg("booking rescheduled")
	if client, err := s.dir.ByRef(ctx, b.UserRef); err == nil {
		s.announce(ctx, b, notification.EventBookingRescheduled, b.CancellationReason, client)
	} else {
		s.warn(b, "", "resolve client", err)
	}
	return b, nil
}

// CheckSlot exposes the conflict checker to callers.
func (s *Service) CheckSlot(ctx context.Context, professionalRef, date, start, end string) (SlotCheck, error) {
	d, err := timerange.ParseDate(date, s.cfg.Location)
	if err != nil {
		return SlotCheck{}, err
	}
	return s.checker.IsSlotFree(ctx, professionalRef, d, start, end)
}
