package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mindcare/mindcare/internal/domain/availability"
	"github.com/mindcare/mindcare/internal/domain/directory"
	"github.com/mindcare/mindcare/internal/domain/timerange"
	"github.com/mindcare/mindcare/internal/platform/apperror"
	"github.com/mindcare/mindcare/internal/platform/auth"
	"github.com/mindcare/mindcare/internal/platform/meeting"
)

// mockBookingRepo keeps bookings in memory and enforces the active-slot
// uniqueness the database index provides.
type mockBookingRepo struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*Booking
}

func newMockBookingRepo() *mockBookingRepo {
	return &mockBookingRepo{bookings: make(map[uuid.UUID]*Booking)}
}

func sameSlot(a, b *Booking) bool {
	return a.ProfessionalRef == b.ProfessionalRef &&
		timerange.FormatDate(a.Date) == timerange.FormatDate(b.Date) &&
		a.Start == b.Start && a.End == b.End
}

func (m *mockBookingRepo) conflictLocked(b *Booking) bool {
	for _, other := range m.bookings {
		if other.ID != b.ID && other.Status.Active() && sameSlot(other, b) {
			return true
		}
	}
	return false
}

func (m *mockBookingRepo) Insert(_ context.Context, b *Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.Status.Active() && m.conflictLocked(b) {
		return apperror.SlotUnavailable("booking.Insert", "slot already booked")
	}
	b.CreatedAt, b.UpdatedAt = time.Now(), time.Now()
	cp := *b
	m.bookings[b.ID] = &cp
	return nil
}

func (m *mockBookingRepo) Get(_ context.Context, id uuid.UUID) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, apperror.NotFound("booking.Get", "booking %s not found", id)
	}
	cp := *b
	return &cp, nil
}

func (m *mockBookingRepo) UpdateStatus(_ context.Context, b *Booking, from Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.bookings[b.ID]
	if !ok || stored.Status != from {
		return apperror.InvalidTransition("booking.UpdateStatus", "booking %s is no longer %s", b.ID, from)
	}
	if b.Status.Active() && m.conflictLocked(b) {
		return apperror.SlotUnavailable("booking.UpdateStatus", "slot already booked")
	}
	b.UpdatedAt = time.Now()
	cp := *b
	m.bookings[b.ID] = &cp
	return nil
}

func (m *mockBookingRepo) ExistsActive(_ context.Context, professionalRef string, date time.Time, slot timerange.Slot, exclude uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	candidate := &Booking{ID: exclude, ProfessionalRef: professionalRef, Date: date, Start: slot.Start, End: slot.End}
	return m.conflictLocked(candidate), nil
}

func (m *mockBookingRepo) ActiveSlots(_ context.Context, professionalRef string, date time.Time) ([]timerange.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []timerange.Slot
	for _, b := range m.bookings {
		if b.ProfessionalRef == professionalRef && b.Status.Active() &&
			timerange.FormatDate(b.Date) == timerange.FormatDate(date) {
			out = append(out, b.Slot())
		}
	}
	return timerange.SortSlots(out), nil
}

func (m *mockBookingRepo) ListByParty(_ context.Context, ref string, f ListFilter) ([]*Booking, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*Booking
	for _, b := range m.bookings {
		if (b.UserRef == ref || b.ProfessionalRef == ref) && (f.Status == "" || b.Status == f.Status) {
			cp := *b
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StartsAt().After(all[j].StartsAt()) })
	total := len(all)
	if f.Offset >= total {
		return []*Booking{}, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	return all[f.Offset:end], total, nil
}

func (m *mockBookingRepo) activeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.bookings {
		if b.Status.Active() {
			n++
		}
	}
	return n
}

type txState struct {
	held []*sync.Mutex
}

type txKey struct{}

// mockTx emulates transaction-scoped advisory locks: LockKey holds a per-key
// mutex until the enclosing InTx returns.
type mockTx struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
	keys  []string
}

func newMockTx() *mockTx {
	return &mockTx{locks: make(map[string]*sync.Mutex)}
}

func (t *mockTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*txState); ok {
		return fn(ctx)
	}
	st := &txState{}
	defer func() {
		for i := len(st.held) - 1; i >= 0; i-- {
			st.held[i].Unlock()
		}
	}()
	return fn(context.WithValue(ctx, txKey{}, st))
}

func (t *mockTx) LockKey(ctx context.Context, key string) error {
	st, ok := ctx.Value(txKey{}).(*txState)
	if !ok {
		return errors.New("LockKey called outside a transaction")
	}
	t.mu.Lock()
	l, ok := t.locks[key]
	if !ok {
		l = &sync.Mutex{}
		t.locks[key] = l
	}
	t.keys = append(t.keys, key)
	t.mu.Unlock()
	l.Lock()
	st.held = append(st.held, l)
	return nil
}

func (t *mockTx) lockedKeys() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.keys...)
}

// mockDays serves availability days keyed by professional account.
type mockDays struct {
	mu   sync.Mutex
	days map[string]*availability.Day
}

func newMockDays() *mockDays {
	return &mockDays{days: make(map[string]*availability.Day)}
}

func (m *mockDays) set(professionalID string, weekday timerange.Weekday, slots ...timerange.Slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.days[professionalID+"/"+string(weekday)] = &availability.Day{
		ID:             uuid.New(),
		ProfessionalID: professionalID,
		Weekday:        weekday,
		Slots:          slots,
		Available:      len(slots) > 0,
	}
}

func (m *mockDays) GetDay(_ context.Context, professionalID string, weekday timerange.Weekday) (*availability.Day, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.days[professionalID+"/"+string(weekday)]
	if !ok {
		return nil, apperror.NotFound("availability.GetDay", "availability day not found")
	}
	cp := *d
	return &cp, nil
}

type mockDirectory struct {
	mu           sync.Mutex
	participants map[string]*directory.Participant
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{participants: make(map[string]*directory.Participant)}
}

func (m *mockDirectory) add(accountID string, role auth.Role) *directory.Participant {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &directory.Participant{
		AccountID: accountID,
		Ref:       "p_" + accountID,
		Role:      role,
		Email:     accountID + "@example.com",
		Active:    true,
	}
	m.participants[accountID] = p
	return p
}

func (m *mockDirectory) ByAccount(_ context.Context, accountID string) (*directory.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[accountID]
	if !ok {
		return nil, apperror.NotFound("directory.ByAccount", "participant not found")
	}
	return p, nil
}

func (m *mockDirectory) ByRef(_ context.Context, ref string) (*directory.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.participants {
		if p.Ref == ref {
			return p, nil
		}
	}
	return nil, apperror.NotFound("directory.ByRef", "participant not found")
}

func (m *mockDirectory) ActiveProfessionalByRef(ctx context.Context, ref string) (*directory.Participant, error) {
	p, err := m.ByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !p.IsActiveProfessional() {
		return nil, apperror.NotFound("directory.ActiveProfessionalByRef", "professional %s not found", ref)
	}
	return p, nil
}

// stubIssuer hands out numbered meetings, or fails when err is set.
type stubIssuer struct {
	mu  sync.Mutex
	n   int
	err error
}

func (s *stubIssuer) Issue(_ context.Context, bookingID string) (meeting.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return meeting.Resource{}, s.err
	}
	s.n++
	id := fmt.Sprintf("m%d", s.n)
	return meeting.Resource{ID: id, JoinURL: "https://meet.test/j/" + id, Password: "Pw" + bookingID[:4]}, nil
}
