package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mindcare/mindcare/internal/domain/directory"
	"github.com/mindcare/mindcare/internal/domain/timerange"
	"github.com/mindcare/mindcare/internal/platform/apperror"
	"github.com/mindcare/mindcare/internal/platform/auth"
	"github.com/mindcare/mindcare/internal/platform/notification"
)

var (
	// 2026-10-14 is a Wednesday; the next Monday is 2026-10-19.
	fixedNow = time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)
	monday   = "2026-10-19"

	proID   = auth.Identity{ID: "pro", Role: auth.RoleProfessional}
	otherID = auth.Identity{ID: "otherpro", Role: auth.RoleProfessional}
	aliceID = auth.Identity{ID: "alice", Role: auth.RoleClient}
	bobID   = auth.Identity{ID: "bob", Role: auth.RoleClient}

	nineToTen = timerange.Slot{Start: "09:00", End: "10:00"}
	tenToElev = timerange.Slot{Start: "10:00", End: "11:00"}
)

type testEnv struct {
	svc      *Service
	repo     *mockBookingRepo
	tx       *mockTx
	days     *mockDays
	dir      *mockDirectory
	issuer   *stubIssuer
	dispatch *notification.RecordingDispatcher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		repo:     newMockBookingRepo(),
		tx:       newMockTx(),
		days:     newMockDays(),
		dir:      newMockDirectory(),
		issuer:   &stubIssuer{},
		dispatch: &notification.RecordingDispatcher{},
	}
	env.dir.add(proID.ID, auth.RoleProfessional)
	env.dir.add(otherID.ID, auth.RoleProfessional)
	env.dir.add(aliceID.ID, auth.RoleClient)
	env.dir.add(bobID.ID, auth.RoleClient)
	env.days.set(proID.ID, timerange.Monday, nineToTen, tenToElev)

	checker := NewConflictChecker(env.days, env.dir, env.repo)
	env.svc = NewService(env.repo, checker, env.tx, env.dir, env.issuer, env.dispatch,
		notification.NewTemplateEngine(), zerolog.Nop(), Config{Location: time.UTC, ReminderLead: time.Hour})
	env.svc.now = func() time.Time { return fixedNow }
	return env
}

func createReq(slot timerange.Slot) CreateRequest {
	return CreateRequest{
		ProfessionalRef: "p_pro",
		Date:            monday,
		Start:           slot.Start,
		End:             slot.End,
		Modality:        string(ModalityVideo),
		Concern:         "  anxiety  ",
	}
}

func (e *testEnv) mustCreate(t *testing.T, caller auth.Identity, slot timerange.Slot) *Booking {
	t.Helper()
	b, err := e.svc.Create(context.Background(), caller, createReq(slot))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return b
}

func (e *testEnv) isFree(t *testing.T, date string, slot timerange.Slot) bool {
	t.Helper()
	check, err := e.svc.CheckSlot(context.Background(), "p_pro", date, slot.Start, slot.End)
	if err != nil {
		t.Fatalf("check slot: %v", err)
	}
	return check.Free
}

// seed stores a booking in the given status without going through the service.
func (e *testEnv) seed(t *testing.T, status Status) *Booking {
	t.Helper()
	date, _ := timerange.ParseDate(monday, time.UTC)
	b := &Booking{
		ID:              uuid.New(),
		UserRef:         "p_alice",
		ProfessionalRef: "p_pro",
		Date:            date,
		Start:           nineToTen.Start,
		End:             nineToTen.End,
		Modality:        ModalityChat,
		Status:          status,
	}
	if err := e.repo.Insert(context.Background(), b); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return b
}

func TestCreate(t *testing.T) {
	env := newTestEnv(t)
	b := env.mustCreate(t, aliceID, nineToTen)

	if b.Status != StatusPending {
		t.Errorf("expected pending, got %s", b.Status)
	}
	if b.UserRef != "p_alice" || b.ProfessionalRef != "p_pro" {
		t.Errorf("expected pseudonymous refs, got user=%q professional=%q", b.UserRef, b.ProfessionalRef)
	}
	if b.Concern != "anxiety" {
		t.Errorf("expected trimmed concern, got %q", b.Concern)
	}
	if b.MeetingLink != "" || b.MeetingPassword != "" {
		t.Error("expected no meeting before confirmation")
	}

	msgs := env.dispatch.Messages()
	if len(msgs) != 1 || msgs[0].RecipientID != "p_pro" || msgs[0].Type != notification.EventBookingRequested {
		t.Errorf("expected one booking-requested message to the professional, got %+v", msgs)
	}
	emails := env.dispatch.Emails()
	if len(emails) != 1 || emails[0].To != "pro@example.com" {
		t.Errorf("expected one email to the professional, got %+v", emails)
	}

	want := "booking:p_pro:2026-10-19:09:00-10:00"
	keys := env.tx.lockedKeys()
	if len(keys) != 1 || keys[0] != want {
		t.Errorf("expected lock on %q, got %v", want, keys)
	}
}

func TestCreate_Errors(t *testing.T) {
	env := newTestEnv(t)
	ghost := auth.Identity{ID: "ghost", Role: auth.RoleClient}

	tests := []struct {
		name   string
		caller auth.Identity
		mutate func(*CreateRequest)
		want   error
	}{
		{"professional caller", proID, func(*CreateRequest) {}, apperror.ErrForbidden},
		{"unregistered client", ghost, func(*CreateRequest) {}, apperror.ErrForbidden},
		{"unknown modality", aliceID, func(r *CreateRequest) { r.Modality = "carrier-pigeon" }, apperror.ErrValidation},
		{"past date", aliceID, func(r *CreateRequest) { r.Date = "2026-10-12" }, apperror.ErrValidation},
		{"malformed date", aliceID, func(r *CreateRequest) { r.Date = "19/10/2026" }, apperror.ErrValidation},
		{"malformed time", aliceID, func(r *CreateRequest) { r.Start = "9am" }, apperror.ErrValidation},
		{"reversed range", aliceID, func(r *CreateRequest) { r.Start, r.End = "10:00", "09:00" }, apperror.ErrValidation},
		{"unknown professional", aliceID, func(r *CreateRequest) { r.ProfessionalRef = "p_nobody" }, apperror.ErrNotFound},
		{"client ref as professional", aliceID, func(r *CreateRequest) { r.ProfessionalRef = "p_bob" }, apperror.ErrNotFound},
		{"slot not offered", aliceID, func(r *CreateRequest) { r.Start, r.End = "09:30", "10:30" }, apperror.ErrSlotUnavailable},
		{"day unavailable", aliceID, func(r *CreateRequest) { r.Date = "2026-10-20" }, apperror.ErrSlotUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := createReq(nineToTen)
			tt.mutate(&req)
			_, err := env.svc.Create(context.Background(), tt.caller, req)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if n := env.repo.activeCount(); n != 0 {
		t.Errorf("expected no bookings, got %d", n)
	}
}

// failingDirectory fails account lookups the way an unreachable database would.
type failingDirectory struct {
	*mockDirectory
	err error
}

func (f failingDirectory) ByAccount(context.Context, string) (*directory.Participant, error) {
	return nil, f.err
}

func TestCreate_DirectoryFailureIsNotForbidden(t *testing.T) {
	env := newTestEnv(t)
	boom := errors.New("connection refused")
	dir := failingDirectory{env.dir, boom}
	svc := NewService(env.repo, NewConflictChecker(env.days, dir, env.repo), env.tx, dir, env.issuer, env.dispatch,
		notification.NewTemplateEngine(), zerolog.Nop(), Config{Location: time.UTC, ReminderLead: time.Hour})
	svc.now = func() time.Time { return fixedNow }

	_, err := svc.Create(context.Background(), aliceID, createReq(nineToTen))
	if errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("lookup failure reported as forbidden: %v", err)
	}
	if !errors.Is(err, boom) || apperror.KindOf(err) != apperror.KindInternal {
		t.Errorf("expected internal error wrapping the lookup failure, got %v", err)
	}
}

func TestCreate_TodayIsBookable(t *testing.T) {
	env := newTestEnv(t)
	env.days.set(proID.ID, timerange.Wednesday, nineToTen)
	req := createReq(nineToTen)
	req.Date = "2026-10-14"
	if _, err := env.svc.Create(context.Background(), aliceID, req); err != nil {
		t.Fatalf("expected today to be bookable, got %v", err)
	}
}

func runConcurrentCreates(t *testing.T, env *testEnv, n int) (successes int, unavailable int) {
	t.Helper()
	clients := make([]auth.Identity, n)
	for i := range clients {
		id := fmt.Sprintf("client%d", i)
		env.dir.add(id, auth.RoleClient)
		clients[i] = auth.Identity{ID: id, Role: auth.RoleClient}
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	start := make(chan struct{})
	for _, c := range clients {
		wg.Add(1)
		go func(c auth.Identity) {
			defer wg.Done()
			<-start
			_, err := env.svc.Create(context.Background(), c, createReq(nineToTen))
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}(c)
	}
	close(start)
	wg.Wait()

	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, apperror.ErrSlotUnavailable):
			unavailable++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	return successes, unavailable
}

func TestCreate_ConcurrentSameSlot(t *testing.T) {
	env := newTestEnv(t)
	const n = 25
	ok, unavailable := runConcurrentCreates(t, env, n)
	if ok != 1 || unavailable != n-1 {
		t.Errorf("expected 1 success and %d unavailable, got %d and %d", n-1, ok, unavailable)
	}
	if got := env.repo.activeCount(); got != 1 {
		t.Errorf("expected exactly one active booking, got %d", got)
	}
}

// noLockTx skips advisory locks so only the uniqueness check on insert stands
// between concurrent writers.
type noLockTx struct{ *mockTx }

func (noLockTx) LockKey(context.Context, string) error { return nil }

func TestCreate_UniqueIndexBackstop(t *testing.T) {
	env := newTestEnv(t)
	env.svc.tx = noLockTx{env.tx}
	const n = 25
	ok, unavailable := runConcurrentCreates(t, env, n)
	if ok != 1 || unavailable != n-1 {
		t.Errorf("expected 1 success and %d unavailable, got %d and %d", n-1, ok, unavailable)
	}
}

func TestEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if !env.isFree(t, monday, nineToTen) {
		t.Fatal("expected slot to start free")
	}
	b := env.mustCreate(t, aliceID, nineToTen)
	if env.isFree(t, monday, nineToTen) {
		t.Error("expected slot to be taken after create")
	}

	if _, err := env.svc.Create(ctx, bobID, createReq(nineToTen)); !errors.Is(err, apperror.ErrSlotUnavailable) {
		t.Errorf("expected second create to fail with slot unavailable, got %v", err)
	}

	confirmed, err := env.svc.Confirm(ctx, proID, b.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != StatusConfirmed {
		t.Errorf("expected confirmed, got %s", confirmed.Status)
	}
	if confirmed.MeetingLink == "" || confirmed.MeetingPassword == "" {
		t.Error("expected meeting link and password after confirm")
	}

	completed, err := env.svc.Complete(ctx, proID, b.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != StatusCompleted {
		t.Errorf("expected completed, got %s", completed.Status)
	}
	if _, err := env.svc.Cancel(ctx, aliceID, b.ID, "changed my mind"); !errors.Is(err, apperror.ErrInvalidTransition) {
		t.Errorf("expected cancel after completion to fail with invalid transition, got %v", err)
	}
	stored, _ := env.svc.Get(ctx, aliceID, b.ID)
	if stored.Status != StatusCompleted {
		t.Errorf("expected stored status completed, got %s", stored.Status)
	}
}

func TestRescheduleRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.mustCreate(t, aliceID, nineToTen)
	if _, err := env.svc.Confirm(ctx, proID, b.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	firstLink, _ := env.svc.Get(ctx, aliceID, b.ID)

	moved, err := env.svc.Reschedule(ctx, proID, b.ID, RescheduleRequest{
		Date: monday, Start: tenToElev.Start, End: tenToElev.End, Reason: "clash",
	})
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if moved.Status != StatusRescheduled || moved.Start != "10:00" || moved.End != "11:00" {
		t.Errorf("unexpected rescheduled booking: %+v", moved)
	}
	if moved.CancellationReason != "clash" {
		t.Errorf("expected reason to be recorded, got %q", moved.CancellationReason)
	}
	if !env.isFree(t, monday, nineToTen) {
		t.Error("expected original slot to be free after reschedule")
	}
	if env.isFree(t, monday, tenToElev) {
		t.Error("expected new slot to be held after reschedule")
	}

	reconfirmed, err := env.svc.Confirm(ctx, aliceID, b.ID)
	if err != nil {
		t.Fatalf("client confirm: %v", err)
	}
	if reconfirmed.Status != StatusConfirmed {
		t.Errorf("expected confirmed, got %s", reconfirmed.Status)
	}
	if reconfirmed.MeetingLink != firstLink.MeetingLink {
		t.Error("expected the meeting link to survive a reschedule")
	}
	if !env.isFree(t, monday, nineToTen) {
		t.Error("expected original slot to stay free")
	}
}

func TestReschedule_SlotTaken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.mustCreate(t, aliceID, nineToTen)
	env.mustCreate(t, bobID, tenToElev)
	if _, err := env.svc.Confirm(ctx, proID, b.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	_, err := env.svc.Reschedule(ctx, proID, b.ID, RescheduleRequest{Date: monday, Start: "10:00", End: "11:00"})
	if !errors.Is(err, apperror.ErrSlotUnavailable) {
		t.Errorf("expected slot unavailable, got %v", err)
	}
	stored, _ := env.svc.Get(ctx, aliceID, b.ID)
	if stored.Status != StatusConfirmed || stored.Start != "09:00" {
		t.Errorf("expected booking unchanged, got %+v", stored)
	}
}

func TestOwnershipChecks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.mustCreate(t, aliceID, nineToTen)

	if _, err := env.svc.Confirm(ctx, aliceID, b.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("expected client confirm of pending to be forbidden, got %v", err)
	}
	if _, err := env.svc.Confirm(ctx, otherID, b.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("expected another professional to be forbidden, got %v", err)
	}
	if _, err := env.svc.Get(ctx, bobID, b.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("expected a stranger to be forbidden, got %v", err)
	}
	if _, err := env.svc.Cancel(ctx, bobID, b.ID, ""); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("expected a stranger cancel to be forbidden, got %v", err)
	}
	if _, err := env.svc.Get(ctx, aliceID, uuid.New()); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("expected not found for unknown booking, got %v", err)
	}

	if _, err := env.svc.Confirm(ctx, proID, b.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := env.svc.Complete(ctx, aliceID, b.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("expected client complete to be forbidden, got %v", err)
	}
	if _, err := env.svc.Reschedule(ctx, aliceID, b.ID, RescheduleRequest{Date: monday, Start: "10:00", End: "11:00"}); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("expected client reschedule to be forbidden, got %v", err)
	}
	if _, err := env.svc.Reschedule(ctx, proID, b.ID, RescheduleRequest{Date: monday, Start: "10:00", End: "11:00"}); err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if _, err := env.svc.Confirm(ctx, proID, b.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("expected professional confirm of rescheduled to be forbidden, got %v", err)
	}
}

func TestStateMachineClosure(t *testing.T) {
	type op struct {
		name   string
		target Status
		run    func(env *testEnv, b *Booking) error
	}
	ctx := context.Background()
	ops := []op{
		{"confirm", StatusConfirmed, func(env *testEnv, b *Booking) error {
			caller := proID
			if b.Status == StatusRescheduled {
				caller = aliceID
			}
			_, err := env.svc.Confirm(ctx, caller, b.ID)
			return err
		}},
		{"cancel", StatusCancelled, func(env *testEnv, b *Booking) error {
			_, err := env.svc.Cancel(ctx, proID, b.ID, "")
			return err
		}},
		{"complete", StatusCompleted, func(env *testEnv, b *Booking) error {
			_, err := env.svc.Complete(ctx, proID, b.ID)
			return err
		}},
		{"reschedule", StatusRescheduled, func(env *testEnv, b *Booking) error {
			_, err := env.svc.Reschedule(ctx, proID, b.ID, RescheduleRequest{Date: monday, Start: "10:00", End: "11:00"})
			return err
		}},
	}

	for _, from := range AllStatuses() {
		for _, o := range ops {
			t.Run(string(from)+"/"+o.name, func(t *testing.T) {
				env := newTestEnv(t)
				b := env.seed(t, from)
				err := o.run(env, b)
				if CanTransition(from, o.target) {
					if err != nil {
						t.Errorf("expected %s -> %s to succeed, got %v", from, o.target, err)
					}
					return
				}
				if !errors.Is(err, apperror.ErrInvalidTransition) {
					t.Errorf("expected invalid transition for %s -> %s, got %v", from, o.target, err)
				}
				stored, _ := env.repo.Get(ctx, b.ID)
				if stored.Status != from {
					t.Errorf("expected status to stay %s, got %s", from, stored.Status)
				}
			})
		}
	}
}

func TestConfirmCancelRace(t *testing.T) {
	for i := 0; i < 20; i++ {
		env := newTestEnv(t)
		ctx := context.Background()
		b := env.mustCreate(t, aliceID, nineToTen)

		var wg sync.WaitGroup
		var confirmErr, cancelErr error
		start := make(chan struct{})
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			_, confirmErr = env.svc.Confirm(ctx, proID, b.ID)
		}()
		go func() {
			defer wg.Done()
			<-start
			_, cancelErr = env.svc.Cancel(ctx, aliceID, b.ID, "race")
		}()
		close(start)
		wg.Wait()

		stored, _ := env.repo.Get(ctx, b.ID)
		switch {
		case confirmErr == nil && cancelErr == nil:
			// Confirm committed before cancel loaded; cancelling a confirmed
			// booking is legal.
			if stored.Status != StatusCancelled {
				t.Fatalf("expected cancelled after confirm then cancel, got %s", stored.Status)
			}
		case confirmErr == nil:
			if !errors.Is(cancelErr, apperror.ErrInvalidTransition) {
				t.Fatalf("expected losing cancel to see invalid transition, got %v", cancelErr)
			}
			if stored.Status != StatusConfirmed {
				t.Fatalf("expected confirmed, got %s", stored.Status)
			}
		case cancelErr == nil:
			if !errors.Is(confirmErr, apperror.ErrInvalidTransition) {
				t.Fatalf("expected losing confirm to see invalid transition, got %v", confirmErr)
			}
			if stored.Status != StatusCancelled {
				t.Fatalf("expected cancelled, got %s", stored.Status)
			}
		default:
			t.Fatalf("both failed: confirm=%v cancel=%v", confirmErr, cancelErr)
		}
	}
}

func TestConfirm_SchedulesReminders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.mustCreate(t, aliceID, nineToTen)
	env.dispatch.Reset()

	if _, err := env.svc.Confirm(ctx, proID, b.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	reminders := env.dispatch.Reminders()
	if len(reminders) != 2 {
		t.Fatalf("expected a reminder per party, got %d", len(reminders))
	}
	wantAt := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	for _, r := range reminders {
		if !r.At.Equal(wantAt) {
			t.Errorf("expected reminder at %s, got %s", wantAt, r.At)
		}
		if r.Message.Type != notification.EventSessionReminder {
			t.Errorf("unexpected reminder type %s", r.Message.Type)
		}
	}
	if n := len(env.dispatch.Messages()); n != 2 {
		t.Errorf("expected confirmation to both parties, got %d messages", n)
	}
}

func TestConfirm_MeetingFailureLeavesPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.mustCreate(t, aliceID, nineToTen)
	env.issuer.err = errors.New("provider down")

	if _, err := env.svc.Confirm(ctx, proID, b.ID); err == nil {
		t.Fatal("expected error")
	}
	stored, _ := env.repo.Get(ctx, b.ID)
	if stored.Status != StatusPending || stored.MeetingLink != "" {
		t.Errorf("expected booking untouched, got %+v", stored)
	}
}

func TestConfirm_SlotWithdrawn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.mustCreate(t, aliceID, nineToTen)
	env.days.set(proID.ID, timerange.Monday, tenToElev)

	if _, err := env.svc.Confirm(ctx, proID, b.ID); !errors.Is(err, apperror.ErrSlotUnavailable) {
		t.Errorf("expected slot unavailable once the slot is withdrawn, got %v", err)
	}
}

func TestSideEffectFailureDoesNotFailTransition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.mustCreate(t, aliceID, nineToTen)
	env.dispatch.Reset()

	// The client can no longer be resolved for notifications.
	env.dir.mu.Lock()
	env.dir.participants["alice"].Ref = "p_gone"
	env.dir.mu.Unlock()

	confirmed, err := env.svc.Confirm(ctx, proID, b.ID)
	if err != nil {
		t.Fatalf("expected confirm to succeed, got %v", err)
	}
	if confirmed.Status != StatusConfirmed {
		t.Errorf("expected confirmed, got %s", confirmed.Status)
	}
	msgs := env.dispatch.Messages()
	if len(msgs) != 1 || msgs[0].RecipientID != "p_pro" {
		t.Errorf("expected only the professional to be notified, got %+v", msgs)
	}
}

func TestListMine(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := env.mustCreate(t, aliceID, nineToTen)
	env.mustCreate(t, aliceID, tenToElev)
	if _, err := env.svc.Cancel(ctx, aliceID, first.ID, ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	items, total, err := env.svc.ListMine(ctx, aliceID, ListFilter{Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Errorf("expected 2 bookings, got %d/%d", len(items), total)
	}

	items, total, _ = env.svc.ListMine(ctx, aliceID, ListFilter{Status: StatusPending, Limit: 10})
	if total != 1 || items[0].Start != "10:00" {
		t.Errorf("expected only the pending 10:00 booking, got %+v", items)
	}

	items, total, _ = env.svc.ListMine(ctx, proID, ListFilter{Limit: 1})
	if total != 2 || len(items) != 1 {
		t.Errorf("expected professional page of 1 out of 2, got %d/%d", len(items), total)
	}

	items, _, _ = env.svc.ListMine(ctx, bobID, ListFilter{Limit: 10})
	if len(items) != 0 {
		t.Errorf("expected bob to see nothing, got %d", len(items))
	}
}
