package booking

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mindcare/mindcare/internal/platform/apperror"
)

func TestMapWriteErr(t *testing.T) {
	b := &Booking{Date: time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), Start: "09:00", End: "10:00"}

	err := mapWriteErr("booking.Insert", b, &pgconn.PgError{Code: "23505", ConstraintName: activeSlotIndex})
	if !errors.Is(err, apperror.ErrSlotUnavailable) {
		t.Errorf("expected slot unavailable, got %v", err)
	}

	err = mapWriteErr("booking.Insert", b, &pgconn.PgError{Code: "23505", ConstraintName: "booking_pkey"})
	if apperror.KindOf(err) != apperror.KindInternal {
		t.Errorf("expected other unique violations to stay internal, got %v", err)
	}

	cause := errors.New("connection reset")
	err = mapWriteErr("booking.Insert", b, cause)
	if !errors.Is(err, cause) {
		t.Errorf("expected cause to be wrapped, got %v", err)
	}
}
