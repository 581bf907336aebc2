package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mindcare/mindcare/internal/domain/timerange"
	"github.com/mindcare/mindcare/internal/platform/apperror"
	"github.com/mindcare/mindcare/internal/platform/db"
)

// activeSlotIndex is the partial unique index over active bookings.
const activeSlotIndex = "booking_active_slot_uq"

type bookingRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &bookingRepoPG{pool: pool} }

func (r *bookingRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const bookingCols = `id, user_ref, professional_ref, session_date, start_time, end_time, modality,
	concern, notes, status, meeting_link, meeting_password, cancellation_reason, created_at, updated_at`

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	err := row.Scan(&b.ID, &b.UserRef, &b.ProfessionalRef, &b.Date, &b.Start, &b.End, &b.Modality,
		&b.Concern, &b.Notes, &b.Status, &b.MeetingLink, &b.MeetingPassword, &b.CancellationReason,
		&b.CreatedAt, &b.UpdatedAt)
	return &b, err
}

// mapWriteErr turns a hit on the active-slot index into SlotUnavailable.
func mapWriteErr(op string, b *Booking, err error) error {
	if db.IsUniqueViolation(err, activeSlotIndex) {
		return apperror.SlotUnavailable(op, "slot %s on %s is already booked", b.Slot(), timerange.FormatDate(b.Date))
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (r *bookingRepoPG) Insert(ctx context.Context, b *Booking) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO booking (id, user_ref, professional_ref, session_date, start_time, end_time, modality,
			concern, notes, status)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		b.ID, b.UserRef, b.ProfessionalRef, timerange.FormatDate(b.Date), b.Start, b.End, b.Modality,
		b.Concern, b.Notes, b.Status).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return mapWriteErr("booking.Insert", b, err)
	}
	return nil
}

func (r *bookingRepoPG) Get(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := scanBooking(r.conn(ctx).QueryRow(ctx, `SELECT `+bookingCols+` FROM booking WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("booking.Get", "booking %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("booking.Get: %w", err)
	}
	return b, nil
}

func (r *bookingRepoPG) UpdateStatus(ctx context.Context, b *Booking, from Status) error {
	const op = "booking.UpdateStatus"
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE booking SET
			status = $3, session_date = $4::date, start_time = $5, end_time = $6,
			meeting_link = $7, meeting_password = $8, cancellation_reason = $9, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING updated_at`,
		b.ID, from, b.Status, timerange.FormatDate(b.Date), b.Start, b.End,
		b.MeetingLink, b.MeetingPassword, b.CancellationReason).Scan(&b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.InvalidTransition(op, "booking %s is no longer %s", b.ID, from)
	}
	if err != nil {
		return mapWriteErr(op, b, err)
	}
	return nil
}

func (r *bookingRepoPG) ExistsActive(ctx context.Context, professionalRef string, date time.Time, slot timerange.Slot, exclude uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM booking
			WHERE professional_ref = $1 AND session_date = $2::date
				AND start_time = $3 AND end_time = $4
				AND status IN ('pending', 'confirmed', 'rescheduled')
				AND id <> $5
		)`, professionalRef, timerange.FormatDate(date), slot.Start, slot.End, exclude).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("booking.ExistsActive: %w", err)
	}
	return exists, nil
}

func (r *bookingRepoPG) ActiveSlots(ctx context.Context, professionalRef string, date time.Time) ([]timerange.Slot, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT start_time, end_time FROM booking
		WHERE professional_ref = $1 AND session_date = $2::date
			AND status IN ('pending', 'confirmed', 'rescheduled')
		ORDER BY start_time`, professionalRef, timerange.FormatDate(date))
	if err != nil {
		return nil, fmt.Errorf("booking.ActiveSlots: %w", err)
	}
	defer rows.Close()
	var out []timerange.Slot
	for rows.Next() {
		var s timerange.Slot
		if err := rows.Scan(&s.Start, &s.End); err != nil {
			return nil, fmt.Errorf("booking.ActiveSlots: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *bookingRepoPG) ListByParty(ctx context.Context, ref string, f ListFilter) ([]*Booking, int, error) {
	query := `SELECT ` + bookingCols + ` FROM booking WHERE (user_ref = $1 OR professional_ref = $1)`
	countQuery := `SELECT COUNT(*) FROM booking WHERE (user_ref = $1 OR professional_ref = $1)`
	args := []interface{}{ref}
	idx := 2

	if f.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, idx)
		countQuery += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, f.Status)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("booking.ListByParty: count: %w", err)
	}

	query += fmt.Sprintf(` ORDER BY session_date DESC, start_time DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("booking.ListByParty: %w", err)
	}
	defer rows.Close()
	var items []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("booking.ListByParty: %w", err)
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}
