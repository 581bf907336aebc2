package availability

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mindcare/mindcare/internal/domain/timerange"
	"github.com/mindcare/mindcare/internal/platform/apperror"
	"github.com/mindcare/mindcare/internal/platform/db"
)

type dayRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &dayRepoPG{pool: pool} }

func (r *dayRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

// Slots come back as two position-ordered arrays so a day is one row.
const daySelect = `
	SELECT a.id, a.professional_id, a.weekday, a.available, a.updated_at,
		COALESCE(array_agg(s.start_time ORDER BY s.position) FILTER (WHERE s.availability_id IS NOT NULL), '{}'),
		COALESCE(array_agg(s.end_time ORDER BY s.position) FILTER (WHERE s.availability_id IS NOT NULL), '{}')
	FROM availability a
	LEFT JOIN availability_slot s ON s.availability_id = a.id`

const dayGroup = ` GROUP BY a.id`

func scanDay(row pgx.Row) (*Day, error) {
	var (
		d      Day
		starts []string
		ends   []string
	)
	if err := row.Scan(&d.ID, &d.ProfessionalID, &d.Weekday, &d.Available, &d.UpdatedAt, &starts, &ends); err != nil {
		return nil, err
	}
	if len(starts) != len(ends) {
		return nil, fmt.Errorf("availability %s: %d starts for %d ends", d.ID, len(starts), len(ends))
	}
	d.Slots = make([]timerange.Slot, len(starts))
	for i := range starts {
		d.Slots[i] = timerange.Slot{Start: starts[i], End: ends[i]}
	}
	return &d, nil
}

func (r *dayRepoPG) CreateWeek(ctx context.Context, days []*Day) error {
	q := r.conn(ctx)
	for _, d := range days {
		err := q.QueryRow(ctx, `
			INSERT INTO availability (id, professional_id, weekday, available)
			VALUES ($1, $2, $3, $4)
			RETURNING updated_at`,
			d.ID, d.ProfessionalID, d.Weekday, d.Available).Scan(&d.UpdatedAt)
		if db.IsUniqueViolation(err, "") {
			return apperror.AlreadyInitialized("availability.CreateWeek", "availability already initialized")
		}
		if err != nil {
			return fmt.Errorf("availability.CreateWeek: %w", err)
		}
		if err := r.insertSlots(ctx, q, d); err != nil {
			return err
		}
	}
	return nil
}

func (r *dayRepoPG) ListByProfessional(ctx context.Context, professionalID string) ([]*Day, error) {
	rows, err := r.conn(ctx).Query(ctx, daySelect+` WHERE a.professional_id = $1`+dayGroup, professionalID)
	if err != nil {
		return nil, fmt.Errorf("availability.ListByProfessional: %w", err)
	}
	defer rows.Close()
	var days []*Day
	for rows.Next() {
		d, err := scanDay(rows)
		if err != nil {
			return nil, fmt.Errorf("availability.ListByProfessional: %w", err)
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

func (r *dayRepoPG) GetDay(ctx context.Context, professionalID string, weekday timerange.Weekday) (*Day, error) {
	row := r.conn(ctx).QueryRow(ctx,
		daySelect+` WHERE a.professional_id = $1 AND a.weekday = $2`+dayGroup, professionalID, weekday)
	return r.one(row, "availability.GetDay")
}

func (r *dayRepoPG) GetDayByID(ctx context.Context, id uuid.UUID) (*Day, error) {
	row := r.conn(ctx).QueryRow(ctx, daySelect+` WHERE a.id = $1`+dayGroup, id)
	return r.one(row, "availability.GetDayByID")
}

func (r *dayRepoPG) one(row pgx.Row, op string) (*Day, error) {
	d, err := scanDay(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound(op, "availability day not found")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return d, nil
}

// SaveDay must run inside a transaction. The UPDATE comes first so that
// concurrent saves of one day queue on its row lock before touching slots.
func (r *dayRepoPG) SaveDay(ctx context.Context, d *Day) error {
	q := r.conn(ctx)
	err := q.QueryRow(ctx, `
		UPDATE availability SET available = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`, d.ID, d.Available).Scan(&d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.NotFound("availability.SaveDay", "availability day not found")
	}
	if err != nil {
		return fmt.Errorf("availability.SaveDay: %w", err)
	}
	if _, err := q.Exec(ctx, `DELETE FROM availability_slot WHERE availability_id = $1`, d.ID); err != nil {
		return fmt.Errorf("availability.SaveDay: clear slots: %w", err)
	}
	return r.insertSlots(ctx, q, d)
}

func (r *dayRepoPG) insertSlots(ctx context.Context, q db.Querier, d *Day) error {
	if len(d.Slots) == 0 {
		return nil
	}
	starts := make([]string, len(d.Slots))
	ends := make([]string, len(d.Slots))
	for i, s := range d.Slots {
		starts[i], ends[i] = s.Start, s.End
	}
	_, err := q.Exec(ctx, `
		INSERT INTO availability_slot (availability_id, position, start_time, end_time)
		SELECT $1, t.ord - 1, t.s, t.e
		FROM unnest($2::text[], $3::text[]) WITH ORDINALITY AS t(s, e, ord)`,
		d.ID, starts, ends)
	if err != nil {
		return fmt.Errorf("availability: insert slots: %w", err)
	}
	return nil
}
