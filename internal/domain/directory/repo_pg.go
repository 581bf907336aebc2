package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mindcare/mindcare/internal/platform/apperror"
	"github.com/mindcare/mindcare/internal/platform/db"
)

type participantRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &participantRepoPG{pool: pool} }

func (r *participantRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const participantCols = `account_id, ref, role, email, display_name, active, created_at`

func scanParticipant(row pgx.Row, op string) (*Participant, error) {
	var p Participant
	err := row.Scan(&p.AccountID, &p.Ref, &p.Role, &p.Email, &p.DisplayName, &p.Active, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound(op, "participant not found")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &p, nil
}

func (r *participantRepoPG) Upsert(ctx context.Context, p *Participant) error {
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO participant (account_id, ref, role, email, display_name, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (account_id) DO UPDATE
			SET email = EXCLUDED.email, display_name = EXCLUDED.display_name
		RETURNING `+participantCols,
		p.AccountID, p.Ref, p.Role, p.Email, p.DisplayName, p.Active)
	stored, err := scanParticipant(row, "directory.Upsert")
	if err != nil {
		return err
	}
	*p = *stored
	return nil
}

func (r *participantRepoPG) ByAccount(ctx context.Context, accountID string) (*Participant, error) {
	return scanParticipant(r.conn(ctx).QueryRow(ctx,
		`SELECT `+participantCols+` FROM participant WHERE account_id = $1`, accountID), "directory.ByAccount")
}

func (r *participantRepoPG) ByRef(ctx context.Context, ref string) (*Participant, error) {
	return scanParticipant(r.conn(ctx).QueryRow(ctx,
		`SELECT `+participantCols+` FROM participant WHERE ref = $1`, ref), "directory.ByRef")
}

func (r *participantRepoPG) SetActive(ctx context.Context, accountID string, active bool) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE participant SET active = $2 WHERE account_id = $1`, accountID, active)
	if err != nil {
		return fmt.Errorf("directory.SetActive: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("directory.SetActive", "participant not found")
	}
	return nil
}
