package directory

import "context"

type Repository interface {
	// Upsert inserts p or updates the existing row for p.AccountID. The
	// stored Ref, Role and Active always win; p is overwritten with the
	// stored row.
	Upsert(ctx context.Context, p *Participant) error
	ByAccount(ctx context.Context, accountID string) (*Participant, error)
	ByRef(ctx context.Context, ref string) (*Participant, error)
	SetActive(ctx context.Context, accountID string, active bool) error
}
