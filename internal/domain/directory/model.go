// Package directory maps accounts to the pseudonymous references stored on
// bookings. Account ids never leave this package's table; everything a
// counterpart sees is keyed by Ref.
package directory

import (
	"time"

	"github.com/mindcare/mindcare/internal/platform/auth"
)

// RefPrefix marks participant references.
const RefPrefix = "p_"

type Participant struct {
	AccountID   string    `json:"-"`
	Ref         string    `json:"ref"`
	Role        auth.Role `json:"role"`
	Email       string    `json:"-"`
	DisplayName string    `json:"display_name"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

func (p *Participant) IsActiveProfessional() bool {
	return p.Active && p.Role == auth.RoleProfessional
}
