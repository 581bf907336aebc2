package directory

import (
	"context"
	"net/mail"
	"strings"

	"github.com/mindcare/mindcare/internal/platform/apperror"
	"github.com/mindcare/mindcare/internal/platform/auth"
	"github.com/mindcare/mindcare/internal/platform/db"
	"github.com/mindcare/mindcare/internal/platform/meeting"
)

const (
	refAlphabet = "abcdefghjkmnpqrstuvwxyz23456789"
	refLength   = 16
	refAttempts = 3
)

type Service struct {
	repo Repository
	// newRef is swapped in tests.
	newRef func() (string, error)
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, newRef: generateRef}
}

func generateRef() (string, error) {
	s, err := meeting.RandomString(refLength, refAlphabet)
	if err != nil {
		return "", err
	}
	return RefPrefix + s, nil
}

// Register creates or refreshes the participant for accountID. An existing
// participant keeps its reference, role and active flag; only contact
// details are refreshed. Reactivation goes through SetActive.
func (s *Service) Register(ctx context.Context, accountID string, role auth.Role, email, name string) (*Participant, error) {
	const op = "directory.Register"
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, apperror.Validation(op, "account id is required")
	}
	if role != auth.RoleClient && role != auth.RoleProfessional {
		return nil, apperror.Validation(op, "role must be client or professional, got %q", role)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return nil, apperror.Validation(op, "invalid email %q", email)
	}
	existing, err := s.repo.ByAccount(ctx, accountID)
	switch {
	case err == nil && existing.Role != role:
		return nil, apperror.Forbidden(op, "account is registered as %s", existing.Role)
	case err != nil && apperror.KindOf(err) != apperror.KindNotFound:
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < refAttempts; attempt++ {
		ref, err := s.newRef()
		if err != nil {
			return nil, err
		}
		p := &Participant{
			AccountID:   accountID,
			Ref:         ref,
			Role:        role,
			Email:       addr.Address,
			DisplayName: strings.TrimSpace(name),
			Active:      true,
		}
		err = s.repo.Upsert(ctx, p)
		if err == nil {
			return p, nil
		}
		if !db.IsUniqueViolation(err, "participant_ref_key") {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (s *Service) ByAccount(ctx context.Context, accountID string) (*Participant, error) {
	return s.repo.ByAccount(ctx, accountID)
}

func (s *Service) ByRef(ctx context.Context, ref string) (*Participant, error) {
	return s.repo.ByRef(ctx, ref)
}

// ActiveProfessionalByRef resolves ref to a professional who can take
// bookings. Anything else is NotFound so clients cannot discover other accounts.
func (s *Service) ActiveProfessionalByRef(ctx context.Context, ref string) (*Participant, error) {
	p, err := s.repo.ByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !p.IsActiveProfessional() {
		return nil, apperror.NotFound("directory.ActiveProfessionalByRef", "professional %s not found", ref)
	}
	return p, nil
}

func (s *Service) SetActive(ctx context.Context, accountID string, active bool) error {
	return s.repo.SetActive(ctx, accountID, active)
}
