// Package meeting issues the opaque conferencing handle attached to a
// confirmed booking.
package meeting

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// PasswordAlphabet omits characters that are easy to misread (0/O, 1/l/I).
const PasswordAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnpqrstuvwxyz23456789"

const (
	DefaultURLTemplate    = "https://meet.mindcare.local/j/{id}"
	DefaultPasswordLength = 8
	idPlaceholder         = "{id}"
)

// Resource is a meeting handle. Integrations with real providers return the
// same shape.
type Resource struct {
	ID       string `json:"id"`
	JoinURL  string `json:"join_url"`
	Password string `json:"password"`
}

// Issuer creates a meeting resource for a booking.
type Issuer interface {
	Issue(ctx context.Context, bookingID string) (Resource, error)
}

// RandomIssuer generates resources locally without calling out.
type RandomIssuer struct {
	urlTemplate    string
	passwordLength int
}

// NewRandomIssuer builds an issuer whose join URLs substitute the meeting id
// for {id} in urlTemplate.
func NewRandomIssuer(urlTemplate string, passwordLength int) (*RandomIssuer, error) {
	if !strings.Contains(urlTemplate, idPlaceholder) {
		return nil, fmt.Errorf("meeting url template %q must contain %s", urlTemplate, idPlaceholder)
	}
	if passwordLength <= 0 {
		return nil, fmt.Errorf("meeting password length must be positive, got %d", passwordLength)
	}
	return &RandomIssuer{urlTemplate: urlTemplate, passwordLength: passwordLength}, nil
}

func (r *RandomIssuer) Issue(_ context.Context, _ string) (Resource, error) {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	pw, err := RandomString(r.passwordLength, PasswordAlphabet)
	if err != nil {
		return Resource{}, fmt.Errorf("generate meeting password: %w", err)
	}
	return Resource{
		ID:       id,
		JoinURL:  strings.ReplaceAll(r.urlTemplate, idPlaceholder, id),
		Password: pw,
	}, nil
}

// RandomString draws n characters uniformly from alphabet using crypto/rand.
func RandomString(n int, alphabet string) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[idx.Int64()])
	}
	return b.String(), nil
}
