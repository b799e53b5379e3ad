package domain

import (
	"strings"

	"github.com/google/uuid"
)

// Principal is the authenticated user every operation is scoped to.
// It carries identity facts only; sign-in state lives with the identity provider.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// ParsePrincipal validates id as a UUID and returns a Principal with the
// canonical lowercase form of it.
func ParsePrincipal(id, email string) (*Principal, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	return &Principal{ID: parsed.String(), Email: strings.TrimSpace(email)}, nil
}

// Authenticated reports whether p names a user.
func (p *Principal) Authenticated() bool {
	return p != nil && p.ID != ""
}

// ShortID returns the first n characters of the principal id.
func (p *Principal) ShortID(n int) string {
	if len(p.ID) <= n {
		return p.ID
	}
	return p.ID[:n]
}
