// Package identity resolves the authenticated principal that every
// persistence operation is scoped to. Sign-in and sign-up flows live with the
// external identity provider; this package only answers "who is calling".
package identity

import (
	"context"
	"os"
	"strings"

	"github.com/Ojasdixit/boltdiy/internal/domain"
	"github.com/Ojasdixit/boltdiy/internal/errors"
)

// Environment variables read by Env.
const (
	EnvUser  = "BOLTDIY_USER"
	EnvEmail = "BOLTDIY_EMAIL"
)

// Provider resolves the current principal. A nil principal with a nil error
// means nobody is signed in.
type Provider interface {
	CurrentUser(ctx context.Context) (*domain.Principal, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (*domain.Principal, error)

// CurrentUser calls f.
func (f ProviderFunc) CurrentUser(ctx context.Context) (*domain.Principal, error) {
	return f(ctx)
}

// Env reads the principal id from BOLTDIY_USER. An unset variable means
// nobody is signed in; a set but malformed one is an invalid request.
type Env struct {
	Lookup func(string) (string, bool)
}

// CurrentUser parses the configured user id.
func (e Env) CurrentUser(context.Context) (*domain.Principal, error) {
	lookup := e.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	id, ok := lookup(EnvUser)
	if !ok || strings.TrimSpace(id) == "" {
		return nil, nil
	}
	email, _ := lookup(EnvEmail)
	return Parse(id, email)
}

// Parse validates a raw user id and returns the principal for it.
func Parse(id, email string) (*domain.Principal, error) {
	p, err := domain.ParsePrincipal(id, email)
	if err != nil {
		return nil, errors.NewInvalidRequest("user id must be a UUID: " + err.Error())
	}
	return p, nil
}

// Require resolves the current principal and fails with UNAUTHENTICATED when
// nobody is signed in.
func Require(ctx context.Context, provider Provider) (*domain.Principal, error) {
	if provider == nil {
		return nil, errors.NewUnauthenticated()
	}
	p, err := provider.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if !p.Authenticated() {
		return nil, errors.NewUnauthenticated()
	}
	return p, nil
}

type ctxKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *domain.Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the principal stored by WithPrincipal, if any.
func FromContext(ctx context.Context) *domain.Principal {
	p, _ := ctx.Value(ctxKey{}).(*domain.Principal)
	return p
}

// Context resolves the principal carried on the request context.
var Context Provider = ProviderFunc(func(ctx context.Context) (*domain.Principal, error) {
	return FromContext(ctx), nil
})
