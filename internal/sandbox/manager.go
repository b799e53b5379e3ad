// Package sandbox resolves the preview sandbox a user's code runs in and keeps
// sandbox records reconciled with their expiry.
package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Ojasdixit/boltdiy/internal/config"
	"github.com/Ojasdixit/boltdiy/internal/domain"
	"github.com/Ojasdixit/boltdiy/internal/errors"
)

// shortIDLen is how much of the user id goes into a sandbox host name.
const shortIDLen = 8

// Store is the part of the persistence facade the Manager needs. Now is the
// store's clock, used to judge whether a returned sandbox is still fresh.
type Store interface {
	Now() time.Time
	GetActiveSandbox(ctx context.Context, p *domain.Principal) (*domain.Sandbox, error)
	CreateSandbox(ctx context.Context, p *domain.Principal, sandboxURL string) (*domain.Sandbox, error)
}

// Manager implements get-or-create for a user's preview sandbox.
//
// Ensure is not atomic: two callers that both find no live sandbox will each
// create one, and both rows stay active until they expire. The Manager never
// deletes or expires rows itself; that is the Sweeper's job.
type Manager struct {
	store  Store
	domain string
	logger *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerLogger sets the logger used for lookup and creation failures.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a Manager. Sandbox hosts are placed under
// cfg.SandboxDomain; a nil cfg uses the defaults.
func NewManager(store Store, cfg *config.Config, opts ...ManagerOption) *Manager {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	sandboxDomain := strings.Trim(strings.TrimSpace(cfg.SandboxDomain), ".")
	if sandboxDomain == "" {
		sandboxDomain = config.DefaultConfig().SandboxDomain
	}
	m := &Manager{
		store:  store,
		domain: sandboxDomain,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// BuildURL derives the sandbox URL for p. The same principal always maps to
// the same URL.
func (m *Manager) BuildURL(p *domain.Principal) (string, error) {
	if !p.Authenticated() {
		return "", errors.NewUnauthenticated()
	}
	return fmt.Sprintf("https://sandbox-%s.%s", strings.ToLower(p.ShortID(shortIDLen)), m.domain), nil
}

// Ensure returns p's live sandbox, creating one when there is none. A row the
// store reports as active but that is past its expiry counts as none.
// created reports whether a new row was inserted.
func (m *Manager) Ensure(ctx context.Context, p *domain.Principal) (sb *domain.Sandbox, created bool, err error) {
	if !p.Authenticated() {
		return nil, false, errors.NewUnauthenticated()
	}

	existing, err := m.store.GetActiveSandbox(ctx, p)
	if err != nil {
		m.logger.ErrorContext(ctx, "active sandbox lookup failed", "user_id", p.ID, "error", err)
		return nil, false, err
	}
	if existing != nil && existing.IsLive(m.store.Now()) {
		return existing, false, nil
	}

	sandboxURL, err := m.BuildURL(p)
	if err != nil {
		return nil, false, err
	}

	sb, err = m.store.CreateSandbox(ctx, p, sandboxURL)
	if err != nil {
		m.logger.ErrorContext(ctx, "sandbox creation failed", "user_id", p.ID, "error", err)
		return nil, false, err
	}
	m.logger.InfoContext(ctx, "sandbox created", "user_id", p.ID, "sandbox_id", sb.ID, "url", sb.URL)
	return sb, true, nil
}

// PreviewResult describes the outcome of a Preview request.
type PreviewResult struct {
	Ready   bool            `json:"ready"`
	URL     string          `json:"sandbox_url,omitempty"`
	Created bool            `json:"created"`
	Sandbox *domain.Sandbox `json:"sandbox,omitempty"`
	Code    string          `json:"code"`
}

// Preview resolves the sandbox that code should be shown in and calls onReady
// with its URL. On failure the result is not ready, onReady is not called and
// the request can simply be repeated.
func (m *Manager) Preview(ctx context.Context, p *domain.Principal, code string, onReady func(sandboxURL string)) (*PreviewResult, error) {
	sb, created, err := m.Ensure(ctx, p)
	if err != nil {
		return &PreviewResult{Code: code}, err
	}

	if onReady != nil {
		onReady(sb.URL)
	}
	return &PreviewResult{
		Ready:   true,
		URL:     sb.URL,
		Created: created,
		Sandbox: sb,
		Code:    code,
	}, nil
}
