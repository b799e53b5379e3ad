package ops

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Ojasdixit/boltdiy/internal/db"
	"github.com/Ojasdixit/boltdiy/internal/domain"
	"github.com/Ojasdixit/boltdiy/internal/errors"
)

// SweepOutput contains the result of a sweep.
type SweepOutput struct {
	Expired int    `json:"expired"`
	Message string `json:"message"`
}

// CreateSandbox records a new active sandbox for the caller that expires one
// TTL after creation.
func (f *Facade) CreateSandbox(ctx context.Context, p *domain.Principal, sandboxURL string) (*domain.Sandbox, error) {
	if err := authorize(p); err != nil {
		return nil, err
	}

	sandboxURL = strings.TrimSpace(sandboxURL)
	if err := validateSandboxURL(sandboxURL); err != nil {
		return nil, err
	}

	ttl := f.cfg.SandboxTTL()
	if ttl <= 0 {
		ttl = domain.DefaultSandboxTTL
	}

	now := f.Now()
	id, err := generateULID(now)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	s := &domain.Sandbox{
		ID:        id,
		UserID:    p.ID,
		URL:       sandboxURL,
		Status:    domain.SandboxActive,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := db.InsertSandbox(ctx, f.db, s); err != nil {
		return nil, f.storeFailed(ctx, "create sandbox", p, err)
	}
	return s, nil
}

// GetActiveSandbox returns the caller's newest sandbox that is active and not
// past expiry, or nil when there is none. A row still marked active after its
// expiry is treated as absent.
func (f *Facade) GetActiveSandbox(ctx context.Context, p *domain.Principal) (*domain.Sandbox, error) {
	if err := authorize(p); err != nil {
		return nil, err
	}

	s, err := db.GetActiveSandbox(ctx, f.db, p.ID, f.Now())
	if errors.Is(err, errors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, f.storeFailed(ctx, "load active sandbox", p, err)
	}
	return s, nil
}

// ListSandboxes returns all of the caller's sandboxes regardless of status, newest first.
func (f *Facade) ListSandboxes(ctx context.Context, p *domain.Principal) ([]domain.Sandbox, error) {
	if err := authorize(p); err != nil {
		return nil, err
	}

	items, err := db.ListSandboxes(ctx, f.db, p.ID)
	if err != nil {
		return nil, f.storeFailed(ctx, "list sandboxes", p, err)
	}
	return items, nil
}

// DeactivateSandbox marks one of the caller's sandboxes inactive.
// Unlike the lookups, an unknown id is reported as NOT_FOUND.
func (f *Facade) DeactivateSandbox(ctx context.Context, p *domain.Principal, id string) error {
	if err := authorize(p); err != nil {
		return err
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return errors.NewInvalidRequest("sandbox id is required")
	}

	err := db.SetSandboxStatus(ctx, f.db, p.ID, id, domain.SandboxInactive)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return f.storeFailed(ctx, "deactivate sandbox", p, err)
	}
	return err
}

// SweepExpiredSandboxes marks the caller's sandboxes whose expiry has passed
// as expired. Running it again immediately changes nothing.
func (f *Facade) SweepExpiredSandboxes(ctx context.Context, p *domain.Principal) (*SweepOutput, error) {
	if err := authorize(p); err != nil {
		return nil, err
	}
	return f.sweep(ctx, p)
}

// SweepAllExpiredSandboxes is the out-of-band maintenance sweep across every user.
func (f *Facade) SweepAllExpiredSandboxes(ctx context.Context) (*SweepOutput, error) {
	return f.sweep(ctx, nil)
}

func (f *Facade) sweep(ctx context.Context, p *domain.Principal) (*SweepOutput, error) {
	userID := ""
	if p != nil {
		userID = p.ID
	}

	count, err := db.ExpireSandboxes(ctx, f.db, userID, f.Now())
	if err != nil {
		return nil, f.storeFailed(ctx, "expire sandboxes", p, err)
	}

	return &SweepOutput{
		Expired: count,
		Message: formatSweepMessage(count),
	}, nil
}

// formatSweepMessage creates a human-readable message for the sweep result.
func formatSweepMessage(count int) string {
	if count == 0 {
		return "No stale sandboxes to expire"
	}
	word := "sandbox"
	if count > 1 {
		word = "sandboxes"
	}
	return fmt.Sprintf("Expired %d %s", count, word)
}

// validateSandboxURL requires an absolute http(s) URL with a host.
func validateSandboxURL(raw string) error {
	if raw == "" {
		return errors.NewInvalidRequest("sandbox url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return errors.NewInvalidRequest("sandbox url is invalid: " + err.Error())
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.NewInvalidRequest("sandbox url must be an absolute http(s) URL")
	}
	return nil
}
