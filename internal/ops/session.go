package ops

import (
	"context"
	"strings"

	"github.com/Ojasdixit/boltdiy/internal/db"
	"github.com/Ojasdixit/boltdiy/internal/domain"
	"github.com/Ojasdixit/boltdiy/internal/errors"
)

// MaxSessionNameChars bounds session names.
const MaxSessionNameChars = 200

// CreateSession inserts a new named session for the caller.
// Names are not required to be unique.
func (f *Facade) CreateSession(ctx context.Context, p *domain.Principal, name string) (*domain.Session, error) {
	if err := authorize(p); err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.NewInvalidRequest("session name is required")
	}
	if len([]rune(name)) > MaxSessionNameChars {
		return nil, errors.NewInvalidRequest("session name is too long")
	}

	now := f.Now()
	id, err := generateULID(now)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	s := &domain.Session{
		ID:        id,
		UserID:    p.ID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.InsertSession(ctx, f.db, s); err != nil {
		return nil, f.storeFailed(ctx, "create session", p, err)
	}
	return s, nil
}

// ListSessions returns the caller's sessions, newest first.
func (f *Facade) ListSessions(ctx context.Context, p *domain.Principal) ([]domain.Session, error) {
	if err := authorize(p); err != nil {
		return nil, err
	}

	items, err := db.ListSessions(ctx, f.db, p.ID)
	if err != nil {
		return nil, f.storeFailed(ctx, "list sessions", p, err)
	}
	return items, nil
}
