package ops

import (
	"context"
	"strings"

	"github.com/Ojasdixit/boltdiy/internal/db"
	"github.com/Ojasdixit/boltdiy/internal/domain"
	"github.com/Ojasdixit/boltdiy/internal/errors"
)

// SaveCodeInput contains parameters for the SaveCode operation.
type SaveCodeInput struct {
	Content  string // may be empty
	Language string // default: cfg.DefaultLanguage
	Path     string // default: cfg.DefaultFilePath
}

// SaveCode upserts the caller's code state for the input path. The first save
// for a path creates the row; later saves overwrite content, language and
// last_modified. Store errors are returned as STORE_FAILURE, never retried.
func (f *Facade) SaveCode(ctx context.Context, p *domain.Principal, input SaveCodeInput) (*domain.CodeState, error) {
	if err := authorize(p); err != nil {
		return nil, err
	}

	path, err := f.resolvePath(input.Path)
	if err != nil {
		return nil, err
	}

	if limit := f.cfg.CodeMaxBytes; limit > 0 && len(input.Content) > limit {
		return nil, errors.NewContentTooLarge(limit, len(input.Content))
	}

	language := input.Language
	if strings.TrimSpace(language) == "" {
		language = f.cfg.DefaultLanguage
	}

	now := f.Now()
	id, err := generateULID(now)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	// id and created_at are discarded by the upsert when the row already exists
	c := &domain.CodeState{
		ID:           id,
		UserID:       p.ID,
		FilePath:     path,
		Content:      input.Content,
		Language:     domain.NormalizeLanguage(language),
		LastModified: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	stored, err := db.UpsertCodeState(ctx, f.db, c)
	if err != nil {
		return nil, f.storeFailed(ctx, "save code state", p, err)
	}
	return stored, nil
}

// LoadCode returns the caller's code state for path, or nil when nothing has
// been saved there yet.
func (f *Facade) LoadCode(ctx context.Context, p *domain.Principal, path string) (*domain.CodeState, error) {
	if err := authorize(p); err != nil {
		return nil, err
	}

	path, err := f.resolvePath(path)
	if err != nil {
		return nil, err
	}

	c, err := db.GetCodeState(ctx, f.db, p.ID, path)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, f.storeFailed(ctx, "load code state", p, err)
	}
	return c, nil
}

// ListCode returns all of the caller's code states, most recently modified first.
func (f *Facade) ListCode(ctx context.Context, p *domain.Principal) ([]domain.CodeState, error) {
	if err := authorize(p); err != nil {
		return nil, err
	}

	items, err := db.ListCodeStates(ctx, f.db, p.ID)
	if err != nil {
		return nil, f.storeFailed(ctx, "list code states", p, err)
	}
	return items, nil
}

// resolvePath applies the configured default and normalizes the result.
func (f *Facade) resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		path = f.cfg.DefaultFilePath
	}
	path = domain.NormalizePath(path)
	if path == "/" {
		return "", errors.NewInvalidRequest("file path must name a file")
	}
	return path, nil
}
