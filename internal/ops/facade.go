package ops

import (
	"context"
	"crypto/rand"
	"database/sql"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Ojasdixit/boltdiy/internal/config"
	"github.com/Ojasdixit/boltdiy/internal/domain"
	"github.com/Ojasdixit/boltdiy/internal/errors"
)

// Facade translates code, session and sandbox intents into store calls.
// It holds no per-user state; every method takes the principal explicitly
// and never reads or writes rows owned by anyone else.
type Facade struct {
	db     *sql.DB
	cfg    *config.Config
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Facade.
type Option func(*Facade)

// WithClock replaces time.Now, mainly so tests can move time forward.
func WithClock(now func() time.Time) Option {
	return func(f *Facade) { f.now = now }
}

// WithLogger sets the logger used for store failures.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Facade) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New creates a Facade over database. A nil cfg uses config.DefaultConfig().
func New(database *sql.DB, cfg *config.Config, opts ...Option) *Facade {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	f := &Facade{
		db:     database,
		cfg:    cfg,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Config returns the configuration the facade was built with.
func (f *Facade) Config() *config.Config {
	return f.cfg
}

// Now returns the facade clock's current time in UTC, truncated to the
// millisecond precision the store keeps.
func (f *Facade) Now() time.Time {
	return f.now().UTC().Truncate(time.Millisecond)
}

// authorize fails with UNAUTHENTICATED unless p names a user.
func authorize(p *domain.Principal) error {
	if !p.Authenticated() {
		return errors.NewUnauthenticated()
	}
	return nil
}

// storeFailed logs a store-layer error and returns it unchanged.
func (f *Facade) storeFailed(ctx context.Context, op string, p *domain.Principal, err error) error {
	attrs := []any{"op", op, "error", err}
	if p != nil {
		attrs = append(attrs, "user_id", p.ID)
	}
	f.logger.ErrorContext(ctx, "store operation failed", attrs...)
	return err
}

// generateULID generates a new ULID.
func generateULID(at time.Time) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(at), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
