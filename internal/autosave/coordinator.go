// Package autosave keeps one editing session's buffer in sync with the store.
//
// A Coordinator loads the saved content once when opened, then saves the
// buffer after a quiet period following the last edit. Saves run in the
// background. A failed save is not retried on its own; edits that arrived
// while it ran still get their debounce window.
package autosave

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Ojasdixit/boltdiy/internal/domain"
	"github.com/Ojasdixit/boltdiy/internal/ops"
)

// DefaultDebounce is the quiet period used when no WithDebounce option is given.
const DefaultDebounce = time.Second

// User-visible messages for the Error state.
const (
	MessageSaveFailed = "Failed to save code"
	MessageLoadFailed = "Failed to load saved code"
)

// ErrClosed is returned by Edit and Flush after Close.
var ErrClosed = stderrors.New("autosave: coordinator closed")

// Saver is the part of the persistence facade a Coordinator needs.
type Saver interface {
	SaveCode(ctx context.Context, p *domain.Principal, input ops.SaveCodeInput) (*domain.CodeState, error)
	LoadCode(ctx context.Context, p *domain.Principal, path string) (*domain.CodeState, error)
}

// Coordinator owns the buffer and debounce timer of one (user, path) session.
// It does not coordinate with other Coordinators for the same path; the store's
// upsert decides between concurrent writers.
type Coordinator struct {
	saver    Saver
	p        *domain.Principal
	path     string
	language string
	debounce time.Duration
	sched    Scheduler
	notify   func(Event)
	logger   *slog.Logger
	ctx      context.Context

	mu        sync.Mutex
	content   string
	editSeq   uint64 // bumped on every edit
	savedSeq  uint64 // editSeq of the newest buffer known to be stored
	inFlight  int
	drained   chan struct{} // closed when inFlight drops to zero
	timer     Timer
	timerGen  uint64
	armed     bool
	err       error
	failure   EventKind
	lastSaved *domain.CodeState
	loaded    bool
	closed    bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithDebounce sets the quiet period between the last edit and the save.
func WithDebounce(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// WithScheduler replaces the wall-clock timer source.
func WithScheduler(s Scheduler) Option {
	return func(c *Coordinator) { c.sched = s }
}

// WithNotify registers a callback for load and save outcomes. It is called
// without the coordinator's lock held, from whichever goroutine finished the
// operation.
func WithNotify(fn func(Event)) Option {
	return func(c *Coordinator) { c.notify = fn }
}

// WithLanguage sets the language recorded with every save.
func WithLanguage(language string) Option {
	return func(c *Coordinator) { c.language = language }
}

// WithLogger sets the logger used for failed loads and saves.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Open starts an editing session for path and performs its single load.
// Open returns once the load has finished. A failed load leaves the session
// in StateError with an empty buffer; edits are still accepted.
func Open(ctx context.Context, saver Saver, p *domain.Principal, path string, opts ...Option) *Coordinator {
	c := &Coordinator{
		saver:    saver,
		p:        p,
		path:     path,
		debounce: DefaultDebounce,
		sched:    wallScheduler{},
		logger:   slog.Default(),
		ctx:      context.WithoutCancel(ctx),
	}
	for _, opt := range opts {
		opt(c)
	}

	cs, err := saver.LoadCode(ctx, p, path)

	c.mu.Lock()
	c.loaded = true
	if err != nil {
		c.err = err
		c.failure = EventLoadFailed
	} else if cs != nil {
		c.content = cs.Content
		c.lastSaved = cs
		if c.language == "" {
			c.language = cs.Language
		}
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.ErrorContext(ctx, "autosave load failed", "path", path, "error", err)
		c.emit(Event{Kind: EventLoadFailed, Err: err})
	} else {
		c.emit(Event{Kind: EventLoaded, CodeState: cs})
	}
	return c
}

// Edit replaces the buffer and restarts the debounce window. While a save is
// in flight the new content is only buffered; the next window starts when
// that save completes.
func (c *Coordinator) Edit(content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	c.content = content
	c.editSeq++
	if c.inFlight > 0 {
		return nil
	}
	c.armLocked()
	return nil
}

// Flush saves the current buffer now and waits for the result. It cancels a
// pending debounce but does not wait for, or order itself against, a save
// already in flight.
func (c *Coordinator) Flush(ctx context.Context) (*domain.CodeState, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.disarmLocked()
	content, seq := c.beginSaveLocked()
	c.mu.Unlock()

	return c.save(ctx, content, seq)
}

// Status returns a snapshot of the session.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		State:     c.stateLocked(),
		Content:   c.content,
		Dirty:     c.editSeq > c.savedSeq,
		Saving:    c.inFlight > 0,
		Loaded:    c.loaded,
		Err:       c.err,
		LastSaved: c.lastSaved,
	}
	if c.err != nil {
		st.Message = MessageSaveFailed
		if c.failure == EventLoadFailed {
			st.Message = MessageLoadFailed
		}
	}
	return st
}

// Wait blocks until no save is in flight or ctx is done. A debounce that is
// armed but has not fired is not waited for.
func (c *Coordinator) Wait(ctx context.Context) error {
	c.mu.Lock()
	if c.inFlight == 0 {
		c.mu.Unlock()
		return nil
	}
	ch := c.drained
	c.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels any pending debounce. Saves already in flight still complete
// and are still reported.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.disarmLocked()
}

func (c *Coordinator) stateLocked() State {
	switch {
	case c.inFlight > 0:
		return StateSaving
	case c.armed:
		return StateDirty
	case c.err != nil:
		return StateError
	default:
		return StateIdle
	}
}

func (c *Coordinator) armLocked() {
	c.disarmLocked()
	c.armed = true
	gen := c.timerGen
	c.timer = c.sched.AfterFunc(c.debounce, func() { c.fire(gen) })
}

func (c *Coordinator) disarmLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.armed = false
	c.timerGen++
}

// fire runs when a debounce timer elapses. Timers stopped too late to
// prevent the callback carry an old generation and do nothing.
func (c *Coordinator) fire(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.timerGen || !c.armed {
		c.mu.Unlock()
		return
	}
	c.armed = false
	c.timer = nil
	content, seq := c.beginSaveLocked()
	c.mu.Unlock()

	c.save(c.ctx, content, seq)
}

func (c *Coordinator) beginSaveLocked() (string, uint64) {
	if c.inFlight == 0 {
		c.drained = make(chan struct{})
	}
	c.inFlight++
	return c.content, c.editSeq
}

func (c *Coordinator) save(ctx context.Context, content string, seq uint64) (*domain.CodeState, error) {
	cs, err := c.saver.SaveCode(ctx, c.p, ops.SaveCodeInput{
		Content:  content,
		Language: c.language,
		Path:     c.path,
	})

	c.mu.Lock()
	c.inFlight--
	if err != nil {
		c.err = err
		c.failure = EventSaveFailed
	} else {
		c.err = nil
		// an older save finishing late must not replace a newer result
		if seq >= c.savedSeq {
			c.savedSeq = seq
			c.lastSaved = cs
		}
	}
	// edits buffered while this save ran get their own window, whether or
	// not the save succeeded
	if !c.closed && c.inFlight == 0 && !c.armed && c.editSeq > seq && c.editSeq > c.savedSeq {
		c.armLocked()
	}
	if c.inFlight == 0 && c.drained != nil {
		close(c.drained)
		c.drained = nil
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.ErrorContext(ctx, "autosave save failed", "path", c.path, "error", err)
		c.emit(Event{Kind: EventSaveFailed, Err: err})
		return nil, err
	}
	c.emit(Event{Kind: EventSaved, CodeState: cs})
	return cs, nil
}

func (c *Coordinator) emit(ev Event) {
	if c.notify != nil {
		c.notify(ev)
	}
}
