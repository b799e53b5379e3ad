package autosave

import "github.com/Ojasdixit/boltdiy/internal/domain"

// State is the phase of an editing session.
type State int

const (
	// StateIdle means the buffer matches the last save, or nothing is pending.
	StateIdle State = iota
	// StateDirty means an edit is waiting for the debounce window to close.
	StateDirty
	// StateSaving means at least one save is in flight.
	StateSaving
	// StateError means the last load or save failed and the buffer is unsaved.
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDirty:
		return "dirty"
	case StateSaving:
		return "saving"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// EventKind identifies what an Event reports.
type EventKind int

const (
	EventLoaded EventKind = iota + 1
	EventSaved
	EventSaveFailed
	EventLoadFailed
)

func (k EventKind) String() string {
	switch k {
	case EventLoaded:
		return "loaded"
	case EventSaved:
		return "saved"
	case EventSaveFailed:
		return "save_failed"
	case EventLoadFailed:
		return "load_failed"
	default:
		return "unknown"
	}
}

// Event is delivered to the WithNotify callback. CodeState is nil for a load
// that found nothing and for failures.
type Event struct {
	Kind      EventKind
	CodeState *domain.CodeState
	Err       error
}

// Status is a point-in-time view of a Coordinator.
type Status struct {
	State     State
	Content   string
	Dirty     bool
	Saving    bool
	Loaded    bool
	Err       error
	Message   string
	LastSaved *domain.CodeState
}
