package domain

import "time"

// DefaultSandboxTTL is how long a sandbox stays live after creation.
const DefaultSandboxTTL = 24 * time.Hour

// SandboxStatus is the stored lifecycle status of a sandbox record.
type SandboxStatus string

const (
	SandboxActive   SandboxStatus = "active"
	SandboxInactive SandboxStatus = "inactive"
	SandboxExpired  SandboxStatus = "expired"
)

// Valid reports whether s is one of the known statuses.
func (s SandboxStatus) Valid() bool {
	switch s {
	case SandboxActive, SandboxInactive, SandboxExpired:
		return true
	}
	return false
}

// Sandbox records an external preview environment: its URL, status and expiry.
// Status and ExpiresAt are independent fields; a row may still read "active"
// after ExpiresAt until a sweep reconciles it.
type Sandbox struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	URL       string        `json:"sandbox_url"`
	Status    SandboxStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// IsLive reports whether the sandbox is active and not yet past its expiry at now.
func (s *Sandbox) IsLive(now time.Time) bool {
	return s.Status == SandboxActive && !s.ExpiresAt.Before(now)
}
