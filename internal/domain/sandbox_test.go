package domain

import (
	"testing"
	"time"
)

func TestSandboxStatus_Valid(t *testing.T) {
	for _, s := range []SandboxStatus{SandboxActive, SandboxInactive, SandboxExpired} {
		if !s.Valid() {
			t.Errorf("%q.Valid() = false, want true", s)
		}
	}
	if SandboxStatus("running").Valid() {
		t.Error(`"running".Valid() = true, want false`)
	}
}

func TestSandbox_IsLive(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	sb := &Sandbox{
		Status:    SandboxActive,
		CreatedAt: created,
		ExpiresAt: created.Add(DefaultSandboxTTL),
	}

	tests := []struct {
		name   string
		status SandboxStatus
		now    time.Time
		live   bool
	}{
		{"fresh", SandboxActive, created.Add(time.Hour), true},
		{"exactly at expiry", SandboxActive, created.Add(DefaultSandboxTTL), true},
		{"past expiry still active", SandboxActive, created.Add(25 * time.Hour), false},
		{"inactive before expiry", SandboxInactive, created.Add(time.Hour), false},
		{"expired", SandboxExpired, created.Add(25 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sb.Status = tt.status
			if got := sb.IsLive(tt.now); got != tt.live {
				t.Errorf("IsLive() = %v, want %v", got, tt.live)
			}
		})
	}
}
