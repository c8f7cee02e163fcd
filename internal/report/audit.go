package report

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ginjaninja78/ldcc1-processor/internal/types"
)

// AuditTrail is an append-only record of the run's steps. Safe for
// concurrent use.
type AuditTrail struct {
	mu      sync.Mutex
	now     func() time.Time
	entries []types.AuditTrailEntry
}

// NewAuditTrail creates an empty trail. A nil clock uses time.Now.
func NewAuditTrail(now func() time.Time) *AuditTrail {
	if now == nil {
		now = time.Now
	}
	return &AuditTrail{now: now}
}

// Record appends an entry and returns it.
func (a *AuditTrail) Record(step string, status types.AuditStatus, message string, artifacts ...string) types.AuditTrailEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry := types.AuditTrailEntry{
		ID:        uuid.New().String(),
		Step:      step,
		Status:    status,
		Timestamp: a.now().UTC(),
		Message:   message,
		Artifacts: append([]string(nil), artifacts...),
	}
	a.entries = append(a.entries, entry)
	return entry
}

// Entries returns a copy of the entries in the order recorded.
func (a *AuditTrail) Entries() []types.AuditTrailEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]types.AuditTrailEntry(nil), a.entries...)
}

// Failed reports whether any step failed.
func (a *AuditTrail) Failed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.entries {
		if e.Status == types.AuditFailure {
			return true
		}
	}
	return false
}
