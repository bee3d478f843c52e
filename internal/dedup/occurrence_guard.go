package dedup

import (
	"context"
	"sync"
	"time"
)

// OccurrenceGuard claims a (template, occurrence) pair before a task is
// materialized for it. Claim returns false when another scheduler process
// already owns the occurrence. The database transaction remains the final
// guarantee; the guard is a cheap first gate across processes.
type OccurrenceGuard interface {
	Claim(ctx context.Context, templateID string, occurrence time.Time) (bool, error)
	// Release gives a claim back after a failed materialization so the next
	// tick can retry the occurrence.
	Release(ctx context.Context, templateID string, occurrence time.Time) error
}

// MemoryGuard is a process-local guard for single-node deployments and
// tests.
type MemoryGuard struct {
	mu      sync.Mutex
	claimed map[string]struct{}
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{claimed: make(map[string]struct{})}
}

func (g *MemoryGuard) Claim(ctx context.Context, templateID string, occurrence time.Time) (bool, error) {
	key := occurrenceKey(templateID, occurrence)

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.claimed[key]; ok {
		return false, nil
	}
	g.claimed[key] = struct{}{}
	return true, nil
}

func (g *MemoryGuard) Release(ctx context.Context, templateID string, occurrence time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.claimed, occurrenceKey(templateID, occurrence))
	return nil
}

func occurrenceKey(templateID string, occurrence time.Time) string {
	return "occurrence:" + templateID + ":" + occurrence.UTC().Format(time.RFC3339)
}
