// Package keycache holds the most recently issued key per requester, backing
// the best-effort resend command. The cache is process-local and intentionally
// volatile: records survive until overwritten or until the process restarts.
// Expiry timestamps are informational only and never enforced here.
package keycache

import (
	"sync"
	"time"
)

// Record is the last issued key for a requester.
type Record struct {
	Service   string
	Key       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Store is the key cache contract. Put unconditionally overwrites; Get never
// mutates, never expires entries, and signals absence via the second return.
type Store interface {
	Put(userID string, rec Record)
	Get(userID string) (Record, bool)
}

// Memory is the in-process Store implementation. Safe for concurrent use;
// concurrent Puts for the same requester are last-write-wins.
type Memory struct {
	mu   sync.RWMutex
	recs map[string]Record
}

// NewMemory returns an empty in-memory key cache.
func NewMemory() *Memory {
	return &Memory{recs: make(map[string]Record)}
}

// Put stores rec as the latest record for userID, replacing any prior one.
func (m *Memory) Put(userID string, rec Record) {
	m.mu.Lock()
	m.recs[userID] = rec
	m.mu.Unlock()
}

// Get returns the latest record for userID, or ok=false when none exists.
func (m *Memory) Get(userID string) (Record, bool) {
	m.mu.RLock()
	rec, ok := m.recs[userID]
	m.mu.RUnlock()
	return rec, ok
}

// Len returns the number of cached requesters.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.recs)
}
