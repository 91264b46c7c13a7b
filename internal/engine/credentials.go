package engine

import (
	"fmt"
	"sync/atomic"
)

// Pool is an ordered set of provider credentials with a shared rotation
// cursor. The cursor is process-wide: the next request continues rotation
// where the previous one left off. Only the rotated executor mutates it.
type Pool struct {
	name   string
	keys   []string
	cursor atomic.Uint64
}

// NewPool builds a pool from an ordered, non-empty credential list.
// Duplicates are dropped, preserving first occurrence.
func NewPool(name string, keys []string) (*Pool, error) {
	seen := make(map[string]struct{}, len(keys))
	unique := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		unique = append(unique, k)
	}
	if len(unique) == 0 {
		return nil, fmt.Errorf("credential pool %q must not be empty", name)
	}
	return &Pool{name: name, keys: unique}, nil
}

// Name identifies the pool in logs and metrics.
func (p *Pool) Name() string { return p.name }

// Size returns the number of credentials.
func (p *Pool) Size() int { return len(p.keys) }

// Cursor returns the current rotation position (monotonic; wraps modulo Size
// on use).
func (p *Pool) Cursor() uint64 { return p.cursor.Load() }

// at returns the credential at absolute position i (wrapping).
func (p *Pool) at(i uint64) string {
	return p.keys[i%uint64(len(p.keys))]
}

// advance moves the shared cursor forward by one. Atomic so concurrent layer
// executions can rotate without a lock.
func (p *Pool) advance() {
	p.cursor.Add(1)
}
