// Package dedupe remembers recently seen keys so a consumer can act on each
// key at most once.
package dedupe

import (
	"context"
	"sync"
)

const defaultMaxSize = 4096

// Deduper records seen keys.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord forgets key so a later attempt is not treated as a duplicate.
	Unrecord(ctx context.Context, key string)

	Size() int
}

// inMemoryDeduper keeps at most maxSize keys and evicts the oldest first.
// A non-positive maxSize keeps every key.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]uint64
	order   []entry
	seq     uint64
	maxSize int
}

// entry ties a key to the record it was inserted with, so a key that was
// unrecorded and recorded again is not evicted by its stale order slot.
type entry struct {
	key string
	seq uint64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]uint64)
	return d
}

// SeenAndRecord implements Deduper.
func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}
	if d.maxSize > 0 {
		for len(d.seen) >= d.maxSize {
			d.evictOldest()
		}
	}
	d.seq++
	d.seen[key] = d.seq
	if d.maxSize > 0 {
		d.order = append(d.order, entry{key: key, seq: d.seq})
		if len(d.order) > 2*d.maxSize {
			d.compact()
		}
	}
	return false
}

// compact drops order slots of unrecorded keys. Must be called with d.mu held.
func (d *inMemoryDeduper) compact() {
	live := d.order[:0]
	for _, e := range d.order {
		if seq, ok := d.seen[e.key]; ok && seq == e.seq {
			live = append(live, e)
		}
	}
	clear(d.order[len(live):])
	d.order = live
}

// Unrecord implements Deduper. The order slot is dropped lazily on eviction.
func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, key)
}

// evictOldest removes the oldest live key. Must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	for len(d.order) > 0 {
		e := d.order[0]
		d.order[0] = entry{}
		d.order = d.order[1:]
		if seq, ok := d.seen[e.key]; ok && seq == e.seq {
			delete(d.seen, e.key)
			return
		}
	}
}

// Size returns the number of keys currently remembered.
func (d *inMemoryDeduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
