package service

import (
	"sync"
	"time"
)

// Dedup suppresses keys seen within a time-to-live window. It is safe for
// concurrent use.
type Dedup struct {
	seen map[string]time.Time // key -> last seen time
	ttl  time.Duration
	mu   sync.Mutex
	now  func() time.Time
}

// NewDedup creates a Dedup that treats a key as a duplicate if it was seen
// within ttl.
func NewDedup(ttl time.Duration) *Dedup {
	return &Dedup{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Seen reports whether key was marked within the TTL window. It does not
// record key.
func (d *Dedup) Seen(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	lastSeen, ok := d.seen[key]
	return ok && d.now().Sub(lastSeen) < d.ttl
}

// Mark records keys as seen now.
func (d *Dedup) Mark(keys ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for _, k := range keys {
		d.seen[k] = now
	}
}

// Cleanup removes expired entries.
func (d *Dedup) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for key, ts := range d.seen {
		if now.Sub(ts) >= d.ttl {
			delete(d.seen, key)
		}
	}
}
