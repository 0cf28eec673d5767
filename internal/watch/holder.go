// Package watch runs interactive rebuilds. File-system events and polling
// ticks enqueue rebuild requests; a single loop goroutine processes them one
// at a time and publishes each new snapshot atomically.
package watch

import (
	"sync/atomic"

	"git.home.luguber.info/inful/docsmith/internal/site"
)

type snapshotPair struct {
	prev *site.Snapshot
	next *site.Snapshot
}

// Holder keeps the previous/current snapshot pair. Readers never observe a
// half-applied rebuild.
type Holder struct {
	pair atomic.Pointer[snapshotPair]
}

// NewHolder returns a holder seeded with initial (which may be nil).
func NewHolder(initial *site.Snapshot) *Holder {
	h := &Holder{}
	h.pair.Store(&snapshotPair{next: initial})
	return h
}

// Current returns the latest published snapshot.
func (h *Holder) Current() *site.Snapshot {
	return h.pair.Load().next
}

// Previous returns the snapshot Current replaced, or nil.
func (h *Holder) Previous() *site.Snapshot {
	return h.pair.Load().prev
}

// Swap publishes next when its fingerprint differs from the current one and
// reports whether it did.
func (h *Holder) Swap(next *site.Snapshot) bool {
	if next == nil {
		return false
	}
	for {
		old := h.pair.Load()
		if old.next != nil && old.next.Fingerprint() == next.Fingerprint() {
			return false
		}
		if h.pair.CompareAndSwap(old, &snapshotPair{prev: old.next, next: next}) {
			return true
		}
	}
}
