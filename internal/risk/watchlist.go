// Package risk adapts the investigation-side address bookkeeping the
// Control Plane exposes around sessions: a watchlist of addresses under
// active investigation, consulted to flag known mixer-service addresses for
// the Transaction Filter and to seed the taint map used for path risk scores.
package risk

import (
	"sync"
	"time"
)

// WatchedAddress holds metadata for a monitored address.
type WatchedAddress struct {
	Address    string    `json:"address"`
	Category   string    `json:"category"` // mixer/suspect/exchange
	Label      string    `json:"label"`
	CaseID     string    `json:"caseId"`
	AddedAt    time.Time `json:"addedAt"`
}

// Watchlist is a concurrent-safe set of addresses under investigation.
// Reads (Contains, ListAll, and IsKnownMixer, the last used on the
// traversal's hot path via the filter) take an RLock; writes (Add/Remove) are serialized, mirroring the teacher's
// AddressWatchlist concurrency shape.
type Watchlist struct {
	mu        sync.RWMutex
	addresses map[string]WatchedAddress
}

func NewWatchlist() *Watchlist {
	return &Watchlist{addresses: make(map[string]WatchedAddress)}
}

func (w *Watchlist) Add(addr, category, label, caseID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.addresses[addr] = WatchedAddress{
		Address:  addr,
		Category: category,
		Label:    label,
		CaseID:   caseID,
		AddedAt:  time.Now(),
	}
}

func (w *Watchlist) Remove(addr string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.addresses, addr)
}

func (w *Watchlist) Contains(addr string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, exists := w.addresses[addr]
	return exists
}

func (w *Watchlist) IsKnownMixer(addr string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	entry, exists := w.addresses[addr]
	return exists && entry.Category == "mixer"
}

func (w *Watchlist) ListAll() []WatchedAddress {
	w.mu.RLock()
	defer w.mu.RUnlock()
	list := make([]WatchedAddress, 0, len(w.addresses))
	for _, entry := range w.addresses {
		list = append(list, entry)
	}
	return list
}

func (w *Watchlist) Size() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.addresses)
}
