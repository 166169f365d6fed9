package artifact

import (
	"sync"
	"sync/atomic"
)

// Holder owns the snapshot currently being served. Reload replaces it with a
// freshly loaded snapshot; a snapshot handed out by Current is never changed.
type Holder struct {
	source   string
	format   Format
	current  atomic.Pointer[Snapshot]
	reloadMu sync.Mutex
	hooksMu  sync.RWMutex
	hooks    []func(*Snapshot, error)
}

// NewHolder loads the artifact at source and returns a Holder serving it.
func NewHolder(source string, format Format) (*Holder, error) {
	snap, err := Load(source, format)
	if err != nil {
		return nil, err
	}
	h := &Holder{source: source, format: format}
	h.current.Store(snap)
	return h, nil
}

// NewStaticHolder returns a Holder for an already built snapshot. Reload
// re-reads snap.Source when it is set.
func NewStaticHolder(snap *Snapshot) *Holder {
	h := &Holder{source: snap.Source, format: snap.Format}
	h.current.Store(snap)
	return h
}

// Current returns the snapshot being served.
func (h *Holder) Current() *Snapshot {
	return h.current.Load()
}

// Source returns the artifact path the holder reloads from.
func (h *Holder) Source() string {
	return h.source
}

// OnReload registers fn to be called after every reload attempt. On failure
// fn receives the snapshot still being served and the load error.
func (h *Holder) OnReload(fn func(*Snapshot, error)) {
	h.hooksMu.Lock()
	defer h.hooksMu.Unlock()
	h.hooks = append(h.hooks, fn)
}

// Reload loads the artifact again. On error the previous snapshot stays current.
func (h *Holder) Reload() (*Snapshot, error) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()

	snap, err := Load(h.source, h.format)
	if err == nil {
		h.current.Store(snap)
	}
	served := h.current.Load()

	h.hooksMu.RLock()
	hooks := append([]func(*Snapshot, error){}, h.hooks...)
	h.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(served, err)
	}
	if err != nil {
		return served, err
	}
	return snap, nil
}
