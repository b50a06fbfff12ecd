package catalog

import "sync/atomic"

// Holder publishes the active catalog to concurrent readers.
type Holder struct {
	current atomic.Pointer[Catalog]
}

func NewHolder(c *Catalog) *Holder {
	h := &Holder{}
	if c != nil {
		h.current.Store(c)
	}
	return h
}

// Load returns the active catalog or nil. Callers keep using the returned
// value for the whole request even if a swap happens meanwhile.
func (h *Holder) Load() *Catalog {
	return h.current.Load()
}

// Swap installs next and returns the previous catalog.
func (h *Holder) Swap(next *Catalog) *Catalog {
	return h.current.Swap(next)
}
