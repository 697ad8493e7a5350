package browser

import (
	"strings"
	"sync"
)

// HostSet is the per-context set of hosts navigation and redirect inspection
// have established as legitimate. It only ever grows while the context lives.
type HostSet struct {
	mu  sync.Mutex
	set map[string]struct{}
}

func NewHostSet() *HostSet {
	return &HostSet{set: make(map[string]struct{})}
}

func (h *HostSet) Add(host string) {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return
	}

	h.mu.Lock()
	h.set[host] = struct{}{}
	h.mu.Unlock()
}

func (h *HostSet) Has(host string) bool {
	host = strings.ToLower(strings.TrimSpace(host))

	h.mu.Lock()
	_, ok := h.set[host]
	h.mu.Unlock()

	return ok
}
