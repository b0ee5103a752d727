// internal/app/store/local/hub.go
package local

import "sync"

// hub fans out write notifications to live queries, keyed by entity kind.
// Wake channels have a one-slot buffer so a burst of writes collapses into a
// single re-evaluation for a subscriber that has not caught up yet.
type hub struct {
	mu     sync.Mutex
	subs   map[Kind]map[chan struct{}]struct{}
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[Kind]map[chan struct{}]struct{})}
}

func (h *hub) subscribe(kind Kind) chan struct{} {
	ch := make(chan struct{}, 1)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}
	if h.subs[kind] == nil {
		h.subs[kind] = make(map[chan struct{}]struct{})
	}
	h.subs[kind][ch] = struct{}{}
	return ch
}

func (h *hub) unsubscribe(kind Kind, ch chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[kind]; ok {
		delete(set, ch)
	}
}

func (h *hub) notify(kind Kind) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[kind] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for kind, set := range h.subs {
		for ch := range set {
			close(ch)
		}
		delete(h.subs, kind)
	}
}
