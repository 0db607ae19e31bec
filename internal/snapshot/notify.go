package snapshot

import (
	"sync"
)

// Change describes one snapshot swap: the new ETag and the flag keys whose
// definition differs from the previous snapshot.
type Change struct {
	ETag string
	Keys []string
}

type hub struct {
	mu   sync.Mutex
	subs map[chan Change]struct{}
}

// Subscribe registers a listener and returns its channel and an unsubscribe
// func. The channel is buffered by one; a slow listener misses intermediate
// changes instead of blocking publishers.
func (h *Holder) Subscribe() (<-chan Change, func()) {
	ch := make(chan Change, 1)
	h.hub.mu.Lock()
	if h.hub.subs == nil {
		h.hub.subs = make(map[chan Change]struct{})
	}
	h.hub.subs[ch] = struct{}{}
	h.hub.mu.Unlock()

	unsub := func() {
		h.hub.mu.Lock()
		if _, ok := h.hub.subs[ch]; ok {
			delete(h.hub.subs, ch)
			close(ch)
		}
		h.hub.mu.Unlock()
	}
	return ch, unsub
}

func (h *hub) publish(c Change) {
	h.mu.Lock()
	for ch := range h.subs {
		select {
		case ch <- c:
		default: // slow listener, skip instead of blocking
		}
	}
	h.mu.Unlock()
}
