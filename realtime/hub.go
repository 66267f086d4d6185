package realtime

import (
	"context"
	"sync"

	"bloomfeed/core"
)

// Hub is a simple pub/sub for broadcasting activities to channels.
type Hub struct {
	mu   sync.RWMutex
	subs map[int]chan core.Activity
	next int
}

func NewHub() *Hub { return &Hub{subs: map[int]chan core.Activity{}} }

func (h *Hub) Subscribe(buffer int) (int, <-chan core.Activity) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	ch := make(chan core.Activity, buffer)
	h.subs[id] = ch
	return id, ch
}

func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

func (h *Hub) Broadcast(_ context.Context, a core.Activity) {
	h.mu.RLock()
	// copy to avoid holding lock during send
	receivers := make([]chan core.Activity, 0, len(h.subs))
	for _, ch := range h.subs {
		receivers = append(receivers, ch)
	}
	h.mu.RUnlock()
	for _, ch := range receivers {
		select {
		case ch <- a:
		default: /* drop if full */
		}
	}
}

// MarshalJSON converts an activity to JSON bytes for WebSocket/SSE.
func MarshalJSON(a core.Activity) []byte {
	b, _ := core.MarshalActivity(a)
	return b
}
