package ws

import "sync"

// Hub is the process-local presence registry: identity -> set of live
// connection handles. Eviction is O(1) because every client carries its own
// user id; there is no reverse scan on disconnect.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*Client]struct{})}
}

// Register is idempotent per handle.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.UserID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[c.UserID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.UserID)
		}
	}
}

// SendToUser queues a frame on every handle the user currently holds and
// reports whether at least one handle took it. A miss is a normal condition,
// not an error: the message is already persisted and recoverable over REST.
func (h *Hub) SendToUser(userID string, b []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := false
	for c := range h.clients[userID] {
		if c.Queue(b) {
			delivered = true
		}
	}
	return delivered
}

func (h *Hub) Online(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}
