package httpserver

import (
	"sync"

	"redbead/internal/session"
)

// Mounts tracks the live websocket clients so shutdown can close them.
type Mounts struct {
	mu      sync.Mutex
	clients map[*session.Client]struct{}
}

func NewMounts() *Mounts {
	return &Mounts{clients: make(map[*session.Client]struct{})}
}

func (m *Mounts) add(c *session.Client) {
	m.mu.Lock()
	m.clients[c] = struct{}{}
	m.mu.Unlock()
}

func (m *Mounts) remove(c *session.Client) {
	m.mu.Lock()
	delete(m.clients, c)
	m.mu.Unlock()
}

func (m *Mounts) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

// CloseAll closes every live client. Their read pumps then fail and the
// mounts unwind.
func (m *Mounts) CloseAll() {
	m.mu.Lock()
	clients := make([]*session.Client, 0, len(m.clients))
	for c := range m.clients {
		clients = append(clients, c)
	}
	m.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}
