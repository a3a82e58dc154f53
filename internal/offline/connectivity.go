package offline

import "sync"

// Connectivity follows the online state seen by network fetches and tells
// pages when it flips
type Connectivity struct {
	mu      sync.Mutex
	online  bool
	clients *Clients
}

func NewConnectivity(clients *Clients) *Connectivity {
	return &Connectivity{online: true, clients: clients}
}

// Observe records a fetch outcome
func (c *Connectivity) Observe(online bool) {
	c.mu.Lock()
	changed := c.online != online
	c.online = online
	c.mu.Unlock()

	if changed {
		c.clients.Broadcast(onlineStatus(online, nil))
	}
}

func (c *Connectivity) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}
