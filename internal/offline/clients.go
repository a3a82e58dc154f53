package offline

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Message types exchanged with pages
const (
	MessageSkipWaiting        = "SKIP_WAITING"
	MessageOnlineStatusChange = "ONLINE_STATUS_CHANGE"
)

// ErrUnknownMessage is returned for control messages the worker does not handle
var ErrUnknownMessage = errors.New("offline: unknown message type")

// Message is a control message between the worker and its pages
type Message struct {
	Type    string         `json:"type"`
	Payload *StatusPayload `json:"payload,omitempty"`
}

// StatusPayload is the body of ONLINE_STATUS_CHANGE. Error is set when a
// background sync failed.
type StatusPayload struct {
	IsOnline bool   `json:"isOnline"`
	Error    string `json:"error,omitempty"`
}

func onlineStatus(online bool, err error) Message {
	payload := &StatusPayload{IsOnline: online}
	if err != nil {
		payload.Error = err.Error()
	}
	return Message{Type: MessageOnlineStatusChange, Payload: payload}
}

const clientBuffer = 16

// Client is one connected page
type Client struct {
	ID         string
	controller string
	messages   chan Message
}

// Messages delivers broadcasts until the client is removed
func (c *Client) Messages() <-chan Message { return c.messages }

// Clients tracks the pages a worker controls
type Clients struct {
	mu      sync.Mutex
	clients map[string]*Client
}

func NewClients() *Clients {
	return &Clients{clients: make(map[string]*Client)}
}

// Add registers a page controlled by version ("" for uncontrolled)
func (h *Clients) Add(version string) *Client {
	c := &Client{
		ID:         uuid.NewString(),
		controller: version,
		messages:   make(chan Message, clientBuffer),
	}
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	return c
}

// Remove drops a client and closes its channel. It returns how many remain.
func (h *Clients) Remove(id string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(c.messages)
	}
	return len(h.clients)
}

// Broadcast delivers msg to every client with room for it and returns the
// number reached. Full clients miss the message.
func (h *Clients) Broadcast(msg Message) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	sent := 0
	for _, c := range h.clients {
		select {
		case c.messages <- msg:
			sent++
		default:
		}
	}
	return sent
}

// Claim puts every client under version
func (h *Clients) Claim(version string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		c.controller = version
	}
}

// Controller returns the version controlling a client
func (h *Clients) Controller(id string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[id]
	if !ok {
		return "", false
	}
	return c.controller, true
}

func (h *Clients) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
