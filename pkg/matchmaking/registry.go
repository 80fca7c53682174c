package matchmaking

import (
	"time"

	"github.com/anatoly-dev/go-ws-matchmaker/pkg/models"
	"github.com/google/uuid"
)

// Sender is the send side of a live connection. Send must not block and
// reports whether the message was accepted for delivery.
type Sender interface {
	Send(msg models.ServerMessage) bool
}

// Client is the engine's record of one live connection.
type Client struct {
	ID             string
	DisplayName    string
	Available      bool
	LastPartnerID  string
	ConnectedAt    time.Time
	AvailableSince time.Time

	conn Sender
}

func (c *Client) send(msg models.ServerMessage) bool {
	if c.conn == nil {
		return false
	}
	return c.conn.Send(msg)
}

// Registry maps connection identifiers to client records. It is the single
// source of truth for who is connected.
type Registry struct {
	clients map[string]*Client
	newID   func() string
}

func NewRegistry(newID func() string) *Registry {
	if newID == nil {
		newID = uuid.NewString
	}
	return &Registry{
		clients: make(map[string]*Client),
		newID:   newID,
	}
}

func (r *Registry) Register(conn Sender, now time.Time) *Client {
	id := r.newID()
	for _, exists := r.clients[id]; exists; _, exists = r.clients[id] {
		id = r.newID()
	}

	client := &Client{
		ID:          id,
		ConnectedAt: now,
		conn:        conn,
	}
	r.clients[id] = client
	return client
}

func (r *Registry) Lookup(id string) *Client {
	return r.clients[id]
}

// Unregister removes the record and returns it, or nil if it was already gone.
func (r *Registry) Unregister(id string) *Client {
	client, ok := r.clients[id]
	if !ok {
		return nil
	}
	delete(r.clients, id)
	return client
}

func (r *Registry) Len() int {
	return len(r.clients)
}

func (r *Registry) Each(fn func(*Client)) {
	for _, client := range r.clients {
		fn(client)
	}
}
