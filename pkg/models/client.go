package models

import (
	"sync"
	"time"
)

// Client is the presence record mirrored to external stores. It is a copy of
// what the matchmaking engine knows about a connection, never the live state.
type Client struct {
	ID          string                 `json:"id"`
	DisplayName string                 `json:"display_name,omitempty"`
	Connected   time.Time              `json:"connected"`
	LastActive  time.Time              `json:"last_active"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	mu          sync.Mutex
}

func NewClient(id string) *Client {
	now := time.Now()
	return &Client{
		ID:         id,
		Connected:  now,
		LastActive: now,
		Metadata:   make(map[string]interface{}),
	}
}

func (c *Client) SetMetadata(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Metadata[key] = value
}

// Presence is an aggregate snapshot of the connected population.
type Presence struct {
	InstanceID string    `json:"instance_id"`
	Total      int       `json:"total"`
	Available  int       `json:"available"`
	Timestamp  time.Time `json:"timestamp"`
}
