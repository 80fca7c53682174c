package models

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventTypeClientConnected    EventType = "client_connected"
	EventTypeClientDisconnected EventType = "client_disconnected"
	EventTypePairFormed         EventType = "pair_formed"
	EventTypePairDissolved      EventType = "pair_dissolved"
)

// SessionEvent is published to the event stream whenever the connected
// population or the pairing relation changes.
type SessionEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	InstanceID string    `json:"instance_id,omitempty"`
	ClientID   string    `json:"client_id"`
	PartnerID  string    `json:"partner_id,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	WaitMillis int64     `json:"wait_ms,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewSessionEvent(eventType EventType, clientID string) *SessionEvent {
	return &SessionEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		ClientID:  clientID,
		Timestamp: time.Now(),
	}
}
