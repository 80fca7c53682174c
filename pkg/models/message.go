package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

type MessageType string

const (
	MessageTypeWelcome             MessageType = "welcome"
	MessageTypeUpdateUsers         MessageType = "updateUsers"
	MessageTypeStart               MessageType = "start"
	MessageTypeSignal              MessageType = "signal"
	MessageTypePartnerDisconnected MessageType = "partner_disconnected"
	MessageTypeReady               MessageType = "ready"
	MessageTypeNext                MessageType = "next"
)

var (
	ErrMalformedMessage   = errors.New("malformed message")
	ErrUnknownMessageType = errors.New("unknown message type")
)

// ServerMessage is one of the messages the server pushes to a client.
type ServerMessage interface {
	MessageType() MessageType
}

type Welcome struct {
	Type MessageType `json:"type"`
	ID   string      `json:"id"`
}

func NewWelcome(id string) *Welcome {
	return &Welcome{Type: MessageTypeWelcome, ID: id}
}

func (m *Welcome) MessageType() MessageType { return MessageTypeWelcome }

type UpdateUsers struct {
	Type      MessageType `json:"type"`
	Total     int         `json:"total"`
	Available int         `json:"available"`
}

func NewUpdateUsers(total, available int) *UpdateUsers {
	return &UpdateUsers{Type: MessageTypeUpdateUsers, Total: total, Available: available}
}

func (m *UpdateUsers) MessageType() MessageType { return MessageTypeUpdateUsers }

type Start struct {
	Type       MessageType `json:"type"`
	Initiator  bool        `json:"initiator"`
	Target     string      `json:"target"`
	TargetName string      `json:"targetName,omitempty"`
}

func NewStart(initiator bool, target, targetName string) *Start {
	return &Start{
		Type:       MessageTypeStart,
		Initiator:  initiator,
		Target:     target,
		TargetName: targetName,
	}
}

func (m *Start) MessageType() MessageType { return MessageTypeStart }

// Signal carries an opaque payload from the sender's current partner. The
// payload is forwarded verbatim.
type Signal struct {
	Type   MessageType     `json:"type"`
	Signal json.RawMessage `json:"signal"`
	From   string          `json:"from"`
}

func NewSignal(payload json.RawMessage, from string) *Signal {
	return &Signal{Type: MessageTypeSignal, Signal: payload, From: from}
}

func (m *Signal) MessageType() MessageType { return MessageTypeSignal }

type PartnerDisconnected struct {
	Type MessageType `json:"type"`
}

func NewPartnerDisconnected() *PartnerDisconnected {
	return &PartnerDisconnected{Type: MessageTypePartnerDisconnected}
}

func (m *PartnerDisconnected) MessageType() MessageType { return MessageTypePartnerDisconnected }

func EncodeServerMessage(msg ServerMessage) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s message: %w", msg.MessageType(), err)
	}
	return data, nil
}

// ClientMessage is one of the messages a client may send to the server.
type ClientMessage interface {
	MessageType() MessageType
}

type Ready struct {
	Name string
}

func (m *Ready) MessageType() MessageType { return MessageTypeReady }

type SignalRequest struct {
	Signal json.RawMessage
}

func (m *SignalRequest) MessageType() MessageType { return MessageTypeSignal }

type Next struct{}

func (m *Next) MessageType() MessageType { return MessageTypeNext }

type clientEnvelope struct {
	Type   MessageType     `json:"type"`
	Name   *string         `json:"name,omitempty"`
	Signal json.RawMessage `json:"signal,omitempty"`
}

// ParseClientMessage decodes a single inbound frame. Frames that are not a
// JSON object with a known type and well-typed fields are rejected; unknown
// types yield ErrUnknownMessageType so callers can ignore them.
func ParseClientMessage(data []byte) (ClientMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, fmt.Errorf("%w: expected JSON object", ErrMalformedMessage)
	}

	var env clientEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch env.Type {
	case MessageTypeReady:
		msg := &Ready{}
		if env.Name != nil {
			msg.Name = *env.Name
		}
		return msg, nil
	case MessageTypeSignal:
		if len(env.Signal) == 0 || bytes.Equal(env.Signal, []byte("null")) {
			return nil, fmt.Errorf("%w: signal message missing payload", ErrMalformedMessage)
		}
		return &SignalRequest{Signal: env.Signal}, nil
	case MessageTypeNext:
		return &Next{}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, env.Type)
	}
}
