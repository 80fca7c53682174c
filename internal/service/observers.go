package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/anatoly-dev/go-ws-matchmaker/pkg/matchmaking"
	"github.com/anatoly-dev/go-ws-matchmaker/pkg/models"
)

type EventPublisher interface {
	Publish(event *models.SessionEvent) error
}

// eventObserver turns engine notifications into session events.
type eventObserver struct {
	matchmaking.NopObserver
	publisher  EventPublisher
	instanceID string
	logger     *zap.Logger
}

func NewEventObserver(publisher EventPublisher, instanceID string, logger *zap.Logger) matchmaking.Observer {
	return &eventObserver{publisher: publisher, instanceID: instanceID, logger: logger}
}

func (o *eventObserver) publish(event *models.SessionEvent) {
	event.InstanceID = o.instanceID
	if err := o.publisher.Publish(event); err != nil {
		o.logger.Warn("Failed to publish session event",
			zap.Error(err),
			zap.String("type", string(event.Type)),
			zap.String("clientID", event.ClientID))
	}
}

func (o *eventObserver) ClientConnected(id string) {
	o.publish(models.NewSessionEvent(models.EventTypeClientConnected, id))
}

func (o *eventObserver) ClientDisconnected(id string, lifetime time.Duration) {
	event := models.NewSessionEvent(models.EventTypeClientDisconnected, id)
	event.WaitMillis = lifetime.Milliseconds()
	o.publish(event)
}

func (o *eventObserver) PairFormed(initiator, responder string, wait time.Duration) {
	event := models.NewSessionEvent(models.EventTypePairFormed, initiator)
	event.PartnerID = responder
	event.WaitMillis = wait.Milliseconds()
	o.publish(event)
}

func (o *eventObserver) PairDissolved(id, partner string, reason matchmaking.DissolveReason) {
	event := models.NewSessionEvent(models.EventTypePairDissolved, id)
	event.PartnerID = partner
	event.Reason = string(reason)
	o.publish(event)
}

type PresenceMirror interface {
	RegisterClient(client *models.Client)
	UnregisterClient(clientID string)
	SetPair(a, b string)
	ClearPair(ids ...string)
	PublishPresence(total, available int)
}

// presenceObserver mirrors presence changes into an external store.
type presenceObserver struct {
	matchmaking.NopObserver
	mirror PresenceMirror
}

func NewPresenceObserver(mirror PresenceMirror) matchmaking.Observer {
	return &presenceObserver{mirror: mirror}
}

func (o *presenceObserver) ClientConnected(id string) {
	o.mirror.RegisterClient(models.NewClient(id))
}

func (o *presenceObserver) ClientReady(id, displayName string) {
	client := models.NewClient(id)
	client.DisplayName = displayName
	client.SetMetadata("ready", true)
	o.mirror.RegisterClient(client)
}

func (o *presenceObserver) ClientDisconnected(id string, _ time.Duration) {
	o.mirror.UnregisterClient(id)
}

func (o *presenceObserver) PairFormed(initiator, responder string, _ time.Duration) {
	o.mirror.SetPair(initiator, responder)
}

func (o *presenceObserver) PairDissolved(id, partner string, _ matchmaking.DissolveReason) {
	o.mirror.ClearPair(id, partner)
}

func (o *presenceObserver) PresenceChanged(total, available, _ int) {
	o.mirror.PublishPresence(total, available)
}
