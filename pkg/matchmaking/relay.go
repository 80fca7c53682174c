package matchmaking

import (
	"encoding/json"

	"github.com/anatoly-dev/go-ws-matchmaker/pkg/models"
	"go.uber.org/zap"
)

// Relay forwards an opaque signaling payload from fromID to its current
// partner. Delivery requires the pairing to be mutual at the time of the
// call; anything else is dropped. It reports whether the payload was handed
// to the partner's connection.
func (e *Engine) Relay(fromID string, payload json.RawMessage) bool {
	partnerID, ok := e.pairs.Partner(fromID)
	if !ok {
		e.drop(fromID, DropUnpaired)
		return false
	}

	if back, ok := e.pairs.Partner(partnerID); !ok || back != fromID {
		e.drop(fromID, DropAsymmetric)
		return false
	}

	partner := e.registry.Lookup(partnerID)
	if partner == nil {
		e.drop(fromID, DropPartnerGone)
		return false
	}

	if !partner.send(models.NewSignal(payload, fromID)) {
		e.drop(fromID, DropSendFailed)
		return false
	}

	e.observer.SignalRelayed(fromID, partnerID, len(payload))
	return true
}

func (e *Engine) drop(fromID string, reason DropReason) {
	e.logger.Debug("Signal dropped",
		zap.String("clientID", fromID),
		zap.String("reason", string(reason)))
	e.observer.SignalDropped(fromID, reason)
}
