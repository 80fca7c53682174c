package matchmaking

import "time"

type DissolveReason string

const (
	DissolveNext       DissolveReason = "next"
	DissolveDisconnect DissolveReason = "disconnect"
	DissolveReady      DissolveReason = "ready"
)

type DropReason string

const (
	DropUnpaired    DropReason = "unpaired"
	DropAsymmetric  DropReason = "asymmetric"
	DropPartnerGone DropReason = "partner_gone"
	DropSendFailed  DropReason = "send_failed"
)

// Observer receives notifications from inside the engine's event loop.
// Implementations must return quickly and must not call back into the engine.
type Observer interface {
	ClientConnected(id string)
	ClientDisconnected(id string, lifetime time.Duration)
	ClientReady(id, displayName string)
	PairFormed(initiator, responder string, wait time.Duration)
	PairDissolved(id, partner string, reason DissolveReason)
	SignalRelayed(from, to string, size int)
	SignalDropped(from string, reason DropReason)
	RetryScheduled(id string)
	RetryFired(id string, paired bool)
	PresenceChanged(total, available, pairs int)
}

// NopObserver ignores every notification. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) ClientConnected(string) {}
func (NopObserver) ClientDisconnected(string, time.Duration) {}
func (NopObserver) ClientReady(string, string) {}
func (NopObserver) PairFormed(string, string, time.Duration) {}
func (NopObserver) PairDissolved(string, string, DissolveReason) {}
func (NopObserver) SignalRelayed(string, string, int) {}
func (NopObserver) SignalDropped(string, DropReason) {}
func (NopObserver) RetryScheduled(string) {}
func (NopObserver) RetryFired(string, bool) {}
func (NopObserver) PresenceChanged(int, int, int) {}

type multiObserver []Observer

// MultiObserver fans every notification out to each observer in order.
func MultiObserver(observers ...Observer) Observer {
	out := make(multiObserver, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

func (m multiObserver) ClientConnected(id string) {
	for _, o := range m {
		o.ClientConnected(id)
	}
}

func (m multiObserver) ClientDisconnected(id string, lifetime time.Duration) {
	for _, o := range m {
		o.ClientDisconnected(id, lifetime)
	}
}

func (m multiObserver) ClientReady(id, displayName string) {
	for _, o := range m {
		o.ClientReady(id, displayName)
	}
}

func (m multiObserver) PairFormed(initiator, responder string, wait time.Duration) {
	for _, o := range m {
		o.PairFormed(initiator, responder, wait)
	}
}

func (m multiObserver) PairDissolved(id, partner string, reason DissolveReason) {
	for _, o := range m {
		o.PairDissolved(id, partner, reason)
	}
}

func (m multiObserver) SignalRelayed(from, to string, size int) {
	for _, o := range m {
		o.SignalRelayed(from, to, size)
	}
}

func (m multiObserver) SignalDropped(from string, reason DropReason) {
	for _, o := range m {
		o.SignalDropped(from, reason)
	}
}

func (m multiObserver) RetryScheduled(id string) {
	for _, o := range m {
		o.RetryScheduled(id)
	}
}

func (m multiObserver) RetryFired(id string, paired bool) {
	for _, o := range m {
		o.RetryFired(id, paired)
	}
}

func (m multiObserver) PresenceChanged(total, available, pairs int) {
	for _, o := range m {
		o.PresenceChanged(total, available, pairs)
	}
}
