package metrics

import (
	"time"

	"github.com/anatoly-dev/go-ws-matchmaker/pkg/matchmaking"
)

// MatchmakingObserver feeds engine notifications into the Matchmaking group.
type MatchmakingObserver struct {
	matchmaking.NopObserver
	m *MatchmakingMetrics
}

func NewMatchmakingObserver(m *Metrics) *MatchmakingObserver {
	return &MatchmakingObserver{m: &m.Matchmaking}
}

func (o *MatchmakingObserver) PairFormed(_, _ string, wait time.Duration) {
	o.m.PairsFormed.Inc()
	o.m.QueueWait.Observe(wait.Seconds())
}

func (o *MatchmakingObserver) PairDissolved(_, _ string, reason matchmaking.DissolveReason) {
	o.m.PairsDissolved.WithLabelValues(string(reason)).Inc()
}

func (o *MatchmakingObserver) SignalRelayed(_, _ string, size int) {
	o.m.SignalsRelayed.Inc()
	o.m.SignalBytes.Add(float64(size))
}

func (o *MatchmakingObserver) SignalDropped(_ string, reason matchmaking.DropReason) {
	o.m.SignalsDropped.WithLabelValues(string(reason)).Inc()
}

func (o *MatchmakingObserver) RetryScheduled(string) {
	o.m.RetriesScheduled.Inc()
}

func (o *MatchmakingObserver) RetryFired(_ string, paired bool) {
	outcome := "unmatched"
	if paired {
		outcome = "paired"
	}
	o.m.RetriesFired.WithLabelValues(outcome).Inc()
}

func (o *MatchmakingObserver) PresenceChanged(total, available, pairs int) {
	o.m.Clients.Set(float64(total))
	o.m.AvailableClients.Set(float64(available))
	o.m.ActivePairs.Set(float64(pairs))
}
