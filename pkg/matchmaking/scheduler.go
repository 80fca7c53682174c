package matchmaking

import "time"

// Scheduler runs fn after delay. The returned function cancels the call if
// it has not started yet. fn must run on the engine's event loop.
type Scheduler interface {
	Schedule(delay time.Duration, fn func()) (cancel func())
}

type pendingRetry struct {
	seq    uint64
	cancel func()
}

func (e *Engine) scheduleRetry(id string) {
	if e.opts.RepairDelay <= 0 {
		e.attemptPairing(id)
		return
	}

	e.cancelRetry(id)
	e.retrySeq++
	seq := e.retrySeq
	cancel := e.opts.Scheduler.Schedule(e.opts.RepairDelay, func() {
		e.fireRetry(id, seq)
	})
	e.retries[id] = &pendingRetry{seq: seq, cancel: cancel}
	e.observer.RetryScheduled(id)
}

func (e *Engine) cancelRetry(id string) {
	pending, ok := e.retries[id]
	if !ok {
		return
	}
	delete(e.retries, id)
	if pending.cancel != nil {
		pending.cancel()
	}
}

func (e *Engine) cancelAllRetries() {
	for id := range e.retries {
		e.cancelRetry(id)
	}
}

// fireRetry re-checks liveness: the client may have disconnected, been paired
// by someone else's attempt, or had this retry superseded.
func (e *Engine) fireRetry(id string, seq uint64) {
	pending, ok := e.retries[id]
	if !ok || pending.seq != seq {
		return
	}
	delete(e.retries, id)

	client := e.registry.Lookup(id)
	if client == nil || !client.Available || e.pairs.Has(id) {
		e.observer.RetryFired(id, false)
		return
	}

	paired := e.attemptPairing(id)
	e.observer.RetryFired(id, paired)
	if paired {
		e.BroadcastCounts()
	}
}

// PendingRetries returns how many deferred re-pairing attempts are waiting.
func (e *Engine) PendingRetries() int {
	return len(e.retries)
}
