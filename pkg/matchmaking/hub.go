package matchmaking

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrHubStopped = errors.New("matchmaking: hub stopped")

const DefaultMailboxSize = 1024

// Hub owns an Engine and applies every operation on a single goroutine, in
// arrival order. Transport code talks to the Hub, never to the Engine.
type Hub struct {
	engine   *Engine
	mailbox  chan func()
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

// NewHub builds a hub and its engine. opts.Scheduler is replaced with a
// timer-based scheduler that runs callbacks on the hub goroutine.
func NewHub(opts Options, mailboxSize int) *Hub {
	if mailboxSize <= 0 {
		mailboxSize = DefaultMailboxSize
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	h := &Hub{
		mailbox: make(chan func(), mailboxSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		logger:  opts.Logger,
	}
	opts.Scheduler = timerScheduler{hub: h}
	h.engine = NewEngine(opts)
	return h
}

// Run processes the mailbox until Stop is called.
func (h *Hub) Run() {
	defer close(h.stopped)

	h.logger.Info("Matchmaking hub started")
	for {
		select {
		case <-h.done:
			h.engine.cancelAllRetries()
			h.logger.Info("Matchmaking hub stopped")
			return
		case fn := <-h.mailbox:
			fn()
		}
	}
}

// Stop terminates Run. Queued operations that have not started are discarded.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

// Wait blocks until Run has returned.
func (h *Hub) Wait() {
	<-h.stopped
}

func (h *Hub) post(fn func(e *Engine)) error {
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}

	select {
	case h.mailbox <- func() { fn(h.engine) }:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

// Connect registers conn and returns its new identifier.
func (h *Hub) Connect(conn Sender) (string, error) {
	reply := make(chan string, 1)
	if err := h.post(func(e *Engine) { reply <- e.Connect(conn) }); err != nil {
		return "", err
	}

	select {
	case id := <-reply:
		return id, nil
	case <-h.done:
		return "", ErrHubStopped
	}
}

func (h *Hub) Ready(id, name string) error {
	return h.post(func(e *Engine) { e.MarkReady(id, name) })
}

func (h *Hub) Signal(id string, payload json.RawMessage) error {
	return h.post(func(e *Engine) { e.Relay(id, payload) })
}

func (h *Hub) Next(id string) error {
	return h.post(func(e *Engine) { e.RequestNext(id) })
}

func (h *Hub) Disconnect(id string) error {
	return h.post(func(e *Engine) { e.Disconnect(id) })
}

// Stats returns a presence snapshot taken on the hub goroutine.
func (h *Hub) Stats() (Counts, error) {
	reply := make(chan Counts, 1)
	if err := h.post(func(e *Engine) { reply <- e.Counts() }); err != nil {
		return Counts{}, err
	}

	select {
	case counts := <-reply:
		return counts, nil
	case <-h.done:
		return Counts{}, ErrHubStopped
	}
}

type timerScheduler struct {
	hub *Hub
}

func (s timerScheduler) Schedule(delay time.Duration, fn func()) func() {
	timer := time.AfterFunc(delay, func() {
		// A hub that stopped first has already cancelled its retries.
		_ = s.hub.post(func(*Engine) { fn() })
	})
	return func() { timer.Stop() }
}
