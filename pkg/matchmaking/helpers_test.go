package matchmaking

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/anatoly-dev/go-ws-matchmaker/pkg/models"
	"go.uber.org/zap/zaptest"
)

type recorder struct {
	mu     sync.Mutex
	msgs   []models.ServerMessage
	closed bool
}

func (r *recorder) Send(msg models.ServerMessage) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.msgs = append(r.msgs, msg)
	return true
}

func (r *recorder) close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

func (r *recorder) ofType(t models.MessageType) []models.ServerMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ServerMessage
	for _, m := range r.msgs {
		if m.MessageType() == t {
			out = append(out, m)
		}
	}
	return out
}

func (r *recorder) starts() []*models.Start {
	var out []*models.Start
	for _, m := range r.ofType(models.MessageTypeStart) {
		out = append(out, m.(*models.Start))
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.msgs = nil
	r.mu.Unlock()
}

type manualTask struct {
	delay     time.Duration
	fn        func()
	cancelled bool
}

type manualScheduler struct {
	tasks []*manualTask
}

func (s *manualScheduler) Schedule(delay time.Duration, fn func()) func() {
	task := &manualTask{delay: delay, fn: fn}
	s.tasks = append(s.tasks, task)
	return func() { task.cancelled = true }
}

func (s *manualScheduler) fireAll() {
	tasks := s.tasks
	s.tasks = nil
	for _, task := range tasks {
		if !task.cancelled {
			task.fn()
		}
	}
}

func (s *manualScheduler) live() int {
	n := 0
	for _, task := range s.tasks {
		if !task.cancelled {
			n++
		}
	}
	return n
}

func newTestEngine(t *testing.T, opts Options) (*Engine, *manualScheduler) {
	t.Helper()

	n := 0
	if opts.NewID == nil {
		opts.NewID = func() string {
			n++
			return fmt.Sprintf("c%d", n)
		}
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(1))
	}
	if opts.Logger == nil {
		opts.Logger = zaptest.NewLogger(t)
	}
	sched := &manualScheduler{}
	opts.Scheduler = sched
	return NewEngine(opts), sched
}

func connect(e *Engine) (string, *recorder) {
	rec := &recorder{}
	return e.Connect(rec), rec
}

// checkInvariants asserts symmetry, no self-pairing and queue/pairing
// exclusivity over the engine's whole state.
func checkInvariants(t *testing.T, e *Engine) {
	t.Helper()
	if err := invariantErr(e); err != nil {
		t.Fatal(err)
	}
}

func invariantErr(e *Engine) error {
	for id, partner := range e.pairs.partners {
		if id == partner {
			return fmt.Errorf("client %s paired with itself", id)
		}
		if back := e.pairs.partners[partner]; back != id {
			return fmt.Errorf("asymmetric pairing: %s->%s but %s->%q", id, partner, partner, back)
		}
		if e.queue.Contains(id) {
			return fmt.Errorf("client %s is both paired and queued", id)
		}
		if e.registry.Lookup(id) == nil {
			return fmt.Errorf("paired client %s is not registered", id)
		}
	}

	for _, id := range e.queue.Members() {
		c := e.registry.Lookup(id)
		if c == nil {
			return fmt.Errorf("queued client %s is not registered", id)
		}
		if !c.Available {
			return fmt.Errorf("queued client %s is not marked available", id)
		}
	}

	var err error
	e.registry.Each(func(c *Client) {
		if err == nil && c.Available != e.queue.Contains(c.ID) {
			err = fmt.Errorf("client %s available=%v but queued=%v", c.ID, c.Available, e.queue.Contains(c.ID))
		}
	})
	return err
}
