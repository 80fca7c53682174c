package matchmaking

import (
	"errors"
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/anatoly-dev/go-ws-matchmaker/pkg/models"
	"go.uber.org/zap"
)

var (
	ErrSelfPairing   = errors.New("matchmaking: client cannot pair with itself")
	ErrAlreadyPaired = errors.New("matchmaking: client already paired")
)

const (
	DefaultRepairDelay   = 100 * time.Millisecond
	DefaultAnonymousName = "Stranger"
	DefaultMaxNameLength = 32
)

type Options struct {
	// RepairDelay defers the re-pairing attempt for a client whose partner
	// disconnected. Zero re-pairs inline.
	RepairDelay   time.Duration
	AnonymousName string
	MaxNameLength int

	NewID     func() string
	Now       func() time.Time
	Rand      *rand.Rand
	Scheduler Scheduler
	Observer  Observer
	Logger    *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.AnonymousName == "" {
		o.AnonymousName = DefaultAnonymousName
	}
	if o.MaxNameLength <= 0 {
		o.MaxNameLength = DefaultMaxNameLength
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if o.Scheduler == nil {
		o.RepairDelay = 0
	}
	if o.Observer == nil {
		o.Observer = NopObserver{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Engine owns the registry, the availability queue and the pairing table.
// It is not safe for concurrent use; Hub serializes all calls onto one
// goroutine.
type Engine struct {
	opts     Options
	registry *Registry
	queue    *AvailabilityQueue
	pairs    *PairingTable
	retries  map[string]*pendingRetry
	retrySeq uint64
	observer Observer
	logger   *zap.Logger
}

func NewEngine(opts Options) *Engine {
	opts = opts.withDefaults()
	return &Engine{
		opts:     opts,
		registry: NewRegistry(opts.NewID),
		queue:    NewAvailabilityQueue(),
		pairs:    NewPairingTable(),
		retries:  make(map[string]*pendingRetry),
		observer: opts.Observer,
		logger:   opts.Logger,
	}
}

func (e *Engine) Registry() *Registry { return e.registry }

func (e *Engine) Queue() *AvailabilityQueue { return e.queue }

func (e *Engine) Pairs() *PairingTable { return e.pairs }

// Connect registers a new connection, welcomes it and broadcasts counts.
func (e *Engine) Connect(conn Sender) string {
	client := e.registry.Register(conn, e.opts.Now())

	e.logger.Info("Client connected", zap.String("clientID", client.ID))
	e.observer.ClientConnected(client.ID)

	client.send(models.NewWelcome(client.ID))
	e.BroadcastCounts()

	return client.ID
}

// Disconnect tears down every trace of the client and releases its partner.
// Unknown ids are ignored.
func (e *Engine) Disconnect(id string) {
	e.cancelRetry(id)

	client := e.registry.Unregister(id)
	if client == nil {
		return
	}
	e.queue.Remove(id)
	client.Available = false

	if partnerID, ok := e.dissolve(id, DissolveDisconnect); ok {
		if partner := e.release(partnerID); partner != nil {
			e.scheduleRetry(partnerID)
		}
	}

	e.logger.Info("Client disconnected",
		zap.String("clientID", id),
		zap.Duration("lifetime", e.opts.Now().Sub(client.ConnectedAt)))
	e.observer.ClientDisconnected(id, e.opts.Now().Sub(client.ConnectedAt))

	e.BroadcastCounts()
}

// MarkReady puts the client in the availability queue and tries to pair it.
func (e *Engine) MarkReady(id, name string) {
	client := e.registry.Lookup(id)
	if client == nil {
		return
	}

	if client.DisplayName == "" {
		client.DisplayName = e.sanitizeName(name)
	}

	// A ready while still paired means the client reset its session before
	// learning the pairing was gone; dissolve it for both sides.
	if partnerID, ok := e.dissolve(id, DissolveReady); ok {
		if partner := e.release(partnerID); partner != nil {
			e.scheduleRetry(partnerID)
		}
	}

	e.makeAvailable(client)
	e.observer.ClientReady(id, client.DisplayName)
	e.attemptPairing(id)

	e.BroadcastCounts()
}

// RequestNext abandons the current partner, if any, and re-attempts pairing
// for both the requester and the freed partner.
func (e *Engine) RequestNext(id string) {
	client := e.registry.Lookup(id)
	if client == nil {
		return
	}

	partnerID, hadPartner := e.dissolve(id, DissolveNext)
	if hadPartner {
		e.release(partnerID)
	}

	e.makeAvailable(client)
	e.attemptPairing(id)
	if hadPartner {
		e.attemptPairing(partnerID)
	}

	e.BroadcastCounts()
}

// dissolve removes id's pairing. The partner is returned only when the
// relation was mutual; a one-sided entry is dropped without touching the
// client it points at.
func (e *Engine) dissolve(id string, reason DissolveReason) (string, bool) {
	partnerID, ok := e.pairs.Partner(id)
	if !ok {
		return "", false
	}
	mutual := e.pairs.Mutual(id, partnerID)
	e.pairs.Unlink(id)
	if !mutual {
		e.logger.Warn("Dropped one-sided pairing entry",
			zap.String("clientID", id),
			zap.String("partnerID", partnerID))
		return "", false
	}
	e.observer.PairDissolved(id, partnerID, reason)
	return partnerID, true
}

// release returns an ex-partner to the queue and tells it its partner left.
func (e *Engine) release(id string) *Client {
	client := e.registry.Lookup(id)
	if client == nil {
		return nil
	}
	e.makeAvailable(client)
	client.send(models.NewPartnerDisconnected())
	return client
}

func (e *Engine) makeAvailable(client *Client) {
	if !client.Available {
		client.AvailableSince = e.opts.Now()
	}
	client.Available = true
	e.queue.Add(client.ID)
}

// attemptPairing looks for a partner for id among the available clients and
// forms the pair if one is found. It reports whether a pair was formed.
func (e *Engine) attemptPairing(id string) bool {
	client := e.registry.Lookup(id)
	if client == nil || !client.Available || e.pairs.Has(id) {
		return false
	}

	var fresh, repeat []*Client
	for _, candidateID := range e.queue.Members() {
		if candidateID == id || e.pairs.Has(candidateID) {
			continue
		}
		candidate := e.registry.Lookup(candidateID)
		if candidate == nil {
			e.queue.Remove(candidateID)
			continue
		}
		if !candidate.Available {
			continue
		}
		if candidateID == client.LastPartnerID || candidate.LastPartnerID == id {
			repeat = append(repeat, candidate)
			continue
		}
		fresh = append(fresh, candidate)
	}

	pool := fresh
	if len(pool) == 0 {
		pool = repeat
	}
	if len(pool) == 0 {
		return false
	}

	other := pool[e.opts.Rand.Intn(len(pool))]
	if err := e.pair(client, other); err != nil {
		e.logger.Warn("Pairing aborted", zap.String("clientID", id), zap.Error(err))
		e.makeAvailable(client)
		return false
	}
	return true
}

// pair links initiator and responder and notifies both. The requester that
// triggered matching is always the initiator.
func (e *Engine) pair(initiator, responder *Client) error {
	if err := e.pairs.Link(initiator.ID, responder.ID); err != nil {
		return err
	}

	now := e.opts.Now()
	wait := now.Sub(initiator.AvailableSince)

	for _, c := range []*Client{initiator, responder} {
		e.queue.Remove(c.ID)
		e.cancelRetry(c.ID)
		c.Available = false
	}
	initiator.LastPartnerID = responder.ID
	responder.LastPartnerID = initiator.ID

	e.logger.Debug("Pair formed",
		zap.String("initiatorID", initiator.ID),
		zap.String("responderID", responder.ID))
	e.observer.PairFormed(initiator.ID, responder.ID, wait)

	initiator.send(models.NewStart(true, responder.ID, e.displayName(responder)))
	responder.send(models.NewStart(false, initiator.ID, e.displayName(initiator)))
	return nil
}

func (e *Engine) displayName(c *Client) string {
	if c.DisplayName == "" {
		return e.opts.AnonymousName
	}
	return c.DisplayName
}

func (e *Engine) sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > e.opts.MaxNameLength {
		name = string([]rune(name)[:e.opts.MaxNameLength])
	}
	return name
}
