package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/anatoly-dev/go-ws-matchmaker/pkg/config"
	"github.com/anatoly-dev/go-ws-matchmaker/pkg/metrics"
	"github.com/anatoly-dev/go-ws-matchmaker/pkg/models"
)

const (
	clientPrefix      = "ws:client:"
	instanceClientKey = "ws:instance:%s:clients"
	pairPrefix        = "ws:pair:"
	presencePrefix    = "ws:presence:"
	presenceChannel   = "ws:presence"

	defaultKeyTTL     = 24 * time.Hour
	defaultBufferSize = 1024
	operationTimeout  = 2 * time.Second
)

type operation struct {
	name  string
	apply func(ctx context.Context, pipe redis.Pipeliner) error
}

// PresenceStore mirrors presence state into Redis for external observers.
// Every write is queued and applied by a single worker; nothing is read back.
type PresenceStore struct {
	client     *redis.Client
	logger     *zap.Logger
	instanceID string
	keyTTL     time.Duration
	metrics    *metrics.RedisMetrics

	ops    chan operation
	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewPresenceStore(cfg *config.RedisConfig, logger *zap.Logger, instanceID string) (*PresenceStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	store := newPresenceStore(client, logger, instanceID, cfg.KeyTTL, defaultBufferSize)
	go store.run()

	return store, nil
}

func newPresenceStore(client *redis.Client, logger *zap.Logger, instanceID string, keyTTL time.Duration, bufferSize int) *PresenceStore {
	if keyTTL <= 0 {
		keyTTL = defaultKeyTTL
	}
	return &PresenceStore{
		client:     client,
		logger:     logger,
		instanceID: instanceID,
		keyTTL:     keyTTL,
		ops:        make(chan operation, bufferSize),
		done:       make(chan struct{}),
	}
}

func (s *PresenceStore) SetMetrics(metrics *metrics.RedisMetrics) {
	s.metrics = metrics
}

func clientKey(id string) string {
	return clientPrefix + id
}

func instanceClientsKey(instanceID string) string {
	return fmt.Sprintf(instanceClientKey, instanceID)
}

func pairKey(id string) string {
	return pairPrefix + id
}

func presenceKey(instanceID string) string {
	return presencePrefix + instanceID
}

func (s *PresenceStore) RegisterClient(client *models.Client) {
	client.SetMetadata("instance_id", s.instanceID)
	clientData, err := json.Marshal(client)
	if err != nil {
		s.logger.Error("failed to marshal client data", zap.Error(err), zap.String("clientID", client.ID))
		return
	}

	membersKey := instanceClientsKey(s.instanceID)
	s.enqueue("register_client", func(ctx context.Context, pipe redis.Pipeliner) error {
		pipe.Set(ctx, clientKey(client.ID), clientData, s.keyTTL)
		pipe.SAdd(ctx, membersKey, client.ID)
		pipe.Expire(ctx, membersKey, s.keyTTL)
		return nil
	})
}

func (s *PresenceStore) UnregisterClient(clientID string) {
	membersKey := instanceClientsKey(s.instanceID)
	s.enqueue("unregister_client", func(ctx context.Context, pipe redis.Pipeliner) error {
		pipe.Del(ctx, clientKey(clientID), pairKey(clientID))
		pipe.SRem(ctx, membersKey, clientID)
		return nil
	})
}

func (s *PresenceStore) SetPair(a, b string) {
	s.enqueue("set_pair", func(ctx context.Context, pipe redis.Pipeliner) error {
		pipe.Set(ctx, pairKey(a), b, s.keyTTL)
		pipe.Set(ctx, pairKey(b), a, s.keyTTL)
		return nil
	})
}

func (s *PresenceStore) ClearPair(ids ...string) {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			keys = append(keys, pairKey(id))
		}
	}
	if len(keys) == 0 {
		return
	}
	s.enqueue("clear_pair", func(ctx context.Context, pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		return nil
	})
}

func (s *PresenceStore) PublishPresence(total, available int) {
	snapshot := models.Presence{
		InstanceID: s.instanceID,
		Total:      total,
		Available:  available,
		Timestamp:  time.Now(),
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		s.logger.Error("failed to marshal presence", zap.Error(err))
		return
	}

	s.enqueue("publish_presence", func(ctx context.Context, pipe redis.Pipeliner) error {
		pipe.Set(ctx, presenceKey(s.instanceID), data, s.keyTTL)
		pipe.Publish(ctx, presenceChannel, data)
		return nil
	})
}

// enqueue never blocks the caller. A full buffer drops the update.
func (s *PresenceStore) enqueue(name string, apply func(ctx context.Context, pipe redis.Pipeliner) error) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}

	select {
	case s.ops <- operation{name: name, apply: apply}:
		return true
	default:
		if s.metrics != nil {
			s.metrics.DroppedUpdates.Inc()
		}
		s.logger.Warn("Presence update dropped, buffer full", zap.String("operation", name))
		return false
	}
}

func (s *PresenceStore) run() {
	defer close(s.done)

	for op := range s.ops {
		s.execute(op)
	}
}

func (s *PresenceStore) execute(op operation) {
	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	start := time.Now()
	pipe := s.client.TxPipeline()
	err := op.apply(ctx, pipe)
	if err == nil {
		_, err = pipe.Exec(ctx)
	}

	if s.metrics != nil {
		s.metrics.Operations.WithLabelValues(op.name).Inc()
		s.metrics.RedisOperationLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			s.metrics.RedisOperationErrors.WithLabelValues(op.name).Inc()
		}
	}

	if err != nil {
		s.logger.Error("Presence mirror write failed", zap.Error(err), zap.String("operation", op.name))
	}
}

// Close stops accepting updates, drains the queue and closes the client.
func (s *PresenceStore) Close(ctx context.Context) error {
	s.logger.Info("Closing Redis presence store")

	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.ops)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
	case <-ctx.Done():
		s.logger.Warn("Presence queue not drained before shutdown", zap.Int("pending", len(s.ops)))
	}

	if err := s.client.Close(); err != nil {
		s.logger.Error("Error closing Redis client", zap.Error(err))
		return err
	}
	return nil
}
