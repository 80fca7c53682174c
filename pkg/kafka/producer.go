package kafka

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"

	"github.com/anatoly-dev/go-ws-matchmaker/pkg/config"
	"github.com/anatoly-dev/go-ws-matchmaker/pkg/metrics"
	"github.com/anatoly-dev/go-ws-matchmaker/pkg/models"
)

const flushTimeout = 5 * time.Second

// Producer publishes session events. Publish never blocks on the broker;
// delivery reports are consumed on a background goroutine.
type Producer struct {
	producer  *kafka.Producer
	topic     string
	logger    *zap.Logger
	metrics   *metrics.KafkaMetrics
	wg        sync.WaitGroup
	stop      chan struct{}
	mutex     sync.RWMutex
	isRunning bool
}

func producerConfig(cfg *config.KafkaConfig) *kafka.ConfigMap {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "ws-matchmaker"
	}
	return &kafka.ConfigMap{
		"bootstrap.servers":  cfg.BootstrapServers,
		"client.id":          clientID,
		"acks":               "1",
		"linger.ms":          20,
		"message.timeout.ms": 30000,
	}
}

func NewProducer(cfg *config.KafkaConfig, logger *zap.Logger) (*Producer, error) {
	p, err := kafka.NewProducer(producerConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	producer := &Producer{
		producer:  p,
		topic:     cfg.Topic,
		logger:    logger,
		stop:      make(chan struct{}),
		isRunning: true,
	}

	producer.wg.Add(1)
	go producer.handleEvents()

	return producer, nil
}

func (p *Producer) SetMetrics(metrics *metrics.KafkaMetrics) {
	p.metrics = metrics
}

func (p *Producer) Publish(event *models.SessionEvent) error {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	if !p.isRunning {
		return fmt.Errorf("producer is closed")
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal session event: %w", err)
	}

	err = p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
		Key:            []byte(event.ClientID),
		Value:          value,
		Timestamp:      event.Timestamp,
		Headers:        []kafka.Header{{Key: "event_type", Value: []byte(event.Type)}},
	}, nil)
	if err != nil {
		if p.metrics != nil {
			p.metrics.ProduceErrors.Inc()
		}
		return fmt.Errorf("failed to produce session event: %w", err)
	}

	if p.metrics != nil {
		p.metrics.EventsPublished.WithLabelValues(string(event.Type)).Inc()
	}
	return nil
}

func (p *Producer) handleEvents() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stop:
			return
		case ev := <-p.producer.Events():
			switch e := ev.(type) {
			case *kafka.Message:
				if e.TopicPartition.Error != nil {
					p.logger.Error("Session event delivery failed",
						zap.Error(e.TopicPartition.Error),
						zap.ByteString("key", e.Key))

					if p.metrics != nil {
						p.metrics.DeliveryErrors.Inc()
					}
				}
			case kafka.Error:
				p.logger.Error("Kafka error", zap.Error(e), zap.String("code", e.Code().String()))
			default:
			}
		}
	}
}

// Close flushes outstanding events for up to five seconds and releases the
// producer.
func (p *Producer) Close() {
	p.mutex.Lock()
	if !p.isRunning {
		p.mutex.Unlock()
		return
	}
	p.isRunning = false
	p.mutex.Unlock()

	p.logger.Info("Flushing Kafka producer")
	if remaining := p.producer.Flush(int(flushTimeout / time.Millisecond)); remaining > 0 {
		p.logger.Warn("Kafka producer closed with undelivered events", zap.Int("remaining", remaining))
	}

	close(p.stop)
	p.wg.Wait()
	p.producer.Close()

	p.logger.Info("Kafka producer stopped")
}
