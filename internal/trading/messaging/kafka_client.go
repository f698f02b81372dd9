// Package messaging forwards bus events to Kafka.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Aidin1998/pincex_sim/internal/trading/events"
	"github.com/Aidin1998/pincex_sim/pkg/metrics"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const sinkName = "kafka"

// MessageWriter is the part of *kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig contains configuration options for the sink
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	RequiredAcks int
	Compression  string
	RetryMax     int
	// Buffer is how many events may wait for the writer before new ones are
	// dropped.
	Buffer int
}

// DefaultKafkaConfig returns low-latency settings.
func DefaultKafkaConfig() KafkaConfig {
	return KafkaConfig{
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: time.Second,
		RequiredAcks: 1,
		Compression:  "snappy",
		RetryMax:     3,
		Buffer:       4096,
	}
}

// NewWriter builds a kafka.Writer from cfg.
func NewWriter(cfg KafkaConfig) *kafka.Writer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.CRC32Balancer{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		MaxAttempts:  cfg.RetryMax,
	}
	switch cfg.Compression {
	case "gzip":
		w.Compression = kafka.Gzip
	case "snappy":
		w.Compression = kafka.Snappy
	case "lz4":
		w.Compression = kafka.Lz4
	case "zstd":
		w.Compression = kafka.Zstd
	}
	return w
}

// KafkaSink writes every bus event as JSON, keyed by event type. Handle never
// blocks the simulation loop: events queue in a buffer drained by Run.
type KafkaSink struct {
	writer MessageWriter
	topic  string
	logger *zap.Logger
	queue  chan kafka.Message

	mu      sync.Mutex
	closed  bool
	dropped int64
}

func NewKafkaSink(writer MessageWriter, cfg KafkaConfig, logger *zap.Logger) *KafkaSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultKafkaConfig().Buffer
	}
	return &KafkaSink{
		writer: writer,
		topic:  cfg.Topic,
		logger: logger,
		queue:  make(chan kafka.Message, cfg.Buffer),
	}
}

// Attach subscribes the sink to every topic on bus.
func (s *KafkaSink) Attach(bus events.EventBus) {
	bus.SubscribeAll(s.Handle)
}

// Handle encodes e and queues it.
func (s *KafkaSink) Handle(e events.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		metrics.SinkErrors.WithLabelValues(sinkName).Inc()
		s.logger.Error("Failed to encode event", zap.String("type", e.Type), zap.Error(err))
		return
	}
	msg := kafka.Message{
		Key:   []byte(e.Type),
		Value: data,
		Headers: []kafka.Header{
			{Key: "source", Value: []byte("matchsim")},
			{Key: "topic", Value: []byte(e.Topic)},
		},
		Time: e.Timestamp,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- msg:
	default:
		s.dropped++
		metrics.SinkErrors.WithLabelValues(sinkName).Inc()
	}
}

// Run writes queued messages until ctx is done, then flushes what is left and
// closes the writer.
func (s *KafkaSink) Run(ctx context.Context) error {
	s.logger.Info("Kafka sink started", zap.String("topic", s.topic))
	for {
		select {
		case msg := <-s.queue:
			s.write(ctx, s.batch(msg))
		case <-ctx.Done():
			return s.shutdown()
		}
	}
}

// batch collects msg plus whatever is already queued.
func (s *KafkaSink) batch(msg kafka.Message) []kafka.Message {
	msgs := []kafka.Message{msg}
	for {
		select {
		case m := <-s.queue:
			msgs = append(msgs, m)
		default:
			return msgs
		}
	}
}

func (s *KafkaSink) write(ctx context.Context, msgs []kafka.Message) {
	if err := s.writer.WriteMessages(ctx, msgs...); err != nil {
		metrics.SinkErrors.WithLabelValues(sinkName).Inc()
		s.logger.Error("Failed to publish events to Kafka",
			zap.String("topic", s.topic),
			zap.Int("messages", len(msgs)),
			zap.Error(err))
		return
	}
	s.logger.Debug("Published events", zap.String("topic", s.topic), zap.Int("messages", len(msgs)))
}

func (s *KafkaSink) shutdown() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	var rest []kafka.Message
	for {
		select {
		case m := <-s.queue:
			rest = append(rest, m)
			continue
		default:
		}
		break
	}
	if len(rest) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		s.write(ctx, rest)
		cancel()
	}
	if err := s.writer.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	s.logger.Info("Kafka sink stopped", zap.Int64("dropped", s.Dropped()))
	return nil
}

// Dropped is the number of events discarded because the buffer was full.
func (s *KafkaSink) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}
