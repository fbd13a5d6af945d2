package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaProducer lazily manages writers per topic.
type KafkaProducer struct {
	brokers      []string
	batchTimeout time.Duration
	logger       *zap.Logger
	mu           sync.Mutex
	writers      map[string]*kafka.Writer
}

// NewKafkaProducer creates a KafkaProducer. Messages are hashed on their key
// so every event for a user lands on the same partition.
func NewKafkaProducer(brokers []string, logger *zap.Logger) *KafkaProducer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaProducer{
		brokers:      brokers,
		batchTimeout: 50 * time.Millisecond,
		logger:       logger.Named("kafka"),
		writers:      make(map[string]*kafka.Writer),
	}
}

// WriteMessages writes messages to the given topic, creating a writer if necessary.
func (p *KafkaProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	return p.writerForTopic(topic).WriteMessages(ctx, msgs...)
}

func (p *KafkaProducer) writerForTopic(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if writer, ok := p.writers[topic]; ok {
		return writer
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		BatchTimeout: p.batchTimeout,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			p.logger.Sugar().Errorf(msg, args...)
		}),
	}
	p.writers[topic] = writer
	return writer
}

// Close releases all writers.
func (p *KafkaProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for topic, writer := range p.writers {
		if err := writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.writers, topic)
	}
	return firstErr
}
