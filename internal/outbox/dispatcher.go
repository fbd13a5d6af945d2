// Package outbox delivers events recorded in the outbox table to Kafka.
package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Kafka header keys set on every delivered message.
const (
	HeaderEventType     = "event_type"
	HeaderSchemaSubject = "schema_subject"
	HeaderUserID        = "user_id"
)

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

type schemaRegistrar interface {
	EnsureSchema(context.Context, string, string) (int, error)
}

// Dispatcher drains the outbox table and delivers events to Kafka using Schema Registry metadata.
type Dispatcher struct {
	pool             *pgxpool.Pool
	producer         messageWriter
	registry         schemaRegistrar
	dlq              *DLQWriter
	logger           *zap.Logger
	pollInterval     time.Duration
	batchSize        int
	schemaIDCache    sync.Map
	shutdownComplete chan struct{}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(pool *pgxpool.Pool, producer messageWriter, registry schemaRegistrar, logger *zap.Logger, pollInterval time.Duration, batchSize int) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		pool:             pool,
		producer:         producer,
		registry:         registry,
		dlq:              NewDLQWriter(pool),
		logger:           logger.Named("outbox"),
		pollInterval:     pollInterval,
		batchSize:        batchSize,
		shutdownComplete: make(chan struct{}),
	}
}

// Start launches the polling loop. It should be called in a goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer func() {
		ticker.Stop()
		close(d.shutdownComplete)
	}()

	for {
		if err := d.processBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("dispatch batch", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait waits until dispatcher stops.
func (d *Dispatcher) Wait() {
	<-d.shutdownComplete
}

func (d *Dispatcher) processBatch(ctx context.Context) error {
	start := time.Now()

	messages, err := d.fetchAndClaim(ctx)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}
	defer batchDuration.Observe(time.Since(start).Seconds())

	if err := d.deliver(ctx, messages); err != nil {
		d.logger.Warn("delivery failed, routing batch to dlq", zap.Int("messages", len(messages)), zap.Error(err))
		failedCounter.Add(float64(len(messages)))
		if dlqErr := d.moveToDLQ(ctx, messages, err.Error()); dlqErr != nil {
			return dlqErr
		}
		return d.markPublished(ctx, messages)
	}

	deliveredCounter.Add(float64(len(messages)))
	return d.markPublished(ctx, messages)
}

func (d *Dispatcher) fetchAndClaim(ctx context.Context) (messages []Message, err error) {
	tx, err := d.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	const query = `SELECT event_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload
        FROM outbox
        WHERE published_at IS NULL
        ORDER BY event_id
        LIMIT $1
        FOR UPDATE SKIP LOCKED`

	rows, err := tx.Query(ctx, query, d.batchSize)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0)
	for rows.Next() {
		var msg Message
		if err = rows.Scan(&msg.EventID, &msg.AggregateType, &msg.AggregateID, &msg.EventType, &msg.Topic, &msg.SchemaSubject, &msg.PartitionKey, &msg.Payload); err != nil {
			rows.Close()
			return nil, err
		}
		messages = append(messages, msg)
		ids = append(ids, msg.EventID)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		_ = tx.Rollback(ctx)
		return nil, nil
	}

	if _, err = tx.Exec(ctx, `UPDATE outbox SET claimed_at = NOW() WHERE event_id = ANY($1)`, ids); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	return messages, nil
}

func (d *Dispatcher) deliver(ctx context.Context, messages []Message) error {
	batches := make(map[string][]kafka.Message)
	topics := make([]string, 0)

	for _, msg := range messages {
		record, err := d.encode(ctx, msg)
		if err != nil {
			return err
		}
		if _, exists := batches[msg.Topic]; !exists {
			topics = append(topics, msg.Topic)
		}
		batches[msg.Topic] = append(batches[msg.Topic], record)
	}

	for _, topic := range topics {
		if err := d.producer.WriteMessages(ctx, topic, batches[topic]...); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) encode(ctx context.Context, msg Message) (kafka.Message, error) {
	meta, ok := schemaCatalog[msg.EventType]
	if !ok {
		return kafka.Message{}, fmt.Errorf("no schema metadata for event_type=%s", msg.EventType)
	}

	cacheKey := fmt.Sprintf("%s::%s", msg.SchemaSubject, meta.Schema)
	var schemaID int
	if cached, found := d.schemaIDCache.Load(cacheKey); found {
		schemaID = cached.(int)
	} else {
		id, err := d.registry.EnsureSchema(ctx, msg.SchemaSubject, meta.Schema)
		if err != nil {
			return kafka.Message{}, err
		}
		d.schemaIDCache.Store(cacheKey, id)
		schemaID = id
	}

	return kafka.Message{
		Key:   []byte(msg.PartitionKey),
		Value: encodeWireFormat(schemaID, msg.Payload),
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(msg.EventType)},
			{Key: HeaderSchemaSubject, Value: []byte(msg.SchemaSubject)},
			{Key: HeaderUserID, Value: []byte(msg.PartitionKey)},
		},
	}, nil
}

func (d *Dispatcher) markPublished(ctx context.Context, messages []Message) error {
	ids := make([]int64, 0, len(messages))
	for _, msg := range messages {
		ids = append(ids, msg.EventID)
	}
	_, err := d.pool.Exec(ctx, `UPDATE outbox SET published_at = NOW() WHERE event_id = ANY($1)`, ids)
	return err
}

func (d *Dispatcher) moveToDLQ(ctx context.Context, messages []Message, reason string) error {
	for _, msg := range messages {
		entryReason := fmt.Sprintf("%s (topic=%s)", reason, msg.Topic)
		if err := d.dlq.Write(ctx, msg, entryReason); err != nil {
			return err
		}
		dlqCounter.WithLabelValues(msg.Topic).Inc()
	}
	return nil
}

// Message represents a row fetched from outbox.
type Message struct {
	EventID       int64
	AggregateType string
	AggregateID   string
	EventType     string
	Topic         string
	SchemaSubject string
	PartitionKey  string
	Payload       json.RawMessage
}

// encodeWireFormat applies Confluent framing for Schema Registry aware payloads.
func encodeWireFormat(schemaID int, payload []byte) []byte {
	frame := make([]byte, 5+len(payload))
	frame[0] = 0
	binary.BigEndian.PutUint32(frame[1:5], uint32(schemaID))
	copy(frame[5:], payload)
	return frame
}
