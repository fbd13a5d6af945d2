// Package consumer reads fittrack events back from Kafka for downstream processing.
package consumer

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Reader exposes the minimal kafka.Reader interface needed by the processor.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler receives decoded messages from Kafka.
type Handler interface {
	Handle(context.Context, Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(context.Context, Message) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, msg Message) error { return f(ctx, msg) }

// Message is the decoded representation of a Kafka record emitted by the outbox dispatcher.
type Message struct {
	Topic         string
	Partition     int
	Offset        int64
	Timestamp     time.Time
	Key           string
	EventType     string
	UserID        string
	SchemaSubject string
	SchemaID      int
	Payload       json.RawMessage
}

// Option configures optional behaviour for the Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// Processor pulls messages from Kafka, decodes them, and dispatches to a Handler.
type Processor struct {
	reader  Reader
	handler Handler
	logger  *zap.Logger
}

// NewProcessor constructs a Processor with the provided reader and handler.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:  reader,
		handler: handler,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("consumer")
	return p
}

// Run starts a blocking loop that processes Kafka messages until the context is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			p.logger.Warn("fetch error", zap.Error(err))
			continue
		}

		event, decodeErr := decodeMessage(msg)
		if decodeErr != nil {
			p.logger.Warn("decode error",
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(decodeErr),
			)
			recordDecodeError(msg.Topic)
			// malformed messages are committed so they cannot block the partition
			if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
				p.logger.Error("commit after decode failure", zap.Error(commitErr))
			}
			continue
		}

		if handleErr := p.handler.Handle(ctx, event); handleErr != nil {
			p.logger.Error("handler error",
				zap.String("event_type", event.EventType),
				zap.String("user_id", event.UserID),
				zap.Error(handleErr),
			)
			recordHandlerError(event)
			continue
		}

		if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
			p.logger.Error("commit error", zap.Error(commitErr))
		} else {
			recordProcessed(event)
		}
	}
}

func decodeMessage(msg kafka.Message) (Message, error) {
	if len(msg.Value) < 5 {
		return Message{}, fmt.Errorf("invalid payload length: %d", len(msg.Value))
	}
	if msg.Value[0] != 0 {
		return Message{}, fmt.Errorf("unknown wire format magic byte: %d", msg.Value[0])
	}

	eventType, ok := headerValue(msg, "event_type")
	if !ok || len(eventType) == 0 {
		return Message{}, errors.New("missing event_type header")
	}
	userID, _ := headerValue(msg, "user_id")
	schemaSubject, _ := headerValue(msg, "schema_subject")

	payload := json.RawMessage(append([]byte(nil), msg.Value[5:]...))
	if !json.Valid(payload) {
		return Message{}, errors.New("payload is not valid JSON")
	}

	return Message{
		Topic:         msg.Topic,
		Partition:     msg.Partition,
		Offset:        msg.Offset,
		Timestamp:     msg.Time,
		Key:           string(msg.Key),
		EventType:     string(eventType),
		UserID:        string(userID),
		SchemaSubject: string(schemaSubject),
		SchemaID:      int(binary.BigEndian.Uint32(msg.Value[1:5])),
		Payload:       payload,
	}, nil
}

func headerValue(msg kafka.Message, key string) ([]byte, bool) {
	for _, header := range msg.Headers {
		if header.Key == key {
			return header.Value, true
		}
	}
	return nil, false
}
