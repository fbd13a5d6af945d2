package consumer

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func framed(schemaID int, payload []byte) []byte {
	value := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(value[1:5], uint32(schemaID))
	copy(value[5:], payload)
	return value
}

func TestProcessorCommitsOnSuccess(t *testing.T) {
	payload := []byte(`{"workout_id":"w-1","user_id":"u-1"}`)
	msg := kafka.Message{
		Topic:     "workout_events",
		Partition: 0,
		Offset:    10,
		Time:      time.Now().UTC(),
		Key:       []byte("u-1"),
		Value:     framed(42, payload),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("workout.logged")},
			{Key: "user_id", Value: []byte("u-1")},
			{Key: "schema_subject", Value: []byte("workout_events-workout.logged")},
		},
	}

	reader := &stubReader{messages: []kafka.Message{msg}}
	handler := &stubHandler{}
	before := testutil.ToFloat64(processedCounter.WithLabelValues("workout_events", "workout.logged"))

	err := NewProcessor(reader, handler, WithLogger(zaptest.NewLogger(t))).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, "workout.logged", handler.last.EventType)
	require.Equal(t, "u-1", handler.last.UserID)
	require.Equal(t, "workout_events-workout.logged", handler.last.SchemaSubject)
	require.Equal(t, 42, handler.last.SchemaID)
	require.JSONEq(t, string(payload), string(handler.last.Payload))
	require.InDelta(t, before+1, testutil.ToFloat64(processedCounter.WithLabelValues("workout_events", "workout.logged")), 0.0001)
}

func TestProcessorSkipsCommitOnHandlerError(t *testing.T) {
	msg := kafka.Message{
		Topic: "billing_events",
		Value: framed(99, []byte(`{"subscription_id":"sub_1"}`)),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("subscription.changed")},
		},
	}

	reader := &stubReader{messages: []kafka.Message{msg}}
	handler := &stubHandler{err: errors.New("boom")}

	err := NewProcessor(reader, handler, WithLogger(zaptest.NewLogger(t))).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 0, reader.commitCalls)
}

func TestProcessorCommitsPoisonPills(t *testing.T) {
	cases := map[string]kafka.Message{
		"short frame":  {Topic: "workout_events", Value: []byte{0, 1}},
		"no header":    {Topic: "workout_events", Value: framed(1, []byte(`{}`))},
		"bad magic":    {Topic: "workout_events", Value: append([]byte{9, 0, 0, 0, 1}, '{', '}'), Headers: []kafka.Header{{Key: "event_type", Value: []byte("workout.logged")}}},
		"invalid json": {Topic: "workout_events", Value: framed(1, []byte(`{oops`)), Headers: []kafka.Header{{Key: "event_type", Value: []byte("workout.logged")}}},
	}
	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			reader := &stubReader{messages: []kafka.Message{msg}}
			handler := &stubHandler{}
			before := testutil.ToFloat64(decodeErrorCounter.WithLabelValues("workout_events"))

			err := NewProcessor(reader, handler).Run(context.Background())
			require.ErrorIs(t, err, context.Canceled)

			require.Zero(t, handler.calls)
			require.Equal(t, 1, reader.commitCalls)
			require.InDelta(t, before+1, testutil.ToFloat64(decodeErrorCounter.WithLabelValues("workout_events")), 0.0001)
		})
	}
}

func TestProcessorContinuesAfterFetchError(t *testing.T) {
	reader := &stubReader{
		fetchErrs: []error{errors.New("broker unavailable")},
		messages: []kafka.Message{{
			Topic:   "workout_events",
			Value:   framed(1, []byte(`{}`)),
			Headers: []kafka.Header{{Key: "event_type", Value: []byte("workout.deleted")}},
		}},
	}
	handler := &stubHandler{}

	err := NewProcessor(reader, handler).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, handler.calls)
}

func TestProcessorStopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reader := &stubReader{}
	err := NewProcessor(reader, &stubHandler{}).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, reader.index)
}

type stubReader struct {
	fetchErrs   []error
	messages    []kafka.Message
	index       int
	commitCalls int
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if len(r.fetchErrs) > 0 {
		err := r.fetchErrs[0]
		r.fetchErrs = r.fetchErrs[1:]
		return kafka.Message{}, err
	}
	if r.index >= len(r.messages) {
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, _ ...kafka.Message) error {
	r.commitCalls++
	return nil
}

func (r *stubReader) Close() error { return nil }

type stubHandler struct {
	calls int
	err   error
	last  Message
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	return h.err
}
