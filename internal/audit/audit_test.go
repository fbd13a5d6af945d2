package audit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type errSink struct{}

func (errSink) Write(context.Context, Event) error { return errors.New("insert failed") }

func TestRecordWritesToSink(t *testing.T) {
	sink := &MemorySink{}
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewLogger(sink, zap.New(core), true)

	logger.Record(context.Background(), Event{Action: ActionWorkoutLogged, ActorID: "u-1", ResourceID: "w-1"})

	events := sink.Events()
	require.Len(t, events, 1)
	require.Equal(t, ActionWorkoutLogged, events[0].Action)
	require.False(t, events[0].OccurredAt.IsZero())
	require.Zero(t, logs.Len())
}

func TestRecordFallsBackToConsole(t *testing.T) {
	cases := []struct {
		name    string
		sink    Sink
		enabled bool
		reason  string
		level   zapcore.Level
	}{
		{name: "sink error", sink: errSink{}, enabled: true, reason: "sink_error", level: zapcore.WarnLevel},
		{name: "nil sink", sink: nil, enabled: true, reason: "no_sink", level: zapcore.InfoLevel},
		{name: "disabled", sink: &MemorySink{}, enabled: false, reason: "disabled", level: zapcore.InfoLevel},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			logger := NewLogger(tc.sink, zap.New(core), tc.enabled)
			before := testutil.ToFloat64(fallbackCounter.WithLabelValues(tc.reason))

			logger.Record(context.Background(), Event{Action: ActionCheckoutStarted, ActorID: "u-2"})

			entries := logs.All()
			require.Len(t, entries, 1)
			require.Equal(t, tc.level, entries[0].Level)
			require.Equal(t, "audit event", entries[0].Message)
			require.Equal(t, ActionCheckoutStarted, entries[0].ContextMap()["action"])
			require.Equal(t, tc.reason, entries[0].ContextMap()["fallback_reason"])
			require.InDelta(t, before+1, testutil.ToFloat64(fallbackCounter.WithLabelValues(tc.reason)), 0.0001)
		})
	}
}

func TestNilLoggerIsNoop(t *testing.T) {
	var logger *Logger
	require.NotPanics(t, func() { logger.Record(context.Background(), Event{Action: "x"}) })
}

func TestFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/workouts", nil)
	req.RemoteAddr = "198.51.100.4:4431"
	req.Header.Set("User-Agent", "fittrack-ios/2.1")

	event := FromRequest(req, ActionWorkoutLogged, "u-3")
	require.Equal(t, "198.51.100.4", event.IP)
	require.Equal(t, "fittrack-ios/2.1", event.UserAgent)
	require.Equal(t, "u-3", event.ActorID)
}
