package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "roomlink-client", cfg.ServiceName)
	assert.Equal(t, "http://localhost:14268/api/traces", cfg.JaegerURL)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInit_Disabled(t *testing.T) {
	tp, err := Init(Config{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestSpanHelpers_NoProvider(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "test.operation")
	require.NotNil(t, span)

	AddSpanAttributes(ctx, attribute.String("k", "v"), attribute.Int("n", 42))
	RecordError(ctx, errors.New("boom"))
	RecordError(ctx, nil)
	End(span, errors.New("boom"))

	_, s := TraceHTTPRequest(context.Background(), "GET", "/rooms")
	End(s, nil)
	_, s = TraceSignal(context.Background(), "webrtc-offer", "u1")
	End(s, nil)
	_, s = TraceWebRTC(context.Background(), "offer", "u1")
	End(s, nil)
	_, s = TraceRoom(context.Background(), "join", "ABCD")
	End(s, nil)
}
