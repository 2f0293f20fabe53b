package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"buildweaver/internal/config"
)

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(config.TracingConfig{}, nil)
	require.NoError(t, err)
	require.False(t, p.Enabled())

	_, span := p.Tracer().Start(context.Background(), "analyze")
	require.False(t, span.IsRecording())
	span.End()
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_StdoutExporter(t *testing.T) {
	var buf bytes.Buffer
	p, err := NewProvider(config.TracingConfig{Enabled: true, Exporter: "stdout", SampleRate: 1}, &buf)
	require.NoError(t, err)
	require.True(t, p.Enabled())

	_, span := p.Tracer().Start(context.Background(), "analyze //pkg:lib")
	span.SetAttributes(AttrTarget.String("//pkg:lib"), AttrActions.Int(2))
	span.End()
	require.NoError(t, p.Shutdown(context.Background()))

	require.Contains(t, buf.String(), "analyze //pkg:lib")
	require.Contains(t, buf.String(), "buildweaver.target")
}

func TestNewProvider_UnsupportedExporter(t *testing.T) {
	_, err := NewProvider(config.TracingConfig{Enabled: true, Exporter: "jaeger"}, nil)
	require.Error(t, err)
}
