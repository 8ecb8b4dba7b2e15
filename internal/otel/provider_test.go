package otel

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waymark3d/waymark/internal/config"
)

func TestDisabledProviderIsNoop(t *testing.T) {
	p, err := New(config.OTelConfig{Enabled: false}, nil)
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.Nil(t, p.LoggerProvider())
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestFileExportProvider(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(config.OTelConfig{
		Enabled:      true,
		ServiceName:  "waymark-test",
		BatchTimeout: time.Second,
	}, &buf)
	require.NoError(t, err)
	assert.True(t, p.Enabled())
	require.NotNil(t, p.LoggerProvider())

	logger := p.LoggerProvider().Logger("test")
	require.NotNil(t, logger)

	require.NoError(t, p.Flush(context.Background()))
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestEnabledWithoutSinkFails(t *testing.T) {
	_, err := New(config.OTelConfig{Enabled: true, ServiceName: "waymark-test"}, nil)
	require.Error(t, err)
}
