package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streamcore/httpcore/internal/config"
)

func TestLoadAppliesDefaultsAndClamps(t *testing.T) {
	v := config.Default()
	v.Set("httpServer.bindTarget.host", "0.0.0.0")
	v.Set("httpServer.bindTarget.port", 8443)
	v.Set("httpServer.http2.maxFrameSize", 1) // below the minimum
	v.Set("httpServer.http2.targetWindowSize", 1 << 40) // above the maximum

	cfg, err := config.Load(v)
	require.NoError(t, err)
	require.Equal(t, config.Plaintext, cfg.TransportSecurity)
	require.EqualValues(t, 1<<14, cfg.HTTP2.MaxFrameSize)
	require.EqualValues(t, 1<<31-1, cfg.HTTP2.TargetWindowSize)
	require.Equal(t, 2, cfg.Backpressure.Low)
	require.Equal(t, 10, cfg.Backpressure.High)
}

func TestLoadRejectsInvertedBackpressureBounds(t *testing.T) {
	v := config.Default()
	v.Set("httpServer.bindTarget.host", "127.0.0.1")
	v.Set("httpServer.bindTarget.port", 9000)
	v.Set("httpServer.backpressureStrategy.low", 10)
	v.Set("httpServer.backpressureStrategy.high", 2)

	_, err := config.Load(v)
	require.Error(t, err)
}

func TestLoadRejectsMissingBindHost(t *testing.T) {
	v := config.Default()
	v.Set("httpServer.bindTarget.port", 9000)

	_, err := config.Load(v)
	require.Error(t, err)
}

func TestLoadRejectsUnknownTransportSecurity(t *testing.T) {
	v := config.Default()
	v.Set("httpServer.bindTarget.host", "127.0.0.1")
	v.Set("httpServer.bindTarget.port", 9000)
	v.Set("httpServer.transportSecurity.security", "quic")

	_, err := config.Load(v)
	require.Error(t, err)
}
