// Package config loads the httpServer.* configuration namespace via
// github.com/spf13/viper, applying defaults and the backpressure/HTTP2
// clamping rules a valid configuration must satisfy.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/streamcore/httpcore/internal/listensocket"
)

// TransportSecurity selects one of the five transport modes.
type TransportSecurity string

const (
	Plaintext     TransportSecurity = "plaintext"
	TLS           TransportSecurity = "tls"
	ReloadingTLS  TransportSecurity = "reloadingTLS"
	MTLS          TransportSecurity = "mTLS"
	ReloadingMTLS TransportSecurity = "reloadingMTLS"
)

// VerificationMode is one of mTLS's two relaxations of default peer
// verification.
type VerificationMode string

const (
	OptionalVerification  VerificationMode = "optionalVerification"
	NoHostnameVerification VerificationMode = "noHostnameVerification"
)

// BindTarget is httpServer.bindTarget.*.
type BindTarget struct {
	Host string
	Port int
}

// TLSMaterial is the union of the two ways a certificate/key can be
// supplied: inline PEM strings, or paths the reloading watcher re-reads.
type TLSMaterial struct {
	CertificateChainPEMString string
	PrivateKeyPEMString       string
	CertificateChainPEMPath   string
	PrivateKeyPEMPath         string
	RefreshInterval           int // seconds, default 30
}

// Backpressure is httpServer.backpressureStrategy.*.
type Backpressure struct {
	Low  int
	High int
}

// HTTP2 is httpServer.http2.*.
type HTTP2 struct {
	MaxFrameSize         uint32
	TargetWindowSize     uint32
	MaxConcurrentStreams *uint32
}

// Config is the fully loaded, defaulted, and clamped httpServer.*
// configuration tree. It is immutable after Load returns.
type Config struct {
	BindTarget                 BindTarget
	TransportSecurity          TransportSecurity
	TLSMaterial                TLSMaterial
	TrustRoots                 []string
	CertificateVerificationMode VerificationMode
	Backpressure               Backpressure
	HTTP2                      HTTP2
}

// Default returns a *viper.Viper pre-seeded with the defaults under
// the httpServer namespace.
func Default() *viper.Viper {
	v := viper.New()
	v.SetDefault("httpServer.transportSecurity.security", string(Plaintext))
	v.SetDefault("httpServer.transportSecurity.refreshInterval", 30)
	v.SetDefault("httpServer.backpressureStrategy.low", 2)
	v.SetDefault("httpServer.backpressureStrategy.high", 10)
	v.SetDefault("httpServer.http2.maxFrameSize", 1<<14)
	v.SetDefault("httpServer.http2.targetWindowSize", 1<<16-1)
	return v
}

// Load reads the httpServer.* namespace out of v (already configured with
// a config file / env binding by the caller — see cmd/httpcored) and
// returns a validated, clamped Config.
func Load(v *viper.Viper) (*Config, error) {
	// Bound the raw values before narrowing them, so an out-of-range
	// setting is clamped rather than rejected by the uint32 conversion.
	rawFrameSize := v.GetInt("httpServer.http2.maxFrameSize")
	if rawFrameSize < 1<<14 {
		rawFrameSize = 1 << 14
	} else if rawFrameSize > 1<<24-1 {
		rawFrameSize = 1<<24 - 1
	}
	rawWindowSize := v.GetInt("httpServer.http2.targetWindowSize")
	if rawWindowSize < 0 {
		rawWindowSize = 0
	} else if rawWindowSize > 1<<31-1 {
		rawWindowSize = 1<<31 - 1
	}

	maxFrameSize, err := listensocket.SafeIntToUint32(rawFrameSize)
	if err != nil {
		return nil, fmt.Errorf("httpServer.http2.maxFrameSize: %w", err)
	}
	targetWindowSize, err := listensocket.SafeIntToUint32(rawWindowSize)
	if err != nil {
		return nil, fmt.Errorf("httpServer.http2.targetWindowSize: %w", err)
	}

	cfg := &Config{
		BindTarget: BindTarget{
			Host: v.GetString("httpServer.bindTarget.host"),
			Port: v.GetInt("httpServer.bindTarget.port"),
		},
		TransportSecurity: TransportSecurity(v.GetString("httpServer.transportSecurity.security")),
		TLSMaterial: TLSMaterial{
			CertificateChainPEMString: v.GetString("httpServer.transportSecurity.certificateChainPEMString"),
			PrivateKeyPEMString:       v.GetString("httpServer.transportSecurity.privateKeyPEMString"),
			CertificateChainPEMPath:   v.GetString("httpServer.transportSecurity.certificateChainPEMPath"),
			PrivateKeyPEMPath:         v.GetString("httpServer.transportSecurity.privateKeyPEMPath"),
			RefreshInterval:           v.GetInt("httpServer.transportSecurity.refreshInterval"),
		},
		TrustRoots:                  v.GetStringSlice("httpServer.transportSecurity.trustRoots"),
		CertificateVerificationMode: VerificationMode(v.GetString("httpServer.transportSecurity.certificateVerificationMode")),
		Backpressure: Backpressure{
			Low:  v.GetInt("httpServer.backpressureStrategy.low"),
			High: v.GetInt("httpServer.backpressureStrategy.high"),
		},
		HTTP2: HTTP2{
			MaxFrameSize:     maxFrameSize,
			TargetWindowSize: targetWindowSize,
		},
	}

	if v.IsSet("httpServer.http2.maxConcurrentStreams") {
		n, err := listensocket.SafeIntToUint32(v.GetInt("httpServer.http2.maxConcurrentStreams"))
		if err != nil {
			return nil, fmt.Errorf("httpServer.http2.maxConcurrentStreams: %w", err)
		}
		cfg.HTTP2.MaxConcurrentStreams = &n
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.clamp()
	return cfg, nil
}

func (c *Config) validate() error {
	if c.BindTarget.Host == "" {
		return fmt.Errorf("httpServer.bindTarget.host is required")
	}
	if c.BindTarget.Port <= 0 {
		return fmt.Errorf("httpServer.bindTarget.port is required")
	}
	switch c.TransportSecurity {
	case Plaintext, TLS, ReloadingTLS, MTLS, ReloadingMTLS:
	default:
		return fmt.Errorf("httpServer.transportSecurity.security: unknown mode %q", c.TransportSecurity)
	}
	if c.Backpressure.Low < 0 || c.Backpressure.Low > c.Backpressure.High {
		return fmt.Errorf("httpServer.backpressureStrategy: require 0 <= low <= high, got low=%d high=%d",
			c.Backpressure.Low, c.Backpressure.High)
	}
	return nil
}

// clamp bounds maxFrameSize to [2^14, 2^24-1] and targetWindowSize to
// [0, 2^31-1].
func (c *Config) clamp() {
	const (
		minFrameSize = 1 << 14
		maxFrameSize = 1<<24 - 1
		maxWindow    = 1<<31 - 1
	)
	if c.HTTP2.MaxFrameSize < minFrameSize {
		c.HTTP2.MaxFrameSize = minFrameSize
	} else if c.HTTP2.MaxFrameSize > maxFrameSize {
		c.HTTP2.MaxFrameSize = maxFrameSize
	}
	if c.HTTP2.TargetWindowSize > maxWindow {
		c.HTTP2.TargetWindowSize = maxWindow
	}
}
