// Package transport implements ALPN-based selection between plaintext
// HTTP/1.1 and TLS with HTTP/1.1<->HTTP/2 negotiation, including mTLS
// with an optional custom verification callback. TLS handshake mechanics
// themselves are std crypto/tls; this package only decides *which*
// tls.Config to hand the listener and *what protocol* a given accepted
// connection negotiated.
//
// Listener construction uses github.com/valyala/tcplisten for a tuned,
// SO_REUSEPORT-capable accept socket.
package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"strconv"

	"github.com/valyala/tcplisten"

	"github.com/streamcore/httpcore/internal/config"
	"github.com/streamcore/httpcore/transport/reload"
)

// Logger is structurally compatible with httpcore.Logger; kept as a
// separate declaration so this package does not import the root package
// (which itself imports transport), avoiding an import cycle.
type Logger interface {
	Debugw(msg string, keysAndValues ...any)
	Errorw(msg string, keysAndValues ...any)
}

// VerifyOutcome is the result of a custom peer-verification callback:
// either certificateVerified(chain) or failed(reason).
type VerifyOutcome struct {
	Verified bool
	Chain    []*x509.Certificate
	Reason   string
}

// VerifyFunc is the optional custom verification callback. Supplying one
// outside an mTLS mode is a configuration error (ErrCustomVerificationWithoutMTLS).
type VerifyFunc func(chain []*x509.Certificate) VerifyOutcome

// ErrCustomVerificationWithoutMTLS mirrors
// the customVerificationCallbackProvidedWhenNotUsingMTLS.
var ErrCustomVerificationWithoutMTLS = errors.New("transport: custom verification callback provided when not using mTLS")

// Accepted is one accepted, fully negotiated connection: the net.Conn to
// hand to a wire adapter, which protocol it negotiated, and (mTLS only)
// the verified peer certificate chain to attach to RequestContext.
type Accepted struct {
	Conn             net.Conn
	Protocol         string // "HTTP/1.1" or "HTTP/2"
	PeerCertificates []*x509.Certificate
}

// Selector is the constructed, ready-to-accept transport for one Server.
type Selector struct {
	cfg          *config.Config
	customVerify VerifyFunc
	logger       Logger
	reloader     *reload.Watcher
}

// New validates cfg/customVerify against the constraint and
// builds a Selector. If cfg's mode is one of the Reloading* modes, New
// also starts the certificate reloader.
func New(cfg *config.Config, customVerify VerifyFunc, logger Logger) (*Selector, error) {
	isMTLS := cfg.TransportSecurity == config.MTLS || cfg.TransportSecurity == config.ReloadingMTLS
	if customVerify != nil && !isMTLS {
		return nil, ErrCustomVerificationWithoutMTLS
	}

	s := &Selector{cfg: cfg, customVerify: customVerify, logger: logger}

	switch cfg.TransportSecurity {
	case config.ReloadingTLS, config.ReloadingMTLS:
		w, err := reload.New(cfg.TLSMaterial.CertificateChainPEMPath, cfg.TLSMaterial.PrivateKeyPEMPath, cfg.TLSMaterial.RefreshInterval, logger)
		if err != nil {
			return nil, err
		}
		s.reloader = w
	}

	return s, nil
}

// Listen builds the bound listener for cfg.BindTarget using tcplisten's
// tuned socket options, wrapping it in TLS when the mode requires it.
func (s *Selector) Listen() (net.Listener, error) {
	addr := net.JoinHostPort(s.cfg.BindTarget.Host, strconv.Itoa(s.cfg.BindTarget.Port))

	lc := tcplisten.Config{
		ReusePort:   true,
		DeferAccept: true,
		FastOpen:    true,
	}
	ln, err := lc.NewListener("tcp4", addr)
	if err != nil {
		return nil, err
	}

	if s.cfg.TransportSecurity == config.Plaintext {
		return ln, nil
	}

	tlsCfg, err := s.tlsConfig()
	if err != nil {
		ln.Close()
		return nil, err
	}
	return tls.NewListener(ln, tlsCfg), nil
}

// Stop releases the certificate reloader, if one is running.
func (s *Selector) Stop() {
	if s.reloader != nil {
		s.reloader.Stop()
	}
}

// Accept pulls one connection off ln and, for TLS modes, drives the
// handshake and ALPN negotiation, reporting the negotiated protocol and
// (mTLS) the verified peer chain.
func (s *Selector) Accept(ln net.Listener) (*Accepted, error) {
	conn, err := ln.Accept()
	if err != nil {
		return nil, err
	}

	if s.cfg.TransportSecurity == config.Plaintext {
		return &Accepted{Conn: conn, Protocol: "HTTP/1.1"}, nil
	}

	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		conn.Close()
		return nil, errors.New("transport: non-TLS connection accepted from a TLS listener")
	}
	if err := tlsConn.Handshake(); err != nil {
		conn.Close()
		return nil, err
	}

	state := tlsConn.ConnectionState()
	protocol := "HTTP/1.1"
	if state.NegotiatedProtocol == "h2" {
		protocol = "HTTP/2"
	}
	if s.logger != nil {
		s.logger.Debugw("transport: TLS handshake complete",
			"alpn", state.NegotiatedProtocol, "remote_addr", conn.RemoteAddr())
	}

	var chain []*x509.Certificate
	isMTLS := s.cfg.TransportSecurity == config.MTLS || s.cfg.TransportSecurity == config.ReloadingMTLS
	if isMTLS && len(state.PeerCertificates) > 0 {
		chain = state.PeerCertificates
		if s.customVerify != nil {
			outcome := s.customVerify(chain)
			if !outcome.Verified {
				conn.Close()
				return nil, errors.New("transport: custom verification failed: " + outcome.Reason)
			}
			chain = outcome.Chain
		}
	}

	return &Accepted{Conn: tlsConn, Protocol: protocol, PeerCertificates: chain}, nil
}

func (s *Selector) tlsConfig() (*tls.Config, error) {
	cert, err := s.loadCertificate()
	if err != nil {
		return nil, err
	}

	tlsCfg := &tls.Config{
		NextProtos:   []string{"h2", "http/1.1"},
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if s.reloader != nil {
		tlsCfg.GetCertificate = func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
			return s.reloader.Certificate(), nil
		}
	}

	switch s.cfg.TransportSecurity {
	case config.MTLS, config.ReloadingMTLS:
		pool, err := trustRootPool(s.cfg.TrustRoots)
		if err != nil {
			return nil, err
		}
		tlsCfg.ClientCAs = pool
		switch s.cfg.CertificateVerificationMode {
		case config.OptionalVerification:
			tlsCfg.ClientAuth = tls.VerifyClientCertIfGiven
		case config.NoHostnameVerification:
			// Server-side client-cert verification never checks a hostname
			// (that's a client-side SNI/CN concern), so this mode uses the
			// same policy as the default: a client certificate is required
			// and its chain is verified against the trust roots, with no
			// check relaxed.
			tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
		default:
			tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
		}
	}

	return tlsCfg, nil
}

func (s *Selector) loadCertificate() (tls.Certificate, error) {
	m := s.cfg.TLSMaterial
	if m.CertificateChainPEMString != "" {
		return tls.X509KeyPair([]byte(m.CertificateChainPEMString), []byte(m.PrivateKeyPEMString))
	}
	return tls.LoadX509KeyPair(m.CertificateChainPEMPath, m.PrivateKeyPEMPath)
}

func trustRootPool(pemRoots []string) (*x509.CertPool, error) {
	if len(pemRoots) == 0 {
		return x509.SystemCertPool()
	}
	pool := x509.NewCertPool()
	for _, pem := range pemRoots {
		if !pool.AppendCertsFromPEM([]byte(pem)) {
			return nil, errors.New("transport: failed to parse a trust root PEM")
		}
	}
	return pool, nil
}
