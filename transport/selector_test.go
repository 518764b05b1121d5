package transport_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/streamcore/httpcore/internal/config"
	"github.com/streamcore/httpcore/transport"
)

// selfSignedCert returns a PEM-encoded ECDSA certificate/key pair valid for
// 127.0.0.1, used to drive a real TLS handshake in-process.
func selfSignedCert(t *testing.T) (certPEM, keyPEM string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "127.0.0.1"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	certPEM = string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	keyPEM = string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}))
	return certPEM, keyPEM
}

type nopLogger struct{}

func (nopLogger) Debugw(string, ...any) {}
func (nopLogger) Errorw(string, ...any) {}

func TestNewRejectsCustomVerifyOutsideMTLS(t *testing.T) {
	cfg := &config.Config{
		BindTarget:        config.BindTarget{Host: "127.0.0.1", Port: 8080},
		TransportSecurity: config.Plaintext,
	}
	verify := func([]*x509.Certificate) transport.VerifyOutcome {
		return transport.VerifyOutcome{Verified: true}
	}

	_, err := transport.New(cfg, verify, nopLogger{})
	require.ErrorIs(t, err, transport.ErrCustomVerificationWithoutMTLS)
}

func TestNewAllowsCustomVerifyUnderMTLS(t *testing.T) {
	cfg := &config.Config{
		BindTarget:        config.BindTarget{Host: "127.0.0.1", Port: 8443},
		TransportSecurity: config.MTLS,
	}
	verify := func([]*x509.Certificate) transport.VerifyOutcome {
		return transport.VerifyOutcome{Verified: true}
	}

	s, err := transport.New(cfg, verify, nopLogger{})
	require.NoError(t, err)
	require.NotNil(t, s)
}

func TestNewAllowsNoCustomVerifyUnderPlaintext(t *testing.T) {
	cfg := &config.Config{
		BindTarget:        config.BindTarget{Host: "127.0.0.1", Port: 8080},
		TransportSecurity: config.Plaintext,
	}

	s, err := transport.New(cfg, nil, nopLogger{})
	require.NoError(t, err)
	require.NotNil(t, s)
}

func TestAcceptNegotiatesHTTP2OverALPN(t *testing.T) {
	certPEM, keyPEM := selfSignedCert(t)

	cfg := &config.Config{
		BindTarget:        config.BindTarget{Host: "127.0.0.1", Port: 0},
		TransportSecurity: config.TLS,
		TLSMaterial: config.TLSMaterial{
			CertificateChainPEMString: certPEM,
			PrivateKeyPEMString:       keyPEM,
		},
	}

	s, err := transport.New(cfg, nil, nopLogger{})
	require.NoError(t, err)

	ln, err := s.Listen()
	require.NoError(t, err)
	defer ln.Close()

	acceptedCh := make(chan *transport.Accepted, 1)
	errCh := make(chan error, 1)
	go func() {
		accepted, err := s.Accept(ln)
		if err != nil {
			errCh <- err
			return
		}
		acceptedCh <- accepted
	}()

	pool := x509.NewCertPool()
	require.True(t, pool.AppendCertsFromPEM([]byte(certPEM)))

	conn, err := tls.Dial("tcp", ln.Addr().String(), &tls.Config{
		RootCAs:    pool,
		ServerName: "127.0.0.1",
		NextProtos: []string{"h2", "http/1.1"},
	})
	require.NoError(t, err)
	defer conn.Close()

	select {
	case accepted := <-acceptedCh:
		require.Equal(t, "HTTP/2", accepted.Protocol)
		accepted.Conn.Close()
	case err := <-errCh:
		t.Fatalf("accept failed: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for accept")
	}
}
