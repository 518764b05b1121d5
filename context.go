package httpcore

import (
	"crypto/x509"
	"net"
)

// RequestContext is the immutable per-request metadata handed to the
// handler alongside the request head, reader, and sender. It is created
// at request intake and discarded once the handler returns.
type RequestContext struct {
	// ConnID correlates every request on the same underlying connection;
	// StreamID additionally distinguishes concurrent HTTP/2 streams on
	// that connection. Both are supplemental features used
	// purely for log correlation.
	ConnID   string
	StreamID string

	// LocalAddr/RemoteAddr describe the underlying connection.
	LocalAddr  net.Addr
	RemoteAddr net.Addr

	// Protocol is "HTTP/1.1" or "HTTP/2", set by the dispatcher based on
	// which wire adapter produced this request.
	Protocol string

	// PeerCertificates is the verified peer certificate chain when the
	// transport is running in an mTLS mode with a chain to expose; nil
	// otherwise.
	PeerCertificates []*x509.Certificate
}
