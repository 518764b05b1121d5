// Package h1 is the HTTP/1.1 wire adapter: the concrete collaborator that
// produces the abstract stream of RequestParts from the wire and writes
// the stream of ResponseParts back. It owns request-line/header parsing and
// chunked/content-length framing, and satisfies
// httpcore.PartSource/PartSink/Stream for each request it parses off one
// TCP (or TLS) connection.
package h1

import (
	"bufio"
	"fmt"
	"net"
	"net/textproto"
	"strings"

	"github.com/streamcore/httpcore"
)

// Conn wraps one accepted connection and yields a Stream per pipelined
// request, in order, until the connection is closed, a request or its
// final response head carries Connection: close, or a parse error occurs.
type Conn struct {
	nc net.Conn
	br *bufio.Reader
	bw *bufio.Writer
}

// NewConn wraps nc for request-at-a-time HTTP/1.1 service.
func NewConn(nc net.Conn) *Conn {
	return &Conn{nc: nc, br: bufio.NewReader(nc), bw: bufio.NewWriter(nc)}
}

// Close closes the underlying connection.
func (c *Conn) Close() error { return c.nc.Close() }

// NextStream parses the next request's head off the connection and
// returns a Stream for the dispatcher to drive. It returns (nil, io.EOF)
// when the peer closed the connection between requests, which is not an
// error — just the end of this connection's request sequence.
func (c *Conn) NextStream() (*Stream, error) {
	head, err := readRequestLine(c.br)
	if err != nil {
		return nil, err
	}
	header, err := readMIMEHeader(c.br)
	if err != nil {
		return nil, err
	}
	head.Header = header
	head.Authority = header.Get("Host")

	st := &Stream{
		conn:        c,
		head:        head,
		reader:      newBodyReader(c.br, header),
		closeWanted: strings.EqualFold(header.Get("Connection"), "close"),
	}
	return st, nil
}

func readRequestLine(br *bufio.Reader) (httpcore.RequestHead, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		return httpcore.RequestHead{}, err
	}
	line = strings.TrimRight(line, "\r\n")
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return httpcore.RequestHead{}, fmt.Errorf("h1: malformed request line %q", line)
	}
	return httpcore.RequestHead{
		Method: parts[0],
		Path:   parts[1],
		Scheme: "http",
	}, nil
}

func readMIMEHeader(br *bufio.Reader) (httpcore.Header, error) {
	tp := textproto.NewReader(br)
	mh, err := tp.ReadMIMEHeader()
	if err != nil && len(mh) == 0 {
		return nil, err
	}
	return httpcore.Header(mh), nil
}
