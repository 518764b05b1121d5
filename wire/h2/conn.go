// Package h2 is the HTTP/2 wire adapter: an out-of-scope-for-the-core-model
// collaborator responsible for HTTP/2 wire parsing and framing. It is
// built directly on golang.org/x/net/http2's Framer and hpack encoder, so
// this package supplies only the RequestPart/ResponsePart mapping and
// per-stream demultiplexing, not frame-format or HPACK internals.
package h2

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"

	"github.com/streamcore/httpcore"
)

const preface = "PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n"

// Settings are the server's negotiated HTTP/2 tunables: initial window
// size, max frame size, and optional max-concurrent-streams.
type Settings struct {
	MaxFrameSize         uint32
	TargetWindowSize     uint32
	MaxConcurrentStreams *uint32
}

// Logger is structurally compatible with httpcore.Logger.
type Logger interface {
	Debugw(msg string, keysAndValues ...any)
	Errorw(msg string, keysAndValues ...any)
}

// Conn is one HTTP/2 connection: a shared Framer, a mutex-serialized
// write path (frames from concurrent streams may interleave at a
// frame boundary but never tear a single frame), and an hpack
// encoder/decoder pair.
type Conn struct {
	nc       net.Conn
	framer   *http2.Framer
	settings Settings
	logger   Logger

	writeMu sync.Mutex
	henc    *hpack.Encoder
	hencBuf fmtBuffer

	mu      sync.Mutex
	streams map[uint32]*Stream
}

// fmtBuffer is the minimal io.Writer hpack.NewEncoder needs; kept as a
// named type instead of bytes.Buffer directly so Conn's zero-alloc reset
// is explicit at each header block encode.
type fmtBuffer struct{ b []byte }

func (w *fmtBuffer) Write(p []byte) (int, error) { w.b = append(w.b, p...); return len(p), nil }
func (w *fmtBuffer) Reset()                       { w.b = w.b[:0] }

// NewConn reads and validates the client connection preface, writes the
// server's initial SETTINGS frame, and returns a Conn ready to Serve.
func NewConn(nc net.Conn, settings Settings, logger Logger) (*Conn, error) {
	buf := make([]byte, len(preface))
	if _, err := readFull(nc, buf); err != nil {
		return nil, fmt.Errorf("h2: reading client preface: %w", err)
	}
	if string(buf) != preface {
		return nil, errors.New("h2: invalid HTTP/2 client preface")
	}

	c := &Conn{
		nc:       nc,
		framer:   http2.NewFramer(nc, nc),
		settings: settings,
		logger:   logger,
		streams:  make(map[uint32]*Stream),
	}
	c.henc = hpack.NewEncoder(&c.hencBuf)
	c.framer.MaxHeaderListSize = 0

	if err := c.writeInitialSettings(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Conn) writeInitialSettings() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	settings := []http2.Setting{
		{ID: http2.SettingMaxFrameSize, Val: c.settings.MaxFrameSize},
		{ID: http2.SettingInitialWindowSize, Val: c.settings.TargetWindowSize},
	}
	if c.settings.MaxConcurrentStreams != nil {
		settings = append(settings, http2.Setting{ID: http2.SettingMaxConcurrentStreams, Val: *c.settings.MaxConcurrentStreams})
	}
	return c.framer.WriteSettings(settings...)
}

func readFull(nc net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := nc.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error { return c.nc.Close() }
