package h2

import (
	"fmt"
	"io"
	"sync"

	"golang.org/x/net/http2"

	"github.com/streamcore/httpcore"
	"github.com/streamcore/httpcore/internal/datecache"
)

// Stream implements httpcore.Stream for one HTTP/2 stream. Parts arriving
// from the connection's single read loop are pushed onto an internal
// channel; Next drains it. Send writes frames back through the shared,
// mutex-serialized Conn.
type Stream struct {
	conn *Conn
	id   uint32
	head httpcore.RequestHead

	parts chan partOrErr

	mu           sync.Mutex
	headWritten  bool
	finalSent    bool
	ended        bool
	partsClosed  bool
}

type partOrErr struct {
	part httpcore.RequestPart
	err  error
	done bool
}

var _ httpcore.Stream = (*Stream)(nil)

func newStream(c *Conn, id uint32, head httpcore.RequestHead) *Stream {
	return &Stream{conn: c, id: id, head: head, parts: make(chan partOrErr, 8)}
}

// deliver pushes item onto the stream's part queue, ignoring the send if
// the queue has already been closed (a stray frame after RST_STREAM or
// after request-end trailers, which a misbehaving peer could still send).
func (s *Stream) deliver(item partOrErr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.partsClosed {
		return
	}
	s.parts <- item
}

// closeParts closes the part queue exactly once.
func (s *Stream) closeParts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.partsClosed {
		return
	}
	s.partsClosed = true
	close(s.parts)
}

// Head returns the request head this stream was opened with.
func (s *Stream) Head() httpcore.RequestHead { return s.head }

// ID returns the HTTP/2 stream identifier, used by callers that need a
// per-stream correlation value distinct from the connection's.
func (s *Stream) ID() uint32 { return s.id }

// Next implements httpcore.PartSource.
func (s *Stream) Next() (httpcore.RequestPart, bool, error) {
	item, ok := <-s.parts
	if !ok {
		return httpcore.RequestPart{}, false, io.ErrUnexpectedEOF
	}
	if item.err != nil {
		return httpcore.RequestPart{}, false, item.err
	}
	if item.done {
		return httpcore.RequestPart{}, false, nil
	}
	return item.part, true, nil
}

// Send implements httpcore.PartSink.
func (s *Stream) Send(part httpcore.ResponsePart) error {
	switch part.Kind {
	case httpcore.ResponseHeadPart:
		return s.sendHead(part.Head)
	case httpcore.ResponseBodyPart:
		return s.sendData(part.Body, false)
	case httpcore.ResponseEndPart:
		return s.sendTrailers(part.Trailers)
	default:
		return fmt.Errorf("h2: unknown ResponsePart kind %d", part.Kind)
	}
}

func (s *Stream) sendHead(head httpcore.ResponseHead) error {
	s.conn.writeMu.Lock()
	defer s.conn.writeMu.Unlock()

	if !head.Is1xx() {
		if head.Header == nil {
			head.Header = httpcore.Header{}
		}
		if head.Header.Get("Date") == "" {
			head.Header.Set("Date", datecache.Format())
		}
	}

	s.conn.hencBuf.Reset()
	writeStatusPseudoHeader(s.conn.henc, head.StatusCode)
	writeHeaderFields(s.conn.henc, head.Header)

	err := s.conn.framer.WriteHeaders(http2.HeadersFrameParam{
		StreamID:      s.id,
		BlockFragment: append([]byte(nil), s.conn.hencBuf.b...),
		EndHeaders:    true,
		EndStream:     false,
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.headWritten = true
	if !head.Is1xx() {
		s.finalSent = true
	}
	s.mu.Unlock()
	return nil
}

func (s *Stream) sendData(chunk []byte, endStream bool) error {
	s.conn.writeMu.Lock()
	defer s.conn.writeMu.Unlock()
	return s.conn.framer.WriteData(s.id, endStream, chunk)
}

func (s *Stream) sendTrailers(trailers httpcore.Header) error {
	s.conn.writeMu.Lock()
	defer s.conn.writeMu.Unlock()

	if len(trailers) == 0 {
		if err := s.conn.framer.WriteData(s.id, true, nil); err != nil {
			return err
		}
		s.mu.Lock()
		s.ended = true
		s.mu.Unlock()
		return nil
	}

	s.conn.hencBuf.Reset()
	writeHeaderFields(s.conn.henc, trailers)
	err := s.conn.framer.WriteHeaders(http2.HeadersFrameParam{
		StreamID:      s.id,
		BlockFragment: append([]byte(nil), s.conn.hencBuf.b...),
		EndHeaders:    true,
		EndStream:     true,
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ended = true
	s.mu.Unlock()
	return nil
}

// Finish implements httpcore.Stream.
func (s *Stream) Finish() error {
	s.conn.mu.Lock()
	delete(s.conn.streams, s.id)
	s.conn.mu.Unlock()
	return nil
}

// Reset implements httpcore.Stream: RST_STREAM with NO_ERROR if a head
// was already written, INTERNAL_ERROR otherwise.
func (s *Stream) Reset(opts httpcore.ResetOptions) error {
	s.conn.mu.Lock()
	delete(s.conn.streams, s.id)
	s.conn.mu.Unlock()

	code := http2.ErrCodeInternal
	if opts.HeadWritten {
		code = http2.ErrCodeNo
	}

	s.conn.writeMu.Lock()
	defer s.conn.writeMu.Unlock()
	return s.conn.framer.WriteRSTStream(s.id, code)
}
