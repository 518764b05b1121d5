package h1

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/streamcore/httpcore"
	"github.com/streamcore/httpcore/internal/datecache"
)

// Stream implements httpcore.Stream for one HTTP/1.1 request parsed off a
// Conn. Its PartSink half tracks whether a (informational or final) head
// has been written and whether the chosen framing is chunked, so Send can
// write a valid response regardless of how many 1xx
// heads precede the final one.
type Stream struct {
	conn   *Conn
	head   httpcore.RequestHead
	reader *bodyReader

	headWritten  bool
	finalSent    bool
	chunkedOut   bool
	closeWanted  bool
}

var _ httpcore.Stream = (*Stream)(nil)

// Head returns the parsed request head this stream was built from.
func (s *Stream) Head() httpcore.RequestHead { return s.head }

// Next implements httpcore.PartSource by delegating to the body reader.
func (s *Stream) Next() (httpcore.RequestPart, bool, error) {
	return s.reader.Next()
}

// Send implements httpcore.PartSink.
func (s *Stream) Send(part httpcore.ResponsePart) error {
	switch part.Kind {
	case httpcore.ResponseHeadPart:
		return s.sendHead(part.Head)
	case httpcore.ResponseBodyPart:
		return s.sendBody(part.Body)
	case httpcore.ResponseEndPart:
		return s.sendEnd(part.Trailers)
	default:
		return fmt.Errorf("h1: unknown ResponsePart kind %d", part.Kind)
	}
}

func (s *Stream) sendHead(head httpcore.ResponseHead) error {
	bw := s.conn.bw
	status := http.StatusText(head.StatusCode)
	if _, err := fmt.Fprintf(bw, "HTTP/1.1 %d %s\r\n", head.StatusCode, status); err != nil {
		return err
	}

	isFinal := !head.Is1xx()
	if isFinal {
		if head.Header == nil {
			head.Header = httpcore.Header{}
		}
		if head.Header.Get("Date") == "" {
			head.Header.Set("Date", datecache.Format())
		}
		if head.Header.Get("Content-Length") == "" {
			s.chunkedOut = true
			head.Header.Set("Transfer-Encoding", "chunked")
		}
		if strings.EqualFold(head.Header.Get("Connection"), "close") {
			s.closeWanted = true
		}
	}

	for k, vs := range head.Header {
		for _, v := range vs {
			if _, err := fmt.Fprintf(bw, "%s: %s\r\n", k, v); err != nil {
				return err
			}
		}
	}
	if _, err := bw.WriteString("\r\n"); err != nil {
		return err
	}

	s.headWritten = true
	if isFinal {
		s.finalSent = true
		return nil
	}
	return bw.Flush()
}

func (s *Stream) sendBody(chunk []byte) error {
	bw := s.conn.bw
	if !s.chunkedOut {
		_, err := bw.Write(chunk)
		return err
	}
	if _, err := fmt.Fprintf(bw, "%x\r\n", len(chunk)); err != nil {
		return err
	}
	if _, err := bw.Write(chunk); err != nil {
		return err
	}
	_, err := bw.WriteString("\r\n")
	return err
}

func (s *Stream) sendEnd(trailers httpcore.Header) error {
	bw := s.conn.bw
	if s.chunkedOut {
		if _, err := bw.WriteString("0\r\n"); err != nil {
			return err
		}
		for k, vs := range trailers {
			for _, v := range vs {
				if _, err := fmt.Fprintf(bw, "%s: %s\r\n", k, v); err != nil {
					return err
				}
			}
		}
		if _, err := bw.WriteString("\r\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Finish implements httpcore.Stream: flush the outbound. The connection
// stays open for the next pipelined request unless the request or its
// final response head carried Connection: close (see WantsClose); an
// HTTP/1.0 request is not treated differently.
func (s *Stream) Finish() error {
	return s.conn.bw.Flush()
}

// Reset implements httpcore.Stream: HTTP/1.1 has no frame-level reset, so
// any handler error simply closes the connection.
func (s *Stream) Reset(httpcore.ResetOptions) error {
	return s.conn.Close()
}

// WantsClose reports whether the just-served request or its final response
// head carried Connection: close, so Conn's caller knows not to call
// NextStream again.
func (s *Stream) WantsClose() bool { return s.closeWanted }
