package h2

import (
	"fmt"
	"net/textproto"
	"strconv"
	"strings"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"

	"github.com/streamcore/httpcore"
)

// StreamHandler is invoked, once per new HTTP/2 stream, with the parsed
// request head and the Stream to drive through httpcore.Dispatcher. It is
// expected to run the dispatch on its own goroutine (the caller typically
// wraps internal/taskgroup.Group.Go around it) since Serve's read loop
// must keep demultiplexing frames for sibling streams concurrently.
type StreamHandler func(head httpcore.RequestHead, st *Stream)

// Serve runs the connection's single frame-reading loop until the
// connection closes or a fatal framing error occurs. For each new
// HEADERS frame without a matching open stream, it decodes the header
// block into a RequestHead and invokes onStream.
func (c *Conn) Serve(onStream StreamHandler) error {
	dec := hpack.NewDecoder(4096, nil)

	for {
		f, err := c.framer.ReadFrame()
		if err != nil {
			if c.logger != nil {
				c.logger.Errorw("h2: frame read failed, closing connection", "error", err)
			}
			c.closeAllStreams(err)
			return err
		}

		switch fr := f.(type) {
		case *http2.SettingsFrame:
			if !fr.IsAck() {
				c.writeMu.Lock()
				err := c.framer.WriteSettingsAck()
				c.writeMu.Unlock()
				if err != nil {
					return err
				}
			}
		case *http2.PingFrame:
			if !fr.IsAck() {
				c.writeMu.Lock()
				err := c.framer.WritePing(true, fr.Data)
				c.writeMu.Unlock()
				if err != nil {
					return err
				}
			}
		case *http2.WindowUpdateFrame:
			// Flow control accounting is left to the OS-level TCP buffers
			// for this core; spec scopes WindowUpdate bookkeeping to the
			// wire collaborator it deliberately treats as external.
		case *http2.HeadersFrame:
			if err := c.handleHeaders(fr, dec, onStream); err != nil {
				return err
			}
		case *http2.DataFrame:
			c.handleData(fr)
		case *http2.RSTStreamFrame:
			c.handleReset(fr.StreamID)
		case *http2.GoAwayFrame:
			c.closeAllStreams(fmt.Errorf("h2: received GOAWAY: %v", fr.ErrCode))
			return nil
		}
	}
}

func (c *Conn) handleHeaders(fr *http2.HeadersFrame, dec *hpack.Decoder, onStream StreamHandler) error {
	c.mu.Lock()
	existing := c.streams[fr.StreamID]
	c.mu.Unlock()

	fields, err := dec.DecodeFull(fr.HeaderBlockFragment())
	if err != nil {
		return fmt.Errorf("h2: hpack decode: %w", err)
	}

	if existing != nil {
		// A second HEADERS frame on an existing stream is request
		// trailers, per spec's RequestPart.End(trailers).
		trailers := fieldsToHeader(fields)
		existing.deliver(partOrErr{part: httpcore.RequestPart{Kind: httpcore.RequestEndPart, Trailers: trailers}})
		if fr.StreamEnded() {
			existing.closeParts()
			c.mu.Lock()
			delete(c.streams, fr.StreamID)
			c.mu.Unlock()
		}
		return nil
	}

	head := fieldsToRequestHead(fields)
	st := newStream(c, fr.StreamID, head)
	c.mu.Lock()
	c.streams[fr.StreamID] = st
	c.mu.Unlock()

	if fr.StreamEnded() {
		st.deliver(partOrErr{part: httpcore.RequestPart{Kind: httpcore.RequestEndPart}})
	}

	onStream(head, st)
	return nil
}

func (c *Conn) handleData(fr *http2.DataFrame) {
	c.mu.Lock()
	st := c.streams[fr.StreamID]
	c.mu.Unlock()
	if st == nil {
		return
	}

	data := fr.Data()
	if len(data) > 0 {
		body := append([]byte(nil), data...)
		st.deliver(partOrErr{part: httpcore.RequestPart{Kind: httpcore.RequestBodyPart, Body: body}})
	}
	if fr.StreamEnded() {
		st.deliver(partOrErr{part: httpcore.RequestPart{Kind: httpcore.RequestEndPart}})
	}
}

func (c *Conn) handleReset(streamID uint32) {
	c.mu.Lock()
	st := c.streams[streamID]
	delete(c.streams, streamID)
	c.mu.Unlock()
	if st != nil {
		st.closeParts()
	}
}

func (c *Conn) closeAllStreams(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, st := range c.streams {
		st.deliver(partOrErr{err: err})
		st.closeParts()
		delete(c.streams, id)
	}
}

func fieldsToRequestHead(fields []hpack.HeaderField) httpcore.RequestHead {
	head := httpcore.RequestHead{Header: httpcore.Header{}}
	for _, f := range fields {
		switch f.Name {
		case ":method":
			head.Method = f.Value
		case ":scheme":
			head.Scheme = f.Value
		case ":authority":
			head.Authority = f.Value
		case ":path":
			head.Path = f.Value
		default:
			head.Header.Add(http2CanonicalKey(f.Name), f.Value)
		}
	}
	return head
}

func fieldsToHeader(fields []hpack.HeaderField) httpcore.Header {
	if len(fields) == 0 {
		return nil
	}
	h := httpcore.Header{}
	for _, f := range fields {
		h.Add(http2CanonicalKey(f.Name), f.Value)
	}
	return h
}

func writeStatusPseudoHeader(enc *hpack.Encoder, status int) {
	enc.WriteField(hpack.HeaderField{Name: ":status", Value: strconv.Itoa(status)})
}

func writeHeaderFields(enc *hpack.Encoder, header httpcore.Header) {
	for k, vs := range header {
		lk := strings.ToLower(k)
		for _, v := range vs {
			enc.WriteField(hpack.HeaderField{Name: lk, Value: v})
		}
	}
}

// http2CanonicalKey turns HTTP/2's lowercase wire header names back into
// httpcore's canonical MIME form so callers see the same key shape
// regardless of which protocol produced the request.
func http2CanonicalKey(name string) string {
	return textproto.CanonicalMIMEHeaderKey(name)
}
