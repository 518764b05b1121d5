package httpcore

import (
	"github.com/valyala/bytebufferpool"

	"github.com/streamcore/httpcore/internal/bufpool"
	"github.com/streamcore/httpcore/stream"
)

// PartSource is the collaborator a wire adapter (wire/h1, wire/h2)
// implements to hand the dispatcher a request's parts one at a time.
// Next returns ok=false, err=nil exactly once, when the underlying
// transport has cleanly closed the stream; any parts observed after that
// are impossible by construction.
type PartSource interface {
	Next() (part RequestPart, ok bool, err error)
}

// bodyState is an explicit state machine. It is kept as a tagged enum
// rather than folded into booleans because Excess
// carries buffered bytes that NoExcess/Initial do not.
type bodyState int

const (
	bodyInitial bodyState = iota
	bodyNoExcess
	bodyExcess
	bodyFinished
)

// trailersCell is the small shared cell bridging RequestBodyReader (which
// observes the End part) and RequestConcludingReader (which surfaces the
// trailers after the body callback returns). It is mutated only by the
// body reader and read only after that reader's owning callback has
// returned, so no synchronization is needed.
type trailersCell struct {
	header Header
	filled bool
}

func (c *trailersCell) set(h Header) { c.header, c.filled = h, true }
func (c *trailersCell) get() (Header, bool) { return c.header, c.filled }

// RequestBodyReader maps a PartSource into bounded byte reads. It is
// created when a request's Head part is taken off the wire and is
// exclusively owned by the handler for the scope of one request.
type RequestBodyReader struct {
	parts     PartSource
	state     bodyState
	excess    []byte
	excessBuf *bytebufferpool.ByteBuffer
	trailers  *trailersCell
}

var _ stream.Reader[byte] = (*RequestBodyReader)(nil)

func (r *RequestBodyReader) Read(max *int, body func(stream.Span[byte]) error) error {
	switch r.state {
	case bodyFinished:
		return body(nil)
	case bodyExcess:
		return r.deliver(max, body)
	}

	part, ok, err := r.parts.Next()
	if err != nil {
		return &stream.ErrSourceFailed{Err: err}
	}
	if !ok {
		panicProgramError("request body part stream closed without an End part")
	}

	switch part.Kind {
	case RequestBodyPart:
		if len(part.Body) == 0 {
			// An empty view means end-of-stream; skip empty body parts.
			return r.Read(max, body)
		}
		r.excessBuf = bufpool.Get()
		r.excessBuf.Write(part.Body)
		r.excess = r.excessBuf.B
		return r.deliver(max, body)
	case RequestEndPart:
		r.trailers.set(part.Trailers)
		r.state = bodyFinished
		return body(nil)
	case RequestHeadPart:
		panicProgramError("second Head part observed mid-request")
	default:
		panicProgramError("unknown RequestPart kind %d", part.Kind)
	}
	return nil
}

// deliver hands body a view into the pooled excess buffer. The buffer is
// only released once it has been fully drained and the callback consuming
// the final view has returned, since view aliases the buffer's backing
// array until then.
func (r *RequestBodyReader) deliver(max *int, body func(stream.Span[byte]) error) error {
	n := len(r.excess)
	if max != nil && *max < n {
		n = *max
	}
	view := r.excess[:n]
	r.excess = r.excess[n:]
	drained := len(r.excess) == 0
	if drained {
		r.state = bodyNoExcess
	} else {
		r.state = bodyExcess
	}

	err := body(view)

	if drained && r.excessBuf != nil {
		bufpool.Put(r.excessBuf)
		r.excessBuf = nil
	}
	return err
}

// Collect pins the silent-truncation Collect policy described in
// stream.funcReader.Collect and the Open Question: it reads the
// body to completion (so trailers are always observed) and hands body
// the first upTo bytes.
func (r *RequestBodyReader) Collect(upTo int, body func(stream.Span[byte]) error) error {
	acc := make([]byte, 0, upTo)
	for {
		var view stream.Span[byte]
		if err := r.Read(nil, func(s stream.Span[byte]) error {
			view = append(stream.Span[byte](nil), s...)
			return nil
		}); err != nil {
			return err
		}
		if len(view) == 0 {
			break
		}
		if len(acc) < upTo {
			room := upTo - len(acc)
			if room > len(view) {
				room = len(view)
			}
			acc = append(acc, view[:room]...)
		}
	}
	return body(acc)
}
