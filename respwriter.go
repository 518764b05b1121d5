package httpcore

import (
	"github.com/streamcore/httpcore/internal/bufpool"
	"github.com/streamcore/httpcore/stream"
)

// PartSink is the collaborator a wire adapter implements to accept the
// ResponsePart stream the server produces for one request.
type PartSink interface {
	Send(part ResponsePart) error
}

// writerState is an explicit state machine:
// NotStarted -> HeadSent -> Ending -> Ended. Body writes are valid only in
// HeadSent; writing the terminating End advances Ending -> Ended; any
// write after Ended is a program error.
type writerState int

const (
	writerNotStarted writerState = iota
	writerHeadSent
	writerEnding
	writerEnded
)

// ResponseBodyWriter is the single-owner sink for response body bytes. It
// is only ever constructed already past NotStarted — ResponseSender.Send
// writes the Head part and hands back the ResponseConcludingWriter
// wrapping one of these.
type ResponseBodyWriter struct {
	sink  PartSink
	state *writerState
}

var _ stream.Writer[byte] = (*ResponseBodyWriter)(nil)

func (w *ResponseBodyWriter) Write(chunk stream.Span[byte]) error {
	if *w.state != writerHeadSent {
		panicProgramError("response body write while writer is not in HeadSent state (state=%d)", *w.state)
	}
	if len(chunk) == 0 {
		return nil
	}
	buf := bufpool.Get()
	defer bufpool.Put(buf)
	buf.Write(chunk)
	return w.sink.Send(ResponsePart{Kind: ResponseBodyPart, Body: buf.B})
}

// ResponseConcludingWriter wraps a ResponseBodyWriter so that, on normal
// return from the handler's produce callback, a terminating End(trailers)
// part is written automatically — the handler cannot forget it and cannot
// write it twice. It is single-shot: ProduceAndConclude/WriteAndConclude
// may each be called (once, exclusively) exactly one time total.
type ResponseConcludingWriter struct {
	body     *ResponseBodyWriter
	state    *writerState
	consumed bool
}

var _ stream.ConcludingWriter[byte, Header] = (*ResponseConcludingWriter)(nil)

func newResponseConcludingWriter(sink PartSink, state *writerState) *ResponseConcludingWriter {
	return &ResponseConcludingWriter{
		body:  &ResponseBodyWriter{sink: sink, state: state},
		state: state,
	}
}

// ProduceAndConclude hands the body writer to body, then writes the
// returned trailers as the stream's End part. If body returns an error,
// the End part is deliberately NOT written — the dispatcher observes the
// error and tears the stream down instead.
func (w *ResponseConcludingWriter) ProduceAndConclude(body func(stream.Writer[byte]) (Header, error)) error {
	if w.consumed {
		stream.PanicAlreadyConsumed("ResponseConcludingWriter")
	}
	w.consumed = true

	trailers, err := body(w.body)
	if err != nil {
		return err
	}

	*w.state = writerEnding
	if err := w.body.sink.Send(ResponsePart{Kind: ResponseEndPart, Trailers: trailers}); err != nil {
		return err
	}
	*w.state = writerEnded
	return nil
}

// WriteAndConclude writes one chunk then concludes with final.
func (w *ResponseConcludingWriter) WriteAndConclude(chunk stream.Span[byte], final Header) error {
	return w.ProduceAndConclude(func(bw stream.Writer[byte]) (Header, error) {
		if err := bw.Write(chunk); err != nil {
			return nil, err
		}
		return final, nil
	})
}

// FinishedWriting reports whether the terminal End part has actually been
// written — used by the dispatcher's error-path reconciliation.
func (w *ResponseConcludingWriter) FinishedWriting() bool { return *w.state == writerEnded }

// HeadWritten reports whether the final Head part has been written
// (informational heads do not count), used by the same reconciliation to
// choose between
// RST_STREAM(NO_ERROR) and RST_STREAM(INTERNAL_ERROR).
func (w *ResponseConcludingWriter) HeadWritten() bool { return *w.state != writerNotStarted }
