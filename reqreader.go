package httpcore

import "github.com/streamcore/httpcore/stream"

// RequestConcludingReader wraps a RequestBodyReader so that, once the
// handler's body callback returns, the trailers observed on the request's
// End part (if any) are surfaced alongside the callback's result. It is a
// single-shot handle: a second call to ConsumeAndConclude is a program
// error.
type RequestConcludingReader struct {
	inner    *RequestBodyReader
	trailers *trailersCell
	consumed bool
}

var _ stream.ConcludingReader[byte, Header] = (*RequestConcludingReader)(nil)

// NewRequestConcludingReader constructs the reader over a request's
// remaining part iterator, as the dispatcher does immediately after
// taking the request's Head part off the wire.
func NewRequestConcludingReader(parts PartSource) *RequestConcludingReader {
	cell := &trailersCell{}
	return &RequestConcludingReader{
		inner:    &RequestBodyReader{parts: parts, trailers: cell},
		trailers: cell,
	}
}

// ConsumeAndConclude takes exclusive ownership of the underlying body
// reader for the duration of body, then returns whatever trailers were
// observed on the request's End part. If body returns without driving the
// reader to its End part, the trailers are reported absent — the reader
// is simply dropped uninspected, which the lifecycle section
// permits.
func (r *RequestConcludingReader) ConsumeAndConclude(body func(stream.Reader[byte]) error) (Header, error) {
	if r.consumed {
		stream.PanicAlreadyConsumed("RequestConcludingReader")
	}
	r.consumed = true

	if err := body(r.inner); err != nil {
		return nil, err
	}

	trailers, _ := r.trailers.get()
	return trailers, nil
}

// finishedReading reports whether the body reader observed its End part —
// used by the dispatcher's error-path reconciliation.
func (r *RequestConcludingReader) finishedReading() bool {
	return r.inner.state == bodyFinished
}
