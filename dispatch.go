package httpcore

import (
	"crypto/x509"
	"errors"
	"net"

	"github.com/streamcore/httpcore/stream"
)

// Handler is the single entry point through which a request's entire
// lifetime — head, body, trailers, informational responses, final
// response, body, trailers — must flow.
type Handler func(head RequestHead, ctx RequestContext, reader *RequestConcludingReader, sender *ResponseSender) error

// ResetOptions tells a Stream how much of the exchange had already
// completed when the handler errored, so it can choose the
// protocol-appropriate teardown.
type ResetOptions struct {
	FinishedReading bool
	FinishedWriting bool
	HeadWritten     bool
}

// Stream is the per-request collaborator a wire adapter (wire/h1 treats
// one H1 connection as a sequence of these; wire/h2 hands one per HTTP/2
// stream) implements: a PartSource to read the request, a PartSink to
// write the response, and the two forms of teardown the dispatcher needs.
type Stream interface {
	PartSource
	PartSink

	// Finish is called after the handler returns normally: flush/finish
	// the outbound and await the underlying channel close.
	Finish() error

	// Reset is called after the handler errors: for HTTP/2, RST_STREAM
	// with NO_ERROR if opts.HeadWritten else INTERNAL_ERROR;
	// for HTTP/1.1, close the connection outright.
	Reset(opts ResetOptions) error
}

// ErrNotRequestHead is the WireError cause when the first part of a
// stream is not a request Head.
var ErrNotRequestHead = errors.New("httpcore: first part of stream was not a request Head")

// Dispatcher implements the per-connection/per-stream handling.
// One Dispatcher is shared by every connection a Server accepts; it holds
// no per-request state itself.
type Dispatcher struct {
	Handler Handler
	Logger  Logger
}

func (d *Dispatcher) logger() Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return defaultLogger
}

// RequestMeta carries the connection-level facts the dispatcher folds
// into RequestContext; wire adapters supply it per stream.
type RequestMeta struct {
	Protocol         string
	ConnID           string
	StreamID         string
	LocalAddr        net.Addr
	RemoteAddr       net.Addr
	PeerCertificates []*x509.Certificate
}

// Dispatch drives one request's full lifecycle through st, exactly once.
func (d *Dispatcher) Dispatch(meta RequestMeta, st Stream) error {
	part, ok, err := st.Next()
	if err != nil {
		return &WireError{Err: err}
	}
	if !ok || part.Kind != RequestHeadPart {
		d.logger().Errorw("dispatch: stream did not open with a request head",
			"protocol", meta.Protocol, "stream_id", meta.StreamID, "error", ErrNotRequestHead)
		return &WireError{Err: ErrNotRequestHead}
	}

	reqCtx := RequestContext{
		ConnID:           meta.ConnID,
		StreamID:         meta.StreamID,
		LocalAddr:        meta.LocalAddr,
		RemoteAddr:       meta.RemoteAddr,
		Protocol:         meta.Protocol,
		PeerCertificates: meta.PeerCertificates,
	}
	reader := NewRequestConcludingReader(st)
	sender := NewResponseSender(st)

	handlerErr := d.invoke(part.Head, reqCtx, reader, sender)
	if handlerErr == nil {
		return st.Finish()
	}

	d.logger().Errorw("dispatch: handler error",
		"protocol", meta.Protocol, "stream_id", meta.StreamID, "error", handlerErr)

	resetErr := st.Reset(ResetOptions{
		FinishedReading: reader.finishedReading(),
		FinishedWriting: sender.FinishedWriting(),
		HeadWritten:     sender.HeadWritten(),
	})
	if resetErr != nil {
		d.logger().Errorw("dispatch: stream reset failed",
			"protocol", meta.Protocol, "stream_id", meta.StreamID, "error", resetErr)
	}

	if AsProgramError(handlerErr) {
		return handlerErr
	}
	return &HandlerError{Err: handlerErr}
}

// invoke recovers a programError panic raised anywhere inside the
// handler's scope (a single-shot handle misused, a stray second Head
// part) and turns it into a returned error, so one malformed request
// cannot crash a sibling connection's goroutine.
func (d *Dispatcher) invoke(head RequestHead, ctx RequestContext, reader *RequestConcludingReader, sender *ResponseSender) (err error) {
	defer func() {
		if r := recover(); r != nil {
			switch v := r.(type) {
			case programError:
				err = v
			case stream.AlreadyConsumed:
				err = programError{msg: v.What + " consumed twice"}
			default:
				panic(r)
			}
		}
	}()
	return d.Handler(head, ctx, reader, sender)
}
