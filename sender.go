package httpcore

import "github.com/streamcore/httpcore/stream"

// ResponseSender holds two capabilities: SendInformational,
// which may be called any number of times before Send, and Send, the
// single-shot capability to send the final response head and receive the
// ResponseConcludingWriter. Send makes SendInformational unusable.
type ResponseSender struct {
	sink  PartSink
	state writerState

	sendCalled bool
}

// NewResponseSender constructs a sender over the outbound part sink. The
// dispatcher builds one per request alongside the request's concluding
// reader.
func NewResponseSender(sink PartSink) *ResponseSender {
	return &ResponseSender{sink: sink}
}

// SendInformational writes a 1xx response head with no following body.
// head.StatusCode not being 1xx is a program error;
// calling this after Send has already been invoked is also a program
// error, since Send exhausts this capability.
func (s *ResponseSender) SendInformational(head ResponseHead) error {
	if s.sendCalled {
		panicProgramError("SendInformational called after Send")
	}
	if !head.Is1xx() {
		panicProgramError("SendInformational called with non-1xx status %d", head.StatusCode)
	}
	return s.sink.Send(ResponsePart{Kind: ResponseHeadPart, Head: head})
}

// Send writes the final response head and returns the
// ResponseConcludingWriter the handler must then drive to completion via
// ProduceAndConclude or WriteAndConclude. A second call is a program
// error; so is passing a 1xx status here.
func (s *ResponseSender) Send(final ResponseHead) (*ResponseConcludingWriter, error) {
	if s.sendCalled {
		stream.PanicAlreadyConsumed("ResponseSender")
	}
	if final.Is1xx() {
		panicProgramError("Send called with informational status %d; use SendInformational", final.StatusCode)
	}
	s.sendCalled = true
	s.state = writerHeadSent

	if err := s.sink.Send(ResponsePart{Kind: ResponseHeadPart, Head: final}); err != nil {
		return nil, err
	}
	return newResponseConcludingWriter(s.sink, &s.state), nil
}

// FinishedWriting mirrors ResponseConcludingWriter.FinishedWriting for
// the case Send was never even called (e.g. the handler errored before
// writing anything) — used by the dispatcher's teardown reconciliation.
func (s *ResponseSender) FinishedWriting() bool { return s.state == writerEnded }

// HeadWritten reports whether Send has produced a Head part yet.
func (s *ResponseSender) HeadWritten() bool { return s.state != writerNotStarted }
