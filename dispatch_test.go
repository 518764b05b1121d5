package httpcore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streamcore/httpcore/stream"
)

type fakeStream struct {
	parts      []RequestPart
	i          int
	sent       []ResponsePart
	finished   bool
	resetOpts  *ResetOptions
}

func (s *fakeStream) Next() (RequestPart, bool, error) {
	if s.i >= len(s.parts) {
		return RequestPart{}, false, nil
	}
	p := s.parts[s.i]
	s.i++
	return p, true, nil
}

func (s *fakeStream) Send(part ResponsePart) error {
	s.sent = append(s.sent, part)
	return nil
}

func (s *fakeStream) Finish() error {
	s.finished = true
	return nil
}

func (s *fakeStream) Reset(opts ResetOptions) error {
	s.resetOpts = &opts
	return nil
}

func headOnlyRequest(method string) []RequestPart {
	return []RequestPart{
		{Kind: RequestHeadPart, Head: RequestHead{Method: method}},
		{Kind: RequestEndPart},
	}
}

func TestDispatchHappyPath(t *testing.T) {
	st := &fakeStream{parts: headOnlyRequest("GET")}
	called := false

	d := &Dispatcher{Handler: func(head RequestHead, ctx RequestContext, reader *RequestConcludingReader, sender *ResponseSender) error {
		called = true
		require.Equal(t, "GET", head.Method)
		_, err := reader.ConsumeAndConclude(func(r stream.Reader[byte]) error {
			return r.Read(nil, func(stream.Span[byte]) error { return nil })
		})
		if err != nil {
			return err
		}
		writer, err := sender.Send(ResponseHead{StatusCode: 204})
		if err != nil {
			return err
		}
		return writer.WriteAndConclude(nil, nil)
	}}

	err := d.Dispatch(RequestMeta{Protocol: "HTTP/1.1"}, st)
	require.NoError(t, err)
	require.True(t, called)
	require.True(t, st.finished)
	require.Nil(t, st.resetOpts)
}

func TestDispatchFirstPartNotHeadIsWireError(t *testing.T) {
	st := &fakeStream{parts: []RequestPart{{Kind: RequestEndPart}}}
	d := &Dispatcher{Handler: func(RequestHead, RequestContext, *RequestConcludingReader, *ResponseSender) error {
		t.Fatal("handler should not run")
		return nil
	}}

	err := d.Dispatch(RequestMeta{}, st)
	var wireErr *WireError
	require.ErrorAs(t, err, &wireErr)
}

func TestDispatchHandlerErrorTriggersReset(t *testing.T) {
	st := &fakeStream{parts: headOnlyRequest("POST")}
	boom := errors.New("handler boom")

	d := &Dispatcher{Handler: func(RequestHead, RequestContext, *RequestConcludingReader, *ResponseSender) error {
		return boom
	}}

	err := d.Dispatch(RequestMeta{}, st)
	require.Error(t, err)
	var handlerErr *HandlerError
	require.ErrorAs(t, err, &handlerErr)
	require.NotNil(t, st.resetOpts)
	require.False(t, st.resetOpts.HeadWritten)
}

func TestDispatchRecoversProgramErrorPanic(t *testing.T) {
	st := &fakeStream{parts: []RequestPart{
		{Kind: RequestHeadPart},
		{Kind: RequestHeadPart}, // a stray second Head mid-request
	}}

	d := &Dispatcher{Handler: func(head RequestHead, ctx RequestContext, reader *RequestConcludingReader, sender *ResponseSender) error {
		_, err := reader.ConsumeAndConclude(func(r stream.Reader[byte]) error {
			return r.Read(nil, func(stream.Span[byte]) error { return nil })
		})
		return err
	}}

	err := d.Dispatch(RequestMeta{}, st)
	require.True(t, AsProgramError(err))
}
