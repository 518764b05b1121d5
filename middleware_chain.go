package httpcore

import "github.com/streamcore/httpcore/middleware"

// RequestScope bundles the per-request handles a middleware stage may
// read or wrap before passing on: the immutable head and context plus the
// single-owner reader and sender. Stages that wrap the reader or sender
// (e.g. per-chunk logging) construct a new RequestScope carrying the
// wrapped handles and pass that to next, never retaining the original
//.
type RequestScope struct {
	Head   RequestHead
	Ctx    RequestContext
	Reader *RequestConcludingReader
	Sender *ResponseSender
}

// Middleware is a same-typed middleware stage over RequestScope — the
// concrete instantiation of middleware.Stage this module's dispatcher
// chains use. Stages that need to change the carried Go type (not just
// wrap handles behind the same interface) should compose with
// middleware.Chain directly instead.
type Middleware = middleware.Stage[RequestScope, RequestScope]

// Chain declaratively builds a Handler out of a sequence of Middleware
// stages terminating in h, via middleware.Builder. Stages run in the
// order passed; h is the terminal stage.
func Chain(stages []Middleware, h Handler) Handler {
	b := middleware.NewBuilder[RequestScope]()
	for _, s := range stages {
		b.Use(s)
	}
	composed := b.Build(func(scope RequestScope) error {
		return h(scope.Head, scope.Ctx, scope.Reader, scope.Sender)
	})

	return func(head RequestHead, ctx RequestContext, reader *RequestConcludingReader, sender *ResponseSender) error {
		return middleware.Run(composed, RequestScope{Head: head, Ctx: ctx, Reader: reader, Sender: sender})
	}
}
