// Package httpcore is a low-level HTTP/1.1 and HTTP/2 server core built
// around scope-bounded request handling: the full lifetime of a request —
// headers, body, optional trailers, informational responses, final
// response head, body, optional trailers — happens inside a single
// handler invocation, so that scope-based wrappers a caller installs
// around the handler (tracing spans, timers, cancellation) observe the
// complete exchange.
//
// httpcore does not parse HTTP wire bytes itself. It consumes an abstract
// stream of RequestPart and produces a stream of ResponsePart; the h1 and
// h2 wire adapters under wire/ are the concrete collaborators that do the
// framing.
//
// It does not route requests, decode content, speak HTTP/3, or upgrade to
// WebSocket; those are layered on top by callers.
package httpcore
