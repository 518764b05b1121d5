package httpcore

import "net/textproto"

// Header is a multi-value header map keyed by canonical field name; its
// iteration order is not defined. It is used for request and response
// header fields as well as trailers.
type Header = textproto.MIMEHeader

// RequestHead carries the method, target, and header fields of an incoming
// request — everything observed before the first body chunk.
type RequestHead struct {
	Method    string
	Scheme    string
	Authority string
	Path      string
	Header    Header
}

// ResponseHead carries the status and header fields of an outgoing
// response (final or informational).
type ResponseHead struct {
	StatusCode int
	Header     Header
}

// Is1xx reports whether this head is a valid informational response head.
func (h ResponseHead) Is1xx() bool {
	return h.StatusCode >= 100 && h.StatusCode < 200
}

// RequestPartKind tags the variant held by a RequestPart.
type RequestPartKind int

const (
	RequestHeadPart RequestPartKind = iota
	RequestBodyPart
	RequestEndPart
)

// RequestPart is the tagged union produced by a wire adapter (wire/h1,
// wire/h2) and consumed by the dispatcher: Head(method, scheme, authority,
// path, headers) | Body(bytes) | End(optional trailers). Exactly one Head
// starts a request; any subsequent Head observed mid-request is a fatal
// program error.
type RequestPart struct {
	Kind     RequestPartKind
	Head     RequestHead
	Body     []byte
	Trailers Header // only meaningful when Kind == RequestEndPart; may be nil
}

// ResponsePartKind tags the variant held by a ResponsePart.
type ResponsePartKind int

const (
	ResponseHeadPart ResponsePartKind = iota
	ResponseBodyPart
	ResponseEndPart
)

// ResponsePart is the tagged union written by the server and consumed by a
// wire adapter: Head(response) | Body(bytes) | End(optional trailers).
// Zero or more informational Head parts (1xx) may precede the single final
// Head; exactly one End terminates the stream.
type ResponsePart struct {
	Kind     ResponsePartKind
	Head     ResponseHead
	Body     []byte
	Trailers Header // only meaningful when Kind == ResponseEndPart; may be nil
}
