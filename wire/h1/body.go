package h1

import (
	"bufio"
	"io"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/streamcore/httpcore"
)

// bodyReader turns a request's Content-Length or chunked-encoded body
// into the RequestPart sequence the dispatcher's PartSource contract
// expects: Body(bytes)* then exactly one End(trailers).
type bodyReader struct {
	br        *bufio.Reader
	chunked   bool
	remaining int64 // bytes left of a Content-Length body; 0 once exhausted
	ended     bool
}

func newBodyReader(br *bufio.Reader, header httpcore.Header) *bodyReader {
	r := &bodyReader{br: br}
	if strings.EqualFold(header.Get("Transfer-Encoding"), "chunked") {
		r.chunked = true
		return r
	}
	if cl := header.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
			r.remaining = n
			return r
		}
	}
	r.remaining = 0
	return r
}

// Next implements httpcore.PartSource.
func (r *bodyReader) Next() (httpcore.RequestPart, bool, error) {
	if r.ended {
		return httpcore.RequestPart{}, false, nil
	}
	if r.chunked {
		return r.nextChunked()
	}
	return r.nextFixed()
}

func (r *bodyReader) nextFixed() (httpcore.RequestPart, bool, error) {
	if r.remaining <= 0 {
		r.ended = true
		return httpcore.RequestPart{Kind: httpcore.RequestEndPart}, true, nil
	}
	buf := make([]byte, minInt64(r.remaining, 64*1024))
	n, err := r.br.Read(buf)
	if n > 0 {
		r.remaining -= int64(n)
		return httpcore.RequestPart{Kind: httpcore.RequestBodyPart, Body: buf[:n]}, true, nil
	}
	if err != nil {
		return httpcore.RequestPart{}, false, err
	}
	return httpcore.RequestPart{Kind: httpcore.RequestBodyPart, Body: nil}, true, nil
}

func (r *bodyReader) nextChunked() (httpcore.RequestPart, bool, error) {
	sizeLine, err := r.br.ReadString('\n')
	if err != nil {
		return httpcore.RequestPart{}, false, err
	}
	sizeLine = strings.TrimRight(strings.SplitN(sizeLine, ";", 2)[0], "\r\n")
	size, err := strconv.ParseInt(strings.TrimSpace(sizeLine), 16, 64)
	if err != nil {
		return httpcore.RequestPart{}, false, err
	}

	if size == 0 {
		trailers, err := readTrailers(r.br)
		if err != nil {
			return httpcore.RequestPart{}, false, err
		}
		r.ended = true
		return httpcore.RequestPart{Kind: httpcore.RequestEndPart, Trailers: trailers}, true, nil
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(r.br, buf); err != nil {
		return httpcore.RequestPart{}, false, err
	}
	// consume the trailing CRLF after the chunk data
	if _, err := r.br.ReadString('\n'); err != nil {
		return httpcore.RequestPart{}, false, err
	}
	return httpcore.RequestPart{Kind: httpcore.RequestBodyPart, Body: buf}, true, nil
}

func readTrailers(br *bufio.Reader) (httpcore.Header, error) {
	tp := textproto.NewReader(br)
	mh, err := tp.ReadMIMEHeader()
	if err != nil && len(mh) == 0 {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}
	if len(mh) == 0 {
		return nil, nil
	}
	return httpcore.Header(mh), nil
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
