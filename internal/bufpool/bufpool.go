// Package bufpool centralizes the chunk buffers httpcore hands out for
// RequestBodyReader's excess stash and ResponseBodyWriter's outbound body
// copy, on top of github.com/valyala/bytebufferpool.
package bufpool

import "github.com/valyala/bytebufferpool"

// Get returns a pooled, zero-length buffer.
func Get() *bytebufferpool.ByteBuffer { return bytebufferpool.Get() }

// Put returns buf to the pool. buf must not be used afterward.
func Put(buf *bytebufferpool.ByteBuffer) { bytebufferpool.Put(buf) }
