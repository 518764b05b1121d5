package stream

// Next is pulled by a funcReader each time it needs more elements from the
// underlying producer. It returns the next available span (which may be
// larger than any single caller's max) and an error; a (nil, nil) return
// together with ok=false signals clean end-of-stream.
type Next[E any] func() (chunk []E, ok bool, err error)

// funcReader implements Reader by pulling from a Next function and applying
// the single-chunk excess stash described in stream.Reader's doc comment.
// The root package's RequestBodyReader (reqbody.go) implements the same
// stash mechanics on its own rather than wrapping this type.
type funcReader[E any] struct {
	next  Next[E]
	stash []E
	done  bool
}

// NewFuncReader builds a Reader[E] around a pull function. It is a
// general-purpose reader that protocols other than HTTP can use directly.
func NewFuncReader[E any](next Next[E]) Reader[E] {
	return &funcReader[E]{next: next}
}

func (r *funcReader[E]) Read(max *int, body func(Span[E]) error) error {
	for len(r.stash) == 0 && !r.done {
		chunk, ok, err := r.next()
		if err != nil {
			return &ErrSourceFailed{Err: err}
		}
		if !ok {
			r.done = true
		} else {
			r.stash = chunk
		}
	}

	if len(r.stash) == 0 {
		return body(nil)
	}

	n := len(r.stash)
	if max != nil && *max < n {
		n = *max
	}
	view := r.stash[:n]
	r.stash = r.stash[n:]
	return body(view)
}

// Collect drains the reader to end-of-stream, handing body the first upTo
// elements. Truncation is silent, never an error. It still reads every
// remaining chunk so that a trailing terminal element (trailers) is
// observed by whatever wraps this reader, even once the upTo cap has
// been reached.
func (r *funcReader[E]) Collect(upTo int, body func(Span[E]) error) error {
	acc := make([]E, 0, upTo)
	for {
		var view Span[E]
		if err := r.Read(nil, func(s Span[E]) error {
			view = append(Span[E](nil), s...)
			return nil
		}); err != nil {
			return err
		}
		if len(view) == 0 {
			break
		}
		if len(acc) < upTo {
			room := upTo - len(acc)
			if room > len(view) {
				room = len(view)
			}
			acc = append(acc, view[:room]...)
		}
	}
	return body(acc)
}
