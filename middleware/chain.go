// Package middleware implements a type-transforming composition
// contract: a stage declares an Input and a NextIn,
// which may differ when the stage wraps or replaces the handles it
// passes on (for example, wrapping a reader with per-chunk logging).
// Composition is associative and chains stages whose NextIn matches the
// following stage's In; the terminal stage never calls next (spec's
// NextInput = Never).
//
// Handles flowing through a chain are single-owner and non-copyable in
// spirit: a Stage must move its input into next (or consume it fully) and
// retain nothing once it has called next, matching the
// ownership rule.
package middleware

// Stage is one link in a chain: given In, it may do work, then either
// calls next with a (possibly transformed) NextIn or — if it is the
// chain's terminal stage — never calls next at all.
type Stage[In, NextIn any] func(in In, next func(NextIn) error) error

// Chain composes two stages whose adjoining types agree: first's NextIn
// becomes second's In. The result is itself a Stage, so Chain is
// associative and can be folded over an arbitrary sequence.
func Chain[A, B, C any](first Stage[A, B], second Stage[B, C]) Stage[A, C] {
	return func(a A, next func(C) error) error {
		return first(a, func(b B) error {
			return second(b, next)
		})
	}
}

// Terminal lifts a plain terminal function into a Stage whose NextIn is
// struct{} and which never invokes next — the user handler sits here.
func Terminal[In any](fn func(In) error) Stage[In, struct{}] {
	return func(in In, _ func(struct{}) error) error {
		return fn(in)
	}
}

// Run drives a fully composed chain (one ending in a Terminal) with its
// initial input.
func Run[In any](s Stage[In, struct{}], in In) error {
	return s(in, func(struct{}) error { return nil })
}
