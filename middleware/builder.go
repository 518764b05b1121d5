package middleware

// Builder declaratively accumulates a sequence of same-typed stages
// (Stage[T, T] — a stage that may wrap T's handles but keeps the same
// Go type) terminating in a handler, per the "declarative
// builder ... supporting conditionals and optional stages". For stages
// that genuinely change the carried Go type, compose them directly with
// Chain instead of through a Builder.
type Builder[T any] struct {
	stages []Stage[T, T]
}

// NewBuilder starts an empty chain.
func NewBuilder[T any]() *Builder[T] {
	return &Builder[T]{}
}

// Use appends a stage unconditionally.
func (b *Builder[T]) Use(s Stage[T, T]) *Builder[T] {
	b.stages = append(b.stages, s)
	return b
}

// UseIf appends a stage only when cond is true — the declarative builder's
// conditional-stage support.
func (b *Builder[T]) UseIf(cond bool, s Stage[T, T]) *Builder[T] {
	if cond {
		return b.Use(s)
	}
	return b
}

// UseOptional appends s only when it is non-nil — the builder's
// optional-stage support.
func (b *Builder[T]) UseOptional(s Stage[T, T]) *Builder[T] {
	if s != nil {
		return b.Use(s)
	}
	return b
}

// Build folds the accumulated stages, outermost first, around terminal
// and returns the composed chain ready for Run.
func (b *Builder[T]) Build(terminal func(T) error) Stage[T, struct{}] {
	chain := Terminal(terminal)
	for i := len(b.stages) - 1; i >= 0; i-- {
		chain = Chain(b.stages[i], chain)
	}
	return chain
}
