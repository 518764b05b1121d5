package middleware_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streamcore/httpcore/middleware"
)

func TestChainComposesTypeTransformingStages(t *testing.T) {
	var trace []string

	toString := middleware.Stage[int, string](func(in int, next func(string) error) error {
		trace = append(trace, "in:int")
		return next("value")
	})
	terminal := middleware.Terminal(func(s string) error {
		trace = append(trace, "terminal:"+s)
		return nil
	})

	composed := middleware.Chain(toString, terminal)
	err := middleware.Run(composed, 42)
	require.NoError(t, err)
	require.Equal(t, []string{"in:int", "terminal:value"}, trace)
}

func TestBuilderRunsStagesInOrder(t *testing.T) {
	var trace []string

	stageA := func(in int, next func(int) error) error {
		trace = append(trace, "a")
		return next(in)
	}
	stageB := func(in int, next func(int) error) error {
		trace = append(trace, "b")
		return next(in)
	}

	b := middleware.NewBuilder[int]()
	b.Use(stageA).UseIf(false, stageB).UseOptional(nil).Use(stageB)

	composed := b.Build(func(int) error {
		trace = append(trace, "terminal")
		return nil
	})

	require.NoError(t, middleware.Run(composed, 1))
	require.Equal(t, []string{"a", "b", "terminal"}, trace)
}

func TestBuilderShortCircuitsOnStageError(t *testing.T) {
	boom := errors.New("boom")
	calledTerminal := false

	b := middleware.NewBuilder[int]()
	b.Use(func(in int, next func(int) error) error {
		return boom
	})
	composed := b.Build(func(int) error {
		calledTerminal = true
		return nil
	})

	err := middleware.Run(composed, 1)
	require.ErrorIs(t, err, boom)
	require.False(t, calledTerminal)
}
