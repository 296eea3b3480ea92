package fallback

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/trendpress/internal/logger"
)

func TestChain_FirstSuccessWins(t *testing.T) {
	calledThird := false
	chain := New(logger.Discard(),
		Strategy[string]{Name: "broken", Run: func(context.Context) (string, error) { return "", errors.New("down") }},
		Strategy[string]{Name: "good", Run: func(context.Context) (string, error) { return "ok", nil }},
		Strategy[string]{Name: "never", Run: func(context.Context) (string, error) {
			calledThird = true
			return "late", nil
		}},
	)

	res, err := chain.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Value)
	assert.Equal(t, "good", res.Strategy)
	assert.False(t, calledThird)
}

func TestChain_AcceptRejectsEmpty(t *testing.T) {
	chain := New(nil,
		Static("empty", ""),
		Static("placeholder", "https://placehold.co/x"),
	).WithAccept(NonEmptyString)

	res, err := chain.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "placeholder", res.Strategy)
}

func TestChain_Exhausted(t *testing.T) {
	boom := errors.New("boom")
	chain := New(nil,
		Strategy[[]string]{Name: "a", Run: func(context.Context) ([]string, error) { return nil, boom }},
		Static[[]string]("b", nil),
	).WithAccept(NonEmptySlice[string])

	res, err := chain.Run(context.Background())
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, res.Value)
}

func TestChain_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	chain := New(nil, Strategy[int]{Name: "a", Run: func(context.Context) (int, error) {
		called = true
		return 1, nil
	}})

	_, err := chain.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
