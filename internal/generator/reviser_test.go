package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/trendpress/internal/gemini"
	"github.com/deusflow/trendpress/internal/logger"
)

func TestRevise(t *testing.T) {
	gen := &fakeGen{text: func(string) (string, error) { return "```markdown\n# 改訂版\n本文\n```", nil }}
	r := NewReviser(gen, "", false, logger.Discard())

	out, err := r.Revise(context.Background(), "# 元記事\n本文", "もっと短く")
	require.NoError(t, err)
	assert.Equal(t, "# 改訂版\n本文", out)

	require.Len(t, gen.textPrompts, 1)
	assert.Contains(t, gen.textPrompts[0], "**修正指示**:\nもっと短く")
	assert.Contains(t, gen.textPrompts[0], "# 元記事")
}

func TestRevise_Errors(t *testing.T) {
	_, err := NewReviser(&fakeGen{}, "", false, logger.Discard()).Revise(context.Background(), "  ", "x")
	assert.ErrorIs(t, err, ErrEmptyContent)

	failing := &fakeGen{text: func(string) (string, error) { return "", errors.New("503") }}
	_, err = NewReviser(failing, "", false, logger.Discard()).Revise(context.Background(), "body", "x")
	assert.Error(t, err)

	blank := &fakeGen{text: func(string) (string, error) { return "   ", nil }}
	_, err = NewReviser(blank, "", false, logger.Discard()).Revise(context.Background(), "body", "x")
	assert.ErrorIs(t, err, gemini.ErrEmptyResponse)
}

func TestRevise_Mock(t *testing.T) {
	gen := &fakeGen{}
	out, err := NewReviser(gen, "", true, logger.Discard()).Revise(context.Background(), "本文", "タイトルを変更")
	require.NoError(t, err)
	assert.Contains(t, out, "本文")
	assert.Contains(t, out, "タイトルを変更")
	assert.Empty(t, gen.textPrompts)
}
