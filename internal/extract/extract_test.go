package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywords_FencedJSON(t *testing.T) {
	raw := "```json\n{\"keywords\": [\"水光注射\", \"レチノール\"]}\n```"
	got, err := Keywords(raw, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"水光注射", "レチノール"}, got)
}

func TestKeywords_JSONWithSurroundingProse(t *testing.T) {
	raw := "Here you go:\n{\"keywords\": [\"ポテンツァ\"]}\nEnjoy!"
	got, err := Keywords(raw, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"ポテンツァ"}, got)
}

func TestKeywords_LooseFallbackSkipsKeyLiteral(t *testing.T) {
	raw := `{"keywords": ["A", "B", "C",` // truncated output
	got, err := Keywords(raw, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, got)
}

func TestKeywords_CapsAtLimit(t *testing.T) {
	raw := `"1" "2" "3" "4" "5" "6" "7" "8" "9" "10" "11" "12"`
	got, err := Keywords(raw, 10)
	require.NoError(t, err)
	assert.Len(t, got, 10)
	assert.Equal(t, "10", got[9])
}

func TestKeywords_NothingRecovered(t *testing.T) {
	_, err := Keywords("I cannot help with that.", 10)
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestKeywordsJSON_BareArray(t *testing.T) {
	got, err := KeywordsJSON(`["a", " ", "b"]`, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestJSON_ObjectSpan(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}
	require.NoError(t, JSON("prefix {\"name\": \"x\"} suffix", &v))
	assert.Equal(t, "x", v.Name)
}

func TestJSON_NoValue(t *testing.T) {
	var v map[string]any
	assert.ErrorIs(t, JSON("   ", &v), ErrNoJSON)
	assert.ErrorIs(t, JSON("plain words", &v), ErrNoJSON)
}

func TestTrimFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"markdown fence", "```markdown\n# Title\nbody\n```", "# Title\nbody"},
		{"bare fence", "```\ntext\n```", "text"},
		{"no fence", "  plain  ", "plain"},
		{"inner fence kept", "intro\n```go\ncode\n```\noutro", "intro\n```go\ncode\n```\noutro"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TrimFence(tt.in))
		})
	}
}

func TestObjectSpan(t *testing.T) {
	s, ok := ObjectSpan("x {a} y {b} z")
	assert.True(t, ok)
	assert.Equal(t, "{a} y {b}", s)

	_, ok = ObjectSpan("} no {")
	assert.False(t, ok)
}
