package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeAIText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "inline parenthesized disclaimer",
			in:   "레티놀\n(Note: This translation is a machine translation and may contain errors.) 효과",
			want: "레티놀\n효과",
		},
		{
			name: "full line note",
			in:   "Note: machine translation.\n물광 피부",
			want: "물광 피부",
		},
		{
			name: "bracketed disclaimer",
			in:   "[Note: Machine translation] 엑소좀",
			want: "엑소좀",
		},
		{
			name: "translation label line",
			in:   "Translation: 포텐자\n포텐자",
			want: "포텐자",
		},
		{
			name: "plain text untouched",
			in:   "다이어트 주사",
			want: "다이어트 주사",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeAIText(tt.in))
		})
	}
}
