package gemini

import (
	"context"
	"fmt"
	"strings"
)

// Dummy is a deterministic Generator used when no API key is configured or MOCK_MODE is set.
type Dummy struct{}

var _ Generator = Dummy{}

var mockKeywords = []string{"韓国水光肌", "ポテンツァ", "医療ダイエット", "エクソソーム", "レチノール"}

func (Dummy) GenerateText(_ context.Context, prompt string) (string, error) {
	return mockResponse(prompt), nil
}

func (Dummy) GenerateWithSearch(_ context.Context, prompt string) (string, error) {
	return mockResponse(prompt), nil
}

func (Dummy) GenerateImage(context.Context, string) ([]byte, error) {
	return nil, ErrUnavailable
}

func mockResponse(prompt string) string {
	switch {
	case strings.Contains(prompt, `"keywords"`):
		return fmt.Sprintf(`{"keywords": ["%s"]}`, strings.Join(mockKeywords, `", "`))
	case strings.Contains(prompt, `"url"`):
		return `[{"name": "Mock Beauty Journal", "url": "https://mock-beauty.example.com"}]`
	case strings.Contains(prompt, "into Korean"):
		return "물광 피부"
	case strings.Contains(prompt, "English"):
		return "soft pink skincare products on a marble table, natural light"
	default:
		return "# モックモードの記事\n\nこれはモックモードで生成されたテスト記事です。\n\n## ポイント\n\n- 実際の生成は行われていません。"
	}
}
