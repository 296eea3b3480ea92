package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/deusflow/trendpress/internal/extract"
	"github.com/deusflow/trendpress/internal/gemini"
)

var ErrEmptyContent = errors.New("content is required")

// Reviser rewrites an existing article following editor feedback.
type Reviser struct {
	gen     gemini.Generator
	persona string
	mock    bool
	logger  *slog.Logger
}

func NewReviser(gen gemini.Generator, persona string, mock bool, logger *slog.Logger) *Reviser {
	if persona == "" {
		persona = DefaultPersona
	}
	return &Reviser{gen: gen, persona: persona, mock: mock, logger: logger}
}

func (r *Reviser) Revise(ctx context.Context, content, feedback string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyContent
	}
	if r.mock {
		return fmt.Sprintf("%s\n\n---\n（修正指示を反映しました: %s）", strings.TrimSpace(content), feedback), nil
	}

	raw, err := r.gen.GenerateText(ctx, revisePrompt(r.persona, content, feedback))
	if err != nil {
		r.logger.Error("error revising content", "error", err)
		return "", fmt.Errorf("failed to revise article: %w", err)
	}
	revised := extract.TrimFence(raw)
	if revised == "" {
		return "", gemini.ErrEmptyResponse
	}
	return revised, nil
}
