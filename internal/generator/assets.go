package generator

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// AssetStore persists generated media and returns its public URL.
type AssetStore interface {
	Save(ctx context.Context, data []byte) (string, error)
}

// LocalAssets writes files under dir and serves them from publicBaseURL + "/assets/".
type LocalAssets struct {
	dir           string
	publicBaseURL string
}

func NewLocalAssets(dir, publicBaseURL string) *LocalAssets {
	return &LocalAssets{dir: dir, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}
}

func (l *LocalAssets) Dir() string { return l.dir }

func (l *LocalAssets) Save(_ context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty asset")
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create asset dir: %w", err)
	}

	name := uuid.NewString() + extensionFor(data)
	if err := os.WriteFile(filepath.Join(l.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write asset: %w", err)
	}
	return l.publicBaseURL + "/assets/" + name, nil
}

func extensionFor(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}
