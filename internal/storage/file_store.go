package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deusflow/trendpress/internal/domain"
)

// FileStore keeps every table in memory and mirrors it to a JSON file after each write.
// An empty path keeps the data in memory only.
type FileStore struct {
	filePath string
	mu       sync.RWMutex
	data     fileData
}

type fileData struct {
	Sources     []domain.Source         `json:"sources"`
	Crawled     []domain.CrawledArticle `json:"crawled_articles"`
	Articles    []domain.Article        `json:"articles"`
	Categories  []domain.Category       `json:"categories"`
	NextSource  int64                   `json:"next_source_id"`
	NextArticle int64                   `json:"next_article_id"`
}

var _ Store = (*FileStore)(nil)

func (d fileData) clone() fileData {
	d.Sources = slices.Clone(d.Sources)
	d.Crawled = slices.Clone(d.Crawled)
	d.Articles = slices.Clone(d.Articles)
	d.Categories = slices.Clone(d.Categories)
	return d
}

func NewFileStore(filePath string) *FileStore {
	return &FileStore{filePath: filePath}
}

// Load reads existing data from file. A missing or empty file is an empty store.
func (fs *FileStore) Load() error {
	if fs.filePath == "" {
		return nil
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := os.ReadFile(fs.filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read store file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var loaded fileData
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("failed to unmarshal store file: %w", err)
	}
	fs.data = loaded
	return nil
}

// commit persists the current data and restores prev when the write fails.
// Must be called with mu held.
func (fs *FileStore) commit(prev fileData) error {
	if err := fs.save(); err != nil {
		fs.data = prev
		return err
	}
	return nil
}

// save must be called with mu held.
func (fs *FileStore) save() error {
	if fs.filePath == "" {
		return nil
	}

	data, err := json.MarshalIndent(fs.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}
	if dir := filepath.Dir(fs.filePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create store dir: %w", err)
		}
	}

	tmp := fs.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	return os.Rename(tmp, fs.filePath)
}

func (fs *FileStore) Close() {}

func (fs *FileStore) ListSources(_ context.Context) ([]domain.Source, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return append([]domain.Source(nil), fs.data.Sources...), nil
}

func (fs *FileStore) ActiveSources(_ context.Context) ([]domain.Source, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	var out []domain.Source
	for _, s := range fs.data.Sources {
		if s.IsActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (fs *FileStore) AddSource(_ context.Context, src domain.Source) (*domain.Source, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if src.Type == "" {
		src.Type = domain.SourceTypeWeb
	}
	src.IsActive = true
	prev := fs.data.clone()

	found := false
	for i, existing := range fs.data.Sources {
		if existing.URL == src.URL {
			src.ID = existing.ID
			src.LastCrawledAt = existing.LastCrawledAt
			fs.data.Sources[i] = src
			found = true
			break
		}
	}
	if !found {
		fs.data.NextSource++
		src.ID = fs.data.NextSource
		fs.data.Sources = append(fs.data.Sources, src)
	}

	if err := fs.commit(prev); err != nil {
		return nil, err
	}
	return &src, nil
}

func (fs *FileStore) TouchSource(_ context.Context, id int64, at time.Time) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for i := range fs.data.Sources {
		if fs.data.Sources[i].ID == id {
			prev := fs.data.clone()
			t := at
			fs.data.Sources[i].LastCrawledAt = &t
			return fs.commit(prev)
		}
	}
	return ErrNotFound
}

func (fs *FileStore) UpsertCrawledArticle(_ context.Context, a domain.CrawledArticle) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if a.CrawledAt.IsZero() {
		a.CrawledAt = time.Now().UTC()
	}
	a.SourceName = ""
	prev := fs.data.clone()

	for i, existing := range fs.data.Crawled {
		if existing.URL == a.URL {
			a.ID = existing.ID
			fs.data.Crawled[i] = a
			return fs.commit(prev)
		}
	}

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	fs.data.Crawled = append(fs.data.Crawled, a)
	return fs.commit(prev)
}

func (fs *FileStore) RecentCrawledArticles(_ context.Context, limit int) ([]domain.CrawledArticle, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.newest(func(domain.CrawledArticle) bool { return true }, limit), nil
}

func (fs *FileStore) SearchCrawledArticles(_ context.Context, terms []string, limit int) ([]domain.CrawledArticle, error) {
	terms = uniqueTerms(terms)
	if len(terms) == 0 {
		return nil, nil
	}
	lowered := make([]string, len(terms))
	for i, t := range terms {
		lowered[i] = strings.ToLower(t)
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	return fs.newest(func(a domain.CrawledArticle) bool {
		title := strings.ToLower(a.Title)
		content := strings.ToLower(a.Content)
		for _, t := range lowered {
			if strings.Contains(title, t) || strings.Contains(content, t) {
				return true
			}
		}
		return false
	}, limit), nil
}

// newest must be called with mu held.
func (fs *FileStore) newest(match func(domain.CrawledArticle) bool, limit int) []domain.CrawledArticle {
	names := make(map[int64]string, len(fs.data.Sources))
	for _, s := range fs.data.Sources {
		names[s.ID] = s.Name
	}

	var out []domain.CrawledArticle
	for _, a := range fs.data.Crawled {
		if match(a) {
			a.SourceName = names[a.SourceID]
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CrawledAt.After(out[j].CrawledAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (fs *FileStore) InsertArticle(_ context.Context, a domain.Article) (*domain.Article, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if a.Status == "" {
		a.Status = domain.StatusDraft
	}
	prev := fs.data.clone()
	fs.data.NextArticle++
	a.ID = fs.data.NextArticle
	a.CreatedAt = time.Now().UTC()
	fs.data.Articles = append(fs.data.Articles, a)
	if err := fs.commit(prev); err != nil {
		return nil, err
	}
	return &a, nil
}

func (fs *FileStore) GetArticle(_ context.Context, id int64) (*domain.Article, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	for _, a := range fs.data.Articles {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (fs *FileStore) PublishArticle(_ context.Context, id int64, at time.Time) (*domain.Article, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for i := range fs.data.Articles {
		a := &fs.data.Articles[i]
		if a.ID != id {
			continue
		}
		if a.Status == domain.StatusPublished {
			out := *a
			return &out, nil
		}
		prev := fs.data.clone()
		t := at
		a.Status = domain.StatusPublished
		a.PublishedAt = &t
		out := *a
		if err := fs.commit(prev); err != nil {
			return nil, err
		}
		return &out, nil
	}
	return nil, ErrNotFound
}

func (fs *FileStore) ListCategories(_ context.Context) ([]domain.Category, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return append([]domain.Category(nil), fs.data.Categories...), nil
}

// AddCategory seeds the degraded store, upserting by slug. Postgres categories are
// managed outside the engine.
func (fs *FileStore) AddCategory(c domain.Category) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	prev := fs.data.clone()
	for i, existing := range fs.data.Categories {
		if existing.Slug == c.Slug {
			c.ID = existing.ID
			fs.data.Categories[i] = c
			return fs.commit(prev)
		}
	}

	var maxID int64
	for _, existing := range fs.data.Categories {
		maxID = max(maxID, existing.ID)
	}
	if c.ID == 0 {
		c.ID = maxID + 1
	}
	fs.data.Categories = append(fs.data.Categories, c)
	return fs.commit(prev)
}

// GetStats returns row counts per table.
func (fs *FileStore) GetStats() map[string]int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	return map[string]int{
		"sources":          len(fs.data.Sources),
		"crawled_articles": len(fs.data.Crawled),
		"articles":         len(fs.data.Articles),
		"categories":       len(fs.data.Categories),
	}
}
