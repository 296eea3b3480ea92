package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// HTTP settings
	Port         string
	EngineAPIKey string

	// Storage settings
	DatabaseURL string
	DataDir     string // JSON store location when DATABASE_URL is empty

	// Gemini settings
	GeminiAPIKey      string
	TextModel         string
	SearchModel       string
	ImageModel        string
	MaxGeminiRequests int     // daily budget, 0 = unlimited
	GeminiRPS         float64 // token bucket refill rate
	MockMode          bool

	// Notification settings
	LineToken      string
	LineUserID     string
	TelegramToken  string
	TelegramChatID string
	AdminBaseURL   string

	// Assets
	PublicBaseURL       string
	AssetDir            string
	PlaceholderImageURL string

	// Pipeline settings
	PageTimeout   time.Duration
	TaskTimeout   time.Duration
	QueueWorkers  int
	QueueSize     int
	TaskAttempts  int
	RetryDelay    time.Duration
	TranslateTTL  time.Duration
	TranslateSize int

	// App settings
	Debug     bool
	LogFormat string

	Lists Lists
}

// Lists holds the curated values loaded from the YAML file.
type Lists struct {
	RecommendationQueries []string       `yaml:"recommendation_queries"`
	PlatformDenylist      []string       `yaml:"platform_denylist"`
	FallbackKeywords      []string       `yaml:"fallback_keywords"`
	BulkFallbackKeywords  []string       `yaml:"bulk_fallback_keywords"`
	Persona               string         `yaml:"persona"`
	MockTargetURL         string         `yaml:"mock_target_url"`
	Categories            []CategorySeed `yaml:"categories"`
}

// CategorySeed is a category the file-backed store is seeded with at startup.
type CategorySeed struct {
	Name string `yaml:"name"`
	Slug string `yaml:"slug"`
}

func DefaultLists() Lists {
	return Lists{
		RecommendationQueries: []string{
			"美容整形 ブログ おすすめ",
			"美容クリニック 評判 ブログ",
			"美容皮膚科 体験記",
			"医療ダイエット 経過 ブログ",
			"AGA治療 体験 ブログ",
			"低用量ピル 服用日記",
			"韓国美容整形 レポ ブログ",
			"美容ナース ブログ",
			"美容情報サイト ランキング",
		},
		PlatformDenylist: []string{"twitter.com", "instagram.com", "facebook.com", "youtube.com", "tiktok.com"},
		FallbackKeywords: []string{
			"韓国肌管理", "ポテンツァ", "水光注射", "レチノール", "医療ダイエット",
			"アートメイク", "エクソソーム", "ピコレーザー", "脂肪冷却", "ダーマペン",
		},
		BulkFallbackKeywords: []string{"韓国水光肌", "ポテンツァ", "医療ダイエット", "エクソソーム"},
		MockTargetURL:        "https://www.example.com",
		Categories: []CategorySeed{
			{Name: "スキンケア", Slug: "skincare"},
			{Name: "美容医療", Slug: "medical-beauty"},
			{Name: "ダイエット", Slug: "diet"},
			{Name: "メイク", Slug: "makeup"},
		},
	}
}

func Load() (*Config, error) {
	cfg := &Config{
		// Default values
		Port:                "8000",
		DataDir:             "data",
		TextModel:           "gemini-2.0-flash",
		SearchModel:         "gemini-2.0-flash",
		ImageModel:          "imagen-4.0-fast-generate-001",
		MaxGeminiRequests:   0,
		GeminiRPS:           1,
		AdminBaseURL:        "https://www.kireiaura.com",
		PublicBaseURL:       "http://localhost:8000",
		AssetDir:            "data/thumbnails",
		PlaceholderImageURL: "https://placehold.co/1200x630/ffe4e6/be123c?text=AURA+Beauty",
		PageTimeout:         30 * time.Second,
		TaskTimeout:         10 * time.Minute,
		QueueWorkers:        2,
		QueueSize:           64,
		TaskAttempts:        2,
		RetryDelay:          5 * time.Second,
		TranslateTTL:        24 * time.Hour,
		TranslateSize:       512,
		Lists:               DefaultLists(),
	}

	if err := cfg.loadLists(getEnvOrDefault("CONFIG_PATH", "configs/engine.yaml")); err != nil {
		return nil, err
	}

	// Load from environment
	cfg.Port = getEnvOrDefault("PORT", cfg.Port)
	cfg.EngineAPIKey = os.Getenv("ENGINE_API_KEY")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.DataDir = getEnvOrDefault("DATA_DIR", cfg.DataDir)

	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.TextModel = getEnvOrDefault("GEMINI_TEXT_MODEL", cfg.TextModel)
	cfg.SearchModel = getEnvOrDefault("GEMINI_SEARCH_MODEL", cfg.SearchModel)
	cfg.ImageModel = getEnvOrDefault("GEMINI_IMAGE_MODEL", cfg.ImageModel)
	cfg.MaxGeminiRequests = getEnvIntOrDefault("MAX_GEMINI_REQUESTS", cfg.MaxGeminiRequests)
	if v := os.Getenv("GEMINI_RPS"); v != "" {
		if val, err := strconv.ParseFloat(v, 64); err == nil && val > 0 {
			cfg.GeminiRPS = val
		}
	}
	cfg.MockMode = os.Getenv("MOCK_MODE") == "true" || cfg.GeminiAPIKey == ""

	cfg.LineToken = os.Getenv("LINE_CHANNEL_ACCESS_TOKEN")
	cfg.LineUserID = os.Getenv("LINE_TARGET_USER_ID")
	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	cfg.TelegramChatID = os.Getenv("TELEGRAM_CHAT_ID")
	cfg.AdminBaseURL = strings.TrimRight(getEnvOrDefault("ADMIN_BASE_URL", cfg.AdminBaseURL), "/")

	cfg.PublicBaseURL = strings.TrimRight(getEnvOrDefault("PUBLIC_BASE_URL", cfg.PublicBaseURL), "/")
	cfg.AssetDir = getEnvOrDefault("ASSET_DIR", cfg.AssetDir)
	cfg.PlaceholderImageURL = getEnvOrDefault("PLACEHOLDER_IMAGE_URL", cfg.PlaceholderImageURL)

	cfg.PageTimeout = getEnvDurationOrDefault("PAGE_TIMEOUT", cfg.PageTimeout)
	cfg.TaskTimeout = getEnvDurationOrDefault("TASK_TIMEOUT", cfg.TaskTimeout)
	cfg.QueueWorkers = getEnvIntOrDefault("QUEUE_WORKERS", cfg.QueueWorkers)
	cfg.QueueSize = getEnvIntOrDefault("QUEUE_SIZE", cfg.QueueSize)
	cfg.TaskAttempts = getEnvIntOrDefault("TASK_ATTEMPTS", cfg.TaskAttempts)
	cfg.RetryDelay = getEnvDurationOrDefault("RETRY_DELAY", cfg.RetryDelay)

	if debug := os.Getenv("DEBUG"); debug == "true" {
		cfg.Debug = true
	}
	cfg.LogFormat = getEnvOrDefault("LOG_FORMAT", "text")

	return cfg, cfg.Validate()
}

// loadLists overlays non-empty YAML entries on the defaults. A missing file is fine.
func (c *Config) loadLists(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fileLists Lists
	if err := yaml.Unmarshal(data, &fileLists); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if len(fileLists.RecommendationQueries) > 0 {
		c.Lists.RecommendationQueries = fileLists.RecommendationQueries
	}
	if len(fileLists.PlatformDenylist) > 0 {
		c.Lists.PlatformDenylist = fileLists.PlatformDenylist
	}
	if len(fileLists.FallbackKeywords) > 0 {
		c.Lists.FallbackKeywords = fileLists.FallbackKeywords
	}
	if len(fileLists.BulkFallbackKeywords) > 0 {
		c.Lists.BulkFallbackKeywords = fileLists.BulkFallbackKeywords
	}
	if fileLists.Persona != "" {
		c.Lists.Persona = fileLists.Persona
	}
	if fileLists.MockTargetURL != "" {
		c.Lists.MockTargetURL = fileLists.MockTargetURL
	}
	if len(fileLists.Categories) > 0 {
		c.Lists.Categories = fileLists.Categories
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// LineEnabled reports whether LINE push is configured.
func (c *Config) LineEnabled() bool {
	return c.LineToken != "" && c.LineUserID != ""
}

func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != ""
}

func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be numeric, got %q", c.Port)
	}
	if c.DatabaseURL != "" {
		if _, err := url.Parse(c.DatabaseURL); err != nil {
			return fmt.Errorf("DATABASE_URL is invalid: %w", err)
		}
	}
	if c.QueueWorkers < 1 {
		return fmt.Errorf("QUEUE_WORKERS must be at least 1")
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("QUEUE_SIZE must be at least 1")
	}
	if c.TaskAttempts < 1 {
		return fmt.Errorf("TASK_ATTEMPTS must be at least 1")
	}
	if c.PageTimeout <= 0 {
		return fmt.Errorf("PAGE_TIMEOUT must be positive")
	}
	if len(c.Lists.FallbackKeywords) == 0 {
		return fmt.Errorf("fallback_keywords must not be empty")
	}
	return nil
}
