// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	SourceChats      []int64
	TargetChat       int64
	ReviewChat       int64
	RSSFeeds         []string

	MaxPostsPerDay      int
	Keywords            []string
	SpamKeywords        []string
	SimilarityThreshold int
	AlbumDebounce       time.Duration
	RatePerMinute       int
	RatePerHour         int
	RetentionDays       int

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	DatabasePath string
	MetricsPort  int
	LogLevel     string
}

// Load reads configuration from the environment, honoring a .env file
// when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	sources, err := parseChatIDs(os.Getenv("SOURCE_CHATS"))
	if err != nil {
		return nil, fmt.Errorf("SOURCE_CHATS: %w", err)
	}
	rssFeeds := parseList(os.Getenv("RSS_FEEDS"))
	if len(sources) == 0 && len(rssFeeds) == 0 {
		return nil, fmt.Errorf("at least one of SOURCE_CHATS or RSS_FEEDS is required")
	}

	target, err := int64Env("TARGET_CHAT")
	if err != nil {
		return nil, err
	}
	if target == 0 {
		return nil, fmt.Errorf("TARGET_CHAT is required")
	}
	review, err := int64Env("REVIEW_CHAT")
	if err != nil {
		return nil, err
	}

	dailyCap, err := intEnv("MAX_POSTS_PER_DAY", 5)
	if err != nil {
		return nil, err
	}
	if dailyCap < 0 {
		return nil, fmt.Errorf("MAX_POSTS_PER_DAY must be >= 0")
	}

	threshold, err := intEnv("SIMILARITY_THRESHOLD", 85)
	if err != nil {
		return nil, err
	}
	if threshold < 0 || threshold > 100 {
		return nil, fmt.Errorf("SIMILARITY_THRESHOLD must be in 0..100")
	}

	debounceSec, err := intEnv("ALBUM_DEBOUNCE_SECONDS", 2)
	if err != nil {
		return nil, err
	}
	if debounceSec <= 0 {
		return nil, fmt.Errorf("ALBUM_DEBOUNCE_SECONDS must be > 0")
	}

	perMinute, err := intEnv("RATE_PER_MINUTE", 20)
	if err != nil {
		return nil, err
	}
	perHour, err := intEnv("RATE_PER_HOUR", 100)
	if err != nil {
		return nil, err
	}
	if perMinute <= 0 || perHour <= 0 {
		return nil, fmt.Errorf("rate limits must be > 0")
	}

	retention, err := intEnv("RETENTION_DAYS", 30)
	if err != nil {
		return nil, err
	}
	if retention <= 0 {
		return nil, fmt.Errorf("RETENTION_DAYS must be > 0")
	}

	metricsPort, err := intEnv("METRICS_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if metricsPort < 1024 || metricsPort > 65535 {
		return nil, fmt.Errorf("METRICS_PORT must be in 1024..65535")
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/bot.db"
	}
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "llama-3.3-70b-versatile"
	}

	return &Config{
		TelegramBotToken:    token,
		SourceChats:         sources,
		TargetChat:          target,
		ReviewChat:          review,
		RSSFeeds:            rssFeeds,
		MaxPostsPerDay:      dailyCap,
		Keywords:            parseList(os.Getenv("KEYWORDS")),
		SpamKeywords:        parseList(os.Getenv("SPAM_KEYWORDS")),
		SimilarityThreshold: threshold,
		AlbumDebounce:       time.Duration(debounceSec) * time.Second,
		RatePerMinute:       perMinute,
		RatePerHour:         perHour,
		RetentionDays:       retention,
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:       os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:         model,
		DatabasePath:        dbPath,
		MetricsPort:         metricsPort,
		LogLevel:            logLevel,
	}, nil
}

// IsSourceChat reports whether the chat is one of the monitored sources.
func (c *Config) IsSourceChat(chatID int64) bool {
	for _, id := range c.SourceChats {
		if id == chatID {
			return true
		}
	}
	return false
}

func parseList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseChatIDs(raw string) ([]int64, error) {
	var out []int64
	for _, s := range parseList(raw) {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chat ID %q: %w", s, err)
		}
		out = append(out, id)
	}
	return out, nil
}

func int64Env(key string) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func intEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}
