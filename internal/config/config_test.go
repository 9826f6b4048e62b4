package config

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// knownKeys lists every variable Load reads, so tests start from a
// clean environment regardless of the host shell.
var knownKeys = []string{
	"TELEGRAM_BOT_TOKEN", "SOURCE_CHATS", "TARGET_CHAT", "REVIEW_CHAT",
	"RSS_FEEDS", "MAX_POSTS_PER_DAY", "KEYWORDS", "SPAM_KEYWORDS",
	"SIMILARITY_THRESHOLD", "ALBUM_DEBOUNCE_SECONDS", "RATE_PER_MINUTE",
	"RATE_PER_HOUR", "RETENTION_DAYS", "OPENAI_API_KEY", "OPENAI_BASE_URL",
	"OPENAI_MODEL", "DATABASE_PATH", "METRICS_PORT", "LOG_LEVEL",
}

func setEnv(t *testing.T, env map[string]string) {
	t.Helper()
	for _, key := range knownKeys {
		t.Setenv(key, "")
	}
	for key, value := range env {
		t.Setenv(key, value)
	}
}

func validEnv() map[string]string {
	return map[string]string{
		"TELEGRAM_BOT_TOKEN": "test-token",
		"SOURCE_CHATS":       "-1001, -1002",
		"TARGET_CHAT":        "-2000",
	}
}

func TestLoadDefaults(t *testing.T) {
	setEnv(t, validEnv())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want := &Config{
		TelegramBotToken:    "test-token",
		SourceChats:         []int64{-1001, -1002},
		TargetChat:          -2000,
		MaxPostsPerDay:      5,
		SimilarityThreshold: 85,
		AlbumDebounce:       2 * time.Second,
		RatePerMinute:       20,
		RatePerHour:         100,
		RetentionDays:       30,
		OpenAIModel:         "llama-3.3-70b-versatile",
		DatabasePath:        "./data/bot.db",
		MetricsPort:         8080,
		LogLevel:            "info",
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadOverrides(t *testing.T) {
	env := validEnv()
	env["REVIEW_CHAT"] = "-3000"
	env["MAX_POSTS_PER_DAY"] = "10"
	env["KEYWORDS"] = "transport, roads"
	env["SPAM_KEYWORDS"] = "casino"
	env["SIMILARITY_THRESHOLD"] = "90"
	env["ALBUM_DEBOUNCE_SECONDS"] = "3"
	env["RSS_FEEDS"] = "https://example.com/feed.xml"
	env["LOG_LEVEL"] = "debug"
	setEnv(t, env)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.ReviewChat != -3000 {
		t.Errorf("ReviewChat = %d, want -3000", cfg.ReviewChat)
	}
	if cfg.MaxPostsPerDay != 10 {
		t.Errorf("MaxPostsPerDay = %d, want 10", cfg.MaxPostsPerDay)
	}
	if diff := cmp.Diff([]string{"transport", "roads"}, cfg.Keywords); diff != "" {
		t.Errorf("Keywords mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"casino"}, cfg.SpamKeywords); diff != "" {
		t.Errorf("SpamKeywords mismatch (-want +got):\n%s", diff)
	}
	if cfg.AlbumDebounce != 3*time.Second {
		t.Errorf("AlbumDebounce = %v, want 3s", cfg.AlbumDebounce)
	}
	if diff := cmp.Diff([]string{"https://example.com/feed.xml"}, cfg.RSSFeeds); diff != "" {
		t.Errorf("RSSFeeds mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(env map[string]string)
		wantErr string
	}{
		{
			name:    "missing token",
			mutate:  func(env map[string]string) { delete(env, "TELEGRAM_BOT_TOKEN") },
			wantErr: "TELEGRAM_BOT_TOKEN",
		},
		{
			name: "no sources at all",
			mutate: func(env map[string]string) {
				delete(env, "SOURCE_CHATS")
			},
			wantErr: "SOURCE_CHATS or RSS_FEEDS",
		},
		{
			name:    "missing target chat",
			mutate:  func(env map[string]string) { delete(env, "TARGET_CHAT") },
			wantErr: "TARGET_CHAT",
		},
		{
			name:    "malformed chat id",
			mutate:  func(env map[string]string) { env["SOURCE_CHATS"] = "-1001,not-a-number" },
			wantErr: "invalid chat ID",
		},
		{
			name:    "negative daily cap",
			mutate:  func(env map[string]string) { env["MAX_POSTS_PER_DAY"] = "-1" },
			wantErr: "MAX_POSTS_PER_DAY",
		},
		{
			name:    "threshold out of range",
			mutate:  func(env map[string]string) { env["SIMILARITY_THRESHOLD"] = "101" },
			wantErr: "SIMILARITY_THRESHOLD",
		},
		{
			name:    "zero debounce",
			mutate:  func(env map[string]string) { env["ALBUM_DEBOUNCE_SECONDS"] = "0" },
			wantErr: "ALBUM_DEBOUNCE_SECONDS",
		},
		{
			name:    "zero rate limit",
			mutate:  func(env map[string]string) { env["RATE_PER_MINUTE"] = "0" },
			wantErr: "rate limits",
		},
		{
			name:    "privileged metrics port",
			mutate:  func(env map[string]string) { env["METRICS_PORT"] = "80" },
			wantErr: "METRICS_PORT",
		},
		{
			name:    "non-numeric int",
			mutate:  func(env map[string]string) { env["RETENTION_DAYS"] = "month" },
			wantErr: "RETENTION_DAYS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := validEnv()
			tt.mutate(env)
			setEnv(t, env)

			_, err := Load()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestIsSourceChat(t *testing.T) {
	cfg := &Config{SourceChats: []int64{-1001, -1002}}

	if !cfg.IsSourceChat(-1001) {
		t.Error("known source not recognized")
	}
	if cfg.IsSourceChat(-9999) {
		t.Error("unknown chat recognized as source")
	}
}
