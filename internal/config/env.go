package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom log forwarding configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// PlannerConfig defines the OpenRouter text-generation call used to build
// illustration plans.
type PlannerConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// ImageGenConfig defines the FAL image-generation call.
type ImageGenConfig struct {
	APIKey        string
	Endpoint      string
	GuidanceScale float64
	Steps         int
	MaxSteps      int
	Width         int
	Height        int
	CoverWidth    int
	CoverHeight   int
	Timeout       time.Duration
	PerMinute     int
}

// RehostConfig defines how external image URLs are pulled into own storage.
type RehostConfig struct {
	MaxBytes    int64
	MaxAttempts int
	RetryDelay  time.Duration
	Concurrency int
	KeyPrefix   string
	UserAgent   string
	Timeout     time.Duration
}

// StorageConfig defines the durable object store for rehosted images.
// Endpoint/AccessKey/SecretKey are only needed for S3-compatible stores
// outside AWS (e.g. Supabase storage over its S3 gateway).
type StorageConfig struct {
	Bucket        string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
}

// StoreConfig defines connectivity for the material/rewrite store.
type StoreConfig struct {
	RedisURL string
}

// Config is the top-level configuration.
type Config struct {
	Logging  LoggingConfig
	Axiom    AxiomConfig
	Planner  PlannerConfig
	ImageGen ImageGenConfig
	Rehost   RehostConfig
	Storage  StorageConfig
	Store    StoreConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/illustrator.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_illustrator",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Planner = PlannerConfig{
		APIKey:      getEnv("OPENROUTER_API_KEY", ""),
		BaseURL:     getEnv("OPENROUTER_API_BASE", "https://openrouter.ai/api/v1"),
		Model:       getEnv("OPENROUTER_MODEL", "openai/gpt-4o-mini"),
		Temperature: parseFloat(getEnv("PLANNER_TEMPERATURE", "0.2"), 0.2),
		MaxTokens:   parseInt(getEnv("PLANNER_MAX_TOKENS", "1400"), 1400),
		Timeout:     parseDuration(getEnv("PLANNER_TIMEOUT", "60s"), 60*time.Second),
	}

	cfg.ImageGen = ImageGenConfig{
		APIKey:        getEnv("FAL_KEY", ""),
		Endpoint:      getEnv("FAL_MODEL_ENDPOINT", "https://fal.run/fal-ai/flux/schnell"),
		GuidanceScale: parseFloat(getEnv("FAL_GUIDANCE_SCALE", "3.5"), 3.5),
		Steps:         parseInt(getEnv("FAL_NUM_INFERENCE_STEPS", "12"), 12),
		MaxSteps:      parseInt(getEnv("FAL_MAX_INFERENCE_STEPS", "12"), 12),
		Width:         parseInt(getEnv("FAL_WIDTH", "896"), 896),
		Height:        parseInt(getEnv("FAL_HEIGHT", "504"), 504),
		CoverWidth:    parseInt(getEnv("COVER_WIDTH", "900"), 900),
		CoverHeight:   parseInt(getEnv("COVER_HEIGHT", "383"), 383),
		Timeout:       parseDuration(getEnv("FAL_TIMEOUT", "120s"), 120*time.Second),
		PerMinute:     parseInt(getEnv("FAL_REQUESTS_PER_MINUTE", "20"), 20),
	}

	cfg.Rehost = RehostConfig{
		MaxBytes:    parseInt64(getEnv("REHOST_MAX_BYTES", "10485760"), 10<<20),
		MaxAttempts: parseInt(getEnv("REHOST_MAX_ATTEMPTS", "3"), 3),
		RetryDelay:  parseDuration(getEnv("REHOST_RETRY_DELAY", "1s"), time.Second),
		Concurrency: parseInt(getEnv("REHOST_CONCURRENCY", "4"), 4),
		KeyPrefix:   getEnv("REHOST_KEY_PREFIX", "articles/"),
		UserAgent:   getEnv("REHOST_USER_AGENT", defaultUserAgent),
		Timeout:     parseDuration(getEnv("REHOST_TIMEOUT", "30s"), 30*time.Second),
	}

	cfg.Storage = StorageConfig{
		Bucket:        getEnv("STORAGE_BUCKET", "images"),
		Region:        getEnv("STORAGE_REGION", "us-east-1"),
		Endpoint:      getEnv("STORAGE_ENDPOINT", ""),
		AccessKey:     getEnv("STORAGE_ACCESS_KEY", ""),
		SecretKey:     getEnv("STORAGE_SECRET_KEY", ""),
		PublicBaseURL: getEnv("STORAGE_PUBLIC_BASE_URL", ""),
	}

	cfg.Store = StoreConfig{
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379"),
	}

	return cfg
}

// Some source sites reject unidentified fetchers, so rehost downloads
// identify as a regular browser.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseInt64(s string, def int64) int64 {
	if s == "" {
		return def
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return def
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
