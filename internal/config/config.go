// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	StoreFile     = "file"
	StorePostgres = "postgres"
)

type Config struct {
	// LLM settings
	LLMProvider     string // groq | openai | gemini
	LLMAPIKey       string // resolved from the provider-specific variable
	LLMModel        string
	LLMBaseURL      string
	LLMTimeout      time.Duration
	MaxLLMRequests  int // per day, 0 = unlimited
	SummaryCacheTTL time.Duration

	// RSS settings
	FeedsConfigPath string // optional override of the embedded catalog
	NewsLimit       int
	FeedConcurrency int
	FeedTimeout     time.Duration

	// Scraper settings
	ScrapeFullText    bool
	ScrapeMaxArticles int

	// Email settings
	SMTPHost     string
	SMTPPort     int
	SMTPEmail    string
	SMTPPassword string

	// WhatsApp sidecar settings
	WhatsAppServiceURL   string
	WhatsAppTextTimeout  time.Duration
	WhatsAppMediaTimeout time.Duration

	// Artifacts
	ArtifactsDir  string
	PublicBaseURL string
	TTSLanguage   string

	// Storage
	StoreDriver   string
	StoreFilePath string
	DatabaseURL   string

	// App settings
	HTTPAddr  string
	LogLevel  string
	LogFormat string
	Debug     bool
}

func Load() (*Config, error) {
	cfg := &Config{
		// Default values
		LLMProvider:          ProviderGroq,
		LLMTimeout:           30 * time.Second,
		SummaryCacheTTL:      6 * time.Hour,
		NewsLimit:            10,
		FeedConcurrency:      4,
		FeedTimeout:          10 * time.Second,
		ScrapeMaxArticles:    5,
		SMTPHost:             "smtp.gmail.com",
		SMTPPort:             587,
		WhatsAppServiceURL:   "http://localhost:3002",
		WhatsAppTextTimeout:  5 * time.Second,
		WhatsAppMediaTimeout: 15 * time.Second,
		ArtifactsDir:         "static/newsletters",
		PublicBaseURL:        "http://localhost:5000",
		TTSLanguage:          "en",
		StoreDriver:          StoreFile,
		StoreFilePath:        "newsletter_store.json",
		HTTPAddr:             ":5000",
		LogLevel:             "info",
		LogFormat:            "text",
	}

	if p := os.Getenv("LLM_PROVIDER"); p != "" {
		cfg.LLMProvider = strings.ToLower(strings.TrimSpace(p))
	}
	cfg.LLMAPIKey = providerKey(cfg.LLMProvider)
	cfg.LLMModel = os.Getenv("LLM_MODEL")
	cfg.LLMBaseURL = os.Getenv("LLM_BASE_URL")
	cfg.LLMTimeout = getEnvDurationOrDefault("LLM_TIMEOUT", cfg.LLMTimeout)
	cfg.SummaryCacheTTL = getEnvDurationOrDefault("SUMMARY_CACHE_TTL", cfg.SummaryCacheTTL)
	if v := os.Getenv("MAX_LLM_REQUESTS"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val >= 0 {
			cfg.MaxLLMRequests = val
		}
	}

	cfg.FeedsConfigPath = os.Getenv("FEEDS_CONFIG_PATH")
	if v := os.Getenv("NEWS_LIMIT"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.NewsLimit = val
		}
	}
	if v := os.Getenv("FEED_CONCURRENCY"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.FeedConcurrency = val
		}
	}
	cfg.FeedTimeout = getEnvDurationOrDefault("FEED_TIMEOUT", cfg.FeedTimeout)

	cfg.ScrapeFullText = os.Getenv("SCRAPE_FULL_TEXT") == "true"
	if v := os.Getenv("SCRAPE_MAX_ARTICLES"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.ScrapeMaxArticles = val
		}
	}

	cfg.SMTPHost = getEnvOrDefault("SMTP_HOST", cfg.SMTPHost)
	cfg.SMTPPort = getEnvIntOrDefault("SMTP_PORT", cfg.SMTPPort)
	cfg.SMTPEmail = os.Getenv("SMTP_EMAIL")
	cfg.SMTPPassword = os.Getenv("SMTP_PASSWORD")

	cfg.WhatsAppServiceURL = strings.TrimRight(getEnvOrDefault("WHATSAPP_SERVICE_URL", cfg.WhatsAppServiceURL), "/")
	cfg.PublicBaseURL = strings.TrimRight(getEnvOrDefault("PUBLIC_BASE_URL", cfg.PublicBaseURL), "/")
	cfg.ArtifactsDir = getEnvOrDefault("ARTIFACTS_DIR", cfg.ArtifactsDir)
	cfg.TTSLanguage = getEnvOrDefault("TTS_LANGUAGE", cfg.TTSLanguage)

	cfg.StoreDriver = strings.ToLower(getEnvOrDefault("STORE_DRIVER", cfg.StoreDriver))
	cfg.StoreFilePath = getEnvOrDefault("STORE_FILE_PATH", cfg.StoreFilePath)
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	cfg.HTTPAddr = getEnvOrDefault("HTTP_ADDR", cfg.HTTPAddr)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnvOrDefault("LOG_FORMAT", cfg.LogFormat)
	if debug := os.Getenv("DEBUG"); debug == "true" {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}

	return cfg, cfg.Validate()
}

// SMTPConfigured reports whether the email channel can be attempted.
func (c *Config) SMTPConfigured() bool {
	return c.SMTPEmail != "" && c.SMTPPassword != ""
}

// LLMConfigured reports whether a credential for the selected provider exists.
func (c *Config) LLMConfigured() bool {
	return c.LLMAPIKey != ""
}

func providerKey(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case ProviderGemini:
		return os.Getenv("GEMINI_API_KEY")
	default:
		return os.Getenv("GROQ_API_KEY")
	}
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
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

func (c *Config) Validate() error {
	switch c.LLMProvider {
	case ProviderGroq, ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("LLM_PROVIDER must be one of groq, openai, gemini (got %q)", c.LLMProvider)
	}
	switch c.StoreDriver {
	case StoreFile:
		if c.StoreFilePath == "" {
			return fmt.Errorf("STORE_FILE_PATH is required for the file store")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be 'file' or 'postgres'")
	}
	if c.SMTPPort <= 0 {
		return fmt.Errorf("SMTP_PORT must be positive")
	}
	if c.ArtifactsDir == "" {
		return fmt.Errorf("ARTIFACTS_DIR is required")
	}
	return nil
}
