// Package config loads application configuration from environment variables.
// All variables use the LEARN_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	AI       AIConfig
	Auth     AuthConfig
	Catalog  CatalogConfig
	Progress ProgressConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int
	Host string
	// AllowedOrigins are host patterns allowed to open the Sensei websocket
	// from another origin, comma-separated in LEARN_SERVER_ALLOWED_ORIGINS.
	AllowedOrigins []string
}

// DatabaseConfig holds PostgreSQL connection settings.
// An empty URL runs the server on in-memory stores.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig holds Dragonfly/Redis connection settings.
// An empty URL disables the cache, distributed locks and the shared AI budget.
type CacheConfig struct {
	URL string
}

// AIConfig holds configuration for the Sensei text-completion providers.
type AIConfig struct {
	OpenAI     OpenAIConfig
	Anthropic  AnthropicConfig
	DeepSeek   DeepSeekConfig
	OpenRouter OpenRouterConfig
	Cohere     CohereConfig
	// DailyTokenBudget caps tokens per user per day. Zero means unlimited.
	DailyTokenBudget int
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	APIKey string
	Model  string
}

// AnthropicConfig holds Anthropic provider settings.
type AnthropicConfig struct {
	APIKey string
	Model  string
}

// DeepSeekConfig holds DeepSeek provider settings (OpenAI-compatible).
type DeepSeekConfig struct {
	APIKey string
}

// OpenRouterConfig holds OpenRouter provider settings (OpenAI-compatible).
type OpenRouterConfig struct {
	APIKey string
	Model  string
}

// CohereConfig holds Cohere provider settings.
type CohereConfig struct {
	APIKey string
	Model  string
}

// AuthConfig holds identity provider settings.
type AuthConfig struct {
	Mode        string // "jwt" or "header"
	JWTSecret   string
	JWTIssuer   string
	UserHeader  string
	NameHeader  string
	EmailHeader string
}

// CatalogConfig holds topic catalog settings.
type CatalogConfig struct {
	Source string // "file" or "postgres"
	Path   string
}

// ProgressConfig holds progress engine settings.
type ProgressConfig struct {
	ModuleXP          int
	StrictModules     bool
	AwardRepeats      bool
	LockBackend       string // "memory" or "redis"
	LeaderboardTTLSec int
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables with LEARN_ prefix.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           envInt("LEARN_SERVER_PORT", 8080),
			Host:           envStr("LEARN_SERVER_HOST", "0.0.0.0"),
			AllowedOrigins: envList("LEARN_SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			URL:      envStr("LEARN_DATABASE_URL", ""),
			MaxConns: envInt("LEARN_DATABASE_MAX_CONNS", 25),
			MinConns: envInt("LEARN_DATABASE_MIN_CONNS", 5),
		},
		Cache: CacheConfig{
			URL: envStr("LEARN_CACHE_URL", ""),
		},
		AI: AIConfig{
			OpenAI: OpenAIConfig{
				APIKey: envStr("LEARN_AI_OPENAI_API_KEY", ""),
				Model:  envStr("LEARN_AI_OPENAI_MODEL", ""),
			},
			Anthropic: AnthropicConfig{
				APIKey: envStr("LEARN_AI_ANTHROPIC_API_KEY", ""),
				Model:  envStr("LEARN_AI_ANTHROPIC_MODEL", ""),
			},
			DeepSeek: DeepSeekConfig{
				APIKey: envStr("LEARN_AI_DEEPSEEK_API_KEY", ""),
			},
			OpenRouter: OpenRouterConfig{
				APIKey: envStr("LEARN_AI_OPENROUTER_API_KEY", ""),
				Model:  envStr("LEARN_AI_OPENROUTER_MODEL", ""),
			},
			Cohere: CohereConfig{
				APIKey: envStr("LEARN_AI_COHERE_API_KEY", ""),
				Model:  envStr("LEARN_AI_COHERE_MODEL", "command-r-plus-08-2024"),
			},
			DailyTokenBudget: envInt("LEARN_AI_DAILY_TOKEN_BUDGET", 0),
		},
		Auth: AuthConfig{
			Mode:        envStr("LEARN_AUTH_MODE", "jwt"),
			JWTSecret:   envStr("LEARN_AUTH_JWT_SECRET", ""),
			JWTIssuer:   envStr("LEARN_AUTH_JWT_ISSUER", ""),
			UserHeader:  envStr("LEARN_AUTH_USER_HEADER", "X-User-Id"),
			NameHeader:  envStr("LEARN_AUTH_NAME_HEADER", "X-User-Name"),
			EmailHeader: envStr("LEARN_AUTH_EMAIL_HEADER", "X-User-Email"),
		},
		Catalog: CatalogConfig{
			Source: envStr("LEARN_CATALOG_SOURCE", "file"),
			Path:   envStr("LEARN_CATALOG_PATH", "./catalog"),
		},
		Progress: ProgressConfig{
			ModuleXP:          envInt("LEARN_PROGRESS_MODULE_XP", 50),
			StrictModules:     envBool("LEARN_PROGRESS_STRICT_MODULES", false),
			AwardRepeats:      envBool("LEARN_PROGRESS_AWARD_REPEATS", false),
			LockBackend:       envStr("LEARN_PROGRESS_LOCK_BACKEND", "memory"),
			LeaderboardTTLSec: envInt("LEARN_PROGRESS_LEADERBOARD_TTL", 30),
		},
		Log: LogConfig{
			Level:  envStr("LEARN_LOG_LEVEL", "info"),
			Format: envStr("LEARN_LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

// Validate checks that required configuration is present and consistent.
func (c *Config) Validate() error {
	switch c.Auth.Mode {
	case "jwt":
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("LEARN_AUTH_JWT_SECRET is required when LEARN_AUTH_MODE is 'jwt'")
		}
	case "header":
		if c.Auth.UserHeader == "" {
			return fmt.Errorf("LEARN_AUTH_USER_HEADER must not be empty")
		}
	default:
		return fmt.Errorf("LEARN_AUTH_MODE must be 'jwt' or 'header', got %q", c.Auth.Mode)
	}

	switch c.Catalog.Source {
	case "file":
		if c.Catalog.Path == "" {
			return fmt.Errorf("LEARN_CATALOG_PATH is required for the file catalog")
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("LEARN_DATABASE_URL is required for the postgres catalog")
		}
	default:
		return fmt.Errorf("LEARN_CATALOG_SOURCE must be 'file' or 'postgres', got %q", c.Catalog.Source)
	}

	switch c.Progress.LockBackend {
	case "memory":
	case "redis":
		if c.Cache.URL == "" {
			return fmt.Errorf("LEARN_CACHE_URL is required for the redis lock backend")
		}
	default:
		return fmt.Errorf("LEARN_PROGRESS_LOCK_BACKEND must be 'memory' or 'redis', got %q", c.Progress.LockBackend)
	}

	if c.Progress.ModuleXP <= 0 {
		return fmt.Errorf("LEARN_PROGRESS_MODULE_XP must be positive, got %d", c.Progress.ModuleXP)
	}

	return nil
}

// HasAIProvider returns true if at least one AI provider is configured.
func (c *Config) HasAIProvider() bool {
	return c.AI.OpenAI.APIKey != "" ||
		c.AI.Anthropic.APIKey != "" ||
		c.AI.DeepSeek.APIKey != "" ||
		c.AI.OpenRouter.APIKey != "" ||
		c.AI.Cohere.APIKey != ""
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}
