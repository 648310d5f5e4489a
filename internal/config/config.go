package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/josinaldojr/pdf-chat-rag/pkg/chatapi"
	"github.com/joho/godotenv"
)

type Config struct {
	// DatabaseURL empty means sessions and documents live in memory.
	DatabaseURL string `env:"DATABASE_URL"`
	Port        string `env:"PORT" envDefault:"8080"`

	GeminiAPIKey string `env:"GEMINI_API_KEY"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://127.0.0.1:3000"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	ChunkSize      int           `env:"CHUNK_SIZE" envDefault:"1000"`
	TopK           int           `env:"RETRIEVE_TOP_K" envDefault:"4"`
	MaxUploadMB    int64         `env:"MAX_UPLOAD_MB" envDefault:"20"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
}

// ClientConfig configures chatctl and other consumers of pkg/chatapi.
type ClientConfig struct {
	BaseURL string        `env:"CHAT_API_BASE_URL"`
	Timeout time.Duration `env:"CHAT_API_TIMEOUT" envDefault:"30s"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.GeminiAPIKey == "" {
		cfg.GeminiAPIKey = os.Getenv("GOOGLE_API_KEY")
	}
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("CHUNK_SIZE must be positive, got %d", cfg.ChunkSize)
	}
	if cfg.TopK <= 0 {
		return nil, fmt.Errorf("RETRIEVE_TOP_K must be positive, got %d", cfg.TopK)
	}

	return cfg, nil
}

func LoadClient() (*ClientConfig, error) {
	_ = godotenv.Load()

	cfg := &ClientConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse client config: %w", err)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = chatapi.DefaultBaseURL
	}
	return cfg, nil
}

func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}
