package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv            string
	Port              string
	OutputBaseDir     string
	CORSOrigins       []string
	MockRunner        bool
	EnableRealRunner  bool
	Headless          bool
	ProfileDir        string
	TargetURL         string
	GenerationTimeout time.Duration
	LoginWaitTimeout  time.Duration
	HTTPReadTimeout   time.Duration
	HTTPWriteTimeout  time.Duration
	HTTPIdleTimeout   time.Duration
	RateLimitPerMin   int
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed. A .env file is honored when present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env", ".env.local")

	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		Port:              getEnv("PORT", "8080"),
		OutputBaseDir:     getEnv("OUTPUT_BASE_DIR", "./output"),
		CORSOrigins:       splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
		MockRunner:        getEnvBool("PICBATCH_MOCK_RUNNER", false),
		EnableRealRunner:  getEnvBool("PICBATCH_ENABLE_REAL_RUNNER", false),
		Headless:          getEnvBool("PICBATCH_HEADLESS", false),
		ProfileDir:        os.Getenv("PICBATCH_PROFILE_DIR"),
		TargetURL:         getEnv("PICBATCH_TARGET_URL", "https://chatgpt.com/"),
		GenerationTimeout: time.Second * time.Duration(getEnvInt("PICBATCH_GENERATION_TIMEOUT_SECONDS", 240)),
		LoginWaitTimeout:  time.Second * time.Duration(getEnvInt("PICBATCH_LOGIN_WAIT_SECONDS", 300)),
		HTTPReadTimeout:   time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		// Zero keeps event streams open, see /v1/events.
		HTTPWriteTimeout:  time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 0)),
		HTTPIdleTimeout:   time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
	}

	if cfg.MockRunner && cfg.EnableRealRunner {
		return nil, fmt.Errorf("PICBATCH_MOCK_RUNNER and PICBATCH_ENABLE_REAL_RUNNER are mutually exclusive")
	}

	if cfg.GenerationTimeout <= 0 {
		return nil, fmt.Errorf("PICBATCH_GENERATION_TIMEOUT_SECONDS must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
