package infra

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Config represents application configuration loaded from an optional YAML
// file and environment variables. Environment variables win.
type Config struct {
	AppEnv string
	Port   string

	ConverterBaseURL      string
	ConverterTimeout      time.Duration
	ConverterRequestsPerS float64
	PollInterval          time.Duration
	// DownloadDir is where the CLI saves artifacts when -out is not given.
	// Empty disables saving.
	DownloadDir           string

	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
	CORSAllowedOrigins []string
}

// fileConfig mirrors the YAML layout accepted through CONVERTER_CONFIG.
type fileConfig struct {
	AppEnv string `yaml:"app_env"`
	Server struct {
		Port               int      `yaml:"port"`
		ReadTimeoutSec     int      `yaml:"read_timeout_seconds"`
		WriteTimeoutSec    int      `yaml:"write_timeout_seconds"`
		IdleTimeoutSec     int      `yaml:"idle_timeout_seconds"`
		RateLimitPerMinute int      `yaml:"rate_limit_per_minute"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	} `yaml:"server"`
	Converter struct {
		BaseURL           string  `yaml:"base_url"`
		TimeoutSeconds    int     `yaml:"timeout_seconds"`
		PollIntervalMS    int     `yaml:"poll_interval_ms"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
	} `yaml:"converter"`
	DownloadDir string `yaml:"download_dir"`
}

// LoadConfig reads .env files when present, then the YAML file named by
// CONVERTER_CONFIG, then the environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env", ".env.local")

	var file fileConfig
	if path := os.Getenv("CONVERTER_CONFIG"); path != "" {
		loaded, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		file = *loaded
	}

	cfg := &Config{
		AppEnv:                getEnv("APP_ENV", orString(file.AppEnv, "development")),
		Port:                  getEnv("PORT", orString(portString(file.Server.Port), "8080")),
		ConverterBaseURL:      strings.TrimRight(getEnv("CONVERTER_BASE_URL", orString(file.Converter.BaseURL, "http://localhost:8000")), "/"),
		ConverterTimeout:      time.Second * time.Duration(getEnvInt("CONVERTER_TIMEOUT_SECONDS", orInt(file.Converter.TimeoutSeconds, 60))),
		ConverterRequestsPerS: getEnvFloat("CONVERTER_REQUESTS_PER_SECOND", file.Converter.RequestsPerSecond),
		PollInterval:          time.Millisecond * time.Duration(getEnvInt("POLL_INTERVAL_MS", orInt(file.Converter.PollIntervalMS, 2500))),
		DownloadDir:           getEnv("DOWNLOAD_DIR", file.DownloadDir),
		HTTPReadTimeout:       time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", orInt(file.Server.ReadTimeoutSec, 15))),
		HTTPWriteTimeout:      time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", orInt(file.Server.WriteTimeoutSec, 120))),
		HTTPIdleTimeout:       time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", orInt(file.Server.IdleTimeoutSec, 60))),
		RateLimitPerMin:       getEnvInt("RATE_LIMIT_PER_MINUTE", orInt(file.Server.RateLimitPerMinute, 30)),
		CORSAllowedOrigins:    getEnvList("CORS_ALLOWED_ORIGINS", file.Server.CORSAllowedOrigins),
	}

	if u, err := url.Parse(cfg.ConverterBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("CONVERTER_BASE_URL %q is not an absolute url", cfg.ConverterBaseURL)
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL_MS must be positive")
	}
	if cfg.ConverterRequestsPerS < 0 {
		return nil, fmt.Errorf("CONVERTER_REQUESTS_PER_SECOND must not be negative")
	}

	return cfg, nil
}

func loadFile(path string) (*fileConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()

	var cfg fileConfig
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	return &cfg, nil
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

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func orString(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func orInt(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func portString(p int) string {
	if p <= 0 {
		return ""
	}
	return strconv.Itoa(p)
}
