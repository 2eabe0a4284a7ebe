package config

import (
	"time"
)

// Config is the full server configuration. YAML keys come from the config
// file; env tags are applied on top with the SKINLAB_ prefix.
type Config struct {
	Server        ServerConfig        `yaml:"server" envPrefix:"SERVER_"`
	Log           LogConfig           `yaml:"log" envPrefix:"LOG_"`
	Web           WebConfig           `yaml:"web" envPrefix:"WEB_"`
	Analysis      AnalysisConfig      `yaml:"analysis" envPrefix:"ANALYSIS_"`
	Image         ImageConfig         `yaml:"image" envPrefix:"IMAGE_"`
	RateLimit     RateLimitConfig     `yaml:"ratelimit" envPrefix:"RATELIMIT_"`
	Observability ObservabilityConfig `yaml:"observability" envPrefix:"OBSERVABILITY_"`
}

type ServerConfig struct {
	IP              string        `yaml:"ip" env:"IP"`
	Port            int           `yaml:"port" env:"PORT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	TrustedProxies  []string      `yaml:"trusted_proxies" env:"TRUSTED_PROXIES" envSeparator:","`
	AllowOrigins    []string      `yaml:"allow_origins" env:"ALLOW_ORIGINS" envSeparator:","`
}

type LogConfig struct {
	Level   string `yaml:"log_level" env:"LEVEL"`
	Dir     string `yaml:"log_dir" env:"DIR"`
	File    string `yaml:"log_file" env:"FILE"`
	NoColor bool   `yaml:"no_color" env:"NO_COLOR"`
}

// WebConfig controls the prebuilt marketing site served at "/".
type WebConfig struct {
	Enabled   bool   `yaml:"enabled" env:"ENABLED"`
	StaticDir string `yaml:"static_dir" env:"STATIC_DIR"`
	Index     string `yaml:"index" env:"INDEX"`
}

// AnalysisConfig selects the hosted vision model used by the relay.
type AnalysisConfig struct {
	Provider    string  `yaml:"provider" env:"PROVIDER"`
	Model       string  `yaml:"model" env:"MODEL"`
	BaseURL     string  `yaml:"url" env:"URL"`
	APIKey      string  `yaml:"api_key" env:"API_KEY"`
	MaxTokens   int     `yaml:"max_tokens" env:"MAX_TOKENS"`
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
}

// ImageConfig bounds what an upload may contain before it is encoded.
type ImageConfig struct {
	Validate       bool     `yaml:"validate" env:"VALIDATE"`
	MaxFileSize    int64    `yaml:"max_file_size" env:"MAX_FILE_SIZE"`
	MaxPixels      int64    `yaml:"max_pixels" env:"MAX_PIXELS"`
	MaxWidth       int      `yaml:"max_width" env:"MAX_WIDTH"`
	MaxHeight      int      `yaml:"max_height" env:"MAX_HEIGHT"`
	AllowedFormats []string `yaml:"allowed_formats" env:"ALLOWED_FORMATS" envSeparator:","`
	EnableDeepScan bool     `yaml:"enable_deep_scan" env:"DEEP_SCAN"`
}

type RateLimitConfig struct {
	Enabled bool           `yaml:"enabled" env:"ENABLED"`
	Driver  string         `yaml:"driver" env:"DRIVER"`
	Limit   int            `yaml:"limit" env:"LIMIT"`
	Window  time.Duration  `yaml:"window" env:"WINDOW"`
	Prefix  string         `yaml:"prefix" env:"PREFIX"`
	Redis   RateLimitRedis `yaml:"redis" envPrefix:"REDIS_"`
}

type RateLimitRedis struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Username string `yaml:"username,omitempty" env:"USERNAME"`
	Password string `yaml:"password,omitempty" env:"PASSWORD"`
	DB       int    `yaml:"db,omitempty" env:"DB"`
}

type ObservabilityConfig struct {
	Tracing     bool   `yaml:"tracing" env:"TRACING"`
	Metrics     bool   `yaml:"metrics" env:"METRICS"`
	MetricsPath string `yaml:"metrics_path" env:"METRICS_PATH"`
}
