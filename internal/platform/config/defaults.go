package config

import "time"

const (
	ProviderOpenAI = "openai"
	ProviderStub   = "stub"

	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:              "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 15 * time.Second,
			AllowOrigins:    []string{"*"},
		},
		Log: LogConfig{
			Level: "INFO",
			Dir:   "data/logs",
			File:  "server.log",
		},
		Web: WebConfig{
			Enabled:   true,
			StaticDir: "./web",
			Index:     "index.html",
		},
		Analysis: AnalysisConfig{
			Provider:  ProviderOpenAI,
			Model:     "o3",
			MaxTokens: 4000,
		},
		Image: ImageConfig{
			Validate:       true,
			MaxFileSize:    10 * 1024 * 1024,
			MaxPixels:      40_000_000,
			MaxWidth:       8192,
			MaxHeight:      8192,
			AllowedFormats: []string{"jpeg", "jpg", "png", "webp", "gif"},
			EnableDeepScan: true,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Driver:  DriverMemory,
			Limit:   20,
			Window:  time.Minute,
			Prefix:  "skinlab:ratelimit:",
			Redis: RateLimitRedis{
				Addr: "127.0.0.1:6379",
			},
		},
		Observability: ObservabilityConfig{
			Metrics:     true,
			MetricsPath: "/metrics",
		},
	}
}
