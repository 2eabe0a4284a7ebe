package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v9"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "SKINLAB_"

// searchPaths are tried in order when no explicit path is given.
var searchPaths = []string{"config.yaml", ".config.yaml"}

// vendorEnv holds variables that keep their upstream names.
type vendorEnv struct {
	OpenAIKey string `env:"OPENAI_API_KEY"`
}

// Loader reads configuration from a YAML file, a .env file and the process
// environment, in that order of precedence (later wins).
type Loader struct {
	path        string
	useDotEnv   bool
	environment map[string]string
}

// NewLoader creates a loader that searches the working directory for a config file.
func NewLoader() *Loader {
	return &Loader{
		path:      os.Getenv(envPrefix + "CONFIG"),
		useDotEnv: true,
	}
}

// WithPath pins the config file. A pinned file must exist.
func (l *Loader) WithPath(path string) *Loader {
	l.path = path
	return l
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithEnvironment replaces the process environment (useful for tests).
func (l *Loader) WithEnvironment(environment map[string]string) *Loader {
	l.environment = environment
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

// Load builds the configuration and validates it.
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		// a missing .env is normal outside development
		_ = godotenv.Load()
	}

	cfg := DefaultConfig()
	path, err := l.resolvePath()
	if err != nil {
		return nil, err
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := l.Validate(cfg); err != nil {
		return nil, err
	}

	origin := path
	if origin == "" {
		origin = "defaults"
	}
	return &Result{Config: cfg, Path: origin}, nil
}

func (l *Loader) resolvePath() (string, error) {
	if l.path != "" {
		if _, err := os.Stat(l.path); err != nil {
			return "", fmt.Errorf("config file %s: %w", l.path, err)
		}
		return l.path, nil
	}
	for _, candidate := range searchPaths {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", nil
}

func (l *Loader) applyEnv(cfg *Config) error {
	opts := env.Options{Prefix: envPrefix}
	vendorOpts := env.Options{}
	if l.environment != nil {
		opts.Environment = l.environment
		vendorOpts.Environment = l.environment
	}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("apply environment overrides: %w", err)
	}

	var vendor vendorEnv
	if err := env.ParseWithOptions(&vendor, vendorOpts); err != nil {
		return fmt.Errorf("read vendor environment: %w", err)
	}
	if cfg.Analysis.APIKey == "" {
		cfg.Analysis.APIKey = vendor.OpenAIKey
	}
	return nil
}

// Validate reports every problem in cfg at once.
func (l *Loader) Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	var result *multierror.Error

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("server.port %d out of range", cfg.Server.Port))
	}

	switch strings.ToLower(cfg.Analysis.Provider) {
	case ProviderOpenAI:
		if cfg.Analysis.APIKey == "" {
			result = multierror.Append(result, errors.New("analysis.api_key is required for the openai provider"))
		}
		if cfg.Analysis.Model == "" {
			result = multierror.Append(result, errors.New("analysis.model is required"))
		}
	case ProviderStub:
	default:
		result = multierror.Append(result, fmt.Errorf("analysis.provider %q is not supported", cfg.Analysis.Provider))
	}
	if cfg.Analysis.MaxTokens <= 0 {
		result = multierror.Append(result, errors.New("analysis.max_tokens must be positive"))
	}

	if cfg.Image.Validate && cfg.Image.MaxFileSize <= 0 {
		result = multierror.Append(result, errors.New("image.max_file_size must be positive"))
	}

	if cfg.RateLimit.Enabled {
		switch strings.ToLower(cfg.RateLimit.Driver) {
		case DriverMemory:
		case DriverRedis:
			if cfg.RateLimit.Redis.Addr == "" {
				result = multierror.Append(result, errors.New("ratelimit.redis.addr is required for the redis driver"))
			}
		default:
			result = multierror.Append(result, fmt.Errorf("ratelimit.driver %q is not supported", cfg.RateLimit.Driver))
		}
		if cfg.RateLimit.Limit <= 0 {
			result = multierror.Append(result, errors.New("ratelimit.limit must be positive"))
		}
		if cfg.RateLimit.Window <= 0 {
			result = multierror.Append(result, errors.New("ratelimit.window must be positive"))
		}
	}

	return result.ErrorOrNil()
}
