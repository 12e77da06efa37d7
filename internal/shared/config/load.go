package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type loadOptions struct {
	envLookup func(string) (string, bool)
	readFile  func(string) ([]byte, error)
	path      string
}

// Option customizes Load, mainly for tests.
type Option func(*loadOptions)

// WithPath points Load at an explicit config file.
func WithPath(path string) Option {
	return func(o *loadOptions) { o.path = path }
}

// WithEnvLookup replaces the environment lookup function.
func WithEnvLookup(lookup func(string) (string, bool)) Option {
	return func(o *loadOptions) { o.envLookup = lookup }
}

// WithFileReader replaces the file reader.
func WithFileReader(read func(string) ([]byte, error)) Option {
	return func(o *loadOptions) { o.readFile = read }
}

// Defaults returns the built-in configuration. The sandbox allowlists default
// to empty: callers must opt paths and programs in explicitly.
func Defaults() Config {
	return Config{
		Oracle: OracleConfig{
			Provider: DefaultOracleProvider,
			Model:    DefaultOracleModel,
			BaseURL:  DefaultOracleBaseURL,
		},
		Run: RunConfig{
			MaxIterations:    DefaultMaxIterations,
			Timeout:          DefaultRunTimeout,
			OracleFailureCap: DefaultOracleFailureCap,
			ActionRate:       DefaultActionRate,
			ActionBurst:      DefaultActionBurst,
		},
		Sandbox: SandboxConfig{
			AllowedPrograms:   DefaultAllowedPrograms(),
			BlockedSubstrings: DefaultBlockedSubstrings(),
			ActionTimeout:     DefaultActionCeiling,
			MaxOutputBytes:    DefaultMaxOutputBytes,
			MaxFileBytes:      DefaultMaxFileBytes,
		},
		Tools: ToolsConfig{
			SearchBaseURL:     "https://html.duckduckgo.com",
			FetchCacheTTL:     10 * time.Minute,
			FetchCacheEntries: 64,
			BrowserHeadless:   true,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// environment overrides, in that precedence order.
func Load(opts ...Option) (Config, error) {
	options := loadOptions{
		envLookup: os.LookupEnv,
		readFile:  os.ReadFile,
	}
	for _, opt := range opts {
		opt(&options)
	}

	cfg := Defaults()

	if options.path != "" {
		data, err := options.readFile(options.path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", options.path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", options.path, err)
		}
	}

	applyEnv(&cfg, options.envLookup)

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup("OTTO_ORACLE_API_KEY"); ok {
		cfg.Oracle.APIKey = v
	}
	if v, ok := lookup("OTTO_ORACLE_BASE_URL"); ok {
		cfg.Oracle.BaseURL = v
	}
	if v, ok := lookup("OTTO_ORACLE_MODEL"); ok {
		cfg.Oracle.Model = v
	}
	if v, ok := lookup("OTTO_ORACLE_PROVIDER"); ok {
		cfg.Oracle.Provider = v
	}
	if v, ok := lookup("OTTO_AUDIT_POSTGRES_DSN"); ok {
		cfg.Audit.PostgresDSN = v
	}
	if v, ok := lookup("OTTO_DATABASE_DSN"); ok {
		cfg.Tools.DatabaseDSN = v
	}
	if v, ok := lookup("OTTO_MAX_ITERATIONS"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Run.MaxIterations = n
		}
	}
	if v, ok := lookup("OTTO_RUN_TIMEOUT"); ok {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Run.Timeout = d
		}
	}
}
