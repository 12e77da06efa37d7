package config

import "time"

const (
	DefaultOracleProvider = "openai"
	DefaultOracleModel    = "gpt-4o-mini"
	DefaultOracleBaseURL  = "https://api.openai.com/v1"

	DefaultMaxIterations    = 50
	DefaultRunTimeout       = 30 * time.Minute
	DefaultActionCeiling    = 2 * time.Minute
	DefaultMaxOutputBytes   = 64 * 1024
	DefaultMaxFileBytes     = 4 * 1024 * 1024
	DefaultOracleFailureCap = 3
	DefaultActionRate       = 4.0
	DefaultActionBurst      = 8
)

// Config captures user-configurable settings shared across binaries.
type Config struct {
	Oracle  OracleConfig  `yaml:"oracle"`
	Run     RunConfig     `yaml:"run"`
	Sandbox SandboxConfig `yaml:"sandbox"`
	Audit   AuditConfig   `yaml:"audit"`
	Tools   ToolsConfig   `yaml:"tools"`
}

// OracleConfig addresses the external reasoning oracle.
type OracleConfig struct {
	Provider string `yaml:"provider"` // "openai" or "anthropic" wire format
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
}

// RunConfig bounds a single run.
type RunConfig struct {
	MaxIterations int           `yaml:"max_iterations"`
	Timeout       time.Duration `yaml:"timeout"`
	// OracleFailureCap is the number of consecutive oracle call failures
	// tolerated before the run transitions to Failed.
	OracleFailureCap int     `yaml:"oracle_failure_cap"`
	ActionRate       float64 `yaml:"action_rate"`
	ActionBurst      int     `yaml:"action_burst"`
}

// SandboxConfig holds the policy rule sets. Immutable once the engine is built.
type SandboxConfig struct {
	AllowedRoots      []string      `yaml:"allowed_roots"`
	AllowedPrograms   []string      `yaml:"allowed_programs"`
	BlockedSubstrings []string      `yaml:"blocked_substrings"`
	BlockedHosts      []string      `yaml:"blocked_hosts"`
	ActionTimeout     time.Duration `yaml:"action_timeout"`
	MaxOutputBytes    int           `yaml:"max_output_bytes"`
	MaxFileBytes      int64         `yaml:"max_file_bytes"`
}

// AuditConfig addresses the persistence sink. Empty DSN selects the nop sink.
type AuditConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
}

// ToolsConfig carries per-tool settings that are not sandbox policy.
type ToolsConfig struct {
	DatabaseDSN       string        `yaml:"database_dsn"`
	SearchBaseURL     string        `yaml:"search_base_url"`
	FetchCacheTTL     time.Duration `yaml:"fetch_cache_ttl"`
	FetchCacheEntries int           `yaml:"fetch_cache_entries"`
	BrowserHeadless   bool          `yaml:"browser_headless"`
}
