package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Validate rejects configurations the engine cannot run safely with.
func Validate(cfg Config) error {
	switch strings.ToLower(strings.TrimSpace(cfg.Oracle.Provider)) {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("config: unsupported oracle provider %q", cfg.Oracle.Provider)
	}

	if cfg.Run.MaxIterations <= 0 {
		return fmt.Errorf("config: run.max_iterations must be positive, got %d", cfg.Run.MaxIterations)
	}
	if cfg.Run.Timeout <= 0 {
		return fmt.Errorf("config: run.timeout must be positive, got %s", cfg.Run.Timeout)
	}
	if cfg.Run.OracleFailureCap <= 0 {
		return fmt.Errorf("config: run.oracle_failure_cap must be positive, got %d", cfg.Run.OracleFailureCap)
	}

	if cfg.Sandbox.ActionTimeout <= 0 {
		return fmt.Errorf("config: sandbox.action_timeout must be positive, got %s", cfg.Sandbox.ActionTimeout)
	}
	if cfg.Sandbox.MaxOutputBytes <= 0 {
		return fmt.Errorf("config: sandbox.max_output_bytes must be positive, got %d", cfg.Sandbox.MaxOutputBytes)
	}
	if cfg.Sandbox.MaxFileBytes <= 0 {
		return fmt.Errorf("config: sandbox.max_file_bytes must be positive, got %d", cfg.Sandbox.MaxFileBytes)
	}
	for _, root := range cfg.Sandbox.AllowedRoots {
		if !filepath.IsAbs(root) {
			return fmt.Errorf("config: sandbox.allowed_roots entries must be absolute, got %q", root)
		}
	}
	for _, prog := range cfg.Sandbox.AllowedPrograms {
		if strings.ContainsAny(prog, "/\\ ") {
			return fmt.Errorf("config: sandbox.allowed_programs entries must be bare program names, got %q", prog)
		}
	}

	return nil
}
