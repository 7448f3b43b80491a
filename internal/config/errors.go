package config

import "strings"

// ConfigError aggregates every validation failure found while loading a
// single config file, so an operator sees every problem at once instead
// of one field per fix-and-rerun cycle.
type ConfigError struct {
	Path   string
	Issues []string
}

func (e *ConfigError) Error() string {
	return "config: " + e.Path + ": " + strings.Join(e.Issues, "; ")
}

func newConfigError(path string, issues []string) *ConfigError {
	return &ConfigError{Path: path, Issues: issues}
}
