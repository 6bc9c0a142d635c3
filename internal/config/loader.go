package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads, interpolates, verifies and validates the configuration file at
// configPath. Values absent from the file keep their Defaults.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if err := VerifyChecksum(absPath); err != nil {
		return nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.SourcePath = absPath
	cfg.Fingerprint = hashBytes(data)
	return cfg, nil
}

// Parse interpolates ${VAR} references in data, decodes it over Defaults and
// validates the result.
func Parse(data []byte) (*Config, error) {
	interpolated := interpolateEnv(string(data))

	cfg := Defaults()
	if err := yaml.Unmarshal([]byte(interpolated), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DiscoverConfigPath finds the config file by checking standard locations.
// Priority order: $SYNAPSE_GW_CONFIG, ~/.config/synapse-gw/config.yaml, /etc/synapse-gw/config.yaml, ./config.yaml
func DiscoverConfigPath() (string, error) {
	if p := os.Getenv("SYNAPSE_GW_CONFIG"); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(homeDir, ".config", "synapse-gw", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	if _, err := os.Stat("/etc/synapse-gw/config.yaml"); err == nil {
		return "/etc/synapse-gw/config.yaml", nil
	}

	if _, err := os.Stat("./config.yaml"); err == nil {
		return "./config.yaml", nil
	}

	return "", fmt.Errorf("no config found (checked: $SYNAPSE_GW_CONFIG, ~/.config/synapse-gw, /etc/synapse-gw, ./config.yaml)")
}

func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		// Extract variable name from ${VAR}
		varName := envVarPattern.FindStringSubmatch(match)[1]

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}

		// If not found, leave the placeholder (will fail validation if required)
		return match
	})
}

func unresolved(field, value string) error {
	matches := envVarPattern.FindStringSubmatch(value)
	if len(matches) > 1 {
		return fmt.Errorf("%s: environment variable ${%s} is not set", field, matches[1])
	}
	return nil
}

func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if cfg.Service.LogFormat != "json" && cfg.Service.LogFormat != "text" {
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}

	if cfg.API.Listen == "" {
		return fmt.Errorf("api.listen is required")
	}
	if cfg.API.MaxBodyBytes <= 0 {
		return fmt.Errorf("api.max_body_bytes must be positive")
	}
	if err := validateAuth(cfg.API.Auth); err != nil {
		return err
	}

	if err := unresolved("worker.base_url", cfg.Worker.BaseURL); err != nil {
		return err
	}
	u, err := url.Parse(cfg.Worker.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("worker.base_url must be an http(s) URL (got %q)", cfg.Worker.BaseURL)
	}
	if cfg.Worker.Timeout <= 0 {
		return fmt.Errorf("worker.timeout must be positive")
	}

	for i, caller := range cfg.Admission.Deny {
		if strings.TrimSpace(caller) == "" {
			return fmt.Errorf("admission.deny[%d] is empty", i)
		}
	}
	for caller := range cfg.Admission.Callers {
		if strings.TrimSpace(caller) == "" {
			return fmt.Errorf("admission.callers has an empty caller id")
		}
	}

	if cfg.Scheduler.MaxConcurrent < 1 {
		return fmt.Errorf("scheduler.max_concurrent must be at least 1")
	}

	if cfg.Storage.Enabled && cfg.Storage.Path == "" {
		return fmt.Errorf("storage.path is required when storage is enabled")
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/' (got %q)", cfg.Metrics.Path)
	}

	if cfg.Telemetry.Exporter != "stdout" && cfg.Telemetry.Exporter != "none" {
		return fmt.Errorf("telemetry.exporter must be stdout or none (got %q)", cfg.Telemetry.Exporter)
	}
	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be within [0, 1]")
	}

	return nil
}

func validateAuth(auth APIAuthConfig) error {
	if auth.APIKey == "" && len(auth.Tokens) == 0 {
		return fmt.Errorf("api.auth: api_key or tokens is required")
	}
	if err := unresolved("api.auth.api_key", auth.APIKey); err != nil {
		return err
	}
	for i, tok := range auth.Tokens {
		if tok.Token == "" {
			return fmt.Errorf("api.auth.tokens[%d].token is required", i)
		}
		if err := unresolved(fmt.Sprintf("api.auth.tokens[%d].token", i), tok.Token); err != nil {
			return err
		}
		if strings.TrimSpace(tok.Caller) == "" {
			return fmt.Errorf("api.auth.tokens[%d].caller is required", i)
		}
		if len(tok.Scopes) == 0 {
			return fmt.Errorf("api.auth.tokens[%d].scopes must be non-empty", i)
		}
	}
	return nil
}
