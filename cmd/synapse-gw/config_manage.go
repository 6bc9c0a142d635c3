package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/synapse-gw/internal/auth"
	"github.com/mattjoyce/synapse-gw/internal/config"
	"github.com/mattjoyce/synapse-gw/internal/storage"
)

const redacted = "<redacted>"

type checkReport struct {
	Valid       bool     `json:"valid"`
	Path        string   `json:"path,omitempty"`
	Fingerprint string   `json:"fingerprint,omitempty"`
	Locked      bool     `json:"locked"`
	Warnings    []string `json:"warnings,omitempty"`
	Error       string   `json:"error,omitempty"`
}

func resolveConfigPath(configPath string) (string, error) {
	if configPath == "" {
		discovered, err := config.DiscoverConfigPath()
		if err != nil {
			return "", err
		}
		configPath = discovered
	}
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		abs = filepath.Join(abs, "config.yaml")
	}
	return abs, nil
}

func loadConfigForTool(configPath string) (*config.Config, error) {
	path, err := resolveConfigPath(configPath)
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}

func runConfigCheck(args []string) int {
	var configPath string
	var jsonOut, strict bool

	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration file or directory")
	fs.BoolVar(&jsonOut, "json", false, "Output in JSON")
	fs.BoolVar(&strict, "strict", false, "Treat warnings as errors")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	report := checkReport{}
	cfg, err := loadConfigForTool(configPath)
	if err != nil {
		report.Error = err.Error()
	} else {
		report.Valid = true
		report.Path = cfg.SourcePath
		report.Fingerprint = cfg.Fingerprint
		_, statErr := os.Stat(config.ChecksumPath(cfg.SourcePath))
		report.Locked = statErr == nil
		report.Warnings = configWarnings(cfg)
	}

	if jsonOut {
		data, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(data))
	} else if report.Valid {
		fmt.Printf("Configuration OK: %s\n", report.Path)
		fmt.Printf("Fingerprint (blake3): %s\n", report.Fingerprint)
		if report.Locked {
			fmt.Println("Integrity: locked, checksum verified")
		} else {
			fmt.Println("Integrity: not locked (run 'synapse-gw config lock')")
		}
		for _, w := range report.Warnings {
			fmt.Printf("Warning: %s\n", w)
		}
	} else {
		fmt.Fprintf(os.Stderr, "Config load error: %v\n", report.Error)
	}

	if !report.Valid {
		return 1
	}
	if strict && len(report.Warnings) > 0 {
		return 2
	}
	return 0
}

// configWarnings flags settings that load fine but will misbehave at runtime.
func configWarnings(cfg *config.Config) []string {
	var out []string
	if cfg.Storage.Enabled {
		if err := storage.CheckLocal(cfg.Storage.Path); err != nil {
			out = append(out, err.Error())
		}
	}
	if len(cfg.API.Auth.Tokens) == 0 {
		out = append(out, "only the legacy api_key is configured; every request is attributed to caller \""+auth.AdminCaller+"\"")
	}
	if !cfg.Admission.AllowUnknown && len(cfg.Admission.Callers) == 0 {
		out = append(out, "admission.allow_unknown is false and admission.callers is empty; every query will be rejected")
	}
	return out
}

func runConfigLock(args []string) int {
	var configPath string
	var dryRun bool

	fs := flag.NewFlagSet("lock", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration file or directory")
	fs.BoolVar(&dryRun, "dry-run", false, "Dry run")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	path, err := resolveConfigPath(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
		return 1
	}

	// Validate before authorizing; Load would refuse a stale checksum.
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read config: %v\n", err)
		return 1
	}
	if _, err := config.Parse(data); err != nil {
		fmt.Fprintf(os.Stderr, "Refusing to lock: %v\n", err)
		return 1
	}

	if dryRun {
		sum, err := config.ComputeBlake3Hash(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to hash config: %v\n", err)
			return 1
		}
		fmt.Printf("HASH %s: %s\n", filepath.Base(path), sum)
		fmt.Printf("DRY-RUN %s (not written)\n", config.ChecksumPath(path))
		return 0
	}

	sum, err := config.WriteChecksum(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to lock config: %v\n", err)
		return 1
	}
	fmt.Printf("HASH %s: %s\n", filepath.Base(path), sum)
	fmt.Printf("Successfully locked configuration: %s\n", config.ChecksumPath(path))
	return 0
}

func runConfigShow(args []string) int {
	var configPath string
	var jsonOut bool

	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration file or directory")
	fs.BoolVar(&jsonOut, "json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := loadConfigForTool(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}
	redactSecrets(cfg)

	if jsonOut {
		data, _ := json.MarshalIndent(cfg, "", "  ")
		fmt.Println(string(data))
		return 0
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Encode error: %v\n", err)
		return 1
	}
	fmt.Print(string(data))
	return 0
}

func redactSecrets(cfg *config.Config) {
	if cfg.API.Auth.APIKey != "" {
		cfg.API.Auth.APIKey = redacted
	}
	for i := range cfg.API.Auth.Tokens {
		cfg.API.Auth.Tokens[i].Token = redacted
	}
}
