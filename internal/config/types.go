package config

import "time"

// Config represents the complete synapse-gw configuration.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	API       APIConfig       `yaml:"api"`
	Worker    WorkerConfig    `yaml:"worker"`
	Admission AdmissionConfig `yaml:"admission"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Storage   StorageConfig   `yaml:"storage"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// SourcePath is the absolute path the config was loaded from.
	SourcePath string `yaml:"-"`
	// Fingerprint is the BLAKE3 hash of the config file as loaded.
	Fingerprint string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	// LogFile switches logging from stdout to a rotated file.
	LogFile       string `yaml:"log_file,omitempty"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb,omitempty"`
	LogMaxBackups int    `yaml:"log_max_backups,omitempty"`
	LogMaxAgeDays int    `yaml:"log_max_age_days,omitempty"`
	LockPath      string `yaml:"lock_path"`
}

// APIConfig defines the gateway HTTP server settings.
type APIConfig struct {
	Listen       string        `yaml:"listen"`
	Auth         APIAuthConfig `yaml:"auth"`
	CORSOrigins  []string      `yaml:"cors_origins,omitempty"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
}

// APIAuthConfig defines API authentication settings.
type APIAuthConfig struct {
	// APIKey is the legacy single bearer token (admin/full access).
	// Prefer Tokens for scoped access.
	APIKey string     `yaml:"api_key"`
	Tokens []APIToken `yaml:"tokens,omitempty"`
}

// APIToken defines a bearer token, the caller identity it authenticates as,
// and its scopes.
type APIToken struct {
	Token  string   `yaml:"token"`
	Caller string   `yaml:"caller"`
	Scopes []string `yaml:"scopes"`
}

// WorkerConfig defines where generation requests are sent.
type WorkerConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// AdmissionConfig defines the blacklist and priority inputs.
type AdmissionConfig struct {
	// AllowUnknown admits callers missing from Callers at DefaultTrust.
	AllowUnknown bool               `yaml:"allow_unknown"`
	DefaultTrust float64            `yaml:"default_trust"`
	MinTrust     float64            `yaml:"min_trust"`
	Deny         []string           `yaml:"deny,omitempty"`
	Callers      map[string]float64 `yaml:"callers,omitempty"`
}

// SchedulerConfig bounds concurrent dispatch.
type SchedulerConfig struct {
	MaxConcurrent int `yaml:"max_concurrent"`
}

// StorageConfig defines the query history database.
type StorageConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MetricsConfig defines the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// TelemetryConfig defines tracing.
type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"` // stdout | none
	Pretty      bool    `yaml:"pretty,omitempty"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// DefaultWorkerTimeout bounds a single worker call when the config omits one.
const DefaultWorkerTimeout = 15 * time.Second

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "synapse-gw",
			LogLevel:  "info",
			LogFormat: "json",
			LockPath:  "./data/synapse-gw.lock",
		},
		API: APIConfig{
			Listen:       "127.0.0.1:8080",
			MaxBodyBytes: 32 << 20,
		},
		Worker: WorkerConfig{
			BaseURL: "http://127.0.0.1:6919",
			Timeout: DefaultWorkerTimeout,
		},
		Admission: AdmissionConfig{
			AllowUnknown: true,
			DefaultTrust: 1.0,
			MinTrust:     0,
		},
		Scheduler: SchedulerConfig{
			MaxConcurrent: 16,
		},
		Storage: StorageConfig{
			Enabled: true,
			Path:    "./data/history.db",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Path:      "/metrics",
			Namespace: "synapse_gw",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			Exporter:    "none",
			SampleRatio: 1.0,
		},
	}
}
