// Package config loads and validates the daemon's JSON configuration
// document: one section per subsystem (service, backend collectors, the
// metric store engine, the query frontend, alerting), mirroring the
// teacher's single-document, discriminated-union style config.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config is the top-level configuration structure read from disk.
type Config struct {
	Service   ServiceConfig   `json:"service"`
	Backends  BackendsConfig  `json:"backends"`
	Metrics   MetricsConfig   `json:"metrics"`
	Frontend  FrontendConfig  `json:"frontend"`
	Alerting  AlertingConfig  `json:"alerting"`
}

// ServiceConfig is the daemon-wide section: process name, a port number
// (validated to lie in 1-65535; the frontend listens on
// FrontendConfig.ListenAddr, not on this port), and log level.
type ServiceConfig struct {
	Name     string `json:"name"`
	Port     int    `json:"port"`
	LogLevel string `json:"logLevel"`
}

// BackendsConfig configures the pluggable collectors that call the store's
// update API (see backend/).
type BackendsConfig struct {
	OTLP  *OTLPBackendConfig  `json:"otlp,omitempty"`
	Mux   *MuxBackendConfig   `json:"mux,omitempty"`
}

// OTLPBackendConfig configures the OTLP-derived backend: endpoints that
// collect host/service/metric update observations out of resource
// attributes on incoming metrics.
type OTLPBackendConfig struct {
	HTTPEndpoint string `json:"httpEndpoint"`
	GRPCEndpoint string `json:"grpcEndpoint"`
}

// MuxBackendConfig configures the gorilla/mux-routed HTTP backend that
// accepts update calls directly (host/service/metric/attribute).
type MuxBackendConfig struct {
	ListenAddr string `json:"listenAddr"`
}

// MetricsConfig configures the optional metric-store engine a Metric's
// descriptor points at. The object store itself never reads this; only the
// metricstore package does.
type MetricsConfig struct {
	Engine   *EngineConfig `json:"engine,omitempty"`
	DataPath string        `json:"dataPath"`
}

// EngineConfig is a discriminated union keyed by Type, unmarshaled into
// the concrete *Config for whichever metric-store engine is selected. This
// is the teacher's own trick (storage.EngineConfig in the original),
// retargeted from telemetry storage engines to metric-store engines.
type EngineConfig struct {
	Type string `json:"type"`

	LocalBlockConfig *LocalBlockConfig `json:"-"`
	BadgerConfig     *BadgerConfig     `json:"-"`
	PrometheusConfig *PrometheusConfig `json:"-"`
	FrostDBConfig    *FrostDBConfig    `json:"-"`
}

func (ec *EngineConfig) UnmarshalJSON(data []byte) error {
	var typed struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &typed); err != nil {
		return err
	}
	ec.Type = typed.Type

	switch ec.Type {
	case "localblock":
		var conf LocalBlockConfig
		if err := json.Unmarshal(data, &conf); err != nil {
			return err
		}
		ec.LocalBlockConfig = &conf
	case "badger":
		var conf BadgerConfig
		if err := json.Unmarshal(data, &conf); err != nil {
			return err
		}
		ec.BadgerConfig = &conf
	case "prometheus":
		var conf PrometheusConfig
		if err := json.Unmarshal(data, &conf); err != nil {
			return err
		}
		ec.PrometheusConfig = &conf
	case "frostdb":
		var conf FrostDBConfig
		if err := json.Unmarshal(data, &conf); err != nil {
			return err
		}
		ec.FrostDBConfig = &conf
	default:
		// unknown engine types carry no further configuration
	}
	return nil
}

func (ec *EngineConfig) MarshalJSON() ([]byte, error) {
	m := map[string]interface{}{"type": ec.Type}

	var additional map[string]interface{}
	var err error
	switch ec.Type {
	case "localblock":
		additional, err = toFields(ec.LocalBlockConfig)
	case "badger":
		additional, err = toFields(ec.BadgerConfig)
	case "prometheus":
		additional, err = toFields(ec.PrometheusConfig)
	case "frostdb":
		additional, err = toFields(ec.FrostDBConfig)
	}
	if err != nil {
		return nil, err
	}
	for k, v := range additional {
		if k != "type" {
			m[k] = v
		}
	}
	return json.Marshal(m)
}

func toFields(v interface{}) (map[string]interface{}, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// LocalBlockConfig configures the in-process block-based metric store
// engine (metricstore's adaptation of storage/tsdb.go).
type LocalBlockConfig struct {
	BlockSize       string `json:"blockSize,omitempty"`
	Compaction      bool   `json:"compaction,omitempty"`
	RetentionPeriod string `json:"retentionPeriod,omitempty"`
}

// BadgerConfig configures the Badger-backed metric store engine.
type BadgerConfig struct {
	MaxFileSizeMB int  `json:"maxFileSizeMB,omitempty"`
	Indexing      bool `json:"indexing,omitempty"`
}

// PrometheusConfig configures the Prometheus TSDB-backed metric store
// engine.
type PrometheusConfig struct {
	RetentionPeriod string `json:"retentionPeriod,omitempty"`
	BlockDuration   string `json:"blockDuration,omitempty"`
}

// FrostDBConfig configures the FrostDB-backed metric store engine.
type FrostDBConfig struct {
	BatchSize       int    `json:"batchSize,omitempty"`
	FlushInterval   string `json:"flushInterval,omitempty"`
	ActiveMemoryMB  int    `json:"activeMemoryMB,omitempty"`
	WALEnabled      bool   `json:"walEnabled,omitempty"`
	RetentionPeriod string `json:"retentionPeriod,omitempty"`
	Indexing        bool   `json:"indexing,omitempty"`
}

// FrontendConfig configures the query-serving HTTP+websocket frontend.
type FrontendConfig struct {
	ListenAddr string `json:"listenAddr"`
}

// AlertingConfig configures the matcher-based rule evaluator and its email
// transport.
type AlertingConfig struct {
	Email EmailConfig `json:"email"`
	Rules []AlertRule `json:"rules"`
}

// EmailConfig is the net/smtp transport configuration for alert
// notifications.
type EmailConfig struct {
	Enabled     bool     `json:"enabled"`
	SMTPServer  string   `json:"smtpServer"`
	SMTPPort    int      `json:"smtpPort"`
	Username    string   `json:"username"`
	Password    string   `json:"password"`
	FromAddress string   `json:"fromAddress"`
	ToAddresses []string `json:"toAddresses"`
}

// AlertRule is a named matcher expression evaluated against the store on a
// schedule: "match" is a filter string in the syntax query.ParseFilter
// reads.
type AlertRule struct {
	Name     string `json:"name"`
	Match    string `json:"match"`
	Interval string `json:"interval"`
	Severity string `json:"severity"`
}

// LoadConfig reads and validates the configuration file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Service.Name == "" {
		return fmt.Errorf("service name is required")
	}
	if cfg.Service.Port <= 0 || cfg.Service.Port > 65535 {
		return fmt.Errorf("invalid service port: %d", cfg.Service.Port)
	}

	if cfg.Metrics.Engine != nil {
		var retention string
		switch cfg.Metrics.Engine.Type {
		case "localblock":
			if cfg.Metrics.Engine.LocalBlockConfig != nil {
				retention = cfg.Metrics.Engine.LocalBlockConfig.RetentionPeriod
			}
		case "prometheus":
			if cfg.Metrics.Engine.PrometheusConfig != nil {
				retention = cfg.Metrics.Engine.PrometheusConfig.RetentionPeriod
			}
		case "frostdb":
			if cfg.Metrics.Engine.FrostDBConfig != nil {
				retention = cfg.Metrics.Engine.FrostDBConfig.RetentionPeriod
			}
		}
		if retention != "" {
			if _, err := parseDuration(retention); err != nil {
				return fmt.Errorf("invalid metrics retention period: %w", err)
			}
		}
	}

	if cfg.Backends.OTLP == nil && cfg.Backends.Mux == nil {
		return fmt.Errorf("at least one backend collector must be configured")
	}

	if cfg.Alerting.Email.Enabled {
		if cfg.Alerting.Email.SMTPServer == "" {
			return fmt.Errorf("SMTP server is required when email alerting is enabled")
		}
		if cfg.Alerting.Email.SMTPPort <= 0 || cfg.Alerting.Email.SMTPPort > 65535 {
			return fmt.Errorf("invalid SMTP port: %d", cfg.Alerting.Email.SMTPPort)
		}
		if cfg.Alerting.Email.FromAddress == "" {
			return fmt.Errorf("from address is required when email alerting is enabled")
		}
		if len(cfg.Alerting.Email.ToAddresses) == 0 {
			return fmt.Errorf("at least one recipient address is required when email alerting is enabled")
		}
	}

	for _, rule := range cfg.Alerting.Rules {
		if rule.Interval == "" {
			continue
		}
		if _, err := parseDuration(rule.Interval); err != nil {
			return fmt.Errorf("invalid interval for alert rule %q: %w", rule.Name, err)
		}
	}

	return nil
}

// parseDuration parses a duration string, extending time.ParseDuration
// with a "30d"-style day suffix the way the teacher's config does.
func parseDuration(s string) (time.Duration, error) {
	if len(s) > 0 && s[len(s)-1] == 'd' {
		days, err := parseInt(s[:len(s)-1])
		if err != nil {
			return 0, err
		}
		return time.Hour * 24 * time.Duration(days), nil
	}
	return time.ParseDuration(s)
}

func parseInt(s string) (int, error) {
	var result int
	_, err := fmt.Sscanf(s, "%d", &result)
	return result, err
}
