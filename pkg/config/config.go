// Package config loads the gateway's YAML configuration file: broker
// connection details, TLS material, and the fleet of robot/PLC devices
// the gateway is responsible for.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/twinsync/gateway/pkg/util"
)

// DefaultConfigPath is used when no override is given on the command line.
const DefaultConfigPath = "/etc/twinsync/gateway.yaml"

const (
	// DefaultPublishPeriodMs is the egress pump tick interval.
	DefaultPublishPeriodMs = 30

	// DefaultAuditMaxSizeMB is the default maximum audit log size in megabytes.
	DefaultAuditMaxSizeMB = 10

	// DefaultAuditMaxBackups is the default maximum number of rotated audit log files.
	DefaultAuditMaxBackups = 10

	// MinPeriodMs is the floor clamp applied to any configured polling/pacing period.
	MinPeriodMs = 50

	// DefaultTimeoutMs is used when a device doesn't specify its own timeout.
	DefaultTimeoutMs = 200
)

// BrokerConfig describes the MQTT broker connection.
type BrokerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	ClientCertPath string `yaml:"clientCertPath"`
	ClientKeyPath  string `yaml:"clientKeyPath"`
	CACertPath     string `yaml:"caCertPath,omitempty"`
}

// RobotConfig describes one robot device and its line-protocol transport.
type RobotConfig struct {
	Name      string `yaml:"name"`
	IP        string `yaml:"ip"`
	Port      int    `yaml:"port"`
	TimeoutMs int    `yaml:"timeoutMs,omitempty"`
	PeriodMs  int    `yaml:"periodMs,omitempty"`
}

// PlcConfig describes one PLC device and its tag-read transport.
type PlcConfig struct {
	Name             string              `yaml:"name"`
	IP               string              `yaml:"ip"`
	Port             int                 `yaml:"port"`
	Slot             int                 `yaml:"slot,omitempty"`
	PlcType          string              `yaml:"plcType"`
	Path             string              `yaml:"path,omitempty"`
	DefaultPeriodMs  int                 `yaml:"defaultPeriodMs,omitempty"`
	TimeoutMs        int                 `yaml:"timeoutMs,omitempty"`
	MaxItems         int                 `yaml:"maxItems,omitempty"`
	MaxArrayElements int                 `yaml:"maxArrayElements,omitempty"`
	MaxStructFields  int                 `yaml:"maxStructFields,omitempty"`
	UDTMembers       map[string][]string `yaml:"udtMembers,omitempty"`
}

// GatewayConfig is the root of the gateway's YAML configuration file.
type GatewayConfig struct {
	TenantID        string        `yaml:"tenantId"`
	GatewayID       string        `yaml:"gatewayId"`
	Broker          BrokerConfig  `yaml:"broker"`
	PublishPeriodMs int           `yaml:"publishPeriodMs,omitempty"`
	LogLevel        string        `yaml:"logLevel,omitempty"`
	AuditLogPath    string        `yaml:"auditLogPath,omitempty"`
	AuditMaxSizeMB  int           `yaml:"auditMaxSizeMb,omitempty"`
	AuditMaxBackups int           `yaml:"auditMaxBackups,omitempty"`
	Robots          []RobotConfig `yaml:"robots,omitempty"`
	Plcs            []PlcConfig   `yaml:"plcs,omitempty"`
}

// Load reads the gateway config from the default path.
func Load() (*GatewayConfig, error) {
	return LoadFrom(DefaultConfigPath)
}

// LoadFrom reads and validates the gateway config from a specific path.
func LoadFrom(path string) (*GatewayConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &GatewayConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *GatewayConfig) {
	if cfg.PublishPeriodMs <= 0 {
		cfg.PublishPeriodMs = DefaultPublishPeriodMs
	}
	if cfg.AuditMaxSizeMB <= 0 {
		cfg.AuditMaxSizeMB = DefaultAuditMaxSizeMB
	}
	if cfg.AuditMaxBackups <= 0 {
		cfg.AuditMaxBackups = DefaultAuditMaxBackups
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	for i := range cfg.Robots {
		r := &cfg.Robots[i]
		if r.TimeoutMs <= 0 {
			r.TimeoutMs = DefaultTimeoutMs
		}
		if r.PeriodMs < MinPeriodMs {
			r.PeriodMs = MinPeriodMs
		}
	}
	for i := range cfg.Plcs {
		p := &cfg.Plcs[i]
		if p.TimeoutMs <= 0 {
			p.TimeoutMs = DefaultTimeoutMs
		}
		if p.DefaultPeriodMs < MinPeriodMs {
			p.DefaultPeriodMs = MinPeriodMs
		}
	}
}

// Validate checks the config for the fields required to bring the gateway up.
func (c *GatewayConfig) Validate() error {
	v := &util.ValidationBuilder{}
	v.Add(c.TenantID != "", "tenantId is required")
	v.Add(c.GatewayID != "", "gatewayId is required")
	v.Add(c.Broker.Host != "", "broker.host is required")
	v.Add(c.Broker.Port != 0, "broker.port is required")
	v.Add(c.Broker.ClientCertPath != "", "broker.clientCertPath is required")
	v.Add(c.Broker.ClientKeyPath != "", "broker.clientKeyPath is required")

	seen := make(map[string]bool)
	for _, r := range c.Robots {
		v.Add(r.Name != "", "robot name is required")
		v.Add(!seen[r.Name], "duplicate device name: "+r.Name)
		seen[r.Name] = true
		v.Add(r.IP != "", "robot "+r.Name+": ip is required")
	}
	for _, p := range c.Plcs {
		v.Add(p.Name != "", "plc name is required")
		v.Add(!seen[p.Name], "duplicate device name: "+p.Name)
		seen[p.Name] = true
		v.Add(p.IP != "", "plc "+p.Name+": ip is required")
	}

	return v.Build()
}

// GetAuditLogPath returns the audit log path, falling back to a
// gatewayId-scoped default under /var/log/twinsync when unset.
func (c *GatewayConfig) GetAuditLogPath() string {
	if c.AuditLogPath != "" {
		return c.AuditLogPath
	}
	return filepath.Join("/var/log/twinsync", c.GatewayID, "audit.log")
}
