// Package config loads and validates the YAML configuration for the
// intercomd peripheral daemon, following the strict-decode pattern used
// throughout this codebase's provisioning tools.
package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type ValidationMode int

const (
	ValidationFull ValidationMode = iota
	ValidationEmulator
)

// Config is intercomd's full configuration surface.
type Config struct {
	Door     DoorConfig     `yaml:"door"`
	Variant  VariantConfig  `yaml:"variant"`
	Backend  BackendConfig  `yaml:"backend"`
	Limits   LimitsConfig   `yaml:"limits"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Runtime  RuntimeConfig  `yaml:"runtime"`
}

type DoorConfig struct {
	ID      string   `yaml:"id"`
	Aliases []string `yaml:"aliases"`
}

// VariantConfig selects one of EcdhGcm, DiversifiedCbc, or SymmetricDemo and
// points at the key material each one needs.
type VariantConfig struct {
	Kind              string `yaml:"kind"` // "ecdh_gcm" | "diversified_cbc" | "symmetric_demo"
	IntercomPrivFile  string `yaml:"intercom_priv_key_file"`
	SignerPubFile     string `yaml:"signer_pub_key_file"`
	MasterKeyFile     string `yaml:"master_key_file"`
}

type BackendConfig struct {
	Endpoint        string `yaml:"endpoint"`
	CFClientID      string `yaml:"cf_client_id"`
	CFClientSecret  string `yaml:"cf_client_secret"`
	CacheRefreshURL string `yaml:"cache_refresh_ws_url"`
}

type LimitsConfig struct {
	PerPeerAttempts  *int     `yaml:"per_peer_attempts"`
	PerPeerWindowSec *float64 `yaml:"per_peer_window_seconds"`
	GlobalAttempts   *int     `yaml:"global_attempts"`
	GlobalWindowSec  *float64 `yaml:"global_window_seconds"`
}

type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

type RuntimeConfig struct {
	AdapterIndex *int `yaml:"adapter_index"`
}

func Load(path string) (*Config, error) {
	return LoadWithMode(path, ValidationFull)
}

func LoadWithMode(path string, mode ValidationMode) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	cfg.resolvePaths(path)
	if err := cfg.ValidateWithMode(mode); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error { return c.ValidateWithMode(ValidationFull) }

func (c *Config) ValidateWithMode(mode ValidationMode) error {
	if err := c.validateCommon(); err != nil {
		return err
	}
	switch mode {
	case ValidationEmulator:
		return nil
	case ValidationFull:
		return c.validateFullMode()
	default:
		return fmt.Errorf("unsupported validation mode: %d", mode)
	}
}

func (c *Config) validateCommon() error {
	if strings.TrimSpace(c.Door.ID) == "" {
		return fmt.Errorf("config.door.id is required")
	}
	switch c.Variant.Kind {
	case "ecdh_gcm", "diversified_cbc", "symmetric_demo":
	case "":
		return fmt.Errorf("config.variant.kind is required")
	default:
		return fmt.Errorf("config.variant.kind must be one of ecdh_gcm, diversified_cbc, symmetric_demo, got %q", c.Variant.Kind)
	}
	return nil
}

func (c *Config) validateFullMode() error {
	switch c.Variant.Kind {
	case "ecdh_gcm":
		if err := validateReadableFile(c.Variant.IntercomPrivFile, "config.variant.intercom_priv_key_file"); err != nil {
			return err
		}
		if err := validateReadableFile(c.Variant.SignerPubFile, "config.variant.signer_pub_key_file"); err != nil {
			return err
		}
	case "diversified_cbc", "symmetric_demo":
		if err := validateReadableFile(c.Variant.MasterKeyFile, "config.variant.master_key_file"); err != nil {
			return err
		}
	}

	if strings.TrimSpace(c.Backend.Endpoint) == "" {
		return fmt.Errorf("config.backend.endpoint is required")
	}
	if u, err := url.Parse(c.Backend.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config.backend.endpoint must be an absolute URL")
	}

	if c.Limits.PerPeerAttempts == nil {
		return fmt.Errorf("config.limits.per_peer_attempts is required")
	}
	if c.Limits.GlobalAttempts == nil {
		return fmt.Errorf("config.limits.global_attempts is required")
	}

	return nil
}

func (c *Config) resolvePaths(configPath string) {
	dir := filepath.Dir(configPath)
	c.Variant.IntercomPrivFile = resolvePath(dir, c.Variant.IntercomPrivFile)
	c.Variant.SignerPubFile = resolvePath(dir, c.Variant.SignerPubFile)
	c.Variant.MasterKeyFile = resolvePath(dir, c.Variant.MasterKeyFile)
}

func resolvePath(baseDir, path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Clean(filepath.Join(baseDir, trimmed))
}

func validateReadableFile(path, field string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%s is required", field)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s must point to a file, got directory", field)
	}
	return nil
}
