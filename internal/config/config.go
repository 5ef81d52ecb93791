package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	CA       CAConfig       `yaml:"ca"`
	Policy   PolicyConfig   `yaml:"policy"`
	Store    StoreConfig    `yaml:"store"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig contains server configuration
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	LogLabel   string `yaml:"log_label"`
}

// DatabaseConfig contains audit database configuration. An empty path
// disables auditing.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// CAConfig contains CA key configuration
type CAConfig struct {
	PrivateKeyPath  string `yaml:"private_key_path"`
	CertificatePath string `yaml:"certificate_path"`
	KeyType         string `yaml:"key_type"`
	CommonName      string `yaml:"common_name"`
}

// PolicyConfig contains certificate issuance policy
type PolicyConfig struct {
	MaxServerValidity string `yaml:"max_server_validity"`
}

// StoreConfig selects and configures the certificate store backend
type StoreConfig struct {
	Backend string       `yaml:"backend"`
	PKCS11  PKCS11Config `yaml:"pkcs11"`
	Vault   VaultConfig  `yaml:"vault"`
}

// PKCS11Config contains HSM configuration
type PKCS11Config struct {
	Module string `yaml:"module"`
	Slot   string `yaml:"slot"`
	Pin    string `yaml:"pin"`
}

// VaultConfig contains Vault KV v2 configuration
type VaultConfig struct {
	Mount string `yaml:"mount"`
	Path  string `yaml:"path"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used for unset fields
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: "unix:///var/run/iotedge/workload.sock",
			LogLabel:   "work",
		},
		CA: CAConfig{
			PrivateKeyPath:  "/var/lib/iotedge/ca/ca.key",
			CertificatePath: "/var/lib/iotedge/ca/ca.pem",
			KeyType:         "ecdsa",
			CommonName:      "iotedge workload ca",
		},
		Policy: PolicyConfig{
			MaxServerValidity: "90d",
		},
		Store: StoreConfig{
			Backend: "software",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Server validation
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}
	if c.Server.LogLabel == "" {
		return fmt.Errorf("server.log_label is required")
	}

	// CA validation
	if c.CA.PrivateKeyPath == "" {
		return fmt.Errorf("ca.private_key_path is required")
	}
	if c.CA.CertificatePath == "" {
		return fmt.Errorf("ca.certificate_path is required")
	}
	if c.CA.KeyType != "ecdsa" && c.CA.KeyType != "ed25519" && c.CA.KeyType != "rsa" {
		return fmt.Errorf("ca.key_type must be 'ecdsa', 'ed25519' or 'rsa'")
	}
	if strings.TrimSpace(c.CA.CommonName) == "" {
		return fmt.Errorf("ca.common_name is required")
	}

	// Policy validation
	d, err := ParseDuration(c.Policy.MaxServerValidity)
	if err != nil {
		return fmt.Errorf("policy.max_server_validity is invalid: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("policy.max_server_validity must be positive")
	}

	// Store validation
	switch c.Store.Backend {
	case "software":
	case "pkcs11":
		if c.Store.PKCS11.Module == "" || c.Store.PKCS11.Slot == "" {
			return fmt.Errorf("store.pkcs11.module and store.pkcs11.slot are required")
		}
	case "vault":
		if c.Store.Vault.Mount == "" || c.Store.Vault.Path == "" {
			return fmt.Errorf("store.vault.mount and store.vault.path are required")
		}
	default:
		return fmt.Errorf("store.backend must be one of: software, pkcs11, vault")
	}

	// Logging validation
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("logging.format must be 'json' or 'text'")
	}

	return nil
}

// GetMaxServerValidityDuration returns the max server certificate validity as time.Duration
func (c *Config) GetMaxServerValidityDuration() time.Duration {
	d, _ := ParseDuration(c.Policy.MaxServerValidity)
	return d
}

// ParseDuration parses duration with support for days (e.g., "90d")
func ParseDuration(s string) (time.Duration, error) {
	// Handle "d" suffix for days
	if len(s) > 1 && s[len(s)-1] == 'd' {
		days := s[:len(s)-1]
		var d int
		if _, err := fmt.Sscanf(days, "%d", &d); err != nil {
			return 0, err
		}
		return time.Duration(d) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}
