package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a YAML file on top of the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadWithEnv loads configuration from a file and applies environment variable overrides
func LoadWithEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Apply environment variable overrides
	if listenAddr := os.Getenv("IOTEDGE_LISTEN_ADDR"); listenAddr != "" {
		cfg.Server.ListenAddr = listenAddr
	}

	if dbPath := os.Getenv("IOTEDGE_DB_PATH"); dbPath != "" {
		cfg.Database.Path = dbPath
	}

	if privateKey := os.Getenv("IOTEDGE_CA_PRIVATE_KEY"); privateKey != "" {
		cfg.CA.PrivateKeyPath = privateKey
	}

	if certificate := os.Getenv("IOTEDGE_CA_CERTIFICATE"); certificate != "" {
		cfg.CA.CertificatePath = certificate
	}

	if backend := os.Getenv("IOTEDGE_STORE_BACKEND"); backend != "" {
		cfg.Store.Backend = backend
	}

	if pin := os.Getenv("IOTEDGE_PKCS11_PIN"); pin != "" {
		cfg.Store.PKCS11.Pin = pin
	}

	// Validate again after env overrides
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration after env overrides: %w", err)
	}

	return cfg, nil
}
