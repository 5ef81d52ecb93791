package ca

import (
	"fmt"

	"github.com/JulianoCristian/iotedge/internal/config"
)

// Store backends
const (
	BackendSoftware = "software"
	BackendPKCS11   = "pkcs11"
	BackendVault    = "vault"
)

// NewStore creates the store backend selected by the configuration
func NewStore(cfg config.StoreConfig, a *Authority) (Store, error) {
	switch cfg.Backend {
	case BackendSoftware, "":
		return NewSoftwareStore(a), nil
	case BackendPKCS11:
		s, err := NewPKCS11Store(a, cfg.PKCS11.Module, cfg.PKCS11.Slot, cfg.PKCS11.Pin)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendVault:
		s, err := NewVaultStore(a, cfg.Vault.Mount, cfg.Vault.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Backend)
	}
}
