package ca

import (
	"context"
	"errors"
	"fmt"
	"strings"

	vault "github.com/hashicorp/vault/api"

	"github.com/JulianoCristian/iotedge/internal/models"
	"github.com/JulianoCristian/iotedge/pkg/certutil"
)

const (
	VaultKVKeyCert = "tls.crt"
	VaultKVKeyKey  = "tls.key"
)

// VaultStore issues certificates like SoftwareStore but keeps the private
// key in a Vault KV v2 mount and hands out a reference to it
type VaultStore struct {
	authority *Authority
	kvMount   string
	certsPath string

	client *vault.Client
}

// NewVaultStore creates a Vault store using the standard VAULT_* environment
// for address and token
func NewVaultStore(a *Authority, kvMount, certsPath string) (*VaultStore, error) {
	client, err := vault.NewClient(vault.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if client.Token() == "" {
		return nil, errors.New("no Vault token configured")
	}
	return NewVaultStoreWithClient(a, client, kvMount, certsPath), nil
}

// NewVaultStoreWithClient creates a Vault store on an existing client
func NewVaultStoreWithClient(a *Authority, client *vault.Client, kvMount, certsPath string) *VaultStore {
	return &VaultStore{
		authority: a,
		kvMount:   kvMount,
		certsPath: cleanPath(certsPath),
		client:    client,
	}
}

// CreateCertificate implements Store
func (s *VaultStore) CreateCertificate(ctx context.Context, props *models.CertificateProperties) (models.Certificate, error) {
	cert, key, err := issueWithLocalKey(ctx, s.authority, props)
	if err != nil {
		return nil, err
	}

	keyString, err := certutil.EncodePrivateKey(key)
	if err != nil {
		return nil, err
	}

	data := map[string]interface{}{
		VaultKVKeyCert: string(certutil.EncodeCertificate(cert)),
		VaultKVKeyKey:  keyString,
	}
	if _, err := s.kv().Put(ctx, s.certPath(props.Alias), data); err != nil {
		return nil, fmt.Errorf("failed to write key for %s: %w", props.Alias, err)
	}

	return &issuedCertificate{cert: cert, key: models.KeyRef(s.keyRef(props.Alias))}, nil
}

// DestroyCertificate implements Store
func (s *VaultStore) DestroyCertificate(ctx context.Context, alias string) error {
	_, err := s.kv().Get(ctx, s.certPath(alias))
	if errors.Is(err, vault.ErrSecretNotFound) {
		return ErrCertificateNotFound
	} else if err != nil {
		return err
	}

	return s.kv().DeleteMetadata(ctx, s.certPath(alias))
}

func (s *VaultStore) certPath(alias string) string {
	return s.certsPath + "/" + alias
}

func (s *VaultStore) keyRef(alias string) string {
	return "vault:" + s.kvMount + "/" + s.certPath(alias)
}

func (s *VaultStore) kv() *vault.KVv2 {
	return s.client.KVv2(s.kvMount)
}

func cleanPath(p string) string {
	return strings.TrimSuffix(p, "/")
}
