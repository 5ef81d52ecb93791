package ca

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"fmt"
	"math/big"
	"sync"

	"github.com/JulianoCristian/iotedge/internal/models"
	"github.com/JulianoCristian/iotedge/pkg/certutil"
)

// SoftwareStore issues certificates with private keys generated in process
// and returned inline
type SoftwareStore struct {
	authority *Authority

	mu     sync.Mutex
	issued map[string]*big.Int
}

// NewSoftwareStore creates a new software store
func NewSoftwareStore(a *Authority) *SoftwareStore {
	return &SoftwareStore{
		authority: a,
		issued:    make(map[string]*big.Int),
	}
}

// CreateCertificate implements Store
func (s *SoftwareStore) CreateCertificate(ctx context.Context, props *models.CertificateProperties) (models.Certificate, error) {
	cert, key, err := issueWithLocalKey(ctx, s.authority, props)
	if err != nil {
		return nil, err
	}

	keyPEM, err := certutil.EncodePrivateKey(key)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.issued[props.Alias] = cert.SerialNumber
	s.mu.Unlock()

	return &issuedCertificate{cert: cert, key: models.KeyBytes(keyPEM)}, nil
}

// DestroyCertificate implements Store
func (s *SoftwareStore) DestroyCertificate(ctx context.Context, alias string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.issued[alias]; !ok {
		return ErrCertificateNotFound
	}
	delete(s.issued, alias)
	return nil
}

// Serial returns the serial number of the certificate currently held under alias
func (s *SoftwareStore) Serial(alias string) (*big.Int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	serial, ok := s.issued[alias]
	return serial, ok
}

// issueWithLocalKey generates a P-256 key pair and has the authority sign it
func issueWithLocalKey(ctx context.Context, a *Authority, props *models.CertificateProperties) (*x509.Certificate, *ecdsa.PrivateKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	validity, err := leafValidity(props)
	if err != nil {
		return nil, nil, err
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate key for %s: %w", props.Alias, err)
	}

	cert, err := a.SignCertificate(&SignRequest{
		CommonName:      props.CommonName,
		CertificateType: props.CertificateType,
		Validity:        validity,
		PublicKey:       &key.PublicKey,
	})
	if err != nil {
		return nil, nil, err
	}

	return cert, key, nil
}
