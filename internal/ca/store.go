package ca

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/JulianoCristian/iotedge/internal/models"
	"github.com/JulianoCristian/iotedge/pkg/certutil"
)

var (
	ErrCertificateNotFound = errors.New("certificate not found")
	ErrStoreClosed         = errors.New("store closed")
)

// Store creates and destroys workload certificates addressed by alias.
// Implementations must tolerate concurrent calls with distinct aliases.
type Store interface {
	CreateCertificate(ctx context.Context, props *models.CertificateProperties) (models.Certificate, error)
	DestroyCertificate(ctx context.Context, alias string) error
}

// issuedCertificate is the models.Certificate returned by every store in
// this package
type issuedCertificate struct {
	cert *x509.Certificate
	key  models.PrivateKey
}

func (c *issuedCertificate) PEM() ([]byte, error) {
	if c.cert == nil || len(c.cert.Raw) == 0 {
		return nil, errors.New("certificate has no DER encoding")
	}
	return certutil.EncodeCertificate(c.cert), nil
}

func (c *issuedCertificate) PrivateKey() (models.PrivateKey, error) {
	return c.key, nil
}

func (c *issuedCertificate) ValidTo() (time.Time, error) {
	if c.cert == nil {
		return time.Time{}, errors.New("certificate is missing")
	}
	if !c.cert.NotAfter.After(c.cert.NotBefore) {
		return time.Time{}, fmt.Errorf("degenerate validity window [%s, %s]", c.cert.NotBefore, c.cert.NotAfter)
	}
	return c.cert.NotAfter, nil
}
