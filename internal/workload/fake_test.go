package workload

import (
	"context"
	"errors"
	"time"

	"github.com/JulianoCristian/iotedge/internal/models"
)

type fakeCertificate struct {
	pem        []byte
	pemErr     error
	key        models.PrivateKey
	keyErr     error
	validTo    time.Time
	validToErr error
}

func (c *fakeCertificate) PEM() ([]byte, error) {
	return c.pem, c.pemErr
}

func (c *fakeCertificate) PrivateKey() (models.PrivateKey, error) {
	return c.key, c.keyErr
}

func (c *fakeCertificate) ValidTo() (time.Time, error) {
	return c.validTo, c.validToErr
}

func okCertificate(key models.PrivateKey) *fakeCertificate {
	return &fakeCertificate{
		pem:     []byte("-----BEGIN CERTIFICATE-----\n-----END CERTIFICATE-----\n"),
		key:     key,
		validTo: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// fakeStore records the calls it receives
type fakeStore struct {
	calls      []string
	onCreate   func(props *models.CertificateProperties) (models.Certificate, error)
	destroyErr error
}

func (s *fakeStore) CreateCertificate(ctx context.Context, props *models.CertificateProperties) (models.Certificate, error) {
	s.calls = append(s.calls, "create:"+props.Alias)
	if s.onCreate == nil {
		return nil, errors.New("no certificate configured")
	}
	return s.onCreate(props)
}

func (s *fakeStore) DestroyCertificate(ctx context.Context, alias string) error {
	s.calls = append(s.calls, "destroy:"+alias)
	return s.destroyErr
}
