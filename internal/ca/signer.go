package ca

import (
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/JulianoCristian/iotedge/internal/models"
)

// SignRequest represents a request to sign a workload certificate
type SignRequest struct {
	CommonName      string
	CertificateType models.CertificateType
	Validity        time.Duration
	PublicKey       crypto.PublicKey
}

// SignCertificate issues a certificate for the request's public key. The
// validity never extends past the CA certificate's own expiry.
func (a *Authority) SignCertificate(req *SignRequest) (*x509.Certificate, error) {
	if req.CertificateType != models.CertificateTypeServer {
		return nil, fmt.Errorf("unsupported certificate type: %s", req.CertificateType)
	}

	serial, err := randomSerial()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	notAfter := now.Add(req.Validity)
	if notAfter.After(a.Certificate.NotAfter) {
		notAfter = a.Certificate.NotAfter
	}

	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: req.CommonName},
		DNSNames:              []string{req.CommonName},
		NotBefore:             now,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  false,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, a.Certificate, req.PublicKey, a.Signer)
	if err != nil {
		return nil, fmt.Errorf("failed to sign certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signed certificate: %w", err)
	}

	return cert, nil
}

func randomSerial() (*big.Int, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}
	return serial, nil
}

// leafValidity converts the requested validity, rejecting values that overflow time.Duration
func leafValidity(props *models.CertificateProperties) (time.Duration, error) {
	if props.ValidityInSecs > uint64(math.MaxInt64/int64(time.Second)) {
		return 0, errors.New("validity is too long")
	}
	return time.Duration(props.ValidityInSecs) * time.Second, nil
}
