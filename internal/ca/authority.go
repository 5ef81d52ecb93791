package ca

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/JulianoCristian/iotedge/pkg/certutil"
)

const caValidity = 10 * 365 * 24 * time.Hour

// Authority is the CA key and certificate that signs workload certificates
type Authority struct {
	Signer      crypto.Signer
	Certificate *x509.Certificate
	KeyType     string
}

// LoadOrGenerateAuthority loads an existing CA or generates a new one. The
// private key is kept in OpenSSH private key format, the certificate as PEM.
func LoadOrGenerateAuthority(privatePath, certPath, keyType, commonName string) (*Authority, error) {
	var signer crypto.Signer
	var err error

	if _, statErr := os.Stat(privatePath); statErr == nil {
		signer, err = loadSigner(privatePath)
	} else {
		signer, err = generateSigner(privatePath, keyType)
	}
	if err != nil {
		return nil, err
	}

	a := &Authority{
		Signer:  signer,
		KeyType: signerKeyType(signer),
	}

	if _, statErr := os.Stat(certPath); statErr == nil {
		a.Certificate, err = loadCertificate(certPath, signer)
	} else {
		a.Certificate, err = generateCertificate(certPath, signer, commonName)
	}
	if err != nil {
		return nil, err
	}

	return a, nil
}

// CertificatePEM returns the CA certificate in PEM format
func (a *Authority) CertificatePEM() []byte {
	return certutil.EncodeCertificate(a.Certificate)
}

// loadSigner loads the CA private key from file
func loadSigner(privatePath string) (crypto.Signer, error) {
	privateBytes, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}

	raw, err := ssh.ParseRawPrivateKey(privateBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	switch k := raw.(type) {
	case *ecdsa.PrivateKey:
		return k, nil
	case *rsa.PrivateKey:
		return k, nil
	case *ed25519.PrivateKey:
		return *k, nil
	case ed25519.PrivateKey:
		return k, nil
	default:
		return nil, fmt.Errorf("unsupported private key type %T", raw)
	}
}

// generateSigner generates a new CA private key and saves it
func generateSigner(privatePath, keyType string) (crypto.Signer, error) {
	var signer crypto.Signer

	switch keyType {
	case "ecdsa":
		priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate ecdsa key: %w", err)
		}
		signer = priv

	case "ed25519":
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate ed25519 key: %w", err)
		}
		signer = priv

	case "rsa":
		priv, err := rsa.GenerateKey(rand.Reader, 4096)
		if err != nil {
			return nil, fmt.Errorf("failed to generate RSA key: %w", err)
		}
		signer = priv

	default:
		return nil, fmt.Errorf("unsupported key type: %s", keyType)
	}

	if err := os.MkdirAll(filepath.Dir(privatePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for private key: %w", err)
	}

	block, err := ssh.MarshalPrivateKey(signer, "iotedge workload ca")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}

	// Write private key with restrictive permissions
	if err := os.WriteFile(privatePath, pem.EncodeToMemory(block), 0600); err != nil {
		return nil, fmt.Errorf("failed to write private key: %w", err)
	}

	return signer, nil
}

func loadCertificate(certPath string, signer crypto.Signer) (*x509.Certificate, error) {
	certBytes, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	cert, err := certutil.ParseCertificate(certBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CA certificate: %w", err)
	}

	match, err := samePublicKey(cert.PublicKey, signer.Public())
	if err != nil {
		return nil, err
	}
	if !match {
		return nil, fmt.Errorf("CA certificate %s does not match the CA private key", certPath)
	}

	return cert, nil
}

// generateCertificate creates a self-signed CA certificate and saves it
func generateCertificate(certPath string, signer crypto.Signer, commonName string) (*x509.Certificate, error) {
	serial, err := randomSerial()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             now,
		NotAfter:              now.Add(caValidity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, signer.Public(), signer)
	if err != nil {
		return nil, fmt.Errorf("failed to create CA certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CA certificate: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(certPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for CA certificate: %w", err)
	}
	if err := os.WriteFile(certPath, certutil.EncodeCertificate(cert), 0644); err != nil {
		return nil, fmt.Errorf("failed to write CA certificate: %w", err)
	}

	return cert, nil
}

func samePublicKey(a, b crypto.PublicKey) (bool, error) {
	aDER, err := x509.MarshalPKIXPublicKey(a)
	if err != nil {
		return false, fmt.Errorf("failed to marshal public key: %w", err)
	}
	bDER, err := x509.MarshalPKIXPublicKey(b)
	if err != nil {
		return false, fmt.Errorf("failed to marshal public key: %w", err)
	}
	return bytes.Equal(aDER, bDER), nil
}

func signerKeyType(signer crypto.Signer) string {
	switch signer.(type) {
	case *ecdsa.PrivateKey:
		return "ecdsa"
	case ed25519.PrivateKey:
		return "ed25519"
	case *rsa.PrivateKey:
		return "rsa"
	default:
		return "unknown"
	}
}
