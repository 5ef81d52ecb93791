package certutil

import (
	"crypto"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
)

const (
	pemBlockCert       = "CERTIFICATE"
	pemBlockPrivateKey = "PRIVATE KEY"
)

// Fingerprint calculates the SHA256 fingerprint of a certificate
func Fingerprint(cert *x509.Certificate) string {
	hash := sha256.Sum256(cert.Raw)
	b64hash := base64.RawStdEncoding.EncodeToString(hash[:])

	return fmt.Sprintf("SHA256:%s", b64hash)
}

// EncodeCertificate returns the PEM encoding of a certificate
func EncodeCertificate(cert *x509.Certificate) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: pemBlockCert, Bytes: cert.Raw})
}

// ParseCertificate parses the first PEM encoded certificate in b
func ParseCertificate(b []byte) (*x509.Certificate, error) {
	decoded, _ := pem.Decode(b)
	if decoded == nil {
		return nil, fmt.Errorf("no PEM data found")
	}
	if decoded.Type != pemBlockCert {
		return nil, fmt.Errorf("got unexpected block type %q for certificate", decoded.Type)
	}

	cert, err := x509.ParseCertificate(decoded.Bytes)
	if err != nil {
		return nil, fmt.Errorf("error parsing certificate: %w", err)
	}
	return cert, nil
}

// EncodePrivateKey returns the PKCS#8 PEM encoding of a private key
func EncodePrivateKey(key crypto.PrivateKey) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", fmt.Errorf("error marshaling private key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: pemBlockPrivateKey, Bytes: der})), nil
}

// ParsePrivateKey parses a PKCS#8 PEM encoded private key
func ParsePrivateKey(b []byte) (crypto.PrivateKey, error) {
	decoded, _ := pem.Decode(b)
	if decoded == nil {
		return nil, fmt.Errorf("no PEM data found")
	}
	if decoded.Type != pemBlockPrivateKey {
		return nil, fmt.Errorf("got unexpected block type %q for private key", decoded.Type)
	}

	key, err := x509.ParsePKCS8PrivateKey(decoded.Bytes)
	if err != nil {
		return nil, fmt.Errorf("error parsing private key: %w", err)
	}
	return key, nil
}
