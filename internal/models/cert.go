package models

import "time"

// CertificateType identifies the role a certificate is issued for
type CertificateType int

const (
	CertificateTypeServer CertificateType = iota
)

// String returns the role suffix used when deriving aliases
func (t CertificateType) String() string {
	switch t {
	case CertificateTypeServer:
		return "server"
	default:
		return "unknown"
	}
}

// CertificateProperties holds validated input for a certificate store
type CertificateProperties struct {
	ValidityInSecs  uint64
	CommonName      string
	CertificateType CertificateType
	Alias           string
}

// PrivateKeyType tags the private key variant returned by a store
type PrivateKeyType string

const (
	PrivateKeyTypeKey PrivateKeyType = "key"
	PrivateKeyTypeRef PrivateKeyType = "ref"
)

// PrivateKey is either inline PEM bytes or a reference to a key held elsewhere
type PrivateKey struct {
	Type  PrivateKeyType
	Bytes string
	Ref   string
}

// KeyBytes returns an inline PEM private key
func KeyBytes(pem string) PrivateKey {
	return PrivateKey{Type: PrivateKeyTypeKey, Bytes: pem}
}

// KeyRef returns a reference to an externally held private key
func KeyRef(ref string) PrivateKey {
	return PrivateKey{Type: PrivateKeyTypeRef, Ref: ref}
}

// Certificate is the result of a certificate store create call
type Certificate interface {
	PEM() ([]byte, error)
	PrivateKey() (PrivateKey, error)
	ValidTo() (time.Time, error)
}
