package ca

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/JulianoCristian/iotedge/internal/models"
)

func TestKeyURI(t *testing.T) {
	if got := KeyURI("beeblebroxIserver"); got != "pkcs11:object=beeblebroxIserver" {
		t.Errorf("got %q", got)
	}
}

func TestNewPKCS11StoreMissingModule(t *testing.T) {
	if _, err := NewPKCS11Store(nil, "/nonexistent/libpkcs11.so", "0", "1234"); err == nil {
		t.Errorf("expected an error")
	}
}

// TestPKCS11Store runs against a real token, e.g. SoftHSM:
//
//	PKCS11_MODULE=/usr/lib/softhsm/libsofthsm2.so PKCS11_SLOT=0 PKCS11_PIN=1234 go test ./internal/ca
func TestPKCS11Store(t *testing.T) {
	module := os.Getenv("PKCS11_MODULE")
	if module == "" {
		t.Skip("PKCS11_MODULE not set")
	}

	s, err := NewPKCS11Store(newTestAuthority(t), module, os.Getenv("PKCS11_SLOT"), os.Getenv("PKCS11_PIN"))
	if err != nil {
		t.Fatalf("error opening store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	alias := "testpkcs11server"

	if err := s.DestroyCertificate(ctx, alias); err != nil && !errors.Is(err, ErrCertificateNotFound) {
		t.Fatalf("error clearing alias: %v", err)
	}

	cert, err := s.CreateCertificate(ctx, serverProps(alias, 3600))
	if err != nil {
		t.Fatalf("error creating certificate: %v", err)
	}
	key, err := cert.PrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	if key.Type != models.PrivateKeyTypeRef || key.Ref != KeyURI(alias) {
		t.Errorf("got key %+v", key)
	}

	if err := s.DestroyCertificate(ctx, alias); err != nil {
		t.Errorf("error destroying certificate: %v", err)
	}
	if err := s.DestroyCertificate(ctx, alias); !errors.Is(err, ErrCertificateNotFound) {
		t.Errorf("got %v, wanted ErrCertificateNotFound", err)
	}

	unsigned := serverProps(alias, 3600)
	unsigned.CertificateType = models.CertificateType(42)
	if _, err := s.CreateCertificate(ctx, unsigned); err == nil {
		t.Fatalf("expected signing to fail for certificate type 42")
	}
	if err := s.DestroyCertificate(ctx, alias); !errors.Is(err, ErrCertificateNotFound) {
		t.Errorf("got %v after failed signing, wanted ErrCertificateNotFound", err)
	}
}
