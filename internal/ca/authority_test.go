package ca

import (
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/JulianoCristian/iotedge/internal/models"
)

func newTestAuthority(t *testing.T) *Authority {
	t.Helper()
	dir := t.TempDir()
	a, err := LoadOrGenerateAuthority(filepath.Join(dir, "ca.key"), filepath.Join(dir, "ca.pem"), "ecdsa", "test ca")
	if err != nil {
		t.Fatalf("error creating authority: %v", err)
	}
	return a
}

func TestLoadOrGenerateAuthority(t *testing.T) {
	for _, keyType := range []string{"ecdsa", "ed25519"} {
		t.Run(keyType, func(t *testing.T) {
			dir := t.TempDir()
			keyPath := filepath.Join(dir, "nested", "ca.key")
			certPath := filepath.Join(dir, "nested", "ca.pem")

			a, err := LoadOrGenerateAuthority(keyPath, certPath, keyType, "test ca")
			if err != nil {
				t.Fatalf("error generating authority: %v", err)
			}
			if a.KeyType != keyType {
				t.Errorf("got key type %q, wanted %q", a.KeyType, keyType)
			}
			if !a.Certificate.IsCA {
				t.Errorf("expected a CA certificate")
			}
			if a.Certificate.Subject.CommonName != "test ca" {
				t.Errorf("got CN %q", a.Certificate.Subject.CommonName)
			}

			info, err := os.Stat(keyPath)
			if err != nil {
				t.Fatalf("private key not written: %v", err)
			}
			if info.Mode().Perm() != 0600 {
				t.Errorf("got private key mode %o, wanted 600", info.Mode().Perm())
			}

			reloaded, err := LoadOrGenerateAuthority(keyPath, certPath, keyType, "ignored")
			if err != nil {
				t.Fatalf("error reloading authority: %v", err)
			}
			if !reloaded.Certificate.Equal(a.Certificate) {
				t.Errorf("reloaded certificate differs")
			}
			match, err := samePublicKey(reloaded.Signer.Public(), a.Signer.Public())
			if err != nil {
				t.Fatal(err)
			}
			if !match {
				t.Errorf("reloaded key differs")
			}
		})
	}
}

func TestLoadOrGenerateAuthorityMismatch(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "ca.pem")

	if _, err := LoadOrGenerateAuthority(filepath.Join(dir, "a.key"), certPath, "ecdsa", "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadOrGenerateAuthority(filepath.Join(dir, "b.key"), certPath, "ecdsa", "b"); err == nil {
		t.Errorf("expected an error for a certificate that does not match the key")
	}
}

func TestLoadOrGenerateAuthorityBadKeyType(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadOrGenerateAuthority(filepath.Join(dir, "ca.key"), filepath.Join(dir, "ca.pem"), "dsa", "ca"); err == nil {
		t.Errorf("expected an error")
	}
}

func TestSignCertificate(t *testing.T) {
	a := newTestAuthority(t)
	leaf := newTestAuthority(t)

	tests := map[string]struct {
		req       *SignRequest
		wantError bool
		check     func(t *testing.T, cert *x509.Certificate)
	}{
		"server": {
			req: &SignRequest{
				CommonName:      "marvin",
				CertificateType: models.CertificateTypeServer,
				Validity:        time.Hour,
				PublicKey:       leaf.Signer.Public(),
			},
			check: func(t *testing.T, cert *x509.Certificate) {
				if cert.Subject.CommonName != "marvin" {
					t.Errorf("got CN %q", cert.Subject.CommonName)
				}
				if len(cert.DNSNames) != 1 || cert.DNSNames[0] != "marvin" {
					t.Errorf("got DNS names %v", cert.DNSNames)
				}
				if len(cert.ExtKeyUsage) != 1 || cert.ExtKeyUsage[0] != x509.ExtKeyUsageServerAuth {
					t.Errorf("got ext key usage %v", cert.ExtKeyUsage)
				}
				if cert.IsCA {
					t.Errorf("leaf must not be a CA")
				}
				if got := cert.NotAfter.Sub(cert.NotBefore); got != time.Hour {
					t.Errorf("got validity %s, wanted 1h", got)
				}
			},
		},
		"capped at CA expiry": {
			req: &SignRequest{
				CommonName:      "marvin",
				CertificateType: models.CertificateTypeServer,
				Validity:        20 * 365 * 24 * time.Hour,
				PublicKey:       leaf.Signer.Public(),
			},
			check: func(t *testing.T, cert *x509.Certificate) {
				if cert.NotAfter.After(a.Certificate.NotAfter) {
					t.Errorf("leaf expires %s after CA %s", cert.NotAfter, a.Certificate.NotAfter)
				}
			},
		},
		"unsupported type": {
			req: &SignRequest{
				CommonName:      "marvin",
				CertificateType: models.CertificateType(42),
				Validity:        time.Hour,
				PublicKey:       leaf.Signer.Public(),
			},
			wantError: true,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			cert, err := a.SignCertificate(tc.req)
			if tc.wantError {
				if err == nil {
					t.Fatalf("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("got error: %v", err)
			}
			if err := cert.CheckSignatureFrom(a.Certificate); err != nil {
				t.Errorf("signature does not verify against the CA: %v", err)
			}
			tc.check(t, cert)
		})
	}
}

func TestLeafValidity(t *testing.T) {
	got, err := leafValidity(&models.CertificateProperties{ValidityInSecs: 7200})
	if err != nil {
		t.Fatal(err)
	}
	if got != 2*time.Hour {
		t.Errorf("got %s, wanted 2h", got)
	}

	if _, err := leafValidity(&models.CertificateProperties{ValidityInSecs: 1 << 62}); err == nil {
		t.Errorf("expected an overflow error")
	}
}
