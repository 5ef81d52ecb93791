package main

import (
	"bytes"
	"context"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"software.sslmate.com/src/go-pkcs12"

	"github.com/JulianoCristian/iotedge/internal/ca"
	"github.com/JulianoCristian/iotedge/internal/db/repository"
	"github.com/JulianoCristian/iotedge/internal/models"
	"github.com/JulianoCristian/iotedge/internal/policy"
	"github.com/JulianoCristian/iotedge/internal/workload"
	"github.com/JulianoCristian/iotedge/pkg/certutil"
)

func loadAuthority() (*ca.Authority, error) {
	return ca.LoadOrGenerateAuthority(
		cfg.CA.PrivateKeyPath,
		cfg.CA.CertificatePath,
		cfg.CA.KeyType,
		cfg.CA.CommonName,
	)
}

func showCA(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	authority, err := loadAuthority()
	if err != nil {
		return err
	}
	cert := authority.Certificate

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Subject:     %s\n", cert.Subject.String())
	fmt.Fprintf(out, "Key type:    %s\n", authority.KeyType)
	fmt.Fprintf(out, "Serial:      %s\n", cert.SerialNumber.String())
	fmt.Fprintf(out, "Not before:  %s\n", cert.NotBefore.UTC().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(out, "Not after:   %s\n", cert.NotAfter.UTC().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(out, "Fingerprint: %s\n", certutil.Fingerprint(cert))

	return nil
}

func issueCert(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	authority, err := loadAuthority()
	if err != nil {
		return err
	}

	store, err := ca.NewStore(cfg.Store, authority)
	if err != nil {
		return fmt.Errorf("failed to initialize %s store: %w", cfg.Store.Backend, err)
	}
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}

	body, err := json.Marshal(workload.ServerCertificateRequest{
		CommonName: certCommonName,
		Expiration: certExpiration,
	})
	if err != nil {
		return err
	}

	issuer := workload.NewIssuer(store, policy.Limits{MaxServerValidity: cfg.GetMaxServerValidityDuration()})
	resp, issueErr := issuer.IssueServerCertificate(context.Background(), certModule, certGenID, bytes.NewReader(body))
	recordAdminIssue(resp, issueErr)
	if issueErr != nil {
		return issueErr
	}

	if err := writeCertificate(cmd.OutOrStdout(), authority, resp); err != nil {
		return err
	}
	return nil
}

func writeCertificate(out io.Writer, authority *ca.Authority, resp *workload.CertificateResponse) error {
	if err := os.MkdirAll(certOutDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	certPath := filepath.Join(certOutDir, "cert.pem")
	if err := os.WriteFile(certPath, []byte(resp.Certificate), 0644); err != nil {
		return fmt.Errorf("failed to write certificate: %w", err)
	}
	fmt.Fprintf(out, "Certificate: %s (expires %s)\n", certPath, resp.Expiration)

	if resp.PrivateKey.Type == string(models.PrivateKeyTypeRef) {
		fmt.Fprintf(out, "Private key: %s\n", resp.PrivateKey.Ref)
		if certPFX {
			return fmt.Errorf("cannot write cert.pfx for a key held by the %s store", cfg.Store.Backend)
		}
		return nil
	}

	keyPath := filepath.Join(certOutDir, "key.pem")
	if err := os.WriteFile(keyPath, []byte(resp.PrivateKey.Bytes), 0600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}
	fmt.Fprintf(out, "Private key: %s\n", keyPath)

	if !certPFX {
		return nil
	}

	cert, err := certutil.ParseCertificate([]byte(resp.Certificate))
	if err != nil {
		return err
	}
	key, err := certutil.ParsePrivateKey([]byte(resp.PrivateKey.Bytes))
	if err != nil {
		return err
	}
	pfx, err := pkcs12.Legacy.Encode(key, cert, []*x509.Certificate{authority.Certificate}, "")
	if err != nil {
		return fmt.Errorf("failed to encode PFX: %w", err)
	}

	pfxPath := filepath.Join(certOutDir, "cert.pfx")
	if err := os.WriteFile(pfxPath, pfx, 0600); err != nil {
		return fmt.Errorf("failed to write PFX: %w", err)
	}
	fmt.Fprintf(out, "PFX:         %s\n", pfxPath)

	return nil
}

// recordAdminIssue writes an audit entry when an audit database is configured
func recordAdminIssue(resp *workload.CertificateResponse, issueErr error) {
	if cfg.Database.Path == "" {
		return
	}
	if err := initDB(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: audit log unavailable: %v\n", err)
		return
	}
	defer database.Close()

	statusCode, _ := workload.MapResult(resp, issueErr)
	entry := &models.AuditLog{
		Action:       models.ActionAdminCertIssue,
		ModuleID:     certModule,
		GenerationID: certGenID,
		Alias:        workload.Alias(certModule, certGenID, models.CertificateTypeServer),
		UserAgent:    "admin",
		PID:          fmt.Sprint(os.Getpid()),
		StatusCode:   statusCode,
		Success:      issueErr == nil,
	}
	if issueErr != nil {
		entry.ErrorMsg = issueErr.Error()
	} else {
		details, _ := json.Marshal(map[string]string{"expiration": resp.Expiration})
		entry.Details = string(details)
	}

	if err := repository.NewAuditRepository(database.DB).Create(entry); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to write audit log: %v\n", err)
	}
}
