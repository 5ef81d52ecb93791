package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/JulianoCristian/iotedge/internal/api"
	"github.com/JulianoCristian/iotedge/internal/api/handlers"
	"github.com/JulianoCristian/iotedge/internal/ca"
	"github.com/JulianoCristian/iotedge/internal/config"
	"github.com/JulianoCristian/iotedge/internal/db"
	"github.com/JulianoCristian/iotedge/internal/db/repository"
	"github.com/JulianoCristian/iotedge/internal/policy"
	"github.com/JulianoCristian/iotedge/internal/workload"
)

var (
	// Version information (set via ldflags)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "/etc/iotedge/workloadd.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("iotedge workload daemon\n")
		fmt.Printf("Version:    %s\n", Version)
		fmt.Printf("Commit:     %s\n", Commit)
		fmt.Printf("Build Time: %s\n", BuildTime)
		os.Exit(0)
	}

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	if err := configureLogging(cfg.Logging); err != nil {
		log.WithError(err).Fatal("failed to configure logging")
	}

	log.WithFields(log.Fields{"version": Version, "commit": Commit}).Info("starting workload daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.WithError(err).Fatal("workload daemon failed")
	}

	log.Info("workload daemon stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	var audit handlers.AuditRecorder
	if cfg.Database.Path != "" {
		log.WithField("path", cfg.Database.Path).Info("opening audit database")
		database, err := db.Open(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer database.Close()
		audit = repository.NewAuditRepository(database.DB)
	}

	log.WithField("path", cfg.CA.PrivateKeyPath).Info("loading CA")
	authority, err := ca.LoadOrGenerateAuthority(
		cfg.CA.PrivateKeyPath,
		cfg.CA.CertificatePath,
		cfg.CA.KeyType,
		cfg.CA.CommonName,
	)
	if err != nil {
		return fmt.Errorf("failed to load or generate CA: %w", err)
	}
	log.WithFields(log.Fields{
		"type":      authority.KeyType,
		"not_after": authority.Certificate.NotAfter,
	}).Info("CA loaded")

	store, err := ca.NewStore(cfg.Store, authority)
	if err != nil {
		return fmt.Errorf("failed to initialize %s store: %w", cfg.Store.Backend, err)
	}
	if closer, ok := store.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				log.WithError(err).Warn("error closing certificate store")
			}
		}()
	}

	limits := policy.Limits{MaxServerValidity: cfg.GetMaxServerValidityDuration()}
	issuer := workload.NewIssuer(store, limits)

	server := api.NewServer(cfg, authority, issuer, audit)
	return server.Run(ctx)
}

func configureLogging(cfg config.LoggingConfig) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}
