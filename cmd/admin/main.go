package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/JulianoCristian/iotedge/internal/config"
	"github.com/JulianoCristian/iotedge/internal/db"
	"github.com/JulianoCristian/iotedge/internal/db/repository"
)

var (
	configPath string
	cfg        *config.Config
	database   *db.DB
)

var rootCmd = &cobra.Command{
	Use:          "admin",
	Short:        "iotedge workload daemon administration tool",
	Long:         "Administrative tool for the workload CA, its audit log and offline certificate issuance",
	SilenceUsage: true,
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit log",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit log entries, newest first",
	RunE:  listAudit,
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old audit log entries",
	RunE:  pruneAudit,
}

var caCmd = &cobra.Command{
	Use:   "ca",
	Short: "Manage the workload CA",
}

var caShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the CA certificate",
	RunE:  showCA,
}

var certCmd = &cobra.Command{
	Use:   "cert",
	Short: "Issue certificates",
}

var certIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a module server certificate without the daemon",
	RunE:  issueCert,
}

var (
	auditModule string
	auditLimit  int
	olderThan   string

	certModule     string
	certGenID      string
	certCommonName string
	certExpiration string
	certOutDir     string
	certPFX        bool
)

func init() {
	// Root flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/iotedge/workloadd.yaml", "Config file path")

	auditListCmd.Flags().StringVarP(&auditModule, "module", "m", "", "Only show entries for this module")
	auditListCmd.Flags().IntVarP(&auditLimit, "limit", "n", 50, "Maximum number of entries")

	auditPruneCmd.Flags().StringVar(&olderThan, "older-than", "", "Delete entries older than this duration, e.g. 30d (required)")
	auditPruneCmd.MarkFlagRequired("older-than")

	certIssueCmd.Flags().StringVarP(&certModule, "module", "m", "", "Module id (required)")
	certIssueCmd.Flags().StringVarP(&certGenID, "genid", "g", "", "Generation id (required)")
	certIssueCmd.Flags().StringVar(&certCommonName, "common-name", "", "Certificate common name (required)")
	certIssueCmd.Flags().StringVar(&certExpiration, "expiration", "", "Requested expiration, RFC 3339 (required)")
	certIssueCmd.Flags().StringVarP(&certOutDir, "out", "o", ".", "Output directory")
	certIssueCmd.Flags().BoolVar(&certPFX, "pfx", false, "Also write cert.pfx")

	certIssueCmd.MarkFlagRequired("module")
	certIssueCmd.MarkFlagRequired("genid")
	certIssueCmd.MarkFlagRequired("common-name")
	certIssueCmd.MarkFlagRequired("expiration")

	// Add commands
	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditPruneCmd)
	caCmd.AddCommand(caShowCmd)
	certCmd.AddCommand(certIssueCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(caCmd)
	rootCmd.AddCommand(certCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() error {
	var err error
	cfg, err = config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	return nil
}

func initDB() error {
	if err := loadConfig(); err != nil {
		return err
	}
	if cfg.Database.Path == "" {
		return fmt.Errorf("database.path is not configured")
	}

	var err error
	database, err = db.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	return nil
}

func listAudit(cmd *cobra.Command, args []string) error {
	if err := initDB(); err != nil {
		return err
	}
	defer database.Close()

	auditRepo := repository.NewAuditRepository(database.DB)
	logs, err := auditRepo.List(auditModule, "", auditLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(logs) == 0 {
		fmt.Fprintln(out, "No audit entries found")
		return nil
	}

	fmt.Fprintf(out, "%-5s %-20s %-18s %-20s %-6s %-8s %s\n", "ID", "Time", "Action", "Alias", "Status", "PID", "Error")
	fmt.Fprintln(out, "--------------------------------------------------------------------------------------------")

	for _, l := range logs {
		fmt.Fprintf(out, "%-5d %-20s %-18s %-20s %-6d %-8s %s\n",
			l.ID,
			l.Timestamp.Format("2006-01-02 15:04:05"),
			l.Action,
			orDash(l.Alias),
			l.StatusCode,
			orDash(l.PID),
			firstLine(l.ErrorMsg),
		)
	}

	return nil
}

func pruneAudit(cmd *cobra.Command, args []string) error {
	age, err := config.ParseDuration(olderThan)
	if err != nil {
		return fmt.Errorf("invalid --older-than: %w", err)
	}

	if err := initDB(); err != nil {
		return err
	}
	defer database.Close()

	auditRepo := repository.NewAuditRepository(database.DB)
	count, err := auditRepo.DeleteOld(time.Now().Add(-age))
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d audit entries\n", count)
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
