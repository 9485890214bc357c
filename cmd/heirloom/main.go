package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"heirloom/internal/app"
	"heirloom/internal/jobs"
	"heirloom/internal/platform/config"
	"heirloom/internal/platform/logger"
	"heirloom/internal/platform/postgres"
	"heirloom/internal/platform/postgres/migrations"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath, os.Getenv)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// newApp loads config and wires the application. The caller must defer
// a.Close().
func newApp(ctx context.Context) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg, logger.New(cfg.Server.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:           "heirloom",
	Short:         "Memory preservation core: groves, succession and legacy branches",
	SilenceUsage:  true,
	SilenceErrors: false,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ops HTTP surface, scheduled jobs and outbox relay",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		return a.Serve(ctx)
	},
}

// migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the Postgres schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := postgres.Open(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := migrations.MigrateUp(db); err != nil {
			return err
		}
		status, err := migrations.CurrentStatus(db)
		if err != nil {
			return err
		}
		fmt.Printf("Schema at version %d\n", status.Version)
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and latest schema versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := postgres.Open(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		status, err := migrations.CurrentStatus(db)
		if err != nil {
			return err
		}
		fmt.Printf("Applied: %d\n", status.Version)
		fmt.Printf("Latest:  %d\n", status.Latest)
		fmt.Printf("Dirty:   %t\n", status.Dirty)
		if !status.UpToDate() {
			return fmt.Errorf("schema is not up to date")
		}
		return nil
	},
}

// jobs command
var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Run a maintenance job once",
}

var jobsScanReleasesCmd = &cobra.Command{
	Use:   "scan-releases",
	Short: "Release every successor whose release date has passed",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := a.Succession.ScanDueReleases(cmd.Context())
		if err != nil {
			return err
		}
		failed := 0
		for _, r := range results {
			status := "released"
			if !r.Success {
				status = "failed: " + r.Error
				failed++
			}
			fmt.Printf("%s  %s\n", r.HeirID, status)
		}
		fmt.Printf("Due: %d, failed: %d\n", len(results), failed)
		return nil
	},
}

var jobsSyncTreeCountsCmd = &cobra.Command{
	Use:   "sync-tree-counts",
	Short: "Validate every grove's tree count and repair drift",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := jobs.CheckTreeCounts(cmd.Context(), a.Memberships)
		for _, c := range report.Repaired {
			fmt.Printf("%s  cached=%d actual=%d  repaired\n", c.GroveID, c.Cached, c.Actual)
		}
		fmt.Printf("Checked: %d, repaired: %d\n", report.Checked, len(report.Repaired))
		return err
	},
}

var jobsEmptyLegacyCmd = &cobra.Command{
	Use:   "empty-legacy",
	Short: "List legacy branches that never received content",
	RunE: func(cmd *cobra.Command, args []string) error {
		daysOld, err := cmd.Flags().GetInt("days-old")
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		branches, err := a.Legacy.ReportEmptyLegacy(cmd.Context(), daysOld)
		if err != nil {
			return err
		}
		for _, b := range branches {
			fmt.Printf("%s  owner=%s  created=%s\n", b.ID, b.OwnerID, b.CreatedAt.Format("2006-01-02"))
		}
		fmt.Printf("Empty legacy branches: %d\n", len(branches))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("HEIRLOOM_CONFIG"), "path to TOML config file")

	rootCmd.AddCommand(serveCmd)

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)

	jobsEmptyLegacyCmd.Flags().Int("days-old", 30, "minimum branch age in days")
	jobsCmd.AddCommand(jobsScanReleasesCmd)
	jobsCmd.AddCommand(jobsSyncTreeCountsCmd)
	jobsCmd.AddCommand(jobsEmptyLegacyCmd)
	rootCmd.AddCommand(jobsCmd)
}
