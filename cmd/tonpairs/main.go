package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/raykavin/tonpairs"
	"github.com/raykavin/tonpairs/pkg/config"
	"github.com/raykavin/tonpairs/pkg/storage"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var version = "dev"

// Command line flags
var (
	// Run command flags
	configPath string

	// Migrate command flags
	fromDriver string
	fromPath   string
	toDriver   string
	toPath     string
)

func main() {
	// Create root command
	rootCmd := &cobra.Command{
		Use:          "tonpairs",
		Short:        "Telegram bot trading TON pairs on DeDust and STON.fi",
		Version:      version,
		SilenceUsage: true,
	}

	// Add commands
	rootCmd.AddCommand(buildRunCmd(), buildMigrateCmd())

	// Execute
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start the bot",
		RunE:  runBot,
	}

	runCmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (e.g. ./tonpairs.yaml)")

	return runCmd
}

func buildMigrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy accounts and trades between storage drivers",
		RunE:  runMigrate,
	}

	migrateCmd.Flags().StringVar(&fromDriver, "from", storage.DriverBuntDB, "Source driver (buntdb or sqlite)")
	migrateCmd.Flags().StringVar(&fromPath, "from-path", "tonpairs.db", "Source database path")
	migrateCmd.Flags().StringVar(&toDriver, "to", storage.DriverSQLite, "Target driver (buntdb or sqlite)")
	migrateCmd.Flags().StringVar(&toPath, "to-path", "tonpairs.sqlite", "Target database path")

	return migrateCmd
}

func runBot(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := tonpairs.NewLogger(cfg.Log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bot, err := tonpairs.NewBot(ctx, cfg, tonpairs.WithLogger(log))
	if err != nil {
		return err
	}

	return bot.Run(ctx)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	if fromDriver == toDriver && fromPath == toPath {
		return fmt.Errorf("source and target are the same store")
	}

	from, err := storage.Open(fromDriver, fromPath)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer from.Close()

	to, err := storage.Open(toDriver, toPath)
	if err != nil {
		return fmt.Errorf("failed to open target: %w", err)
	}
	defer to.Close()

	total, err := storage.Count(ctx, from)
	if err != nil {
		return err
	}

	progressBar := progressbar.Default(int64(total))
	report, err := storage.Migrate(ctx, from, to, func() {
		_ = progressBar.Add(1)
	})
	if err != nil {
		return err
	}

	tonpairs.DefaultLog.Infof("Migrated %d users and %d trades from %s to %s.", report.Users, report.Trades, fromDriver, toDriver)
	return nil
}
