package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/contactkit/mailharvest/internal/config"
	"github.com/contactkit/mailharvest/internal/export"
	"github.com/contactkit/mailharvest/internal/harvest"
	"github.com/contactkit/mailharvest/internal/logging"
	"github.com/contactkit/mailharvest/internal/mailstore"
	"github.com/contactkit/mailharvest/internal/mailstore/imapstore"
	"github.com/contactkit/mailharvest/internal/mailstore/maildirstore"
	"github.com/contactkit/mailharvest/internal/mailstore/sqlitestore"
	"github.com/contactkit/mailharvest/internal/metrics"
	"github.com/contactkit/mailharvest/internal/progress"
	"github.com/contactkit/mailharvest/internal/resolve"
	"github.com/contactkit/mailharvest/internal/scan"
)

var (
	cfgFile   string
	cfg       *config.Config
	outputDir string
	format    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mailharvest",
	Short: "Export every contact a mailbox has ever communicated with",
	Long: `mailharvest scans all folders of a mailbox, collects every sender
and recipient it finds, enriches each contact with a best-effort job
title inferred from directory data or email signatures, deduplicates
across sources, and writes a single timestamped spreadsheet export.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for help commands
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		return nil
	},
}

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Scan the configured mailbox and export its contacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if outputDir != "" {
			cfg.Export.OutputDir = outputDir
		}
		if format != "" {
			cfg.Export.Format = format
		}

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if err := cfg.EnsureDirectories(); err != nil {
			return fmt.Errorf("failed to create export directories: %w", err)
		}

		logger, err := logging.New(logging.Config{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			Output: cfg.Logging.Output,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if cfg.Metrics.Enabled {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			go func() {
				if err := http.ListenAndServe(cfg.Metrics.Listen, mux); err != nil {
					logger.Warn("metrics listener stopped", "error", err.Error())
				}
			}()
			logger.Info("metrics listener started", "addr", cfg.Metrics.Listen)
		}

		// Cancellation is cooperative: the scan checks between folders,
		// so a folder's records stay all-or-nothing.
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, err := openStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		logger.Info("mail store connected", "backend", cfg.Store.Backend)

		excludes, err := resolve.CompileExcludes(cfg.Resolver.ExcludePatterns)
		if err != nil {
			return fmt.Errorf("invalid exclude pattern: %w", err)
		}
		resolverCfg := resolve.Config{
			FallbackDomain: cfg.Resolver.FallbackDomain,
			Excludes:       excludes,
		}

		folders := make([]mailstore.FolderID, 0, len(cfg.Scan.Folders))
		for _, f := range cfg.Scan.Folders {
			folders = append(folders, mailstore.FolderID(f))
		}
		scanCfg := scan.Config{
			Folders:         folders,
			IncludeContacts: cfg.Scan.IncludeContacts,
		}

		exporter := export.New(export.Config{
			Format:      cfg.Export.Format,
			OutputDir:   cfg.Export.OutputDir,
			FallbackDir: cfg.Export.FallbackDir,
			FilePrefix:  cfg.Export.FilePrefix,
		}, logger)

		runner := harvest.New(store, resolverCfg, scanCfg, exporter, logger)
		sink := progress.NewConsole(os.Stdout)

		result := <-runner.Start(ctx, sink)
		if errors.Is(result.Err, harvest.ErrNoContacts) {
			fmt.Println("No valid contacts found in the mailbox.")
			return nil
		}
		return result.Err
	},
}

var foldersCmd = &cobra.Command{
	Use:   "folders",
	Short: "List the folders the configured mail store exposes",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		logger, err := logging.New(logging.Config{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			Output: cfg.Logging.Output,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		ctx := context.Background()
		store, err := openStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		names, err := store.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list folders: %w", err)
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("mailharvest v0.1.0")
	},
}

func openStore(ctx context.Context, cfg *config.Config, logger *logging.Logger) (mailstore.Store, error) {
	switch cfg.Store.Backend {
	case "imap":
		return imapstore.Dial(ctx, imapstore.Config{
			Host:     cfg.Store.IMAP.Host,
			Port:     cfg.Store.IMAP.Port,
			Username: cfg.Store.IMAP.Username,
			Password: cfg.Store.IMAP.Password,
			TLS:      cfg.Store.IMAP.TLS,
		}, logger)
	case "maildir":
		return maildirstore.Open(cfg.Store.Maildir.Root, logger)
	case "sqlite":
		return sqlitestore.Open(cfg.Store.SQLite.Path, logger)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")

	harvestCmd.Flags().StringVarP(&outputDir, "output", "o", "", "override export output directory")
	harvestCmd.Flags().StringVar(&format, "format", "", "override export format (xlsx or csv)")

	rootCmd.AddCommand(harvestCmd)
	rootCmd.AddCommand(foldersCmd)
	rootCmd.AddCommand(versionCmd)
}
