// ABOUTME: serve command: wires config, state, ledger, metrics and the Matrix bridge
// ABOUTME: Runs until SIGINT/SIGTERM, or re-executes itself after !restart

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/coven-operator/internal/assets"
	"github.com/2389/coven-operator/internal/command"
	"github.com/2389/coven-operator/internal/config"
	"github.com/2389/coven-operator/internal/matrix"
	"github.com/2389/coven-operator/internal/metrics"
	"github.com/2389/coven-operator/internal/provider"
	"github.com/2389/coven-operator/internal/relay"
	"github.com/2389/coven-operator/internal/state"
	"github.com/2389/coven-operator/internal/store"
	"github.com/2389/coven-operator/internal/supervisor"
)

// errRestart is the shutdown cause when a chat user asks for a restart.
var errRestart = errors.New("restart requested")

// restartDelay lets the "Restarting..." reply reach the room before shutdown.
const restartDelay = time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Connect to Matrix and relay messages to agents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		err := runServe(cmd.Context())
		if errors.Is(err, errRestart) {
			return reexec()
		}
		return err
	},
}

func runServe(parent context.Context) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Matrix.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	cyan.Print(banner)
	gray.Printf("    version: %s\n\n", version)

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)
	printStartup(cfg, path)

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	lock, err := state.AcquireInstanceLock(cfg.DataDir)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	if written, err := assets.InstallPrompts(cfg.WorkingDir, logger); err != nil {
		logger.Warn("system prompt install incomplete", "error", err)
	} else if len(written) > 0 {
		logger.Info("installed system prompt", "dir", cfg.WorkingDir, "files", written)
	}

	rt := state.New(state.Options{
		DefaultProvider: cfg.DefaultProvider,
		Models:          cfg.Models(),
		Store:           state.NewFileStore(cfg.StatePath()),
		Logger:          logger,
	})
	if err := rt.Load(); err != nil {
		logger.Warn("starting with empty state", "error", err)
	}

	providerOpts, err := cfg.ProviderOptions()
	if err != nil {
		return err
	}
	providers, err := provider.NewRegistry(providerOpts)
	if err != nil {
		return fmt.Errorf("creating providers: %w", err)
	}

	collectors := metrics.New()

	var ledger store.Store
	if cfg.Ledger.Enabled {
		sqlStore, err := store.NewSQLiteStore(cfg.Ledger.Path)
		if err != nil {
			return fmt.Errorf("opening ledger: %w", err)
		}
		defer sqlStore.Close()
		ledger = sqlStore

		if cfg.Ledger.Retention > 0 {
			pruner, err := store.NewPruner(sqlStore, cfg.Ledger.Retention, cfg.Ledger.PruneSchedule, logger)
			if err != nil {
				return err
			}
			pruner.Start()
			defer pruner.Stop()
		}
	}

	orch := relay.New(relay.Options{
		Runtime:   rt,
		Providers: providers,
		Supervisor: supervisor.New(supervisor.Options{
			WorkDir: cfg.WorkingDir,
			Grace:   cfg.StopGrace,
			Logger:  logger,
		}),
		MessageLimit: cfg.MessageLimit,
		TickInterval: cfg.TickInterval,
		Ledger:       ledger,
		Observer:     collectors,
		Logger:       logger,
	})

	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	commands := command.New(command.Options{
		Prefix:    cfg.Matrix.CommandPrefix,
		Runtime:   rt,
		Providers: providers,
		Stopper:   orch,
		Ledger:    ledger,
		WorkDir:   cfg.WorkingDir,
		Restart: func() {
			time.AfterFunc(restartDelay, func() { cancel(errRestart) })
		},
		Logger: logger,
	})

	if cfg.Metrics.Enabled {
		go func() {
			if err := collectors.Serve(ctx, cfg.Metrics.Addr, cfg.Metrics.Path, logger); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	bridge, err := matrix.NewBridge(matrix.Options{
		Config:   cfg.Matrix,
		DataDir:  cfg.DataDir,
		Handler:  orch,
		Commands: commands,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	if err := bridge.Login(ctx); err != nil {
		return fmt.Errorf("matrix login: %w", err)
	}

	logger.Info("starting coven-operator",
		"config", path,
		"working_dir", cfg.WorkingDir,
		"default_provider", cfg.DefaultProvider,
	)
	runErr := bridge.Run(ctx)

	if err := rt.Save(); err != nil {
		logger.Error("saving state on shutdown", "error", err)
	}
	if errors.Is(context.Cause(ctx), errRestart) {
		logger.Info("restarting")
		return errRestart
	}
	return runErr
}

func printStartup(cfg *config.Config, path string) {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	line := func(label, value string) {
		green.Print("    ▶ ")
		fmt.Printf("%-12s%s\n", label+":", value)
	}
	line("Config", path)
	line("Working dir", cfg.WorkingDir)
	line("Data dir", cfg.DataDir)
	line("Homeserver", cfg.Matrix.Homeserver)
	line("Provider", cfg.DefaultProvider)
	if cfg.Matrix.RecoveryKey != "" {
		line("Encryption", "enabled")
	}
	if cfg.Metrics.Enabled {
		line("Metrics", "http://"+cfg.Metrics.Addr+cfg.Metrics.Path)
	}
	if len(cfg.Matrix.AllowedUsers) == 0 {
		yellow.Println("    ! allowed_users is empty: anyone in a joined room can run agents")
	}
	fmt.Println()
}
