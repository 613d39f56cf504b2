package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"codebuddy-hq/relay/pkg/authflow"
	"codebuddy-hq/relay/pkg/backend"
	"codebuddy-hq/relay/pkg/config"
	"codebuddy-hq/relay/pkg/credential"
	"codebuddy-hq/relay/pkg/server"
	"codebuddy-hq/relay/pkg/telemetry/logging"
	"codebuddy-hq/relay/pkg/telemetry/metrics"
	"codebuddy-hq/relay/pkg/usage"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the relay server",
	Long: `Start the relay server with the specified configuration.

The server listens on the configured address, forwards chat completion
requests to the CodeBuddy backend using stored credentials, and serves the
credential management and login endpoints.

Examples:
  # Start with default config
  relay run

  # Start with custom config
  relay run --config /etc/relay/config.yaml

  # Override listen address
  relay run --listen 0.0.0.0:8001

  # Validate config without starting the server
  relay run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Initialize(cfgFile)
	if err != nil {
		return err
	}

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logging.Setup(cfg.Telemetry.Logging)

	if runFlags.dryRun {
		fmt.Println("configuration valid")
		return nil
	}

	slog.Info("starting CodeBuddy Relay",
		"version", Version,
		"config", cfgFile)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Credential store and rotation pool.
	store, err := credential.NewStore(cfg.Credentials.Dir)
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}

	manager := credential.NewManager(store, cfg.Credentials.RotationCount)
	if err := manager.Reload(); err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)
	collector.SetCredentialPoolSize(manager.PoolSize())

	if manager.PoolSize() == 0 {
		slog.Warn("credential pool is empty; complete a login or add a credential")
	}

	// Watch the credential directory so out-of-band file changes take
	// effect without a restart.
	if cfg.Credentials.Watch {
		watcher, err := credential.NewDirWatcher(manager)
		if err != nil {
			return fmt.Errorf("failed to watch credential directory: %w", err)
		}
		go func() {
			if err := watcher.Watch(ctx); err != nil && ctx.Err() == nil {
				slog.Error("credential watcher stopped", "error", err)
			}
		}()
		defer watcher.Stop()
	}

	// Backend client and login flow.
	client := backend.NewClient(cfg.Backend)

	controller := authflow.NewController(client, store, cfg.Auth)
	controller.SetOnCredentialSaved(func() {
		if err := manager.Reload(); err != nil {
			slog.Error("failed to reload credential pool after login", "error", err)
		}
		collector.SetCredentialPoolSize(manager.PoolSize())
	})
	controller.SetOnSessionFinished(func(status authflow.SessionStatus) {
		collector.RecordLoginSession(string(status))
	})
	defer controller.Close()

	gc := authflow.NewGCScheduler(controller, cfg.Auth.GCSchedule)
	if err := gc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session GC: %w", err)
	}
	defer gc.Stop()

	// Usage statistics.
	var usageStore *usage.Store
	if cfg.Usage.IsEnabled() {
		usageStore, err = usage.NewStore(cfg.Usage.SQLitePath)
		if err != nil {
			return fmt.Errorf("failed to open usage store: %w", err)
		}
		defer usageStore.Close()
	}

	srv := server.NewServer(cfg, server.Components{
		Backend:    client,
		Store:      store,
		Manager:    manager,
		Controller: controller,
		Usage:      usageStore,
		Metrics:    collector,
	})

	// Start blocks until a shutdown signal, context cancellation, or a
	// listener failure, and performs the graceful shutdown itself.
	return srv.Start(ctx)
}
