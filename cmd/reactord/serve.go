package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/config"
	"github.com/momentics/hioload-reactor/control"
	"github.com/momentics/hioload-reactor/internal/logger"
	"github.com/momentics/hioload-reactor/protocol"
	"github.com/momentics/hioload-reactor/server"
)

type serveFlags struct {
	configFile   string
	port         int
	workers      int
	blockingSync bool
	logLevel     string
}

func newServeCommand() *cobra.Command {
	f := new(serveFlags)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the echo server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
	bindServeFlags(cmd, f)
	return cmd
}

func bindServeFlags(cmd *cobra.Command, f *serveFlags) {
	cmd.Flags().StringVarP(&f.configFile, "config", "c", "", "Use a configuration file.")
	cmd.Flags().IntVarP(&f.port, "port", "p", 0, "Set the listen port.")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "Set the number of worker goroutines.")
	cmd.Flags().BoolVar(&f.blockingSync, "blocking-sync", false, "Use the lock-based actor scheduler.")
	cmd.Flags().StringVarP(&f.logLevel, "log-level", "l", "", "Set the log level (debug, info, warn, error).")
}

// loadConfig layers explicitly set flags over file, environment and defaults.
func loadConfig(cmd *cobra.Command, f *serveFlags) (*config.Config, error) {
	cfg, err := config.Load(f.configFile)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Server.Port = f.port
	}
	if flags.Changed("workers") {
		cfg.Server.Workers = f.workers
	}
	if flags.Changed("blocking-sync") {
		cfg.Server.BlockingSync = f.blockingSync
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		return err
	}
	log := logger.NewLogger("reactord")

	metrics := control.NewMetrics(nil)
	srv, err := server.NewServer(cfg.ToServerConfig(),
		func() api.EncoderDecoder[string, string] { return protocol.NewLineCodec() },
		func() api.Protocol[string, string] { return protocol.NewEchoProtocol() },
		server.WithMetrics(metrics),
	)
	if err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		ms, err := control.NewMetricsServer(cfg.Metrics.Listen, metrics.Gatherer())
		if err != nil {
			_ = srv.Close()
			return err
		}
		go func() {
			if err := ms.Start(ctx); err != nil {
				log.WithError(err).Error("metrics server")
			}
		}()
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ctx) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	select {
	case err := <-errc:
		if errors.Is(err, api.ErrServerClosed) {
			return nil
		}
		return err
	case <-time.After(cfg.Server.ShutdownTimeout):
		return fmt.Errorf("shutdown timed out after %s", cfg.Server.ShutdownTimeout)
	}
}
