package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marmos91/wirerpc/internal/demo"
	"github.com/marmos91/wirerpc/internal/logger"
	"github.com/marmos91/wirerpc/internal/rpc/server"
	"github.com/marmos91/wirerpc/pkg/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the wirerpcd server",
	Long: `Start the wirerpcd server with the specified configuration.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/wirerpc/config.yaml.

Examples:
  # Start with defaults
  wirerpcd serve

  # Start with a custom config file
  wirerpcd serve --config /etc/wirerpc/config.yaml

  # Start with environment variable overrides
  WIRERPC_LOGGING_LEVEL=DEBUG wirerpcd serve`,
	RunE: runServe,
}

func init() {
	// No flags beyond the persistent --config; every other knob lives in
	// the config file / environment, per pkg/config.
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("wirerpcd starting", "version", Version, "commit", Commit)
	logger.Info("configuration loaded", "source", getConfigSource(GetConfigFile()))

	srvCfg := server.Config{
		Registry:            demo.EchoRegistry(),
		UDPHandshakeTimeout: cfg.UDP.HandshakeTimeout,
		UDPPacketTimeout:    cfg.UDP.PacketTimeout,
		IdleTimeout:         cfg.TCP.IdleTimeout,
	}
	if cfg.TCP.Enabled {
		srvCfg.TCPAddr = cfg.TCP.Addr
	}
	if cfg.UDP.Enabled {
		srvCfg.UDPAddr = cfg.UDP.Addr
	}
	srv := server.New(srvCfg)

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			logger.Info("metrics endpoint listening", "addr", cfg.Metrics.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
	} else {
		logger.Info("metrics disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("server is running", "tcp", srv.Addr(), "udp", srv.UDPAddr())

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, initiating graceful shutdown")
		cancel()
		select {
		case err := <-serverDone:
			if err != nil {
				logger.Error("server shutdown error", "error", err)
				return err
			}
			logger.Info("server stopped gracefully")
		case <-time.After(cfg.Shutdown.Timeout):
			logger.Warn("server did not stop within the shutdown timeout", "timeout", cfg.Shutdown.Timeout)
		}

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("server error", "error", err)
			return err
		}
		logger.Info("server stopped")
	}

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown error", "error", err)
		}
	}

	return nil
}

// getConfigSource describes where the config was loaded from, for the
// startup log line.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	return "defaults/environment"
}
