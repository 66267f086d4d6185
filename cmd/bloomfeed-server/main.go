package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"bloomfeed/analytics"
	"bloomfeed/core"
	"bloomfeed/integrations/events"
	"bloomfeed/integrations/webhook"
)

// version is set via -ldflags at build time.
var version = "(devel)"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "bloomfeed-server",
	Short: "Activity feed and achievements backend for plant care",
	RunE:  runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a single plant health sweep and exit",
	RunE:  runSweep,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("bloomfeed-server", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a JSON or YAML config file (overrides BLOOMFEED_* env defaults)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := BuildApp(ctx, configPath)
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}
	defer closeApp(app)

	cfg := app.Config

	slog.Info("starting bloomfeed server",
		"environment", cfg.Environment,
		"profile", cfg.Profile,
		"address", cfg.Server.Address,
		"storage_adapter", cfg.Storage.Adapter)

	cleanup, err := startIntegrations(ctx, app)
	if err != nil {
		return err
	}
	defer cleanup()

	if cfg.Sweep.Enabled {
		app.Service.StartSweeper(ctx, cfg.Sweep.Interval)
		slog.Info("plant health sweeper running", "interval", cfg.Sweep.Interval)
	}

	srv := app.Server

	// Start server in a goroutine
	go func() {
		slog.Info("server listening", "address", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil {
			if err == http.ErrServerClosed {
				return
			}
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server", "timeout", cfg.Server.ShutdownTimeout)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error during server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	app, err := BuildApp(ctx, configPath)
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}
	defer closeApp(app)

	report, err := app.Service.SweepPlants(ctx)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	fmt.Printf("plants seen: %d\ntransitions: %d\nreminders sent: %d\n",
		report.PlantsSeen, report.Transitions, report.RemindersSent)
	return nil
}

// startIntegrations attaches the optional activity consumers: the NATS
// publisher, webhook fan-out, and the Prometheus metrics endpoint.
// Returns a cleanup function detaching everything it started.
func startIntegrations(ctx context.Context, app *App) (func(), error) {
	cfg := app.Config
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if cfg.Events.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.Events.NATSURL)
		if err != nil {
			return cleanup, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		detach := events.Attach(app.Service.Bus(), pub)
		cleanups = append(cleanups, detach, func() { _ = pub.Close() })
		slog.Info("publishing activities to NATS", "url", cfg.Events.NATSURL)
	}

	if len(cfg.Events.Webhooks) > 0 {
		sink := webhook.New(cfg.Events.Webhooks)
		for _, kind := range []core.ActivityKind{core.KindAchievementEarned, core.KindPlantAdded, core.KindFriendAdded} {
			cleanups = append(cleanups, app.Service.Subscribe(kind, sink.OnActivity))
		}
		slog.Info("forwarding activities to webhooks", "endpoints", len(cfg.Events.Webhooks))
	}

	if cfg.Metrics.Enabled {
		stop, err := startMetricsServer(app)
		if err != nil {
			return cleanup, err
		}
		cleanups = append(cleanups, stop)
	}

	return cleanup, nil
}

// startMetricsServer exposes Prometheus counters on a dedicated listener.
func startMetricsServer(app *App) (func(), error) {
	cfg := app.Config

	reg := prometheus.NewRegistry()
	hook, err := analytics.NewPromHook(reg)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	detach := analytics.Attach(app.Service.Bus(), hook)

	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}
	go func() {
		slog.Info("metrics listening", "address", cfg.Metrics.Address, "path", cfg.Metrics.Path)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server failed", "error", err)
		}
	}()

	return func() {
		detach()
		_ = srv.Close()
	}, nil
}

func closeApp(app *App) {
	app.Service.Close()
	if c, ok := app.Storage.(io.Closer); ok {
		if err := c.Close(); err != nil {
			slog.Warn("storage close failed", "error", err)
		}
	}
}
