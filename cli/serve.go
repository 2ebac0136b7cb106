package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	otelapi "go.opentelemetry.io/otel"

	"github.com/hunt-labs/huntgate/config"
	huntotel "github.com/hunt-labs/huntgate/otel"
	"github.com/hunt-labs/huntgate/phclient"
	"github.com/hunt-labs/huntgate/registry"
	"github.com/hunt-labs/huntgate/server"
	"github.com/hunt-labs/huntgate/sse"
	"github.com/hunt-labs/huntgate/tools"
)

const serviceName = "HuntGate"

// NewServeCmd creates the "serve" subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway HTTP server",
		RunE:  runServe,
	}

	cmd.Flags().IntP("port", "p", 8080, "Listen port")
	cmd.Flags().String("host", "0.0.0.0", "Listen host")
	cmd.Flags().String("cors-origin", "*", "Allowed CORS origin")
	cmd.Flags().String("config", "", "Path to huntgate.yaml")
	cmd.Flags().String("sqlite-path", "", "Path to SQLite invocation audit database (empty: in-memory)")
	cmd.Flags().Duration("heartbeat-interval", sse.DefaultHeartbeatInterval, "SSE heartbeat interval")
	cmd.Flags().String("probe-schedule", server.DefaultProbeSchedule, "Upstream probe cron schedule (UTC)")
	cmd.Flags().Duration("read-timeout", 0, "HTTP read timeout (0: none, required for SSE)")
	cmd.Flags().Duration("write-timeout", 0, "HTTP write timeout (0: none, required for SSE)")
	cmd.Flags().Int64("max-body", 1<<20, "Max request body size in bytes")
	cmd.Flags().String("otlp-endpoint", "", "OTLP collector endpoint for traces (host:port)")
	cmd.Flags().Bool("otlp-insecure", false, "Send OTLP traces over plain HTTP")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadServeConfig(cmd)
	if err != nil {
		return err
	}
	logger := slog.Default()
	version := cmd.Root().Version
	if version == "" {
		version = "dev"
	}

	otlpInsecure, _ := cmd.Flags().GetBool("otlp-insecure")
	shutdownTracing, err := huntotel.SetupTracing(cmd.Context(), huntotel.ProviderConfig{
		Endpoint:       cfg.OTLPEndpoint,
		Insecure:       otlpInsecure,
		ServiceName:    serviceName,
		ServiceVersion: version,
	})
	if err != nil {
		return exitError(exitRuntime, "initializing tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	meter := otelapi.GetMeterProvider().Meter("huntgate")
	tracer := otelapi.GetTracerProvider().Tracer("huntgate")

	streamObserver, err := huntotel.NewStreamObserver(meter, tracer)
	if err != nil {
		return exitError(exitRuntime, "initializing stream observability: %v", err)
	}
	invocationObserver, err := huntotel.NewInvocationObserver(meter, tracer)
	if err != nil {
		return exitError(exitRuntime, "initializing invocation observability: %v", err)
	}

	// --- Upstream client, registry, and tool runners ---
	client := phclient.New(phclient.Config{
		Token: os.Getenv(phclient.TokenEnv),
	})
	reg := registry.New()
	toolset := tools.NewToolset(reg, client)
	tools.RegisterAll(toolset)
	runner := huntotel.InstrumentRunner(toolset, invocationObserver)

	// --- Invocation audit store ---
	var store server.InvocationStore
	if cfg.SQLitePath != "" {
		sqliteStore, err := server.NewSQLiteInvocationStore(server.SQLiteStoreConfig{
			DSN: cfg.SQLitePath,
		})
		if err != nil {
			return exitError(exitRuntime, "opening invocation store: %v", err)
		}
		store = sqliteStore
	} else {
		store = server.NewMemInvocationStore()
	}
	defer func() {
		_ = store.Close()
	}()

	// --- Upstream probe ---
	probe, err := server.NewUpstreamProbe(server.UpstreamProbeConfig{
		Schedule: cfg.Probe.Schedule,
		Client:   client,
		Logger:   logger,
	})
	if err != nil {
		return exitError(exitConfig, "configuring upstream probe: %v", err)
	}
	if err := probe.Start(cmd.Context()); err != nil {
		return exitError(exitRuntime, "starting upstream probe: %v", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = probe.Stop(stopCtx)
	}()

	// --- SSE stream and HTTP API ---
	stream := sse.NewHandler(sse.HandlerConfig{
		Registry:          reg,
		ServerName:        serviceName,
		Version:           version,
		HeartbeatInterval: cfg.Stream.HeartbeatInterval.Std(),
		Logger:            logger,
		Observer:          streamObserver,
	})

	gateway := server.NewServer(server.Config{
		Registry:    reg,
		Runner:      runner,
		Stream:      stream,
		Invocations: store,
		Probe:       probe,
		ServerName:  serviceName,
		Version:     version,
		CORSOrigin:  cfg.Server.CORSOrigin,
		MaxBody:     cfg.Server.MaxBody,
		Logger:      logger,
	})

	addr := net.JoinHostPort(cfg.Server.Host, fmt.Sprintf("%d", cfg.Server.Port))
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      gateway.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}

	// Signal handling
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(cmd.OutOrStdout(), "HuntGate listening on %s\n", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(cmd.OutOrStdout(), "Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return exitError(exitRuntime, "shutdown error: %v", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return exitError(exitRuntime, "server error: %v", err)
		}
		return nil
	}
}

// loadServeConfig layers flag overrides on the discovered configuration.
// Precedence: flags over environment over file over defaults.
func loadServeConfig(cmd *cobra.Command) (config.Config, error) {
	explicitPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(explicitPath)
	if err != nil {
		return config.Config{}, exitError(exitConfig, "loading config: %v", err)
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("host") {
		cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Changed("cors-origin") {
		cfg.Server.CORSOrigin, _ = flags.GetString("cors-origin")
	}
	if flags.Changed("sqlite-path") {
		cfg.SQLitePath, _ = flags.GetString("sqlite-path")
	}
	if flags.Changed("heartbeat-interval") {
		hb, _ := flags.GetDuration("heartbeat-interval")
		cfg.Stream.HeartbeatInterval = config.Duration(hb)
	}
	if flags.Changed("probe-schedule") {
		cfg.Probe.Schedule, _ = flags.GetString("probe-schedule")
	}
	if flags.Changed("read-timeout") {
		rt, _ := flags.GetDuration("read-timeout")
		cfg.Server.ReadTimeout = config.Duration(rt)
	}
	if flags.Changed("write-timeout") {
		wt, _ := flags.GetDuration("write-timeout")
		cfg.Server.WriteTimeout = config.Duration(wt)
	}
	if flags.Changed("max-body") {
		cfg.Server.MaxBody, _ = flags.GetInt64("max-body")
	}
	if flags.Changed("otlp-endpoint") {
		cfg.OTLPEndpoint, _ = flags.GetString("otlp-endpoint")
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, exitError(exitConfig, "%v", err)
	}
	return cfg, nil
}
