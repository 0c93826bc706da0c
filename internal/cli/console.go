package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/koscakluka/ema-agent/core/latency"
	"github.com/koscakluka/ema-agent/internal/config"
	"github.com/koscakluka/ema-agent/internal/entrypoint"
	"github.com/koscakluka/ema-agent/internal/logger"
	"github.com/koscakluka/ema-agent/internal/telemetry"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
)

var (
	noGreeting bool
	logFile    string
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Talk to the agent through the local microphone and speakers",
	RunE:  runConsole,
}

func init() {
	consoleCmd.Flags().BoolVar(&noGreeting, "no-greeting", false, "wait for the user to speak first")
	consoleCmd.Flags().StringVar(&logFile, "log-file", "", "also write logs to this file")
	rootCmd.AddCommand(consoleCmd)
}

func runConsole(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// fail before opening devices or exporters
	if err := cfg.RequireSecrets(); err != nil {
		return err
	}

	log, err := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		File:    logFile,
		Console: true,
		Pretty:  true,
		Out:     cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.Init(ctx, telemetry.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: "voice-agent",
		Insecure:    true,
	}, log.Component("telemetry"))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			zl := log.Zerolog()
			zl.Warn().Err(err).Msg("failed to flush telemetry")
		}
	}()

	reporter, err := latencyReporter(ctx, cfg, log)
	if err != nil {
		return err
	}

	opts := []entrypoint.Option{entrypoint.WithLogger(log.Zerolog())}
	if noGreeting {
		opts = append(opts, entrypoint.WithoutGreeting())
	}

	err = entrypoint.Run(ctx, cfg, entrypoint.DefaultDependencies(reporter), opts...)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// latencyReporter logs every measurement and records it as OTel and
// Prometheus histograms. The Prometheus endpoint only runs when
// METRICS_ADDR is set.
func latencyReporter(ctx context.Context, cfg *config.Config, log *logger.Logger) (latency.Reporter, error) {
	reporters := latency.MultiReporter{latency.NewLogReporter(log.Component("latency"))}

	otelReporter, err := latency.NewOTelReporter(attribute.String("agent.name", cfg.AgentName))
	if err != nil {
		return nil, fmt.Errorf("failed to create otel latency reporter: %w", err)
	}
	reporters = append(reporters, otelReporter)

	if cfg.MetricsAddr == "" {
		return reporters, nil
	}

	registry := telemetry.NewRegistry()
	promReporter, err := latency.NewPrometheusReporter(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus latency reporter: %w", err)
	}
	reporters = append(reporters, promReporter)

	server, err := telemetry.ListenMetrics(cfg.MetricsAddr, registry, log.Component("metrics"))
	if err != nil {
		return nil, err
	}
	go func() {
		if err := server.Serve(ctx); err != nil {
			zl := log.Zerolog()
			zl.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	return reporters, nil
}
