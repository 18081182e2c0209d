package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/picklr-io/anfctl/internal/engine"
	"github.com/picklr-io/anfctl/internal/logging"
	"github.com/picklr-io/anfctl/internal/metrics"
	"github.com/picklr-io/anfctl/internal/provider"
	"github.com/picklr-io/anfctl/internal/state"
	"github.com/picklr-io/anfctl/internal/workflow"
)

// registry is the gateway registry used by every command. Tests replace it.
var registry = provider.NewRegistry()

// selectedGateway resolves --gateway and --dry-run.
func selectedGateway() string {
	if dryRun {
		return "memory"
	}
	return gatewayName
}

// newRunner assembles a workflow runner from the global flags for the
// subscription a config resolved to. The returned cleanup stops the metrics
// server, if one was started.
func newRunner(cmd *cobra.Command, out io.Writer, subscription string) (*workflow.Runner, func(), error) {
	ctx := cmd.Context()
	logger := logging.Logger()
	name := selectedGateway()

	opened, err := registry.Open(ctx, name, provider.Settings{
		SubscriptionID:    subscription,
		RequestsPerSecond: requestsPerSecond,
		Logger:            logger,
	})
	if err != nil {
		return nil, nil, err
	}

	ledger, err := openLedger(ctx)
	if err != nil {
		return nil, nil, err
	}

	stop, err := startMetrics(ctx, logger)
	if err != nil {
		return nil, nil, err
	}

	if name != "azure" {
		fmt.Fprintf(out, "Using the %s gateway: no Azure resources are touched\n", name)
	}

	runner := workflow.NewRunner(workflow.Options{
		Gateway:   opened.Gateway,
		Preflight: opened.Preflight,
		Ledger:    ledger,
		Console:   NewPrinter(out),
		Logger:    logger,
		Events:    engine.EventCallback(metrics.ObserveEvent),
	})
	return runner, stop, nil
}

func openLedger(ctx context.Context) (state.Backend, error) {
	cfg, err := state.ParseLocation(ledgerLocation)
	if err != nil {
		return nil, &workflow.ConfigError{Err: err}
	}
	backend, err := state.NewBackend(ctx, cfg, state.EncryptionKeyFromEnv())
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return backend, nil
}

func startMetrics(ctx context.Context, logger *slog.Logger) (func(), error) {
	if metricsAddr == "" {
		return func() {}, nil
	}
	ctx, cancel := context.WithCancel(ctx)
	addr, errc, err := metrics.Serve(ctx, metricsAddr)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("start metrics server: %w", err)
	}
	logger.Info("serving metrics", "addr", addr.String())
	return func() {
		cancel()
		if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("metrics server stopped", "error", err)
		}
	}, nil
}
