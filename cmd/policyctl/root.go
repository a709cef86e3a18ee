package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/insurance-upsell/internal/bootstrap"
	"github.com/kirillkom/insurance-upsell/internal/config"
	"github.com/kirillkom/insurance-upsell/internal/core/ports"
	"github.com/kirillkom/insurance-upsell/internal/observability/logging"
)

// services is what the subcommands need from a bootstrapped app.
type services struct {
	Ingestor    ports.PolicyIngestor
	Assistant   ports.PolicyAssistant
	Recommender ports.Recommender
}

// openServices is replaced in tests.
var openServices = func(ctx context.Context) (*services, func(), error) {
	app, err := bootstrap.New(ctx, config.Load(), bootstrap.WithoutQueue())
	if err != nil {
		return nil, nil, err
	}
	return &services{
		Ingestor:    app.Ingestor,
		Assistant:   app.Assistant,
		Recommender: app.Recommender,
	}, app.Close, nil
}

var rootCmd = &cobra.Command{
	Use:           "policyctl",
	Short:         "Operate the insurance policy retrieval engine",
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		// stdout carries command output and the MCP stdio stream
		slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "policyctl", config.Load().LogLevel))
	},
}
