// Package cli implements the anfctl command line.
package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/picklr-io/anfctl/internal/logging"
	"github.com/picklr-io/anfctl/internal/state"
)

var (
	logLevel          string
	logFormat         string
	configPath        string
	ledgerLocation    string
	gatewayName       string
	dryRun            bool
	metricsAddr       string
	subscriptionID    string
	requestsPerSecond float64
)

var rootCmd = &cobra.Command{
	Use:   "anfctl",
	Short: "Provision and clean up Azure NetApp Files resources",
	Long: `anfctl drives the Azure NetApp Files resource hierarchy through its lifecycle.

A run creates a NetApp account, a snapshot policy, a capacity pool and a
volume that uses the policy, raises the policy's hourly retention and,
when asked to, deletes everything again children first. Every resource
is checked before it is created so repeated runs converge.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(logLevel, logFormat)
		if !stdoutIsTerminal() {
			noColor = true
		}
		return nil
	},
}

// Execute runs the root command. The context is cancelled on interrupt.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	pf.BoolVar(&noColor, "no-color", false, "disable colored output")
	pf.StringVarP(&configPath, "config", "c", "", "Pkl module with the run configuration")
	pf.StringVar(&ledgerLocation, "ledger", state.DefaultPath, "ledger location: a file path or s3://bucket/key")
	pf.StringVar(&gatewayName, "gateway", "azure", "management gateway (azure, memory)")
	pf.BoolVar(&dryRun, "dry-run", false, "run against the in-memory gateway; nothing is created in Azure")
	pf.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	pf.StringVar(&subscriptionID, "subscription", os.Getenv("AZURE_SUBSCRIPTION_ID"), "Azure subscription ID")
	pf.Float64Var(&requestsPerSecond, "requests-per-second", 0, "limit management API requests per second (0 disables)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(updatePolicyCmd)
	rootCmd.AddCommand(teardownCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(ledgerCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}
