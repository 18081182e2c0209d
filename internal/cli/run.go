package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/picklr-io/anfctl/internal/ir"
	"github.com/picklr-io/anfctl/internal/workflow"
)

var runCleanup bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Provision resources, update the snapshot policy and optionally clean up",
	Long: `Runs the complete lifecycle: ensures the account, snapshot policy, capacity
pool and volume exist, raises the policy's hourly retention and, with
--cleanup, deletes every resource again children first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorkflow(cmd, func(ctx context.Context, r *workflow.Runner, cfg *ir.Config) error {
			if cmd.Flags().Changed("cleanup") {
				cfg.Cleanup = runCleanup
			}
			return r.Run(ctx, cfg)
		})
	},
}

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Ensure every resource exists",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorkflow(cmd, func(ctx context.Context, r *workflow.Runner, cfg *ir.Config) error {
			return r.Provision(ctx, cfg)
		})
	},
}

var updatePolicyCmd = &cobra.Command{
	Use:   "update-policy",
	Short: "Raise the hourly retention of an existing snapshot policy",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorkflow(cmd, func(ctx context.Context, r *workflow.Runner, cfg *ir.Config) error {
			return r.UpdatePolicy(ctx, cfg)
		})
	},
}

var teardownCmd = &cobra.Command{
	Use:   "teardown",
	Short: "Delete every resource, children first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorkflow(cmd, func(ctx context.Context, r *workflow.Runner, cfg *ir.Config) error {
			return r.Teardown(ctx, cfg)
		})
	},
}

func init() {
	runCmd.Flags().BoolVar(&runCleanup, "cleanup", false, "delete every resource after the policy update")
	for _, c := range []*cobra.Command{runCmd, provisionCmd, updatePolicyCmd, teardownCmd} {
		addConfigFlags(c)
	}
}

func runWorkflow(cmd *cobra.Command, fn func(context.Context, *workflow.Runner, *ir.Config) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return &workflow.ConfigError{Err: err}
	}
	runner, stop, err := newRunner(cmd, cmd.OutOrStdout(), cfg.SubscriptionID)
	if err != nil {
		return err
	}
	defer stop()
	return fn(cmd.Context(), runner, cfg)
}
