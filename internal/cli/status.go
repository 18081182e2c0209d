package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/picklr-io/anfctl/internal/gateway"
	"github.com/picklr-io/anfctl/internal/ir"
	"github.com/picklr-io/anfctl/internal/workflow"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether each resource exists",
	RunE:  runStatus,
}

func init() {
	addConfigFlags(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return &workflow.ConfigError{Err: err}
	}
	runner, stop, err := newRunner(cmd, cmd.ErrOrStderr(), cfg.SubscriptionID)
	if err != nil {
		return err
	}
	defer stop()

	report, err := runner.Status(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tNAME\tSTATE\tPROVISIONING\tSIZE")
	for _, res := range report.Results() {
		provisioning := "-"
		if res.Resource != nil && res.Resource.ProvisioningState != "" {
			provisioning = res.Resource.ProvisioningState
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			res.Ref.Kind.DisplayName(), res.Ref.LeafName(), res.State, provisioning, sizeOf(res.Resource))
	}
	return w.Flush()
}

func sizeOf(res *gateway.Resource) string {
	if res == nil {
		return "-"
	}
	switch spec := res.Spec.(type) {
	case *ir.PoolSpec:
		return humanize.IBytes(uint64(spec.SizeBytes))
	case *ir.VolumeSpec:
		return humanize.IBytes(uint64(spec.UsageThresholdBytes))
	default:
		return "-"
	}
}
