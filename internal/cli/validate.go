package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/picklr-io/anfctl/internal/workflow"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the run configuration",
	Long:  `Evaluates the Pkl module and flags and checks that every required setting is present.`,
	RunE:  runValidate,
}

func init() {
	addConfigFlags(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprint(out, "Checking configuration... ")

	cfg, err := loadConfig(cmd)
	if err == nil {
		if verr := cfg.Validate(); verr != nil {
			err = &workflow.ConfigError{Err: verr}
		}
	}
	if err != nil {
		fmt.Fprintln(out, "FAILED")
		return err
	}
	fmt.Fprintln(out, "OK")

	plan, _, err := workflow.BuildPlan(cfg, workflow.SubnetID(cfg))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d resources in %s:\n", len(plan.Nodes()), cfg.Location)
	for _, node := range plan.CreationOrder() {
		fmt.Fprintf(out, "  %s %q\n", node.Ref.Kind.DisplayName(), node.Ref.LeafName())
	}
	return nil
}
