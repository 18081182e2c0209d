package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const sampleConfig = `// anfctl run configuration.
// Evaluate with: anfctl run -c anf.pkl

subscriptionId = read?("env:AZURE_SUBSCRIPTION_ID") ?? ""
location = "westus2"
resourceGroup = "anf-rg"
vnetName = "anf-vnet"
subnetName = "anf-subnet"

accountName = "anf-account"
snapshotPolicyName = "anf-policy"
poolName = "anf-pool"
volumeName = "anf-volume"

serviceLevel = "Standard"
poolSizeBytes = 4398046511104 // 4 TiB
volumeSizeBytes = 107374182400 // 100 GiB
protocolTypes = List("NFSv3")

schedules {
  hourly {
    snapshotsToKeep = 5
    minute = 50
  }
  daily {
    snapshotsToKeep = 5
    hour = 15
    minute = 30
  }
  weekly {
    snapshotsToKeep = 5
    day = "Monday"
    hour = 12
    minute = 30
  }
  monthly {
    snapshotsToKeep = 5
    daysOfMonth = "10,11,12"
    hour = 14
    minute = 50
  }
}
updatedHourlySnapshotsToKeep = 10

cleanup = false
timeoutPolicy = "warn"
`

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [file]",
	Short: "Write a sample configuration module",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := "anf.pkl"
	if len(args) > 0 {
		path = args[0]
	}
	if exists(path) && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created %s\n", path)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintf(out, "  1. Edit %s for your subscription and network\n", path)
	fmt.Fprintf(out, "  2. Run 'anfctl validate -c %s' to check it\n", path)
	fmt.Fprintf(out, "  3. Run 'anfctl run -c %s --cleanup' to exercise the lifecycle\n", path)
	return nil
}
