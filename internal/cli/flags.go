package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/picklr-io/anfctl/internal/eval"
	"github.com/picklr-io/anfctl/internal/ir"
	"github.com/picklr-io/anfctl/internal/workflow"
)

// configFlags hold command-line overrides of the run configuration. Only
// flags given explicitly replace values from the Pkl module.
type configFlags struct {
	location       string
	resourceGroup  string
	vnet           string
	subnet         string
	account        string
	snapshotPolicy string
	pool           string
	volume         string
	snapshot       string
	serviceLevel   string
	poolSize       string
	volumeSize     string
	protocols      []string
	hourlyKeep     int32
	parallelism    int
	pollInterval   time.Duration
	pollRetries    int
	settle         time.Duration
	timeoutPolicy  string
	properties     map[string]string
}

var cfgFlags configFlags

func addConfigFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&cfgFlags.location, "location", "", "Azure region")
	f.StringVar(&cfgFlags.resourceGroup, "resource-group", "", "existing resource group")
	f.StringVar(&cfgFlags.vnet, "vnet", "", "virtual network holding the delegated subnet")
	f.StringVar(&cfgFlags.subnet, "subnet", "", "subnet delegated to Microsoft.NetApp/volumes")
	f.StringVar(&cfgFlags.account, "account", "", "NetApp account name")
	f.StringVar(&cfgFlags.snapshotPolicy, "snapshot-policy", "", "snapshot policy name")
	f.StringVar(&cfgFlags.pool, "pool", "", "capacity pool name")
	f.StringVar(&cfgFlags.volume, "volume", "", "volume name, also used as its creation token")
	f.StringVar(&cfgFlags.snapshot, "snapshot-name", "", "take an on-demand snapshot with this name")
	f.StringVar(&cfgFlags.serviceLevel, "service-level", "", "service level (Standard, Premium, Ultra, StandardZRS)")
	f.StringVar(&cfgFlags.poolSize, "pool-size", "", "capacity pool size, e.g. 4TiB")
	f.StringVar(&cfgFlags.volumeSize, "volume-size", "", "volume quota, e.g. 100GiB")
	f.StringSliceVar(&cfgFlags.protocols, "protocol", nil, "volume protocol types")
	f.Int32Var(&cfgFlags.hourlyKeep, "hourly-keep", 0, "hourly snapshots to keep after the policy update")
	f.IntVar(&cfgFlags.parallelism, "parallelism", 0, "resources handled concurrently per dependency level")
	f.DurationVar(&cfgFlags.pollInterval, "poll-interval", 0, "interval between deletion checks")
	f.IntVar(&cfgFlags.pollRetries, "poll-retries", 0, "deletion checks before giving up")
	f.DurationVar(&cfgFlags.settle, "settle", 0, "wait between the policy update and cleanup")
	f.StringVar(&cfgFlags.timeoutPolicy, "timeout-policy", "", "what a deletion that never completes means (warn, fail)")
	f.StringToStringVar(&cfgFlags.properties, "prop", nil, "external properties passed to the Pkl module")
}

// loadConfig builds the run configuration: defaults, then the Pkl module
// named by --config, then explicitly set flags.
func loadConfig(cmd *cobra.Command) (*ir.Config, error) {
	cfg := &ir.Config{}
	if configPath != "" {
		dir, file := filepath.Split(configPath)
		if dir == "" {
			dir = "."
		}
		loaded, err := eval.NewEvaluator(dir).LoadConfig(cmd.Context(), file, cfgFlags.properties)
		if err != nil {
			return nil, &workflow.ConfigError{Err: err}
		}
		cfg = loaded
	}
	if err := applyConfigFlags(cmd, cfg); err != nil {
		return nil, &workflow.ConfigError{Err: err}
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

func applyConfigFlags(cmd *cobra.Command, cfg *ir.Config) error {
	f := cmd.Flags()
	set := func(name string, dst *string, v string) {
		if f.Changed(name) {
			*dst = v
		}
	}
	set("location", &cfg.Location, cfgFlags.location)
	set("resource-group", &cfg.ResourceGroup, cfgFlags.resourceGroup)
	set("vnet", &cfg.VNetName, cfgFlags.vnet)
	set("subnet", &cfg.SubnetName, cfgFlags.subnet)
	set("account", &cfg.AccountName, cfgFlags.account)
	set("snapshot-policy", &cfg.SnapshotPolicyName, cfgFlags.snapshotPolicy)
	set("pool", &cfg.PoolName, cfgFlags.pool)
	set("volume", &cfg.VolumeName, cfgFlags.volume)
	set("snapshot-name", &cfg.SnapshotName, cfgFlags.snapshot)
	set("service-level", &cfg.ServiceLevel, cfgFlags.serviceLevel)
	set("timeout-policy", &cfg.TimeoutPolicy, cfgFlags.timeoutPolicy)

	if f.Changed("subscription") || cfg.SubscriptionID == "" {
		cfg.SubscriptionID = subscriptionID
	}
	if f.Changed("pool-size") {
		n, err := parseSize("pool-size", cfgFlags.poolSize)
		if err != nil {
			return err
		}
		cfg.PoolSizeBytes = n
	}
	if f.Changed("volume-size") {
		n, err := parseSize("volume-size", cfgFlags.volumeSize)
		if err != nil {
			return err
		}
		cfg.VolumeSizeBytes = n
	}
	if f.Changed("protocol") {
		cfg.ProtocolTypes = append([]string(nil), cfgFlags.protocols...)
	}
	if f.Changed("hourly-keep") {
		cfg.UpdatedHourlySnapshotsToKeep = cfgFlags.hourlyKeep
	}
	if f.Changed("parallelism") {
		cfg.Parallelism = cfgFlags.parallelism
	}
	if f.Changed("poll-interval") {
		n, err := wholeSeconds("poll-interval", cfgFlags.pollInterval)
		if err != nil {
			return err
		}
		cfg.PollIntervalSeconds = ir.Int(n)
	}
	if f.Changed("poll-retries") {
		cfg.PollMaxRetries = ir.Int(cfgFlags.pollRetries)
	}
	if f.Changed("settle") {
		n, err := wholeSeconds("settle", cfgFlags.settle)
		if err != nil {
			return err
		}
		cfg.SettleSeconds = ir.Int(n)
	}
	return nil
}

// wholeSeconds converts d to seconds. Zero is allowed; a fraction of a
// second is rejected rather than truncated.
func wholeSeconds(flag string, d time.Duration) (int, error) {
	if d%time.Second != 0 {
		return 0, fmt.Errorf("invalid --%s %s: must be a whole number of seconds", flag, d)
	}
	return int(d / time.Second), nil
}

// parseSize accepts sizes such as "4TiB", "100GiB" or a plain byte count.
func parseSize(flag, s string) (int64, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid --%s %q: %w", flag, s, err)
	}
	if n == 0 || n > 1<<62 {
		return 0, fmt.Errorf("invalid --%s %q: out of range", flag, s)
	}
	return int64(n), nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
