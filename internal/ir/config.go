package ir

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is the complete input of one workflow run. It can be evaluated from
// a Pkl module or assembled from command-line flags.
type Config struct {
	SubscriptionID string `pkl:"subscriptionId"`
	Location       string `pkl:"location"`
	ResourceGroup  string `pkl:"resourceGroup"`
	VNetName       string `pkl:"vnetName"`
	SubnetName     string `pkl:"subnetName"`

	AccountName        string `pkl:"accountName"`
	SnapshotPolicyName string `pkl:"snapshotPolicyName"`
	PoolName           string `pkl:"poolName"`
	VolumeName         string `pkl:"volumeName"`
	// SnapshotName requests an on-demand snapshot of the volume when set.
	SnapshotName string `pkl:"snapshotName"`

	ServiceLevel    string   `pkl:"serviceLevel"`
	PoolSizeBytes   int64    `pkl:"poolSizeBytes"`
	VolumeSizeBytes int64    `pkl:"volumeSizeBytes"`
	ProtocolTypes   []string `pkl:"protocolTypes"`

	Schedules                    *Schedules `pkl:"schedules"`
	UpdatedHourlySnapshotsToKeep int32      `pkl:"updatedHourlySnapshotsToKeep"`

	Cleanup     bool `pkl:"cleanup"`
	Parallelism int  `pkl:"parallelism"`
	// Poll and settle settings are nil until set, so an explicit zero
	// survives ApplyDefaults.
	PollIntervalSeconds *int   `pkl:"pollIntervalSeconds"`
	PollMaxRetries      *int   `pkl:"pollMaxRetries"`
	SettleSeconds       *int   `pkl:"settleSeconds"`
	TimeoutPolicy       string `pkl:"timeoutPolicy"`
}

const (
	DefaultServiceLevel                 = "Standard"
	DefaultPoolSizeBytes          int64 = 4 * 1024 * 1024 * 1024 * 1024
	DefaultVolumeSizeBytes        int64 = 100 * 1024 * 1024 * 1024
	DefaultUpdatedHourlyRetention int32 = 10
	DefaultPollIntervalSeconds          = 10
	DefaultPollMaxRetries               = 60
	DefaultSettleSeconds                = 5

	TimeoutPolicyWarn = "warn"
	TimeoutPolicyFail = "fail"
)

// DefaultSchedules mirrors the sample policy: five snapshots kept on each
// schedule.
func DefaultSchedules() *Schedules {
	return &Schedules{
		Hourly:  &HourlySchedule{SnapshotsToKeep: 5, Minute: 50},
		Daily:   &DailySchedule{SnapshotsToKeep: 5, Hour: 15, Minute: 30},
		Weekly:  &WeeklySchedule{SnapshotsToKeep: 5, Day: "Monday", Hour: 12, Minute: 30},
		Monthly: &MonthlySchedule{SnapshotsToKeep: 5, DaysOfMonth: "10,11,12", Hour: 14, Minute: 50},
	}
}

// DefaultConfig returns a config with every optional field populated.
func DefaultConfig() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills zero-valued optional fields.
func (c *Config) ApplyDefaults() {
	if c.ServiceLevel == "" {
		c.ServiceLevel = DefaultServiceLevel
	}
	if c.PoolSizeBytes == 0 {
		c.PoolSizeBytes = DefaultPoolSizeBytes
	}
	if c.VolumeSizeBytes == 0 {
		c.VolumeSizeBytes = DefaultVolumeSizeBytes
	}
	if len(c.ProtocolTypes) == 0 {
		c.ProtocolTypes = []string{"NFSv3"}
	}
	if c.Schedules == nil {
		c.Schedules = DefaultSchedules()
	}
	if c.UpdatedHourlySnapshotsToKeep == 0 {
		c.UpdatedHourlySnapshotsToKeep = DefaultUpdatedHourlyRetention
	}
	if c.Parallelism == 0 {
		c.Parallelism = 1
	}
	if c.PollIntervalSeconds == nil {
		c.PollIntervalSeconds = Int(DefaultPollIntervalSeconds)
	}
	if c.PollMaxRetries == nil {
		c.PollMaxRetries = Int(DefaultPollMaxRetries)
	}
	if c.SettleSeconds == nil {
		c.SettleSeconds = Int(DefaultSettleSeconds)
	}
	if c.TimeoutPolicy == "" {
		c.TimeoutPolicy = TimeoutPolicyWarn
	}
}

// Validate reports every missing or inconsistent field at once.
func (c *Config) Validate() error {
	var errs []error
	required := []struct {
		name  string
		value string
	}{
		{"subscriptionId", c.SubscriptionID},
		{"location", c.Location},
		{"resourceGroup", c.ResourceGroup},
		{"vnetName", c.VNetName},
		{"subnetName", c.SubnetName},
		{"accountName", c.AccountName},
		{"snapshotPolicyName", c.SnapshotPolicyName},
		{"poolName", c.PoolName},
		{"volumeName", c.VolumeName},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", r.name))
		}
	}

	switch c.ServiceLevel {
	case "Standard", "Premium", "Ultra", "StandardZRS":
	default:
		errs = append(errs, fmt.Errorf("unsupported service level %q", c.ServiceLevel))
	}
	if c.PoolSizeBytes <= 0 {
		errs = append(errs, fmt.Errorf("poolSizeBytes must be positive"))
	}
	if c.VolumeSizeBytes <= 0 {
		errs = append(errs, fmt.Errorf("volumeSizeBytes must be positive"))
	}
	if intValue(c.PollIntervalSeconds) < 0 || intValue(c.PollMaxRetries) < 0 || intValue(c.SettleSeconds) < 0 {
		errs = append(errs, fmt.Errorf("poll and settle settings must not be negative"))
	}
	if c.Parallelism < 1 {
		errs = append(errs, fmt.Errorf("parallelism must be at least 1"))
	}
	if c.TimeoutPolicy != TimeoutPolicyWarn && c.TimeoutPolicy != TimeoutPolicyFail {
		errs = append(errs, fmt.Errorf("timeoutPolicy must be %q or %q", TimeoutPolicyWarn, TimeoutPolicyFail))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(intValue(c.PollIntervalSeconds)) * time.Second
}

func (c *Config) PollRetries() int {
	return intValue(c.PollMaxRetries)
}

func (c *Config) SettleDelay() time.Duration {
	return time.Duration(intValue(c.SettleSeconds)) * time.Second
}

// Int returns a pointer to v, for the optional settings of Config.
func Int(v int) *int {
	return &v
}

func intValue(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
