// Package workflow runs the end-to-end NetApp Files sample lifecycle:
// provision the hierarchy, update the snapshot policy and optionally tear
// everything down again.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/picklr-io/anfctl/internal/engine"
	"github.com/picklr-io/anfctl/internal/gateway"
	"github.com/picklr-io/anfctl/internal/ir"
	"github.com/picklr-io/anfctl/internal/resource"
)

// Exit codes returned by ExitCode.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitConfig    = 2
	ExitCancelled = 130
)

// Preflighter is implemented by gateways that can check the environment
// before anything is created.
type Preflighter interface {
	CheckResourceGroup(ctx context.Context, name string) error
	ResolveSubnetID(ctx context.Context, subscriptionID, resourceGroup, vnet, subnet string) (string, error)
}

// LedgerStore persists the run ledger.
type LedgerStore interface {
	Read(ctx context.Context) (*ir.Ledger, error)
	Write(ctx context.Context, ledger *ir.Ledger) error
	Lock() error
	Unlock() error
}

// Console receives human oriented progress messages.
type Console interface {
	Info(format string, args ...any)
	Success(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// ConfigError marks failures caused by invalid input rather than by the
// remote side.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// preflightError reports a missing resource group or subnet as a
// configuration problem. Any other failure came from the remote side.
func preflightError(err error) error {
	if gateway.IsNotFound(err) {
		return &ConfigError{Err: err}
	}
	return err
}

// ExitCode maps the result of a run to a process exit status.
func ExitCode(err error) int {
	var cfgErr *ConfigError
	var malformed *resource.MalformedIdentifierError
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, engine.ErrCancelled), errors.Is(err, context.Canceled):
		return ExitCancelled
	case errors.As(err, &cfgErr), errors.As(err, &malformed):
		return ExitConfig
	default:
		return ExitFailure
	}
}

// Options wires a Runner. Only Gateway is required.
type Options struct {
	Gateway   gateway.Gateway
	Preflight Preflighter
	Ledger    LedgerStore
	Console   Console
	Clock     clock.Clock
	Logger    *slog.Logger
	// Events receives every engine event in addition to the ledger.
	Events        engine.EventCallback
	EngineOptions []engine.Option
}

// Runner executes workflow commands against one gateway.
type Runner struct {
	opts Options
}

func NewRunner(opts Options) *Runner {
	if opts.Clock == nil {
		opts.Clock = clock.WallClock
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Console == nil {
		opts.Console = nopConsole{}
	}
	return &Runner{opts: opts}
}

// Run provisions every resource, updates the snapshot policy and, when
// cfg.Cleanup is set, waits for the settle delay and tears everything down.
func (r *Runner) Run(ctx context.Context, cfg *ir.Config) error {
	return r.session(ctx, "run", cfg, func(ctx context.Context, s *session) error {
		report, err := s.provision(ctx)
		if err != nil {
			return err
		}
		if err := s.updatePolicy(ctx, report.Result(s.refs.SnapshotPolicy)); err != nil {
			return err
		}
		if !cfg.Cleanup {
			r.opts.Console.Info("Cleanup not requested, resources are left in place")
			return nil
		}
		if err := s.settle(ctx); err != nil {
			return err
		}
		return s.teardown(ctx)
	})
}

// Provision only ensures that every resource exists.
func (r *Runner) Provision(ctx context.Context, cfg *ir.Config) error {
	return r.session(ctx, "provision", cfg, func(ctx context.Context, s *session) error {
		_, err := s.provision(ctx)
		return err
	})
}

// UpdatePolicy applies the snapshot policy update to an existing policy.
func (r *Runner) UpdatePolicy(ctx context.Context, cfg *ir.Config) error {
	return r.session(ctx, "update-policy", cfg, func(ctx context.Context, s *session) error {
		return s.updatePolicy(ctx, nil)
	})
}

// Teardown deletes every resource children first.
func (r *Runner) Teardown(ctx context.Context, cfg *ir.Config) error {
	return r.session(ctx, "teardown", cfg, func(ctx context.Context, s *session) error {
		return s.teardown(ctx)
	})
}

// Status reads every resource and reports whether it exists.
func (r *Runner) Status(ctx context.Context, cfg *ir.Config) (*engine.Report, error) {
	var report *engine.Report
	err := r.session(ctx, "status", cfg, func(ctx context.Context, s *session) error {
		var err error
		report, err = s.engine.Inspect(ctx, s.plan)
		return err
	})
	return report, err
}

type session struct {
	runner *Runner
	cfg    *ir.Config
	plan   *engine.Plan
	refs   Refs
	engine *engine.Engine
}

func (r *Runner) session(ctx context.Context, command string, cfg *ir.Config, fn func(context.Context, *session) error) (err error) {
	if err := cfg.Validate(); err != nil {
		return &ConfigError{Err: err}
	}

	subnetID := SubnetID(cfg)
	if p := r.opts.Preflight; p != nil {
		if err := p.CheckResourceGroup(ctx, cfg.ResourceGroup); err != nil {
			return preflightError(fmt.Errorf("resource group check: %w", err))
		}
		subnetID, err = p.ResolveSubnetID(ctx, cfg.SubscriptionID, cfg.ResourceGroup, cfg.VNetName, cfg.SubnetName)
		if err != nil {
			return preflightError(fmt.Errorf("resolve subnet %s/%s: %w", cfg.VNetName, cfg.SubnetName, err))
		}
	}

	plan, refs, err := BuildPlan(cfg, subnetID)
	if err != nil {
		return err
	}

	policy, err := engine.ParseTimeoutPolicy(cfg.TimeoutPolicy)
	if err != nil {
		return &ConfigError{Err: err}
	}

	rec := newRecorder(r.opts.Clock)
	opts := []engine.Option{
		engine.WithClock(r.opts.Clock),
		engine.WithLogger(r.opts.Logger),
		engine.WithPollConfig(engine.PollConfig{Interval: cfg.PollInterval(), MaxRetries: cfg.PollRetries()}),
		engine.WithParallelism(cfg.Parallelism),
		engine.WithTimeoutPolicy(policy),
		engine.WithEventCallback(engine.Callbacks(rec.observe, r.progress, r.opts.Events)),
	}
	opts = append(opts, r.opts.EngineOptions...)

	s := &session{
		runner: r,
		cfg:    cfg,
		plan:   plan,
		refs:   refs,
		engine: engine.New(r.opts.Gateway, opts...),
	}

	if r.opts.Ledger == nil {
		return fn(ctx, s)
	}

	if err := r.opts.Ledger.Lock(); err != nil {
		return err
	}
	defer func() {
		if uerr := r.opts.Ledger.Unlock(); uerr != nil && err == nil {
			err = uerr
		}
	}()

	ledger, err := r.opts.Ledger.Read(ctx)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}

	started := r.opts.Clock.Now()
	runErr := fn(ctx, s)

	rec.apply(ledger)
	if ledger.Lineage == "" {
		ledger.Lineage = uuid.NewString()
	}
	ledger.Version = 1
	ledger.Serial++
	ledger.LastRun = &ir.RunRecord{
		ID:         uuid.NewString(),
		Command:    command,
		StartedAt:  started.UTC(),
		FinishedAt: r.opts.Clock.Now().UTC(),
		Succeeded:  runErr == nil,
	}
	if runErr != nil {
		ledger.LastRun.Error = runErr.Error()
	}

	// The ledger is written with a fresh context so a cancelled run still
	// records how far it got.
	if werr := r.opts.Ledger.Write(context.WithoutCancel(ctx), ledger); werr != nil {
		return errors.Join(runErr, fmt.Errorf("write ledger: %w", werr))
	}
	return runErr
}

func (s *session) provision(ctx context.Context) (*engine.Report, error) {
	console := s.runner.opts.Console
	console.Info("Provisioning %d resources in %s", len(s.plan.Nodes()), s.cfg.Location)

	report, err := s.engine.Provision(ctx, s.plan)
	if err != nil {
		console.Error("Provisioning failed: %v", err)
		return report, err
	}
	console.Success("All resources are in place")
	return report, nil
}

// updatePolicy raises the hourly retention of the snapshot policy. The
// observed policy supplies the current hourly minute; it is read when not
// provided.
func (s *session) updatePolicy(ctx context.Context, observed *engine.NodeResult) error {
	console := s.runner.opts.Console
	ref := s.refs.SnapshotPolicy

	var current *ir.SnapshotPolicySpec
	if observed != nil && observed.Resource != nil {
		current, _ = observed.Resource.Spec.(*ir.SnapshotPolicySpec)
	}
	if current == nil {
		res, err := s.runner.opts.Gateway.Get(ctx, ref)
		if err != nil {
			err = &engine.UpdateFailedError{Ref: ref, Err: err}
			console.Error("%v", err)
			return err
		}
		current, _ = res.Spec.(*ir.SnapshotPolicySpec)
	}

	hourly := &ir.HourlySchedule{SnapshotsToKeep: s.cfg.UpdatedHourlySnapshotsToKeep}
	switch {
	case current != nil && current.Hourly != nil:
		hourly.Minute = current.Hourly.Minute
	case s.cfg.Schedules != nil && s.cfg.Schedules.Hourly != nil:
		hourly.Minute = s.cfg.Schedules.Hourly.Minute
	}

	enabled := true
	console.Info("Updating %s %q: hourly snapshots to keep = %d", ref.Kind.DisplayName(), ref.LeafName(), hourly.SnapshotsToKeep)
	if _, err := s.engine.ApplyUpdate(ctx, ref, &ir.SnapshotPolicyPatch{
		Location: s.cfg.Location,
		Enabled:  &enabled,
		Hourly:   hourly,
	}); err != nil {
		console.Error("%v", err)
		return err
	}
	console.Success("%s %q updated", ref.Kind.DisplayName(), ref.LeafName())
	return nil
}

func (s *session) settle(ctx context.Context) error {
	delay := s.cfg.SettleDelay()
	if delay <= 0 {
		return nil
	}
	s.runner.opts.Console.Info("Waiting %s before cleanup", delay)
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", engine.ErrCancelled, ctx.Err())
	case <-s.runner.opts.Clock.After(delay):
		return nil
	}
}

func (s *session) teardown(ctx context.Context) error {
	console := s.runner.opts.Console
	console.Info("Cleaning up %d resources", len(s.plan.Nodes()))

	report, err := s.engine.Teardown(ctx, s.plan)
	for _, w := range report.Warnings() {
		console.Warn("%s", w)
	}
	if err != nil {
		console.Error("Cleanup failed: %v", err)
		return err
	}
	console.Success("Cleanup finished")
	return nil
}

// progress prints one console line per completed resource stage.
func (r *Runner) progress(ev engine.Event) {
	if ev.Status != engine.StatusCompleted {
		return
	}
	c := r.opts.Console
	name := fmt.Sprintf("%s %q", ev.Ref.Kind.DisplayName(), ev.Ref.LeafName())
	switch ev.Stage {
	case engine.StageEnsure:
		if ev.Outcome == engine.OutcomeCreated {
			c.Success("%s created: %s", name, ev.ID)
		} else {
			c.Info("%s already exists: %s", name, ev.ID)
		}
	case engine.StageDelete:
		c.Info("%s deletion requested", name)
	case engine.StageConfirm:
		c.Success("%s deleted", name)
	}
}

// recorder turns engine events into ledger records.
type recorder struct {
	clock   clock.Clock
	mu      sync.Mutex
	records map[resource.Ref]*ir.ResourceRecord
	order   []resource.Ref
}

func newRecorder(clk clock.Clock) *recorder {
	return &recorder{clock: clk, records: make(map[resource.Ref]*ir.ResourceRecord)}
}

func (r *recorder) observe(ev engine.Event) {
	if ev.State == engine.StateUnknown || ev.Status == engine.StatusStarted || ev.Status == engine.StatusFailed {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[ev.Ref]; !ok {
		r.order = append(r.order, ev.Ref)
	}
	r.records[ev.Ref] = &ir.ResourceRecord{
		Kind:      ev.Ref.Kind,
		ID:        resource.Format(ev.Ref),
		State:     ev.State.String(),
		UpdatedAt: r.clock.Now().UTC().Truncate(time.Second),
	}
}

func (r *recorder) apply(ledger *ir.Ledger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ref := range r.order {
		ledger.Upsert(r.records[ref])
	}
}

type nopConsole struct{}

func (nopConsole) Info(string, ...any)    {}
func (nopConsole) Success(string, ...any) {}
func (nopConsole) Warn(string, ...any)    {}
func (nopConsole) Error(string, ...any)   {}
