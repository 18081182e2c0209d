package engine

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/picklr-io/anfctl/internal/gateway"
	"github.com/picklr-io/anfctl/internal/ir"
	"github.com/picklr-io/anfctl/internal/resource"
)

// NodeResult is what a run established about one node.
type NodeResult struct {
	Ref      resource.Ref
	ID       string
	Outcome  Outcome
	State    LifecycleState
	Resource *gateway.Resource
}

// Report collects node results of a run. It is safe for concurrent use.
type Report struct {
	mu       sync.Mutex
	results  map[resource.Ref]*NodeResult
	order    []resource.Ref
	warnings []string
}

func newReport() *Report {
	return &Report{results: make(map[resource.Ref]*NodeResult)}
}

func (r *Report) record(res *NodeResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.results[res.Ref]; !ok {
		r.order = append(r.order, res.Ref)
	}
	r.results[res.Ref] = res
}

func (r *Report) warn(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, msg)
}

// Result returns the result for ref, or nil if the run never reached it.
func (r *Report) Result(ref resource.Ref) *NodeResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.results[ref]
}

// Results returns results in the order they were first recorded.
func (r *Report) Results() []*NodeResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*NodeResult, 0, len(r.order))
	for _, ref := range r.order {
		out = append(out, r.results[ref])
	}
	return out
}

// Warnings returns non-fatal problems encountered during the run.
func (r *Report) Warnings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.warnings...)
}

func (r *Report) ids(refs []resource.Ref) map[resource.Ref]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make(map[resource.Ref]string, len(refs))
	for _, ref := range refs {
		if res, ok := r.results[ref]; ok && res.ID != "" {
			ids[ref] = res.ID
		}
	}
	return ids
}

// Provision ensures every node of plan exists, parents before children.
// The first failure stops the run; nodes already ensured stay in place.
func (e *Engine) Provision(ctx context.Context, plan *Plan) (*Report, error) {
	report := newReport()

	if e.parallelism <= 1 {
		for _, node := range plan.CreationOrder() {
			if err := e.ensureNode(ctx, plan, node, report); err != nil {
				return report, err
			}
		}
		return report, nil
	}

	for _, level := range plan.Levels() {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.parallelism)
		for _, node := range level {
			g.Go(func() error {
				return e.ensureNode(gctx, plan, node, report)
			})
		}
		if err := g.Wait(); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (e *Engine) ensureNode(ctx context.Context, plan *Plan, node *Node, report *Report) error {
	if err := ctx.Err(); err != nil {
		return cancelled(err)
	}

	spec := node.Spec
	if binder, ok := spec.(ir.DependencyBinder); ok {
		spec = binder.BindDependencies(report.ids(plan.Dependencies(node.Ref)))
	}

	start := e.clock.Now()
	e.emit(Event{Ref: node.Ref, Stage: StageEnsure, Status: StatusStarted})

	opCtx, cancel := withTimeout(ctx, e.opTimeout)
	defer cancel()

	res, outcome, err := e.EnsureResource(opCtx, node.Ref, spec)
	if err != nil {
		if ctx.Err() != nil {
			err = cancelled(err)
		}
		err = &StageError{Stage: StageEnsure, Ref: node.Ref, Err: err}
		e.emit(Event{Ref: node.Ref, Stage: StageEnsure, Status: StatusFailed, Duration: e.clock.Now().Sub(start), Err: err})
		return err
	}

	state := StateCreated
	if outcome == OutcomeAlreadyExists {
		state = StateVerifiedPresent
	}
	report.record(&NodeResult{Ref: node.Ref, ID: res.ID, Outcome: outcome, State: state, Resource: res})
	e.emit(Event{Ref: node.Ref, ID: res.ID, Stage: StageEnsure, Status: StatusCompleted, State: state, Outcome: outcome, Duration: e.clock.Now().Sub(start)})
	return nil
}

// Teardown deletes the nodes of plan children first. Each deletion is
// confirmed before the next one starts. A delete error stops the run and
// leaves the remaining nodes untouched. An unconfirmed deletion is handled
// according to the timeout policy.
func (e *Engine) Teardown(ctx context.Context, plan *Plan) (*Report, error) {
	report := newReport()

	for _, node := range plan.DestructionOrder() {
		if err := ctx.Err(); err != nil {
			return report, cancelled(err)
		}
		if err := e.deleteNode(ctx, node.Ref, report); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (e *Engine) deleteNode(ctx context.Context, ref resource.Ref, report *Report) error {
	logger := e.logger.With("kind", ref.Kind.String(), "name", ref.LeafName())
	start := e.clock.Now()
	e.emit(Event{Ref: ref, Stage: StageDelete, Status: StatusStarted})

	opCtx, cancel := withTimeout(ctx, e.opTimeout)
	err := e.gw.Delete(opCtx, ref)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			err = cancelled(err)
		}
		err = &StageError{Stage: StageDelete, Ref: ref, Err: err}
		e.emit(Event{Ref: ref, Stage: StageDelete, Status: StatusFailed, Duration: e.clock.Now().Sub(start), Err: err})
		return err
	}

	report.record(&NodeResult{Ref: ref, ID: resource.Format(ref), State: StateDeletionRequested})
	e.emit(Event{Ref: ref, Stage: StageDelete, Status: StatusCompleted, State: StateDeletionRequested, Duration: e.clock.Now().Sub(start)})
	logger.Info("deletion accepted, waiting for confirmation")

	start = e.clock.Now()
	e.emit(Event{Ref: ref, Stage: StageConfirm, Status: StatusStarted, State: StateDeletionRequested})

	absence, err := e.poller.WaitForAbsence(ctx, ref, e.poll)
	switch absence {
	case AbsenceConfirmed:
		report.record(&NodeResult{Ref: ref, ID: resource.Format(ref), State: StateVerifiedDeleted})
		e.emit(Event{Ref: ref, Stage: StageConfirm, Status: StatusCompleted, State: StateVerifiedDeleted, Duration: e.clock.Now().Sub(start)})
		return nil

	case AbsenceTimedOut:
		if e.timeoutPolicy == TimeoutPolicyFail {
			err := &StageError{Stage: StageConfirm, Ref: ref, Err: ErrTimedOut}
			e.emit(Event{Ref: ref, Stage: StageConfirm, Status: StatusFailed, State: StateDeletionRequested, Duration: e.clock.Now().Sub(start), Err: err})
			return err
		}
		warning := (&StageError{Stage: StageConfirm, Ref: ref, Err: ErrTimedOut}).Error()
		report.warn(warning)
		logger.Warn("deletion not confirmed, continuing", "retries", e.poll.MaxRetries, "interval", e.poll.Interval)
		e.emit(Event{Ref: ref, Stage: StageConfirm, Status: StatusWarning, State: StateDeletionRequested, Duration: e.clock.Now().Sub(start), Err: ErrTimedOut})
		return nil

	default:
		err = &StageError{Stage: StageConfirm, Ref: ref, Err: err}
		e.emit(Event{Ref: ref, Stage: StageConfirm, Status: StatusFailed, State: StateDeletionRequested, Duration: e.clock.Now().Sub(start), Err: err})
		return err
	}
}
