package engine

import (
	"time"

	"github.com/picklr-io/anfctl/internal/resource"
)

// Stage names the step of the lifecycle an event belongs to.
type Stage string

const (
	StageInspect Stage = "inspect"
	StageEnsure  Stage = "ensure"
	StageUpdate  Stage = "update"
	StageDelete  Stage = "delete"
	StageConfirm Stage = "confirm"
)

type Status string

const (
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusWarning   Status = "warning"
	StatusFailed    Status = "failed"
)

// Event is a progress notification emitted by the engine.
type Event struct {
	Ref      resource.Ref
	ID       string
	Stage    Stage
	Status   Status
	State    LifecycleState
	Outcome  Outcome
	Duration time.Duration
	Err      error
}

// EventCallback receives events. Calls are serialized by the engine.
type EventCallback func(event Event)

// Callbacks fans an event out to several callbacks in order.
func Callbacks(cbs ...EventCallback) EventCallback {
	return func(event Event) {
		for _, cb := range cbs {
			if cb != nil {
				cb(event)
			}
		}
	}
}

func (e *Engine) emit(event Event) {
	if event.ID == "" {
		event.ID = resource.Format(event.Ref)
	}
	if e.callback == nil {
		return
	}
	e.emitMu.Lock()
	defer e.emitMu.Unlock()
	e.callback(event)
}
