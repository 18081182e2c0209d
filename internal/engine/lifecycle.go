package engine

// LifecycleState is what the orchestrator last established about a resource.
type LifecycleState int

const (
	StateUnknown LifecycleState = iota
	StateVerifiedAbsent
	StateVerifiedPresent
	StateCreated
	StateUpdateApplied
	StateDeletionRequested
	StateVerifiedDeleted
)

func (s LifecycleState) String() string {
	switch s {
	case StateVerifiedAbsent:
		return "VerifiedAbsent"
	case StateVerifiedPresent:
		return "VerifiedPresent"
	case StateCreated:
		return "Created"
	case StateUpdateApplied:
		return "UpdateApplied"
	case StateDeletionRequested:
		return "DeletionRequested"
	case StateVerifiedDeleted:
		return "VerifiedDeleted"
	default:
		return "Unknown"
	}
}

// Outcome is the result of EnsureResource.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeCreated
	OutcomeAlreadyExists
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "Created"
	case OutcomeAlreadyExists:
		return "AlreadyExists"
	default:
		return "None"
	}
}
