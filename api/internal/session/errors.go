package session

// ValidationError rejects an event without touching session state: missing
// photos, missing price, unauthorized sender, or an event the current state
// has no transition for. Reason is user-facing text.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// ExternalError wraps a collaborator failure (upload, allocation,
// persistence). The session is left in its pre-call state so the operator
// can retry the step.
type ExternalError struct {
	Op  string
	Err error
}

func (e *ExternalError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *ExternalError) Unwrap() error { return e.Err }
