package domain

// OutcomeKind classifies the service's immediate answer to a submission.
type OutcomeKind string

const (
	OutcomeImmediate      OutcomeKind = "immediate"
	OutcomeJobStarted     OutcomeKind = "job_started"
	OutcomeCompleted      OutcomeKind = "completed"
	OutcomeDispatchFailed OutcomeKind = "dispatch_failed"
)

// Outcome is what a dispatcher returns for one submission.
//
// Immediate carries Item (single mode), JobStarted carries JobID, Completed
// carries Items for services that answer multi-item requests synchronously,
// and DispatchFailed carries Err wrapping ErrDispatch.
type Outcome struct {
	Kind  OutcomeKind
	Item  ResultItem
	JobID string
	Items []ResultItem
	Err   error
}

// JobUpdate is one status fetch for a running job.
type JobUpdate struct {
	Status   JobStatus
	Progress int
	Items    []ResultItem
}

// Terminal reports whether polling should stop after this update. Completion
// and full progress are equivalent markers.
func (u JobUpdate) Terminal() bool {
	return u.Status.IsTerminal() || u.Progress >= 100
}
