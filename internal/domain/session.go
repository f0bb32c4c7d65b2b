package domain

import "time"

// Phase is the lifecycle position of a conversion session.
type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseValidating      Phase = "validating"
	PhaseSubmitting      Phase = "submitting"
	PhasePolling         Phase = "polling"
	PhaseSucceeded       Phase = "succeeded"
	PhasePartiallyFailed Phase = "partially-failed"
	PhaseFailed          Phase = "failed"
)

// IsTerminal reports whether no automatic transition leaves this phase.
func (p Phase) IsTerminal() bool {
	return p == PhaseSucceeded || p == PhasePartiallyFailed || p == PhaseFailed
}

// InFlight reports whether a submission is still being worked on.
func (p Phase) InFlight() bool {
	return p == PhaseValidating || p == PhaseSubmitting || p == PhasePolling
}

// Session is one user-initiated conversion and its lifecycle.
// Single mode keeps its one result in Item; Playlist and Batch use Job.
type Session struct {
	ID        string            `json:"id"`
	Phase     Phase             `json:"phase"`
	Request   ConversionRequest `json:"request"`
	Job       *Job              `json:"job,omitempty"`
	Item      *ResultItem       `json:"item,omitempty"`
	Rejected  []string          `json:"rejected,omitempty"`
	Error     string            `json:"error,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Clone returns a deep copy safe to hand to readers.
func (s Session) Clone() Session {
	s.Request = s.Request.Clone()
	s.Job = s.Job.Clone()
	if s.Item != nil {
		item := *s.Item
		s.Item = &item
	}
	s.Rejected = append([]string(nil), s.Rejected...)
	return s
}

// Results returns the per-URL outcomes known so far.
func (s Session) Results() []ResultItem {
	if s.Item != nil {
		return []ResultItem{*s.Item}
	}
	if s.Job != nil {
		return append([]ResultItem(nil), s.Job.Items...)
	}
	return nil
}
