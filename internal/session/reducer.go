package session

import (
	"errors"
	"fmt"
	"time"

	"converter/internal/aggregate"
	"converter/internal/domain"
)

const (
	msgNoResult  = "no result reported by service"
	msgJobFailed = "conversion job failed"
)

// The Apply functions are pure transitions of the session state machine. Each
// returns s unchanged when the transition is not valid from s.Phase.

// Begin starts a new session for req. Any previous state is discarded.
func Begin(id string, req domain.ConversionRequest, now time.Time) domain.Session {
	return domain.Session{
		ID:        id,
		Phase:     domain.PhaseValidating,
		Request:   req.Clone(),
		UpdatedAt: now,
	}
}

// ApplyValidation moves a validating session to submitting, or to failed when
// err is set. validated replaces the request so dispatch sees only accepted urls.
func ApplyValidation(s domain.Session, validated domain.ConversionRequest, rejected []string, err error, now time.Time) domain.Session {
	if s.Phase != domain.PhaseValidating {
		return s
	}
	s = s.Clone()
	s.Rejected = append([]string(nil), rejected...)
	s.UpdatedAt = now
	if err != nil {
		s.Phase = domain.PhaseFailed
		s.Error = err.Error()
		return s
	}
	s.Request = validated.Clone()
	s.Phase = domain.PhaseSubmitting
	return s
}

// ApplyOutcome applies the dispatcher's answer to a submitting session.
func ApplyOutcome(s domain.Session, out domain.Outcome, now time.Time) domain.Session {
	if s.Phase != domain.PhaseSubmitting {
		return s
	}
	s = s.Clone()
	s.UpdatedAt = now

	switch out.Kind {
	case domain.OutcomeImmediate:
		item := out.Item
		if item.SourceURL == "" && len(s.Request.URLs) > 0 {
			item.SourceURL = s.Request.URLs[0]
		}
		s.Item = &item
		if item.Status == domain.ItemStatusSuccess {
			s.Phase = domain.PhaseSucceeded
		} else {
			s.Phase = domain.PhaseFailed
			s.Error = item.Error
		}
	case domain.OutcomeJobStarted:
		s.Phase = domain.PhasePolling
		s.Job = &domain.Job{
			ID:     out.JobID,
			Status: domain.JobStatusPending,
			Items:  aggregate.Seed(s.Request.URLs),
		}
	case domain.OutcomeCompleted:
		items := mergeItems(s.Request, aggregate.Seed(s.Request.URLs), out.Items)
		s.Job = &domain.Job{
			Status:   domain.JobStatusCompleted,
			Progress: 100,
			Items:    settle(items, msgNoResult),
		}
		s.Phase = aggregate.DerivePhase(s.Job.Items)
	default:
		err := out.Err
		if err == nil {
			err = fmt.Errorf("%w: unknown outcome %q", domain.ErrDispatch, out.Kind)
		}
		s.Phase = domain.PhaseFailed
		s.Error = err.Error()
	}
	return s
}

// ApplyPoll folds one status fetch into a polling session. It is the reducer
// (session, pollResponse) -> session.
func ApplyPoll(s domain.Session, u domain.JobUpdate, now time.Time) domain.Session {
	if s.Phase != domain.PhasePolling || s.Job == nil {
		return s
	}
	s = s.Clone()
	s.UpdatedAt = now

	job := s.Job
	job.Status = u.Status
	if u.Terminal() && u.Status != domain.JobStatusFailed {
		job.Status = domain.JobStatusCompleted
	}
	if u.Progress > job.Progress {
		job.Progress = u.Progress
	}
	if job.Status == domain.JobStatusCompleted {
		job.Progress = 100
	}
	job.Items = mergeItems(s.Request, job.Items, u.Items)

	if !u.Terminal() {
		return s
	}
	if u.Status == domain.JobStatusFailed {
		job.Items = settle(job.Items, msgJobFailed)
		if aggregate.Summary(job.Items).Succeeded == 0 {
			s.Phase = domain.PhaseFailed
			s.Error = msgJobFailed
			return s
		}
	} else {
		job.Items = settle(job.Items, msgNoResult)
	}
	s.Phase = aggregate.DerivePhase(job.Items)
	return s
}

// ApplyPollError fails a polling session after a status fetch error. Items
// already received stay visible.
func ApplyPollError(s domain.Session, err error, now time.Time) domain.Session {
	if s.Phase != domain.PhasePolling {
		return s
	}
	s = s.Clone()
	s.UpdatedAt = now
	s.Phase = domain.PhaseFailed
	if !errors.Is(err, domain.ErrPoll) {
		err = fmt.Errorf("%w: %w", domain.ErrPoll, err)
	}
	s.Error = err.Error()
	return s
}

// ApplyCancel ends an in-flight session.
func ApplyCancel(s domain.Session, now time.Time) domain.Session {
	if !s.Phase.InFlight() {
		return s
	}
	s = s.Clone()
	s.UpdatedAt = now
	s.Phase = domain.PhaseFailed
	s.Error = domain.ErrCancelled.Error()
	return s
}

// Surplus reports how many of n reported items a request cannot hold. Only
// Batch is bounded: it keeps exactly one item per submitted url.
func Surplus(req domain.ConversionRequest, n int) int {
	if req.Mode != domain.ModeBatch || n <= len(req.URLs) {
		return 0
	}
	return n - len(req.URLs)
}

// mergeItems folds incoming into existing. Batch results beyond the submitted
// urls are dropped; Playlist results are appended.
func mergeItems(req domain.ConversionRequest, existing, incoming []domain.ResultItem) []domain.ResultItem {
	merged := aggregate.Merge(existing, aggregate.Align(req.URLs, incoming))
	if req.Mode == domain.ModeBatch && len(merged) > len(req.URLs) {
		merged = merged[:len(req.URLs):len(req.URLs)]
	}
	return merged
}

// settle marks items that are still pending as failed with msg.
func settle(items []domain.ResultItem, msg string) []domain.ResultItem {
	for i := range items {
		if !items[i].Status.IsTerminal() {
			items[i].Status = domain.ItemStatusFailed
			items[i].Error = msg
		}
	}
	return items
}
