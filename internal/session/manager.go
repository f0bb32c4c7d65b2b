// Package session orchestrates one conversion at a time: validation, dispatch,
// polling and aggregation, exposing a read-only snapshot of the current state.
package session

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"converter/internal/domain"
	"converter/internal/infra"
	"converter/internal/poller"
	"converter/internal/validator"
)

// Dispatcher sends the initial conversion request.
type Dispatcher interface {
	Submit(ctx context.Context, req domain.ConversionRequest) domain.Outcome
}

// Options configures a Manager.
type Options struct {
	Dispatcher Dispatcher
	Poller     *poller.Poller
	Logger     *infra.Logger
	// Context bounds every poll task; cancelling it stops polling.
	Context context.Context
	// OnChange observes every transition in order. It runs with the manager
	// lock held and must not call back into the Manager.
	OnChange func(domain.Session)
	Now      func() time.Time
	NewID    func() string
}

// SubmitOptions controls how Submit treats an in-flight session.
type SubmitOptions struct {
	// Replace cancels an in-flight session instead of rejecting the submit.
	Replace bool
}

// Manager owns the single active session. A generation counter acts as the
// cancellation token: work started for an older generation never writes state.
type Manager struct {
	dispatcher Dispatcher
	poller     *poller.Poller
	logger     *infra.Logger
	base       context.Context
	onChange   func(domain.Session)
	now        func() time.Time
	newID      func() string

	mu      sync.Mutex
	current domain.Session
	gen     uint64
	cancel  context.CancelFunc
	changed chan struct{}
	tasks   sync.WaitGroup
}

// NewManager builds a Manager in the idle phase.
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = infra.Discard()
	}
	base := opts.Context
	if base == nil {
		base = context.Background()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	p := opts.Poller
	if p == nil {
		if f, ok := opts.Dispatcher.(poller.Fetcher); ok {
			p = poller.New(f, poller.DefaultInterval)
		}
	}
	return &Manager{
		dispatcher: opts.Dispatcher,
		poller:     p,
		logger:     logger,
		base:       base,
		onChange:   opts.OnChange,
		now:        now,
		newID:      newID,
		current:    domain.Session{Phase: domain.PhaseIdle, UpdatedAt: now()},
		changed:    make(chan struct{}),
	}
}

// Snapshot returns a copy of the current session.
func (m *Manager) Snapshot() domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.Clone()
}

// Submit validates and dispatches req. Single mode settles before Submit
// returns; Playlist and Batch return in the polling phase with a background
// task driving the job. Submitting while a session is in flight fails with
// domain.ErrBusy unless opts.Replace is set.
func (m *Manager) Submit(ctx context.Context, req domain.ConversionRequest, opts SubmitOptions) (domain.Session, error) {
	m.mu.Lock()
	if m.current.Phase.InFlight() && !opts.Replace {
		snap := m.current.Clone()
		m.mu.Unlock()
		return snap, domain.ErrBusy
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.gen++
	gen := m.gen
	m.set(Begin(m.newID(), req, m.now()))
	id := m.current.ID
	m.mu.Unlock()

	log := m.logger.With().Str("session_id", id).Str("mode", string(req.Mode)).Logger()

	validated, rejected, verr := validator.Validate(req)
	if len(rejected) > 0 {
		log.Info().Strs("rejected", rejected).Msg("session: dropped unacceptable urls")
	}
	snap, ok := m.apply(gen, func(s domain.Session) domain.Session {
		return ApplyValidation(s, validated, rejected, verr, m.now())
	})
	if !ok {
		return snap, domain.ErrCancelled
	}
	if verr != nil {
		log.Info().Err(verr).Msg("session: validation failed")
		return snap, verr
	}

	out := m.dispatcher.Submit(ctx, validated)
	snap, ok = m.apply(gen, func(s domain.Session) domain.Session {
		return ApplyOutcome(s, out, m.now())
	})
	if !ok {
		log.Debug().Msg("session: dispatch result discarded, session superseded")
		return snap, domain.ErrCancelled
	}
	switch out.Kind {
	case domain.OutcomeDispatchFailed:
		log.Warn().Err(out.Err).Msg("session: dispatch failed")
		return snap, out.Err
	case domain.OutcomeCompleted:
		if n := Surplus(validated, len(out.Items)); n > 0 {
			log.Warn().Int("surplus", n).Msg("session: dropped results beyond submitted urls")
		}
		log.Info().Str("phase", string(snap.Phase)).Msg("session: settled")
	case domain.OutcomeJobStarted:
		log.Info().Str("job_id", out.JobID).Msg("session: job started")
		m.startPolling(gen, out.JobID, log)
	default:
		log.Info().Str("phase", string(snap.Phase)).Msg("session: settled")
	}
	return snap, nil
}

// Cancel stops the in-flight session, if any. Once Cancel returns no further
// transition of that session is observable.
func (m *Manager) Cancel() domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.current.Phase.InFlight() {
		return m.current.Clone()
	}
	m.gen++
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.set(ApplyCancel(m.current, m.now()))
	m.logger.Info().Str("session_id", m.current.ID).Msg("session: cancelled")
	return m.current.Clone()
}

// Wait blocks until the session current at call time is terminal or has been
// replaced, and returns the latest snapshot.
func (m *Manager) Wait(ctx context.Context) (domain.Session, error) {
	m.mu.Lock()
	id := m.current.ID
	m.mu.Unlock()
	for {
		m.mu.Lock()
		snap := m.current.Clone()
		changed := m.changed
		m.mu.Unlock()
		if snap.ID != id || !snap.Phase.InFlight() {
			return snap, nil
		}
		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-changed:
		}
	}
}

// Changed returns a channel closed on the next transition.
func (m *Manager) Changed() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.changed
}

// Close cancels any running poll task and waits for it to exit.
func (m *Manager) Close() {
	m.Cancel()
	m.tasks.Wait()
}

func (m *Manager) startPolling(gen uint64, jobID string, log zerolog.Logger) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	if m.poller == nil {
		m.set(ApplyPollError(m.current, errors.New("no poller configured"), m.now()))
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(m.base)
	m.cancel = cancel
	m.tasks.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.tasks.Done()
		defer cancel()
		err := m.poller.Run(ctx, jobID, func(u domain.JobUpdate) bool {
			if n := Surplus(m.requestOf(gen), len(u.Items)); n > 0 {
				log.Warn().Str("job_id", jobID).Int("surplus", n).Msg("session: dropped results beyond submitted urls")
			}
			snap, ok := m.apply(gen, func(s domain.Session) domain.Session {
				return ApplyPoll(s, u, m.now())
			})
			if ok {
				log.Debug().Str("job_id", jobID).Int("progress", u.Progress).Str("phase", string(snap.Phase)).Msg("session: poll tick")
			}
			return ok && snap.Phase == domain.PhasePolling
		})
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			m.mu.Lock()
			// The base context ended without the session being replaced.
			if gen == m.gen {
				m.gen++
				m.set(ApplyCancel(m.current, m.now()))
			}
			m.mu.Unlock()
		default:
			if _, ok := m.apply(gen, func(s domain.Session) domain.Session {
				return ApplyPollError(s, err, m.now())
			}); ok {
				log.Warn().Err(err).Str("job_id", jobID).Msg("session: polling failed")
			}
		}
		log.Info().Str("job_id", jobID).Msg("session: polling stopped")
	}()
}

// requestOf returns the request of the session owned by gen, if still current.
func (m *Manager) requestOf(gen uint64) domain.ConversionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return domain.ConversionRequest{}
	}
	return m.current.Request
}

// apply runs fn against the current session if gen is still current.
func (m *Manager) apply(gen uint64, fn func(domain.Session) domain.Session) (domain.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return m.current.Clone(), false
	}
	m.set(fn(m.current))
	return m.current.Clone(), true
}

// set stores next and notifies observers when anything changed.
// Callers hold m.mu.
func (m *Manager) set(next domain.Session) {
	if reflect.DeepEqual(next, m.current) {
		return
	}
	m.current = next
	close(m.changed)
	m.changed = make(chan struct{})
	if m.onChange != nil {
		m.onChange(next.Clone())
	}
}
