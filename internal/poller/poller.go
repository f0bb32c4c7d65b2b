// Package poller drives repeated job status fetches on a fixed interval until
// the job reaches a terminal state.
package poller

import (
	"context"
	"fmt"
	"time"

	"converter/internal/domain"
)

// DefaultInterval is the delay between consecutive status fetches.
const DefaultInterval = 2500 * time.Millisecond

// Fetcher retrieves the current state of a job.
type Fetcher interface {
	JobStatus(ctx context.Context, jobID string) (domain.JobUpdate, error)
}

// Ticker fires once per arming: at creation and after every Reset. Tests
// implement it to drive ticks by hand.
type Ticker interface {
	C() <-chan time.Time
	Reset(d time.Duration)
	Stop()
}

type realTicker struct{ t *time.Timer }

func (r realTicker) C() <-chan time.Time   { return r.t.C }
func (r realTicker) Reset(d time.Duration) { r.t.Reset(d) }
func (r realTicker) Stop()                 { r.t.Stop() }

// NewRealTicker arms a time.Timer for d.
func NewRealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTimer(d)}
}

// Poller fetches job status on every tick. The ticker is re-armed only after a
// fetch returns, so fetches never overlap and Interval separates the end of
// one fetch from the start of the next.
type Poller struct {
	Fetcher   Fetcher
	Interval  time.Duration
	NewTicker func(time.Duration) Ticker
}

// New returns a poller with the default interval and a real ticker.
func New(f Fetcher, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{Fetcher: f, Interval: interval, NewTicker: NewRealTicker}
}

// Run polls jobID until a terminal update, a fetch error, ctx cancellation, or
// onUpdate returning false. The first fetch happens one interval after Run
// starts. A fetch error is returned wrapped in domain.ErrPoll and is not
// retried. Run returns nil after a terminal update or when onUpdate stops it.
func (p *Poller) Run(ctx context.Context, jobID string, onUpdate func(domain.JobUpdate) bool) error {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	newTicker := p.NewTicker
	if newTicker == nil {
		newTicker = NewRealTicker
	}
	ticker := newTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
		}

		update, err := p.Fetcher.JobStatus(ctx, jobID)
		if ctx.Err() != nil {
			// Superseded while the fetch was in flight; drop the result.
			return ctx.Err()
		}
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrPoll, err)
		}
		if !onUpdate(update) {
			return nil
		}
		if update.Terminal() {
			return nil
		}
		ticker.Reset(interval)
	}
}
