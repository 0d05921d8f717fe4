// Package poller re-queries a job's status until it reaches a terminal state.
package poller

import (
	"context"
	"time"

	"github.com/timmy/clearcut/internal/clock"
	"github.com/timmy/clearcut/internal/domain"
	"github.com/timmy/clearcut/internal/logger"
	"github.com/timmy/clearcut/internal/provider"
)

// DefaultInterval is the delay between two status queries of one poll sequence.
const DefaultInterval = 3 * time.Second

// StatusQuerier fetches the current provider state of a job.
type StatusQuerier interface {
	GetJob(ctx context.Context, id string) (*provider.Video, error)
}

// Observer receives every snapshot a poll sequence sees, terminal ones included.
type Observer func(ctx context.Context, snap domain.StatusSnapshot)

// Poller drives a single-flight poll loop: one query at a time, the next one
// scheduled only after the previous one returned.
//
// Failed queries are not retried and there is no attempt cap; only ctx bounds
// a job that never finishes.
type Poller struct {
	client   StatusQuerier
	clock    clock.Clock
	interval time.Duration
}

// New creates a Poller. A nil clock means the wall clock; a non-positive
// interval means DefaultInterval.
func New(client StatusQuerier, clk clock.Clock, interval time.Duration) *Poller {
	if clk == nil {
		clk = clock.Real{}
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{client: client, clock: clk, interval: interval}
}

// Poll queries the job immediately and then every interval until it is done.
// Parameters:
//   - ctx: bounds the whole sequence; cancellation stops it between queries.
//   - id: provider job ID.
//   - observe: optional callback for each snapshot.
//
// Returns:
//   - string: result URL once the job is done.
//   - error: *domain.ProcessingFailedError when the job failed,
//     *domain.PollError when a query failed or ctx ended.
func (p *Poller) Poll(ctx context.Context, id string, observe Observer) (string, error) {
	ctx = logger.SetJobID(ctx, id)
	start := p.clock.Now()

	for attempt := 1; ; attempt++ {
		video, err := p.client.GetJob(ctx, id)
		if err != nil {
			logger.With(logger.Fields{logger.FieldAttempt: attempt}).Warn(ctx, "Status query failed: %v", err)
			return "", &domain.PollError{JobID: id, Err: err}
		}

		snap := video.Snapshot()
		snap.ID = id
		if observe != nil {
			observe(ctx, snap)
		}

		logger.With(logger.Fields{logger.FieldAttempt: attempt}).
			WithStatus(string(snap.Status)).
			Debug(ctx, "Status observed")

		switch snap.Status {
		case domain.JobStatusDone:
			logger.With(logger.Fields{logger.FieldAttempt: attempt}).
				WithDuration(p.clock.Now().Sub(start).Milliseconds()).
				Info(ctx, "Job done")
			return snap.ResultURL, nil
		case domain.JobStatusFailed:
			return "", &domain.ProcessingFailedError{JobID: id}
		}

		select {
		case <-ctx.Done():
			return "", &domain.PollError{JobID: id, Err: ctx.Err()}
		case <-p.clock.After(p.interval):
		}
	}
}
