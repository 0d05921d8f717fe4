package service

import (
	"context"
	"errors"

	"github.com/timmy/clearcut/internal/domain"
	"github.com/timmy/clearcut/internal/logger"
	"github.com/timmy/clearcut/internal/provider"
)

// CallbackResult tells the caller what a provider callback did. Callbacks are
// acknowledged whatever the result.
type CallbackResult struct {
	// Known is false when no record existed yet for the job.
	Known   bool
	Changed bool
	Record  *domain.JobRecord
}

// HandleCallback applies a provider push notification through the same upsert
// as polling. Repeated deliveries are no-ops. A callback can beat the record
// written at submission; it then creates the record and the submission merges
// its format, source and mode into it afterwards.
func (s *JobService) HandleCallback(ctx context.Context, payload provider.Envelope) (*CallbackResult, error) {
	id := payload.Data.ID
	ctx = logger.SetComponent(ctx, "webhook")
	if id == "" {
		logger.CtxWarn(ctx, "Callback without job id ignored")
		return &CallbackResult{}, nil
	}
	ctx = logger.SetJobID(ctx, id)

	known := true
	if _, err := s.records.GetByID(ctx, id); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		known = false
		logger.With(nil).WithStatus(payload.Data.Attributes.Status).Info(ctx, "Callback arrived before the job was recorded")
	}

	snap := payload.Data.Snapshot()
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = s.clock.Now()
	}
	res, err := s.apply(ctx, snap)
	if err != nil {
		return nil, err
	}
	if res.Changed {
		logger.With(nil).WithStatus(string(res.Record.Status)).Info(ctx, "Callback applied")
	}
	return &CallbackResult{Known: known, Changed: res.Changed, Record: res.Record}, nil
}
