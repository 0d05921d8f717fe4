package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/timmy/clearcut/internal/clock"
	"github.com/timmy/clearcut/internal/domain"
	"github.com/timmy/clearcut/internal/logger"
	"github.com/timmy/clearcut/internal/notify"
	"github.com/timmy/clearcut/internal/poller"
	"github.com/timmy/clearcut/internal/provider"
)

// ProviderClient is the provider API the orchestrator depends on.
type ProviderClient interface {
	CreateJob(ctx context.Context, req provider.CreateRequest) (*provider.Video, error)
	GetJob(ctx context.Context, id string) (*provider.Video, error)
	ListVideos(ctx context.Context) ([]provider.Video, error)
}

// RecordStore persists job records through a single monotonic upsert.
type RecordStore interface {
	Upsert(ctx context.Context, snap domain.StatusSnapshot) (*domain.UpsertResult, error)
	GetByID(ctx context.Context, id string) (*domain.JobRecord, error)
	List(ctx context.Context) ([]domain.JobRecord, error)
	SetMirrorURL(ctx context.Context, id, mirrorURL string) error
}

// Mirror copies a finished artifact somewhere durable and returns its URL.
type Mirror interface {
	Mirror(ctx context.Context, rec *domain.JobRecord) (string, error)
}

// JobConfig holds configuration for the job service.
type JobConfig struct {
	PollInterval time.Duration
	// WaitTimeout bounds a server-side wait for a pull-mode job.
	WaitTimeout time.Duration
	// MirrorTimeout bounds copying one result into object storage.
	MirrorTimeout time.Duration
	Clock         clock.Clock
}

// JobService submits jobs to the provider and reconciles completion
// notifications from polling and provider callbacks into the record store.
type JobService struct {
	client      ProviderClient
	records     RecordStore
	router      *notify.Router
	poller      *poller.Poller
	mirror      Mirror
	clock       clock.Clock
	waitTimeout time.Duration
	mirrorTTL   time.Duration

	mirrors sync.WaitGroup
}

// NewJobService creates a new job service.
// Parameters:
//   - client: provider API client.
//   - records: job record store.
//   - router: notification router holding the callback base address.
//   - mirror: optional result mirror; nil disables mirroring.
//   - cfg: polling and timeout settings.
//
// Returns:
//   - *JobService: initialized service.
func NewJobService(client ProviderClient, records RecordStore, router *notify.Router, mirror Mirror, cfg *JobConfig) *JobService {
	if cfg == nil {
		cfg = &JobConfig{}
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	waitTimeout := cfg.WaitTimeout
	if waitTimeout <= 0 {
		waitTimeout = 300 * time.Second
	}
	mirrorTTL := cfg.MirrorTimeout
	if mirrorTTL <= 0 {
		mirrorTTL = 5 * time.Minute
	}
	return &JobService{
		client:      client,
		records:     records,
		router:      router,
		poller:      poller.New(client, clk, cfg.PollInterval),
		mirror:      mirror,
		clock:       clk,
		waitTimeout: waitTimeout,
		mirrorTTL:   mirrorTTL,
	}
}

// SubmitRequest is a user submission.
type SubmitRequest struct {
	Input  domain.VideoInput
	Format string
}

// SubmitOutcome is the result of SubmitAndWait: RedirectURL is set when the
// job finished during the wait, otherwise the caller continues with Job.ID.
type SubmitOutcome struct {
	Job         *domain.Job
	RedirectURL string
}

// Submit validates the request, picks the notification mode, creates the job
// at the provider and records it.
func (s *JobService) Submit(ctx context.Context, req SubmitRequest) (*domain.Job, error) {
	if !req.Input.HasFile() && !req.Input.HasURL() {
		return nil, &domain.SubmissionError{Err: domain.ErrNoInput}
	}
	format, ok := domain.ParseOutputFormat(req.Format)
	if !ok {
		return nil, &domain.SubmissionError{Err: fmt.Errorf("%w: %q", domain.ErrInvalidFormat, req.Format)}
	}

	decision := s.router.Route()
	ctx = logger.WithField(ctx, logger.FieldMode, string(decision.Mode))

	video, err := s.client.CreateJob(ctx, provider.CreateRequest{
		Input:       req.Input,
		Format:      format,
		CallbackURL: decision.CallbackURL,
	})
	if err != nil {
		logger.CtxWarn(ctx, "Job submission failed: %v", err)
		var subErr *domain.SubmissionError
		if errors.As(err, &subErr) {
			return nil, err
		}
		return nil, &domain.SubmissionError{Err: err}
	}

	status := video.Status()
	if status.IsTerminal() {
		// A freshly created job reports queued or processing; anything else is
		// picked up by the first status check.
		status = domain.JobStatusProcessing
	}
	job := &domain.Job{
		ID:        video.ID,
		Format:    format,
		Source:    req.Input.Kind(),
		Status:    status,
		Mode:      decision.Mode,
		CreatedAt: s.clock.Now(),
	}
	ctx = logger.SetJobID(ctx, job.ID)

	res, err := s.records.Upsert(ctx, domain.StatusSnapshot{
		ID:        job.ID,
		Status:    job.Status,
		Format:    job.Format,
		Mode:      job.Mode,
		Source:    job.Source,
		CreatedAt: job.CreatedAt,
	})
	if err != nil {
		// The provider owns the job now; a later callback or poll recreates the record.
		logger.CtxError(ctx, "Failed to record submitted job: %v", err)
	} else {
		// An early callback may already have moved the record forward.
		job.Status = res.Record.Status
		job.ResultURL = res.Record.ResultURL
	}

	logger.With(logger.Fields{"format": string(format), "source": string(job.Source)}).
		WithStatus(string(job.Status)).
		Info(ctx, "Job submitted")
	return job, nil
}

// SubmitAndWait submits the job and, for pull-mode jobs when wait is true,
// polls until the job finishes or the wait timeout elapses. A timeout is not
// an error: the outcome then carries only the job for client-side polling.
func (s *JobService) SubmitAndWait(ctx context.Context, req SubmitRequest, wait bool) (*SubmitOutcome, error) {
	job, err := s.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	out := &SubmitOutcome{Job: job}
	if job.Status == domain.JobStatusDone {
		out.RedirectURL = job.ResultURL
		return out, nil
	}
	if !wait || job.Mode != domain.ModePull {
		return out, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.waitTimeout)
	defer cancel()

	resultURL, err := s.Await(waitCtx, job)
	if err != nil {
		var pollErr *domain.PollError
		if errors.As(err, &pollErr) && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			logger.CtxInfo(logger.SetJobID(ctx, job.ID), "Wait timeout reached, handing job back for client polling")
			if rec, gerr := s.records.GetByID(ctx, job.ID); gerr == nil {
				job.Status = rec.Status
			}
			return out, nil
		}
		return nil, err
	}
	job.Status = domain.JobStatusDone
	job.ResultURL = resultURL
	out.RedirectURL = resultURL
	return out, nil
}

// Await polls the provider for job until it reaches a terminal status,
// recording every observed snapshot.
func (s *JobService) Await(ctx context.Context, job *domain.Job) (string, error) {
	ctx = logger.SetJobID(ctx, job.ID)
	return s.poller.Poll(ctx, job.ID, func(ctx context.Context, snap domain.StatusSnapshot) {
		snap.Format = job.Format
		snap.Mode = job.Mode
		snap.Source = job.Source
		snap.CreatedAt = job.CreatedAt
		if _, err := s.apply(ctx, snap); err != nil {
			logger.CtxError(ctx, "Failed to record polled status: %v", err)
		}
	})
}

// CheckStatus performs one provider status query for id and records it.
func (s *JobService) CheckStatus(ctx context.Context, id string) (*domain.JobRecord, error) {
	ctx = logger.SetJobID(ctx, id)
	video, err := s.client.GetJob(ctx, id)
	if err != nil {
		return nil, &domain.PollError{JobID: id, Err: err}
	}
	snap := video.Snapshot()
	snap.ID = id
	res, err := s.apply(ctx, snap)
	if err != nil {
		return nil, err
	}
	return res.Record, nil
}

// RecordSnapshot stores a status reported by a client that observed it by polling.
func (s *JobService) RecordSnapshot(ctx context.Context, snap domain.StatusSnapshot) (*domain.JobRecord, error) {
	if snap.ID == "" {
		return nil, fmt.Errorf("job id is required")
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = s.clock.Now()
	}
	res, err := s.apply(logger.SetJobID(ctx, snap.ID), snap)
	if err != nil {
		return nil, err
	}
	return res.Record, nil
}

// GetJob returns the record for id.
func (s *JobService) GetJob(ctx context.Context, id string) (*domain.JobRecord, error) {
	return s.records.GetByID(ctx, id)
}

// ListJobs returns every recorded job, newest first.
func (s *JobService) ListJobs(ctx context.Context) ([]domain.JobRecord, error) {
	return s.records.List(ctx)
}

// ListProviderVideos returns the provider's own listing of jobs.
func (s *JobService) ListProviderVideos(ctx context.Context) ([]provider.Video, error) {
	videos, err := s.client.ListVideos(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list provider videos: %w", err)
	}
	return videos, nil
}

// Close waits for in-flight result mirrors to finish.
func (s *JobService) Close() {
	s.mirrors.Wait()
}

// apply is the single write path for status changes from any source. When the
// upsert moves a job into done, the completion side effects run once.
func (s *JobService) apply(ctx context.Context, snap domain.StatusSnapshot) (*domain.UpsertResult, error) {
	res, err := s.records.Upsert(ctx, snap)
	if err != nil {
		return nil, err
	}
	if !res.Changed {
		logger.With(nil).WithStatus(string(snap.Status)).Debug(ctx, "Status changed nothing")
		return res, nil
	}

	logger.With(nil).WithStatus(string(res.Record.Status)).Debug(ctx, "Job record updated")
	if res.BecameDone() {
		s.onDone(ctx, res.Record)
	}
	return res, nil
}

func (s *JobService) onDone(ctx context.Context, rec *domain.JobRecord) {
	logger.CtxInfo(ctx, "Result ready: %s", rec.ResultURL)
	if s.mirror == nil || rec.ResultURL == "" {
		return
	}

	snapshot := *rec
	s.mirrors.Add(1)
	go func() {
		defer s.mirrors.Done()
		mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.mirrorTTL)
		defer cancel()

		start := time.Now()
		mirrorURL, err := s.mirror.Mirror(mctx, &snapshot)
		if err != nil {
			logger.CtxError(mctx, "Failed to mirror result: %v", err)
			return
		}
		if err := s.records.SetMirrorURL(mctx, snapshot.ID, mirrorURL); err != nil {
			logger.CtxError(mctx, "Failed to record mirror url: %v", err)
			return
		}
		logger.With(nil).WithDuration(time.Since(start).Milliseconds()).Info(mctx, "Result mirrored to %s", mirrorURL)
	}()
}
