package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/clearcut/internal/domain"
	"github.com/timmy/clearcut/internal/logger"
	"github.com/timmy/clearcut/internal/provider"
	"github.com/timmy/clearcut/internal/service"
)

// JobService is the orchestrator surface the HTTP handlers use.
type JobService interface {
	SubmitAndWait(ctx context.Context, req service.SubmitRequest, wait bool) (*service.SubmitOutcome, error)
	HandleCallback(ctx context.Context, payload provider.Envelope) (*service.CallbackResult, error)
	CheckStatus(ctx context.Context, id string) (*domain.JobRecord, error)
	RecordSnapshot(ctx context.Context, snap domain.StatusSnapshot) (*domain.JobRecord, error)
	GetJob(ctx context.Context, id string) (*domain.JobRecord, error)
	ListJobs(ctx context.Context) ([]domain.JobRecord, error)
	ListProviderVideos(ctx context.Context) ([]provider.Video, error)
}

// writeError maps service errors onto HTTP responses.
func writeError(c *gin.Context, err error) {
	var (
		subErr    *domain.SubmissionError
		failedErr *domain.ProcessingFailedError
		pollErr   *domain.PollError
	)

	status := http.StatusInternalServerError
	body := gin.H{"error": err.Error()}
	switch {
	case errors.As(err, &subErr):
		status = http.StatusBadGateway
		if errors.Is(err, domain.ErrNoInput) || errors.Is(err, domain.ErrInvalidFormat) {
			status = http.StatusBadRequest
		}
		if subErr.StatusCode != 0 {
			body["provider_status"] = subErr.StatusCode
		}
	case errors.As(err, &failedErr):
		status = http.StatusUnprocessableEntity
		body["id"] = failedErr.JobID
		body["status"] = domain.JobStatusFailed
	case errors.As(err, &pollErr):
		status = http.StatusBadGateway
		body["id"] = pollErr.JobID
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	}

	if status >= http.StatusInternalServerError {
		logger.CtxError(c.Request.Context(), "Request failed: %v", err)
	}
	_ = c.Error(err)
	c.JSON(status, body)
}
