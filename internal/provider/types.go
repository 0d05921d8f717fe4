package provider

import (
	"strings"
	"time"

	"github.com/timmy/clearcut/internal/domain"
)

// Video is the provider's representation of a job, shared by the creation,
// status, listing and callback payloads.
type Video struct {
	ID         string          `json:"id"`
	Type       string          `json:"type,omitempty"`
	Attributes VideoAttributes `json:"attributes"`
	Links      VideoLinks      `json:"links,omitempty"`
}

type VideoAttributes struct {
	Status    string `json:"status"`
	ResultURL string `json:"result_url,omitempty"`
	Format    string `json:"format,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type VideoLinks struct {
	Self string `json:"self,omitempty"`
}

// Envelope wraps a single video; the webhook body uses the same shape.
type Envelope struct {
	Data Video `json:"data"`
}

type listEnvelope struct {
	Data []Video `json:"data"`
}

type apiErrorResponse struct {
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Code   string `json:"code"`
	} `json:"errors"`
}

func (r *apiErrorResponse) message() string {
	if r == nil || len(r.Errors) == 0 {
		return ""
	}
	parts := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msg := e.Title
		if e.Detail != "" {
			msg = strings.TrimSpace(msg + ": " + e.Detail)
		}
		parts = append(parts, msg)
	}
	return strings.Join(parts, "; ")
}

// Status maps the provider status onto the job state machine.
func (v Video) Status() domain.JobStatus {
	return domain.ParseJobStatus(v.Attributes.Status)
}

// Snapshot converts the video into a status snapshot. The result URL is only
// carried for finished jobs, and a finished job without one reads as processing.
func (v Video) Snapshot() domain.StatusSnapshot {
	s := domain.StatusSnapshot{
		ID:     v.ID,
		Status: v.Status(),
	}
	if s.Status == domain.JobStatusDone {
		s.ResultURL = v.Attributes.ResultURL
	}
	if f, ok := domain.ParseOutputFormat(v.Attributes.Format); ok {
		s.Format = f
	}
	if t, err := time.Parse(time.RFC3339, v.Attributes.CreatedAt); err == nil {
		s.CreatedAt = t
	}
	return s.Normalize()
}
