package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoInput is returned when a submission carries neither a file nor a URL.
	ErrNoInput = errors.New("either a video file or a video URL is required")
	// ErrInvalidFormat is returned for output formats the provider does not support.
	ErrInvalidFormat = errors.New("unsupported output format")
	// ErrNotFound is returned when a job record does not exist.
	ErrNotFound = errors.New("job not found")
)

// SubmissionError reports a job that could not be created: bad input or a
// provider rejection. It is never retried.
type SubmissionError struct {
	StatusCode int // provider HTTP status, 0 when the request never got a response
	Err        error
}

func (e *SubmissionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("submission failed (HTTP %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("submission failed: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// PollError reports a status query that failed; the poll loop stops on it.
type PollError struct {
	JobID string
	Err   error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("status query for job %s failed: %v", e.JobID, e.Err)
}

func (e *PollError) Unwrap() error { return e.Err }

// ProcessingFailedError reports that the provider finished the job with status failed.
type ProcessingFailedError struct {
	JobID string
}

func (e *ProcessingFailedError) Error() string {
	return fmt.Sprintf("video processing failed for job %s", e.JobID)
}
