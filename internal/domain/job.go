package domain

import (
	"strings"
	"time"
)

// JobStatus represents the provider-side processing status of a job.
// Values include JobStatusQueued, JobStatusProcessing, JobStatusDone, and JobStatusFailed.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusDone       JobStatus = "done"
	JobStatusFailed     JobStatus = "failed"
)

// ParseJobStatus maps a provider status string onto the job state machine.
// Intermediate states the provider reports (e.g. "uploading") collapse to processing.
func ParseJobStatus(s string) JobStatus {
	switch JobStatus(strings.ToLower(strings.TrimSpace(s))) {
	case JobStatusQueued:
		return JobStatusQueued
	case JobStatusDone:
		return JobStatusDone
	case JobStatusFailed:
		return JobStatusFailed
	default:
		return JobStatusProcessing
	}
}

// IsTerminal reports whether no further transitions can occur.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusDone || s == JobStatusFailed
}

// rank orders statuses along the state machine; terminal states share the top rank.
func (s JobStatus) rank() int {
	switch s {
	case JobStatusQueued:
		return 0
	case JobStatusProcessing:
		return 1
	case JobStatusDone, JobStatusFailed:
		return 2
	default:
		return -1
	}
}

// CanTransition reports whether a job in status s may move to next.
// Staying in the same status is allowed; moving backwards or out of a terminal state is not.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if s == next {
		return true
	}
	if s.IsTerminal() {
		return false
	}
	return next.rank() >= s.rank()
}

// OutputFormat is the artifact format requested from the provider.
type OutputFormat string

const (
	// FormatProBundle is the combined bundle containing every output variant.
	FormatProBundle OutputFormat = "pro_bundle"
	// FormatGIF is an animated loop; the provider caps it at 20 seconds.
	FormatGIF OutputFormat = "gif"
	// FormatMP4 is a video rendered on a solid background.
	FormatMP4 OutputFormat = "mp4"
)

// SolidBackgroundColor is sent with formats that render onto a solid background.
const SolidBackgroundColor = "000000"

// ParseOutputFormat validates a user-supplied format string.
func ParseOutputFormat(s string) (OutputFormat, bool) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatProBundle, FormatGIF, FormatMP4:
		return f, true
	default:
		return "", false
	}
}

// NeedsBackgroundColor reports whether the provider requires a background color for f.
func (f OutputFormat) NeedsBackgroundColor() bool {
	return f == FormatMP4
}

// NotificationMode describes how completion of a job is detected.
type NotificationMode string

const (
	ModePush NotificationMode = "push"
	ModePull NotificationMode = "pull"
)

// SourceKind identifies which input source a job was submitted with.
type SourceKind string

const (
	SourceFile SourceKind = "file"
	SourceURL  SourceKind = "url"
)

// VideoInput holds the input of a submission. At least one of Data or URL must be set;
// when both are present the uploaded file takes precedence.
type VideoInput struct {
	Filename string
	Data     []byte
	URL      string
}

// HasFile reports whether a non-empty binary payload is present.
func (in VideoInput) HasFile() bool {
	return len(in.Data) > 0
}

// HasURL reports whether a non-blank URL is present.
func (in VideoInput) HasURL() bool {
	return strings.TrimSpace(in.URL) != ""
}

// Kind returns the source that will actually be submitted.
func (in VideoInput) Kind() SourceKind {
	if in.HasFile() {
		return SourceFile
	}
	return SourceURL
}

// Job is a unit of work submitted to the provider.
type Job struct {
	ID        string           `json:"id"`
	Format    OutputFormat     `json:"format"`
	Source    SourceKind       `json:"source"`
	Status    JobStatus        `json:"status"`
	ResultURL string           `json:"result_url,omitempty"`
	Mode      NotificationMode `json:"mode"`
	CreatedAt time.Time        `json:"created_at"`
}

// StatusSnapshot is a point-in-time view of a job's status, as observed by
// polling, a provider callback, or a client report.
type StatusSnapshot struct {
	ID        string
	Status    JobStatus
	ResultURL string
	Format    OutputFormat
	Mode      NotificationMode
	Source    SourceKind
	CreatedAt time.Time
}

// Normalize returns the snapshot with a done status demoted to processing when
// it carries no result URL. A job only finishes once its result can be fetched.
func (s StatusSnapshot) Normalize() StatusSnapshot {
	if s.Status == JobStatusDone && s.ResultURL == "" {
		s.Status = JobStatusProcessing
	}
	return s
}
