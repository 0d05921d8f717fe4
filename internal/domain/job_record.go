package domain

import "time"

// JobRecord is the persisted summary of a job used for listing and history.
// One row per provider job id; rows are upserted, never deleted.
type JobRecord struct {
	ID           string           `gorm:"type:text;primaryKey" json:"id"`
	Format       OutputFormat     `gorm:"type:text" json:"format"`
	Source       SourceKind       `gorm:"type:text" json:"source,omitempty"`
	Mode         NotificationMode `gorm:"type:text" json:"mode"`
	Status       JobStatus        `gorm:"type:text;index:idx_job_records_status;default:queued" json:"status"`
	ResultURL    string           `gorm:"type:text" json:"result_url,omitempty"`
	MirrorURL    string           `gorm:"type:text" json:"mirror_url,omitempty"`
	ErrorMessage string           `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time        `gorm:"index:idx_job_records_created_at" json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// TableName returns the database table name for JobRecord.
func (JobRecord) TableName() string {
	return "job_records"
}

// Apply merges a snapshot into the record following the state machine.
// It returns true when the record changed. A snapshot that would move the
// status backwards or out of a terminal state leaves status and result untouched,
// and a done snapshot without a result URL counts as processing.
func (r *JobRecord) Apply(s StatusSnapshot) bool {
	s = s.Normalize()
	changed := false
	if r.Format == "" && s.Format != "" {
		r.Format = s.Format
		changed = true
	}
	if r.Source == "" && s.Source != "" {
		r.Source = s.Source
		changed = true
	}
	// Mode is fixed by whoever created the record first.
	if r.Mode == "" && s.Mode != "" {
		r.Mode = s.Mode
		changed = true
	}
	if s.Status == "" || !r.Status.CanTransition(s.Status) {
		return changed
	}
	if r.Status != s.Status {
		r.Status = s.Status
		changed = true
	}
	if r.Status == JobStatusDone && s.ResultURL != "" && r.ResultURL != s.ResultURL {
		r.ResultURL = s.ResultURL
		changed = true
	}
	if r.Status == JobStatusFailed && r.ErrorMessage == "" {
		r.ErrorMessage = "video processing failed"
		changed = true
	}
	return changed
}

// NewJobRecord builds a record from the first snapshot seen for a job.
func NewJobRecord(s StatusSnapshot) *JobRecord {
	s = s.Normalize()
	rec := &JobRecord{
		ID:        s.ID,
		Format:    s.Format,
		Source:    s.Source,
		Mode:      s.Mode,
		Status:    s.Status,
		CreatedAt: s.CreatedAt,
	}
	if rec.Status == "" {
		rec.Status = JobStatusQueued
	}
	if rec.Status == JobStatusDone {
		rec.ResultURL = s.ResultURL
	}
	if rec.Status == JobStatusFailed {
		rec.ErrorMessage = "video processing failed"
	}
	return rec
}

// UpsertResult describes what an upsert did to a record.
type UpsertResult struct {
	Record   *JobRecord
	Previous JobStatus // status before the upsert; empty when the record was created
	Created  bool
	Changed  bool
}

// BecameDone reports whether this upsert moved the job into done.
func (r *UpsertResult) BecameDone() bool {
	return r.Record.Status == JobStatusDone && (r.Created || r.Previous != JobStatusDone)
}
