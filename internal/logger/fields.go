package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields, propagated through the call chain via context.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldJobID is the provider-assigned job ID
	FieldJobID = "job_id"

	// FieldMode is the notification mode of a job (push or pull)
	FieldMode = "mode"

	// FieldComponent is the component/module name
	FieldComponent = "component"
)

// Metric fields, attached per entry.
const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldAttempt is the 1-based status query number within a poll sequence
	FieldAttempt = "attempt"

	// FieldSize is the data size in bytes
	FieldSize = "size"

	// FieldStatus is the operation or job status
	FieldStatus = "status"
)
