package respan

import (
	"context"
	"time"
)

// CallRecord is one intercepted call, finalized by an integration wrapper
// after the call's outcome is known and then handed to an exporter.
// Records must not be modified once exported.
type CallRecord struct {
	// Integration names the wrapper that produced the record ("dify",
	// "superagent"). It is the default workflow label and the metadata
	// "integration" field.
	Integration string
	// Method is the wrapped operation ("chat_messages", "guard", ...).
	Method string

	StartTime time.Time
	EndTime   time.Time
	Status    Status

	// Input is the request payload. Output is the response payload, or the
	// slice of observed chunks for a streaming call.
	Input  any
	Output any

	// ErrorMessage is set when Status is StatusError.
	ErrorMessage string

	// SessionID is the session extracted from the call (response first,
	// then request); it takes precedence over Params.SessionIdentifier.
	SessionID string
	// Usage is the token accounting extracted from the call, if any.
	Usage Usage
	// Metadata holds per-call extras (message ids and the like) merged into
	// the exported metadata after Params.Metadata.
	Metadata map[string]any
	// LogType is the integration's default log type; Params.LogType wins.
	LogType string

	Params *Params
}

// CallExporter receives finalized call records. Implementations must be
// safe for concurrent use and must never surface failures to the caller;
// export is strictly best-effort.
type CallExporter interface {
	Export(ctx context.Context, rec *CallRecord)
}
