package respan

// Log types recognized by the Respan ingest service.
const (
	LogTypeGeneration = "generation"
	LogTypeTool       = "tool"
)

// Status is the outcome of an intercepted call.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Params carries caller-supplied correlation metadata for one call. All
// fields are optional; the zero value exports with the integration's
// defaults. Params never affect the wrapped call itself, only the record
// sent to Respan. A nil *Params is valid wherever Params are accepted.
type Params struct {
	// TraceUniqueID groups this call under a trace. TraceName is only
	// exported when TraceUniqueID is set and defaults to the workflow name.
	TraceUniqueID string `json:"trace_unique_id,omitempty"`
	TraceName     string `json:"trace_name,omitempty"`

	// SpanName overrides the default "<integration>.<method>" span name.
	SpanName     string `json:"span_name,omitempty"`
	SpanUniqueID string `json:"span_unique_id,omitempty"`
	SpanParentID string `json:"span_parent_id,omitempty"`

	// SpanWorkflowName overrides the integration name used as the workflow
	// label.
	SpanWorkflowName string `json:"span_workflow_name,omitempty"`

	// SessionIdentifier ties the call to a conversation. When the
	// integration extracts a session from the call itself (e.g. a Dify
	// conversation id), the extracted value wins.
	SessionIdentifier  string `json:"session_identifier,omitempty"`
	CustomerIdentifier string `json:"customer_identifier,omitempty"`

	// LogType overrides the integration's default log type.
	LogType string `json:"log_type,omitempty"`

	// Metadata is merged into the exported record's metadata.
	Metadata map[string]any `json:"metadata,omitempty"`

	// DisableLog suppresses export entirely: the wrapped call still runs,
	// no record is produced or sent.
	DisableLog bool `json:"disable_log,omitempty"`
}

// Disabled reports whether export is suppressed for these params. Safe on a
// nil receiver.
func (p *Params) Disabled() bool {
	return p != nil && p.DisableLog
}
