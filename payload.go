package respan

import (
	"errors"
	"fmt"
	"time"
)

// Usage is the token accounting for one call. Keys follow the ingest
// service's vocabulary (prompt_tokens, completion_tokens, total_tokens);
// provider-specific extras are preserved as-is.
type Usage map[string]any

// NormalizeUsage returns a copy of u with provider aliases mapped onto the
// ingest vocabulary: input_tokens fills prompt_tokens and output_tokens
// fills completion_tokens when the canonical keys are absent. The original
// keys are kept. Returns nil for an empty usage.
func NormalizeUsage(u Usage) Usage {
	if len(u) == 0 {
		return nil
	}
	normalized := make(Usage, len(u))
	for k, v := range u {
		normalized[k] = v
	}
	if _, ok := normalized["prompt_tokens"]; !ok {
		if v, ok := normalized["input_tokens"]; ok {
			normalized["prompt_tokens"] = v
		}
	}
	if _, ok := normalized["completion_tokens"]; !ok {
		if v, ok := normalized["output_tokens"]; ok {
			normalized["completion_tokens"] = v
		}
	}
	return normalized
}

// Payload is the wire shape of one exported record. Ingest POST bodies are
// JSON arrays of these.
type Payload struct {
	SpanWorkflowName string  `json:"span_workflow_name"`
	SpanName         string  `json:"span_name"`
	LogType          string  `json:"log_type"`
	StartTime        string  `json:"start_time"`
	Timestamp        string  `json:"timestamp"`
	Latency          float64 `json:"latency"`
	Status           Status  `json:"status"`

	Input        string `json:"input,omitempty"`
	Output       string `json:"output,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	TraceUniqueID string `json:"trace_unique_id,omitempty"`
	TraceName     string `json:"trace_name,omitempty"`
	SpanUniqueID  string `json:"span_unique_id,omitempty"`
	SpanParentID  string `json:"span_parent_id,omitempty"`

	SessionIdentifier  string `json:"session_identifier,omitempty"`
	CustomerIdentifier string `json:"customer_identifier,omitempty"`

	Usage              Usage `json:"usage,omitempty"`
	PromptTokens       int   `json:"prompt_tokens,omitempty"`
	CompletionTokens   int   `json:"completion_tokens,omitempty"`
	TotalRequestTokens int   `json:"total_request_tokens,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// BuildPayload converts a finalized CallRecord into its ingest payload.
// Params override the record's defaults field by field; trace_name is only
// emitted alongside trace_unique_id.
func BuildPayload(rec *CallRecord) *Payload {
	params := rec.Params
	if params == nil {
		params = &Params{}
	}

	workflowName := params.SpanWorkflowName
	if workflowName == "" {
		workflowName = rec.Integration
	}
	spanName := params.SpanName
	if spanName == "" {
		spanName = rec.Integration + "." + rec.Method
	}
	logType := params.LogType
	if logType == "" {
		logType = rec.LogType
	}
	if logType == "" {
		logType = LogTypeGeneration
	}

	p := &Payload{
		SpanWorkflowName: workflowName,
		SpanName:         spanName,
		LogType:          logType,
		StartTime:        rec.StartTime.UTC().Format(time.RFC3339Nano),
		Timestamp:        rec.EndTime.UTC().Format(time.RFC3339Nano),
		Latency:          rec.EndTime.Sub(rec.StartTime).Seconds(),
		Status:           rec.Status,
		ErrorMessage:     rec.ErrorMessage,
	}

	if rec.Input != nil {
		p.Input = SafeJSONString(rec.Input)
	}
	if rec.Output != nil {
		p.Output = SafeJSONString(rec.Output)
	}

	if params.TraceUniqueID != "" {
		p.TraceUniqueID = params.TraceUniqueID
		p.TraceName = params.TraceName
		if p.TraceName == "" {
			p.TraceName = workflowName
		}
	}
	p.SpanUniqueID = params.SpanUniqueID
	p.SpanParentID = params.SpanParentID

	p.SessionIdentifier = rec.SessionID
	if p.SessionIdentifier == "" {
		p.SessionIdentifier = params.SessionIdentifier
	}
	p.CustomerIdentifier = params.CustomerIdentifier

	if usage := NormalizeUsage(rec.Usage); usage != nil {
		p.Usage = usage
		p.PromptTokens = intFromAny(usage["prompt_tokens"])
		p.CompletionTokens = intFromAny(usage["completion_tokens"])
		p.TotalRequestTokens = intFromAny(usage["total_tokens"])
	}

	metadata := make(map[string]any, len(params.Metadata)+len(rec.Metadata)+2)
	for k, v := range params.Metadata {
		metadata[k] = v
	}
	metadata["integration"] = rec.Integration
	metadata["method"] = rec.Method
	for k, v := range rec.Metadata {
		metadata[k] = v
	}
	p.Metadata = metadata

	return p
}

// Validate reports whether the payload has the fields the ingest service
// requires. The exporter drops invalid payloads with an error log.
func (p *Payload) Validate() error {
	if p.SpanWorkflowName == "" {
		return errors.New("span_workflow_name is required")
	}
	if p.SpanName == "" {
		return errors.New("span_name is required")
	}
	if p.LogType == "" {
		return errors.New("log_type is required")
	}
	switch p.Status {
	case StatusSuccess, StatusError:
	default:
		return fmt.Errorf("unrecognized status %q", p.Status)
	}
	if p.Timestamp == "" {
		return errors.New("timestamp is required")
	}
	if p.Latency < 0 {
		return fmt.Errorf("negative latency %v", p.Latency)
	}
	return nil
}

// intFromAny extracts an integer token count from a usage value, which may
// arrive as a Go int or a JSON-decoded float64.
func intFromAny(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
