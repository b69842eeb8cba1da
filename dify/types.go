package dify

// ResponseMode selects how the Dify API delivers a response. The client
// sets it on the copy of the request it sends; callers never need to.
type ResponseMode string

const (
	ResponseModeBlocking  ResponseMode = "blocking"
	ResponseModeStreaming ResponseMode = "streaming"
)

// ChatMessageRequest is the body of POST /chat-messages.
type ChatMessageRequest struct {
	// Inputs carries the app's variable values. Dify requires the field
	// even when empty; the client sends {} for a nil map.
	Inputs map[string]any `json:"inputs"`
	Query  string         `json:"query"`
	// ResponseMode is forced by the client method used (blocking or
	// streaming); any caller-set value is overridden on the sent copy.
	ResponseMode   ResponseMode `json:"response_mode,omitempty"`
	ConversationID string       `json:"conversation_id,omitempty"`
	User           string       `json:"user,omitempty"`
}

// CompletionMessageRequest is the body of POST /completion-messages. The
// prompt goes in Inputs under the app's configured variable (usually
// "query").
type CompletionMessageRequest struct {
	Inputs       map[string]any `json:"inputs"`
	ResponseMode ResponseMode   `json:"response_mode,omitempty"`
	User         string         `json:"user,omitempty"`
}

// WorkflowRunRequest is the body of POST /workflows/run.
type WorkflowRunRequest struct {
	Inputs       map[string]any `json:"inputs"`
	ResponseMode ResponseMode   `json:"response_mode,omitempty"`
	User         string         `json:"user,omitempty"`
}

// Usage is Dify's token and price accounting for one message. Prices are
// decimal strings as the API sends them.
type Usage struct {
	PromptTokens     int     `json:"prompt_tokens,omitempty"`
	PromptUnitPrice  string  `json:"prompt_unit_price,omitempty"`
	PromptPriceUnit  string  `json:"prompt_price_unit,omitempty"`
	PromptPrice      string  `json:"prompt_price,omitempty"`
	CompletionTokens int     `json:"completion_tokens,omitempty"`
	CompletionPrice  string  `json:"completion_price,omitempty"`
	TotalTokens      int     `json:"total_tokens,omitempty"`
	TotalPrice       string  `json:"total_price,omitempty"`
	Currency         string  `json:"currency,omitempty"`
	Latency          float64 `json:"latency,omitempty"`
}

// ResponseMetadata is the metadata block of a blocking response or a
// message_end stream event.
type ResponseMetadata struct {
	Usage *Usage `json:"usage,omitempty"`
}

// ChatCompletionResponse is the blocking response of /chat-messages and
// /completion-messages. Chat responses carry MessageID and ConversationID;
// completion responses carry the message identifier in ID.
type ChatCompletionResponse struct {
	Event          string            `json:"event,omitempty"`
	TaskID         string            `json:"task_id,omitempty"`
	ID             string            `json:"id,omitempty"`
	MessageID      string            `json:"message_id,omitempty"`
	ConversationID string            `json:"conversation_id,omitempty"`
	Mode           string            `json:"mode,omitempty"`
	Answer         string            `json:"answer"`
	Metadata       *ResponseMetadata `json:"metadata,omitempty"`
	CreatedAt      int64             `json:"created_at,omitempty"`
}

// WorkflowRunResponse is the blocking response of /workflows/run.
type WorkflowRunResponse struct {
	TaskID        string           `json:"task_id,omitempty"`
	WorkflowRunID string           `json:"workflow_run_id,omitempty"`
	Data          *WorkflowRunData `json:"data,omitempty"`
}

// WorkflowRunData is the result block of a workflow run.
type WorkflowRunData struct {
	ID          string         `json:"id,omitempty"`
	WorkflowID  string         `json:"workflow_id,omitempty"`
	Status      string         `json:"status,omitempty"`
	Outputs     map[string]any `json:"outputs,omitempty"`
	Error       string         `json:"error,omitempty"`
	ElapsedTime float64        `json:"elapsed_time,omitempty"`
	TotalTokens int            `json:"total_tokens,omitempty"`
	TotalSteps  int            `json:"total_steps,omitempty"`
	CreatedAt   int64          `json:"created_at,omitempty"`
	FinishedAt  int64          `json:"finished_at,omitempty"`
}

// Stream event names sent by the Dify SSE endpoints.
const (
	EventMessage          = "message"
	EventAgentMessage     = "agent_message"
	EventMessageEnd       = "message_end"
	EventMessageReplace   = "message_replace"
	EventWorkflowStarted  = "workflow_started"
	EventNodeStarted      = "node_started"
	EventNodeFinished     = "node_finished"
	EventWorkflowFinished = "workflow_finished"
	EventError            = "error"
	EventPing             = "ping"
)

// StreamEvent is one SSE event from a streaming call. Which fields are set
// depends on Event: message events carry Answer deltas, message_end carries
// Metadata, workflow and node events carry Data, and error events carry
// Status, Code and Message. Ping events are filtered out by the client and
// error events are surfaced as errors, so consumers never see either.
type StreamEvent struct {
	Event          string            `json:"event"`
	TaskID         string            `json:"task_id,omitempty"`
	MessageID      string            `json:"message_id,omitempty"`
	ConversationID string            `json:"conversation_id,omitempty"`
	Answer         string            `json:"answer,omitempty"`
	CreatedAt      int64             `json:"created_at,omitempty"`
	Metadata       *ResponseMetadata `json:"metadata,omitempty"`
	WorkflowRunID  string            `json:"workflow_run_id,omitempty"`
	Data           map[string]any    `json:"data,omitempty"`
	Status         int               `json:"status,omitempty"`
	Code           string            `json:"code,omitempty"`
	Message        string            `json:"message,omitempty"`
}
