package dify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/respan-ai/respan-go/internal/httpx"
)

// DefaultAPIBase is the Dify cloud API base URL.
const DefaultAPIBase = "https://api.dify.ai/v1"

const (
	chatMessagesPath       = "/chat-messages"
	completionMessagesPath = "/completion-messages"
	workflowsRunPath       = "/workflows/run"
)

// Client is the Dify call surface the Respan wrapper intercepts. APIClient
// implements it over HTTP; any other implementation (a mock, an enterprise
// gateway client) can be wrapped the same way.
type Client interface {
	ChatMessages(ctx context.Context, req *ChatMessageRequest) (*ChatCompletionResponse, error)
	ChatMessagesStream(ctx context.Context, req *ChatMessageRequest) (*EventStream, error)
	CompletionMessages(ctx context.Context, req *CompletionMessageRequest) (*ChatCompletionResponse, error)
	CompletionMessagesStream(ctx context.Context, req *CompletionMessageRequest) (*EventStream, error)
	RunWorkflows(ctx context.Context, req *WorkflowRunRequest) (*WorkflowRunResponse, error)
	RunWorkflowsStream(ctx context.Context, req *WorkflowRunRequest) (*EventStream, error)
}

// APIClient is a minimal HTTP implementation of Client covering the three
// wrapped operations. It never mutates the caller's request: each call
// sends a copy with the response mode forced to match the method.
type APIClient struct {
	apiKey  string
	apiBase string
	client  *http.Client
}

var _ Client = (*APIClient)(nil)

// APIClientOption configures an APIClient.
type APIClientOption func(*APIClient)

// WithAPIBase overrides the API base URL, for self-hosted Dify instances.
func WithAPIBase(base string) APIClientOption {
	return func(c *APIClient) {
		c.apiBase = base
	}
}

// WithHTTPClient overrides the HTTP client used for API calls.
func WithHTTPClient(client *http.Client) APIClientOption {
	return func(c *APIClient) {
		c.client = client
	}
}

// NewAPIClient creates a client authenticated with the given Dify app API
// key, talking to the Dify cloud API unless WithAPIBase says otherwise.
func NewAPIClient(apiKey string, opts ...APIClientOption) *APIClient {
	c := &APIClient{
		apiKey:  apiKey,
		apiBase: DefaultAPIBase,
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChatMessages sends a chat message and waits for the complete answer.
func (c *APIClient) ChatMessages(ctx context.Context, req *ChatMessageRequest) (*ChatCompletionResponse, error) {
	if req == nil {
		req = &ChatMessageRequest{}
	}
	body := *req
	body.ResponseMode = ResponseModeBlocking
	if body.Inputs == nil {
		body.Inputs = map[string]any{}
	}

	_, res, err := httpx.PostJSON[ChatCompletionResponse](ctx, c.client, c.apiBase+chatMessagesPath, c.apiKey, &body)
	if err != nil {
		return nil, apiError(err)
	}
	return res, nil
}

// ChatMessagesStream sends a chat message and returns the answer as a
// stream of events.
func (c *APIClient) ChatMessagesStream(ctx context.Context, req *ChatMessageRequest) (*EventStream, error) {
	if req == nil {
		req = &ChatMessageRequest{}
	}
	body := *req
	body.ResponseMode = ResponseModeStreaming
	if body.Inputs == nil {
		body.Inputs = map[string]any{}
	}
	return c.stream(ctx, chatMessagesPath, &body)
}

// CompletionMessages runs a completion app and waits for the full answer.
func (c *APIClient) CompletionMessages(ctx context.Context, req *CompletionMessageRequest) (*ChatCompletionResponse, error) {
	if req == nil {
		req = &CompletionMessageRequest{}
	}
	body := *req
	body.ResponseMode = ResponseModeBlocking
	if body.Inputs == nil {
		body.Inputs = map[string]any{}
	}

	_, res, err := httpx.PostJSON[ChatCompletionResponse](ctx, c.client, c.apiBase+completionMessagesPath, c.apiKey, &body)
	if err != nil {
		return nil, apiError(err)
	}
	return res, nil
}

// CompletionMessagesStream runs a completion app and returns the answer as
// a stream of events.
func (c *APIClient) CompletionMessagesStream(ctx context.Context, req *CompletionMessageRequest) (*EventStream, error) {
	if req == nil {
		req = &CompletionMessageRequest{}
	}
	body := *req
	body.ResponseMode = ResponseModeStreaming
	if body.Inputs == nil {
		body.Inputs = map[string]any{}
	}
	return c.stream(ctx, completionMessagesPath, &body)
}

// RunWorkflows executes a workflow and waits for its final result.
func (c *APIClient) RunWorkflows(ctx context.Context, req *WorkflowRunRequest) (*WorkflowRunResponse, error) {
	if req == nil {
		req = &WorkflowRunRequest{}
	}
	body := *req
	body.ResponseMode = ResponseModeBlocking
	if body.Inputs == nil {
		body.Inputs = map[string]any{}
	}

	_, res, err := httpx.PostJSON[WorkflowRunResponse](ctx, c.client, c.apiBase+workflowsRunPath, c.apiKey, &body)
	if err != nil {
		return nil, apiError(err)
	}
	return res, nil
}

// RunWorkflowsStream executes a workflow and returns its progress as a
// stream of events.
func (c *APIClient) RunWorkflowsStream(ctx context.Context, req *WorkflowRunRequest) (*EventStream, error) {
	if req == nil {
		req = &WorkflowRunRequest{}
	}
	body := *req
	body.ResponseMode = ResponseModeStreaming
	if body.Inputs == nil {
		body.Inputs = map[string]any{}
	}
	return c.stream(ctx, workflowsRunPath, &body)
}

// stream POSTs body and converts the SSE response into an EventStream.
// The response body is left open; the iterator closes it when the consumer
// finishes or abandons the stream.
func (c *APIClient) stream(ctx context.Context, path string, body any) (*EventStream, error) {
	res, err := httpx.PostStream(ctx, c.client, c.apiBase+path, c.apiKey, body)
	if err != nil {
		return nil, apiError(err)
	}

	scanner := httpx.NewSSEScanner(res.Body)
	iterator := func(yield func(StreamEvent, error) bool) {
		defer httpx.CloseWithLog(res.Body)

		for {
			if ctx.Err() != nil {
				yield(StreamEvent{}, ctx.Err())
				return
			}

			payload, sseErr := scanner.Next()
			if sseErr == io.EOF {
				return
			}
			if sseErr != nil {
				yield(StreamEvent{}, fmt.Errorf("reading event stream: %w", sseErr))
				return
			}

			var event StreamEvent
			if decodeErr := json.Unmarshal([]byte(payload), &event); decodeErr != nil {
				yield(StreamEvent{}, fmt.Errorf("decoding stream event: %w", decodeErr))
				return
			}

			// Keep-alives are transport noise, not answer data.
			if event.Event == EventPing {
				continue
			}
			if event.Event == EventError {
				yield(StreamEvent{}, &APIError{StatusCode: event.Status, Code: event.Code, Message: event.Message})
				return
			}

			if !yield(event, nil) {
				return
			}
		}
	}
	return NewEventStream(iterator), nil
}
