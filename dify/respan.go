package dify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	respan "github.com/respan-ai/respan-go"
)

// ErrNoClient is returned by NewRespanClient when neither an existing
// client nor a Dify API key is configured.
var ErrNoClient = errors.New("dify: no client configured: use WithClient or WithDifyAPIKey")

// Option configures a RespanClient.
type Option func(*options)

type options struct {
	client      Client
	difyAPIKey  string
	difyAPIBase string

	config   respan.Config
	exporter respan.CallExporter
}

// WithClient wraps an existing Dify client. Takes precedence over the
// credential options.
func WithClient(client Client) Option {
	return func(o *options) {
		o.client = client
	}
}

// WithDifyAPIKey constructs an in-package APIClient authenticated with the
// given Dify app API key.
func WithDifyAPIKey(apiKey string) Option {
	return func(o *options) {
		o.difyAPIKey = apiKey
	}
}

// WithDifyAPIBase overrides the Dify API base URL used with WithDifyAPIKey.
func WithDifyAPIBase(apiBase string) Option {
	return func(o *options) {
		o.difyAPIBase = apiBase
	}
}

// WithAPIKey overrides the Respan API key read from RESPAN_API_KEY.
func WithAPIKey(apiKey string) Option {
	return func(o *options) {
		o.config.APIKey = apiKey
	}
}

// WithEndpoint overrides the Respan ingest endpoint read from
// RESPAN_ENDPOINT.
func WithEndpoint(endpoint string) Option {
	return func(o *options) {
		o.config.Endpoint = endpoint
	}
}

// WithTimeout overrides the per-attempt ingest delivery timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.config.Timeout = timeout
	}
}

// WithRetry overrides the ingest delivery retry policy.
func WithRetry(retry respan.RetryConfig) Option {
	return func(o *options) {
		o.config.Retry = retry
	}
}

// WithLogger sets the logger for export diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.config.Logger = logger
	}
}

// WithExporter injects a custom exporter, replacing the HTTP exporter the
// wrapper would otherwise build from its config.
func WithExporter(exporter respan.CallExporter) Option {
	return func(o *options) {
		o.exporter = exporter
	}
}

// RespanClient wraps a Dify client so every call made through it is
// mirrored to Respan. Methods forward to the underlying client and return
// its results unchanged; the export happens on the side and can never fail
// the call. Each method takes an optional trailing *respan.Params (nil for
// none) carrying per-call correlation metadata.
type RespanClient struct {
	client   Client
	exporter respan.CallExporter
}

// NewRespanClient builds the wrapper. A client must be supplied either
// directly (WithClient) or as credentials for the in-package APIClient
// (WithDifyAPIKey); otherwise construction fails with ErrNoClient. Respan
// export settings default to the environment (RESPAN_API_KEY,
// RESPAN_ENDPOINT); without an API key the wrapper works normally and
// exports nothing. Construction performs no network I/O.
func NewRespanClient(opts ...Option) (*RespanClient, error) {
	o := &options{config: respan.ConfigFromEnv()}
	for _, opt := range opts {
		opt(o)
	}

	client := o.client
	if client == nil {
		if o.difyAPIKey == "" {
			return nil, ErrNoClient
		}
		var apiOpts []APIClientOption
		if o.difyAPIBase != "" {
			apiOpts = append(apiOpts, WithAPIBase(o.difyAPIBase))
		}
		client = NewAPIClient(o.difyAPIKey, apiOpts...)
	}

	exporter := o.exporter
	if exporter == nil {
		exporter = respan.NewExporter(o.config)
	}

	return &RespanClient{client: client, exporter: exporter}, nil
}

// Unwrap returns the underlying Dify client.
func (rc *RespanClient) Unwrap() Client {
	return rc.client
}

// Flush waits for in-flight exports to be delivered, bounded by ctx. It is
// a no-op for exporters that do not support draining.
func (rc *RespanClient) Flush(ctx context.Context) error {
	if f, ok := rc.exporter.(interface{ Flush(context.Context) error }); ok {
		return f.Flush(ctx)
	}
	return nil
}

// ChatMessages sends a blocking chat message and exports the call once its
// outcome is known.
func (rc *RespanClient) ChatMessages(ctx context.Context, req *ChatMessageRequest, params *respan.Params) (*ChatCompletionResponse, error) {
	if params.Disabled() {
		return rc.client.ChatMessages(ctx, req)
	}

	rec := newRecord(methodChatMessages, req, params)
	res, err := rc.client.ChatMessages(ctx, req)
	finishRecord(rec, err)
	attachChatResponse(rec, res)
	if rec.SessionID == "" && req != nil {
		rec.SessionID = req.ConversationID
	}
	rc.exporter.Export(ctx, rec)
	return res, err
}

// ChatMessagesStream sends a streaming chat message. The returned stream
// is instrumented: the call is exported exactly once when the consumer
// exhausts it, hits an error, or breaks out early, with the events
// observed so far attached. A stream that is never iterated exports
// nothing.
func (rc *RespanClient) ChatMessagesStream(ctx context.Context, req *ChatMessageRequest, params *respan.Params) (*EventStream, error) {
	if params.Disabled() {
		return rc.client.ChatMessagesStream(ctx, req)
	}

	rec := newRecord(methodChatMessages, req, params)
	if req != nil {
		rec.SessionID = req.ConversationID
	}
	stream, err := rc.client.ChatMessagesStream(ctx, req)
	if err != nil {
		finishRecord(rec, err)
		rc.exporter.Export(ctx, rec)
		return nil, err
	}
	return rc.wrapStream(ctx, rec, stream), nil
}

// CompletionMessages runs a blocking completion and exports the call once
// its outcome is known.
func (rc *RespanClient) CompletionMessages(ctx context.Context, req *CompletionMessageRequest, params *respan.Params) (*ChatCompletionResponse, error) {
	if params.Disabled() {
		return rc.client.CompletionMessages(ctx, req)
	}

	rec := newRecord(methodCompletionMessages, req, params)
	res, err := rc.client.CompletionMessages(ctx, req)
	finishRecord(rec, err)
	attachChatResponse(rec, res)
	rc.exporter.Export(ctx, rec)
	return res, err
}

// CompletionMessagesStream runs a streaming completion with the same
// stream instrumentation as ChatMessagesStream.
func (rc *RespanClient) CompletionMessagesStream(ctx context.Context, req *CompletionMessageRequest, params *respan.Params) (*EventStream, error) {
	if params.Disabled() {
		return rc.client.CompletionMessagesStream(ctx, req)
	}

	rec := newRecord(methodCompletionMessages, req, params)
	stream, err := rc.client.CompletionMessagesStream(ctx, req)
	if err != nil {
		finishRecord(rec, err)
		rc.exporter.Export(ctx, rec)
		return nil, err
	}
	return rc.wrapStream(ctx, rec, stream), nil
}

// RunWorkflows executes a workflow in blocking mode and exports the call
// once its outcome is known.
func (rc *RespanClient) RunWorkflows(ctx context.Context, req *WorkflowRunRequest, params *respan.Params) (*WorkflowRunResponse, error) {
	if params.Disabled() {
		return rc.client.RunWorkflows(ctx, req)
	}

	rec := newRecord(methodRunWorkflows, req, params)
	res, err := rc.client.RunWorkflows(ctx, req)
	finishRecord(rec, err)
	attachWorkflowResponse(rec, res)
	rc.exporter.Export(ctx, rec)
	return res, err
}

// RunWorkflowsStream executes a workflow in streaming mode with the same
// stream instrumentation as ChatMessagesStream.
func (rc *RespanClient) RunWorkflowsStream(ctx context.Context, req *WorkflowRunRequest, params *respan.Params) (*EventStream, error) {
	if params.Disabled() {
		return rc.client.RunWorkflowsStream(ctx, req)
	}

	rec := newRecord(methodRunWorkflows, req, params)
	stream, err := rc.client.RunWorkflowsStream(ctx, req)
	if err != nil {
		finishRecord(rec, err)
		rc.exporter.Export(ctx, rec)
		return nil, err
	}
	return rc.wrapStream(ctx, rec, stream), nil
}

// wrapStream re-yields the underlying stream's events unchanged while
// recording them onto rec. The deferred finalization runs when iteration
// ends for any reason: exhaustion, a mid-stream error, or the consumer
// breaking, returning, or panicking out of the loop. The stream's events,
// extracted session and extracted usage are attached before the record is
// exported.
func (rc *RespanClient) wrapStream(ctx context.Context, rec *respan.CallRecord, stream *EventStream) *EventStream {
	exported := false
	iterator := func(yield func(StreamEvent, error) bool) {
		// Ranging a finished stream again yields nothing; the record was
		// already exported.
		if exported {
			return
		}

		events := []StreamEvent{}
		var streamErr error
		defer func() {
			exported = true
			finishRecord(rec, streamErr)
			rec.Output = events
			if session := streamSession(events); session != "" {
				rec.SessionID = session
			}
			rec.Usage = streamUsage(events)
			rc.exporter.Export(ctx, rec)
		}()

		for event, err := range stream.Iter() {
			if err != nil {
				streamErr = err
				yield(StreamEvent{}, err)
				return
			}
			events = append(events, event)
			if !yield(event, nil) {
				return
			}
		}
	}
	return NewEventStream(iterator)
}
