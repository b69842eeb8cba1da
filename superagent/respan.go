package superagent

import (
	"context"
	"errors"
	"log/slog"
	"time"

	respan "github.com/respan-ai/respan-go"
)

// ErrNoClient is returned by NewRespanClient when no underlying client is
// supplied.
var ErrNoClient = errors.New("superagent: no client configured: use WithClient")

const integrationName = "superagent"

// Method names as they appear in exported records.
const (
	methodGuard  = "guard"
	methodRedact = "redact"
	methodScan   = "scan"
	methodTest   = "test"
)

// Option configures a RespanClient.
type Option func(*options)

type options struct {
	client   Client
	config   respan.Config
	exporter respan.CallExporter
}

// WithClient wraps an existing safety-tooling client. Required.
func WithClient(client Client) Option {
	return func(o *options) {
		o.client = client
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

// RespanClient wraps a safety-tooling client so every call made through it
// is mirrored to Respan with the tool log type. Methods forward to the
// underlying client and return its results unchanged; export can never
// fail a call. Each method takes an optional trailing *respan.Params (nil
// for none).
type RespanClient struct {
	client   Client
	exporter respan.CallExporter
}

// NewRespanClient builds the wrapper around an existing client. Respan
// export settings default to the environment (RESPAN_API_KEY,
// RESPAN_ENDPOINT); without an API key the wrapper works normally and
// exports nothing.
func NewRespanClient(opts ...Option) (*RespanClient, error) {
	o := &options{config: respan.ConfigFromEnv()}
	for _, opt := range opts {
		opt(o)
	}
	if o.client == nil {
		return nil, ErrNoClient
	}

	exporter := o.exporter
	if exporter == nil {
		exporter = respan.NewExporter(o.config)
	}
	return &RespanClient{client: o.client, exporter: exporter}, nil
}

// Unwrap returns the underlying safety-tooling client.
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

// Guard checks a prompt and exports the call with the prompt as input.
func (rc *RespanClient) Guard(ctx context.Context, req *GuardRequest, params *respan.Params) (*GuardResult, error) {
	var input any
	if req != nil {
		input = req.Input
	}
	return callAndExport(ctx, rc, methodGuard, req, input, params, rc.client.Guard)
}

// Redact masks a text and exports the call with the text as input.
func (rc *RespanClient) Redact(ctx context.Context, req *RedactRequest, params *respan.Params) (*RedactResult, error) {
	var input any
	if req != nil {
		input = req.Text
	}
	return callAndExport(ctx, rc, methodRedact, req, input, params, rc.client.Redact)
}

// Scan inspects a repository and exports the call with the repository as
// input.
func (rc *RespanClient) Scan(ctx context.Context, req *ScanRequest, params *respan.Params) (*ScanResult, error) {
	var input any
	if req != nil {
		input = req.Repo
	}
	return callAndExport(ctx, rc, methodScan, req, input, params, rc.client.Scan)
}

// Test runs the self-check and exports the call without an input payload.
func (rc *RespanClient) Test(ctx context.Context, req *TestRequest, params *respan.Params) (*TestResult, error) {
	return callAndExport(ctx, rc, methodTest, req, nil, params, rc.client.Test)
}

// callAndExport runs one wrapped call and exports its record. The result
// and error are returned exactly as the underlying client produced them;
// on failure the record carries the error message and no output.
func callAndExport[Req, Res any](
	ctx context.Context,
	rc *RespanClient,
	method string,
	req Req,
	input any,
	params *respan.Params,
	call func(context.Context, Req) (Res, error),
) (Res, error) {
	if params.Disabled() {
		return call(ctx, req)
	}

	rec := &respan.CallRecord{
		Integration: integrationName,
		Method:      method,
		StartTime:   time.Now(),
		Input:       input,
		LogType:     respan.LogTypeTool,
		Params:      params,
	}

	res, err := call(ctx, req)
	rec.EndTime = time.Now()
	if err != nil {
		rec.Status = respan.StatusError
		rec.ErrorMessage = err.Error()
	} else {
		rec.Status = respan.StatusSuccess
		rec.Output = res
	}
	rc.exporter.Export(ctx, rec)
	return res, err
}
