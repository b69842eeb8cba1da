package respan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// dogfoodHeader marks ingest traffic originating from this SDK so the
// service does not emit traces for its own ingest requests.
const dogfoodHeader = "X-Respan-Dogfood"

// Exporter delivers call records to the Respan ingest service. The payload
// is built and validated synchronously on the caller's goroutine; the HTTP
// POST runs detached (fire-and-forget) with bounded retries. An Exporter
// never surfaces failures to callers: delivery problems are logged and
// dropped.
//
// An Exporter is safe for concurrent use.
type Exporter struct {
	apiKey     string
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
	retry      RetryConfig

	wg sync.WaitGroup
}

// NewExporter builds an Exporter from cfg, filling zero fields with
// defaults. Use ConfigFromEnv for the environment-driven starting point.
func NewExporter(cfg Config) *Exporter {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetry
	}
	return &Exporter{
		apiKey:     cfg.APIKey,
		endpoint:   cfg.Endpoint,
		timeout:    cfg.Timeout,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
		retry:      cfg.Retry,
	}
}

// Export builds the ingest payload for rec and schedules its delivery.
// With no API key configured it does nothing. Export never blocks on the
// network and never reports errors; use Flush to await in-flight
// deliveries.
func (e *Exporter) Export(ctx context.Context, rec *CallRecord) {
	if e.apiKey == "" {
		e.logger.Debug("respan export skipped: no API key configured")
		return
	}

	payload := BuildPayload(rec)
	if err := payload.Validate(); err != nil {
		e.logger.Error("respan export dropped: invalid payload", "error", err)
		return
	}

	body, err := json.Marshal([]*Payload{payload})
	if err != nil {
		e.logger.Error("respan export dropped: marshal failed", "error", err)
		return
	}

	// Delivery must outlive the caller's context; only the per-attempt
	// timeout bounds it.
	sendCtx := context.WithoutCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.send(sendCtx, body); err != nil {
			e.logger.Error("respan ingest failed after retries", "error", err)
		}
	}()
}

// Flush blocks until in-flight deliveries complete or ctx ends.
func (e *Exporter) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// send POSTs body, retrying per the exporter's RetryConfig. 5xx and
// transport errors are retried; other non-2xx statuses are logged as
// rejections and treated as delivered.
func (e *Exporter) send(ctx context.Context, body []byte) error {
	var lastErr error
	for attempt := 0; attempt <= e.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepContext(ctx, e.retry.delay(attempt-1)); err != nil {
				return err
			}
		}

		retryable, err := e.post(ctx, body)
		if err == nil {
			return nil
		}
		if !retryable {
			e.logger.Warn("respan ingest rejected", "error", err)
			return nil
		}
		lastErr = err
		e.logger.Debug("respan ingest attempt failed", "attempt", attempt+1, "error", err)
	}
	return lastErr
}

// post performs one delivery attempt. The bool reports whether a failure is
// retryable.
func (e *Exporter) post(ctx context.Context, body []byte) (bool, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("error creating ingest request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set(dogfoodHeader, "1")

	res, err := e.httpClient.Do(req)
	if err != nil {
		return true, fmt.Errorf("error sending ingest request: %w", err)
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	switch {
	case res.StatusCode >= 500:
		return true, fmt.Errorf("ingest server error status %d", res.StatusCode)
	case res.StatusCode >= 300:
		return false, fmt.Errorf("ingest client error status %d", res.StatusCode)
	}
	return false, nil
}
