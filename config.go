package respan

import (
	"log/slog"
	"net/http"
	"os"
	"time"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvAPIKey   = "RESPAN_API_KEY"
	EnvEndpoint = "RESPAN_ENDPOINT"
)

// DefaultEndpoint is the Respan tracing ingest endpoint used when no
// override is configured.
const DefaultEndpoint = "https://api.respan.ai/api/v1/traces/ingest"

// DefaultTimeout bounds each ingest delivery attempt.
const DefaultTimeout = 10 * time.Second

// Config holds the export destination settings shared by the integration
// wrappers. Zero fields are filled with defaults by NewExporter.
type Config struct {
	// APIKey authenticates against the ingest service. When empty the
	// exporter is a no-op: wrapped calls still run, nothing is sent.
	APIKey string
	// Endpoint is the full ingest URL. Defaults to DefaultEndpoint.
	Endpoint string
	// Timeout bounds each delivery attempt. Defaults to DefaultTimeout.
	Timeout time.Duration
	// HTTPClient overrides the transport. Defaults to http.DefaultClient.
	HTTPClient *http.Client
	// Logger receives export diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
	// Retry controls delivery retries. Defaults to DefaultRetry.
	Retry RetryConfig
}

// ConfigFromEnv builds a Config from RESPAN_API_KEY and RESPAN_ENDPOINT,
// falling back to DefaultEndpoint. Constructor options on the integration
// wrappers override these values field by field.
func ConfigFromEnv() Config {
	endpoint := os.Getenv(EnvEndpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return Config{
		APIKey:   os.Getenv(EnvAPIKey),
		Endpoint: endpoint,
	}
}
