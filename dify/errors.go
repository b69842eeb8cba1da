package dify

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/respan-ai/respan-go/internal/httpx"
)

// APIError is a failure reported by the Dify API, either as a non-2xx HTTP
// response or as an error event on a stream.
type APIError struct {
	// StatusCode is the HTTP status, or the status carried by a stream
	// error event.
	StatusCode int
	// Code is Dify's machine-readable error code, when present.
	Code string
	// Message is Dify's error description.
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("dify: %s (status %d, code %s)", e.Message, e.StatusCode, e.Code)
	}
	return fmt.Sprintf("dify: request failed with status %d: %s", e.StatusCode, e.Message)
}

// apiError converts a transport-level status error into an *APIError with
// the code and message decoded from Dify's error body. Other errors pass
// through unchanged.
func apiError(err error) error {
	var statusErr *httpx.StatusError
	if !errors.As(err, &statusErr) {
		return err
	}

	parsed := &APIError{StatusCode: statusErr.StatusCode}
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if jsonErr := json.Unmarshal(statusErr.Body, &body); jsonErr == nil {
		parsed.Code = body.Code
		parsed.Message = body.Message
	}
	if parsed.Message == "" {
		parsed.Message = strings.TrimSpace(string(statusErr.Body))
	}
	return parsed
}
