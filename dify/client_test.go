package dify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// ---- APIClient blocking tests -----------------------------------------------

// TestAPIClient_ChatMessages verifies the blocking chat call: request path,
// bearer auth, forced blocking response mode, defaulted inputs, and the
// decoded response.
func TestAPIClient_ChatMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat-messages" {
			t.Errorf("expected path /chat-messages, got %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer dify-key" {
			t.Errorf("expected bearer auth, got %q", auth)
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("expected JSON request body, got error %v", err)
		}
		if body["response_mode"] != "blocking" {
			t.Errorf("expected response_mode=blocking, got %v", body["response_mode"])
		}
		if body["query"] != "hello" {
			t.Errorf("expected query=hello, got %v", body["query"])
		}
		if inputs, ok := body["inputs"].(map[string]any); !ok || len(inputs) != 0 {
			t.Errorf("expected empty inputs object, got %v", body["inputs"])
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"event": "message",
			"message_id": "msg-1",
			"conversation_id": "conv-1",
			"mode": "chat",
			"answer": "Hi there!",
			"metadata": {"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}},
			"created_at": 1716800000
		}`)
	}))
	defer server.Close()

	client := NewAPIClient("dify-key", WithAPIBase(server.URL), WithHTTPClient(server.Client()))
	res, err := client.ChatMessages(context.Background(), &ChatMessageRequest{Query: "hello", User: "u-1"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Answer != "Hi there!" {
		t.Errorf("expected answer %q, got %q", "Hi there!", res.Answer)
	}
	if res.ConversationID != "conv-1" {
		t.Errorf("expected conversation conv-1, got %q", res.ConversationID)
	}
	if res.Metadata == nil || res.Metadata.Usage == nil || res.Metadata.Usage.TotalTokens != 15 {
		t.Errorf("expected usage with 15 total tokens, got %+v", res.Metadata)
	}
}

// TestAPIClient_DoesNotMutateCallerRequest verifies that forcing the
// response mode and defaulting inputs happen on a copy, never on the
// caller's struct.
func TestAPIClient_DoesNotMutateCallerRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"answer": "ok"}`)
	}))
	defer server.Close()

	client := NewAPIClient("dify-key", WithAPIBase(server.URL), WithHTTPClient(server.Client()))
	req := &ChatMessageRequest{Query: "hello"}
	if _, err := client.ChatMessages(context.Background(), req); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if req.ResponseMode != "" {
		t.Errorf("expected caller's response mode untouched, got %q", req.ResponseMode)
	}
	if req.Inputs != nil {
		t.Errorf("expected caller's inputs untouched, got %v", req.Inputs)
	}
}

// TestAPIClient_CompletionMessages verifies the completion endpoint path
// and response decoding.
func TestAPIClient_CompletionMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/completion-messages" {
			t.Errorf("expected path /completion-messages, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": "cmpl-1", "answer": "done"}`)
	}))
	defer server.Close()

	client := NewAPIClient("dify-key", WithAPIBase(server.URL), WithHTTPClient(server.Client()))
	res, err := client.CompletionMessages(context.Background(), &CompletionMessageRequest{
		Inputs: map[string]any{"query": "write a haiku"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.ID != "cmpl-1" || res.Answer != "done" {
		t.Errorf("unexpected response %+v", res)
	}
}

// TestAPIClient_RunWorkflows verifies the workflow endpoint path and the
// decoded result data.
func TestAPIClient_RunWorkflows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/workflows/run" {
			t.Errorf("expected path /workflows/run, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"task_id": "task-1",
			"workflow_run_id": "run-1",
			"data": {"id": "run-1", "status": "succeeded", "outputs": {"result": "42"}, "total_tokens": 99}
		}`)
	}))
	defer server.Close()

	client := NewAPIClient("dify-key", WithAPIBase(server.URL), WithHTTPClient(server.Client()))
	res, err := client.RunWorkflows(context.Background(), &WorkflowRunRequest{
		Inputs: map[string]any{"question": "meaning of life"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.WorkflowRunID != "run-1" {
		t.Errorf("expected workflow run id run-1, got %q", res.WorkflowRunID)
	}
	if res.Data == nil || res.Data.Status != "succeeded" || res.Data.TotalTokens != 99 {
		t.Errorf("unexpected workflow data %+v", res.Data)
	}
}

// TestAPIClient_ErrorBodyDecoded verifies that a non-2xx response becomes
// an *APIError carrying Dify's code and message.
func TestAPIClient_ErrorBodyDecoded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"code": "app_unavailable", "message": "App unavailable", "status": 404}`)
	}))
	defer server.Close()

	client := NewAPIClient("dify-key", WithAPIBase(server.URL), WithHTTPClient(server.Client()))
	_, err := client.ChatMessages(context.Background(), &ChatMessageRequest{Query: "hello"})
	if err == nil {
		t.Fatal("expected error for 404 response, got nil")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != 404 {
		t.Errorf("expected status 404, got %d", apiErr.StatusCode)
	}
	if apiErr.Code != "app_unavailable" {
		t.Errorf("expected code app_unavailable, got %q", apiErr.Code)
	}
	if apiErr.Message != "App unavailable" {
		t.Errorf("expected message from body, got %q", apiErr.Message)
	}
}

// ---- APIClient streaming tests ----------------------------------------------

const chatSSEBody = `data: {"event": "message", "task_id": "task-1", "message_id": "msg-1", "conversation_id": "conv-1", "answer": "Hel"}

data: {"event": "ping"}

data: {"event": "message", "message_id": "msg-1", "conversation_id": "conv-1", "answer": "lo"}

data: {"event": "message_end", "message_id": "msg-1", "conversation_id": "conv-1", "metadata": {"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}}}

`

// TestAPIClient_ChatMessagesStream verifies SSE decoding: the request
// forces streaming mode, ping keep-alives are filtered, and events arrive
// in order.
func TestAPIClient_ChatMessagesStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if accept := r.Header.Get("Accept"); accept != "text/event-stream" {
			t.Errorf("expected SSE accept header, got %q", accept)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("expected JSON request body, got error %v", err)
		}
		if body["response_mode"] != "streaming" {
			t.Errorf("expected response_mode=streaming, got %v", body["response_mode"])
		}

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, chatSSEBody)
	}))
	defer server.Close()

	client := NewAPIClient("dify-key", WithAPIBase(server.URL), WithHTTPClient(server.Client()))
	stream, err := client.ChatMessagesStream(context.Background(), &ChatMessageRequest{Query: "hello"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	events, err := stream.Events()
	if err != nil {
		t.Fatalf("expected clean stream, got %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events (pings filtered), got %d", len(events))
	}
	if events[0].Answer != "Hel" || events[1].Answer != "lo" {
		t.Errorf("unexpected answer deltas: %q, %q", events[0].Answer, events[1].Answer)
	}
	if events[2].Event != EventMessageEnd {
		t.Errorf("expected final message_end, got %q", events[2].Event)
	}
	if events[2].Metadata == nil || events[2].Metadata.Usage == nil || events[2].Metadata.Usage.TotalTokens != 15 {
		t.Errorf("expected usage on message_end, got %+v", events[2].Metadata)
	}
}

// TestAPIClient_Stream_ErrorEvent verifies that an error event terminates
// the stream with an *APIError after delivering the preceding events.
func TestAPIClient_Stream_ErrorEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"event": "message", "answer": "partial"}

data: {"event": "error", "status": 400, "code": "completion_request_error", "message": "model overloaded"}

`)
	}))
	defer server.Close()

	client := NewAPIClient("dify-key", WithAPIBase(server.URL), WithHTTPClient(server.Client()))
	stream, err := client.ChatMessagesStream(context.Background(), &ChatMessageRequest{Query: "hello"})
	if err != nil {
		t.Fatalf("expected no error starting stream, got %v", err)
	}

	events, err := stream.Events()
	if len(events) != 1 || events[0].Answer != "partial" {
		t.Errorf("expected the event before the failure, got %v", events)
	}
	if err == nil {
		t.Fatal("expected stream error, got nil")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != 400 || apiErr.Code != "completion_request_error" {
		t.Errorf("unexpected error fields: %+v", apiErr)
	}
}

// TestAPIClient_Stream_HTTPError verifies that a non-2xx status on the
// stream request surfaces as *APIError before any stream is returned.
func TestAPIClient_Stream_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"code": "unauthorized", "message": "invalid api key"}`)
	}))
	defer server.Close()

	client := NewAPIClient("bad-key", WithAPIBase(server.URL), WithHTTPClient(server.Client()))
	_, err := client.ChatMessagesStream(context.Background(), &ChatMessageRequest{Query: "hello"})
	if err == nil {
		t.Fatal("expected error for 401 response, got nil")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != 401 {
		t.Errorf("expected status 401, got %d", apiErr.StatusCode)
	}
}

// TestAPIClient_Stream_ContextCancelled verifies that cancelling the
// context ends iteration with the context's error.
func TestAPIClient_Stream_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, chatSSEBody)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	client := NewAPIClient("dify-key", WithAPIBase(server.URL), WithHTTPClient(server.Client()))
	stream, err := client.ChatMessagesStream(ctx, &ChatMessageRequest{Query: "hello"})
	if err != nil {
		t.Fatalf("expected no error starting stream, got %v", err)
	}
	cancel()

	_, err = stream.Events()
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// TestAPIClient_RunWorkflowsStream verifies workflow SSE decoding through
// CollectWorkflowRun.
func TestAPIClient_RunWorkflowsStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/workflows/run" {
			t.Errorf("expected path /workflows/run, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"event": "workflow_started", "task_id": "task-1", "workflow_run_id": "run-1"}

data: {"event": "node_finished", "workflow_run_id": "run-1", "data": {"node_id": "n1"}}

data: {"event": "workflow_finished", "workflow_run_id": "run-1", "data": {"id": "run-1", "status": "succeeded", "outputs": {"text": "done"}, "total_tokens": 42}}

`)
	}))
	defer server.Close()

	client := NewAPIClient("dify-key", WithAPIBase(server.URL), WithHTTPClient(server.Client()))
	stream, err := client.RunWorkflowsStream(context.Background(), &WorkflowRunRequest{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	res, err := stream.CollectWorkflowRun()
	if err != nil {
		t.Fatalf("expected clean collection, got %v", err)
	}
	if res.WorkflowRunID != "run-1" || res.TaskID != "task-1" {
		t.Errorf("unexpected identifiers: %+v", res)
	}
	if res.Data == nil || res.Data.Status != "succeeded" || res.Data.TotalTokens != 42 {
		t.Errorf("unexpected workflow data: %+v", res.Data)
	}
	if res.Data.Outputs["text"] != "done" {
		t.Errorf("expected outputs decoded, got %v", res.Data.Outputs)
	}
}

// TestAPIClient_Stream_EarlyBreakClosesBody verifies that abandoning the
// loop closes the response body so the connection is released.
func TestAPIClient_Stream_EarlyBreakClosesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, chatSSEBody)
	}))
	defer server.Close()

	transport := &closeTrackingTransport{base: server.Client().Transport}
	client := NewAPIClient("dify-key",
		WithAPIBase(server.URL),
		WithHTTPClient(&http.Client{Transport: transport}),
	)
	stream, err := client.ChatMessagesStream(context.Background(), &ChatMessageRequest{Query: "hello"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	seen := 0
	for _, iterErr := range stream.Iter() {
		if iterErr != nil {
			t.Fatalf("unexpected stream error: %v", iterErr)
		}
		seen++
		break
	}
	if seen != 1 {
		t.Fatalf("expected to observe exactly 1 event before breaking, got %d", seen)
	}
	if !transport.closed.Load() {
		t.Error("expected response body closed after breaking out of the loop")
	}
}

// closeTrackingTransport wraps response bodies so tests can observe Close.
type closeTrackingTransport struct {
	base   http.RoundTripper
	closed atomic.Bool
}

func (tr *closeTrackingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	res, err := tr.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	res.Body = &closeTrackingBody{ReadCloser: res.Body, closed: &tr.closed}
	return res, nil
}

type closeTrackingBody struct {
	io.ReadCloser
	closed *atomic.Bool
}

func (b *closeTrackingBody) Close() error {
	b.closed.Store(true)
	return b.ReadCloser.Close()
}
