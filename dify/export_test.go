package dify

import (
	"errors"
	"testing"

	respan "github.com/respan-ai/respan-go"
)

// ---- usageMap tests ---------------------------------------------------------

// TestUsageMap verifies flattening of Dify's typed usage into the open map
// form, keeping only populated fields.
func TestUsageMap(t *testing.T) {
	m := usageMap(&Usage{
		PromptTokens:     10,
		CompletionTokens: 5,
		TotalTokens:      15,
		TotalPrice:       "0.00125",
		Currency:         "USD",
		Latency:          0.82,
	})
	if m["prompt_tokens"] != 10 || m["completion_tokens"] != 5 || m["total_tokens"] != 15 {
		t.Errorf("unexpected token fields: %v", m)
	}
	if m["total_price"] != "0.00125" || m["currency"] != "USD" {
		t.Errorf("unexpected price fields: %v", m)
	}

	if got := usageMap(nil); got != nil {
		t.Errorf("expected nil for nil usage, got %v", got)
	}
	if got := usageMap(&Usage{}); got != nil {
		t.Errorf("expected nil for empty usage, got %v", got)
	}
}

// ---- streamUsage tests ------------------------------------------------------

// TestStreamUsage_MessageEndWins verifies that message_end metadata takes
// precedence over the workflow token fallback, with the last message_end
// winning.
func TestStreamUsage_MessageEndWins(t *testing.T) {
	usage := streamUsage([]StreamEvent{
		{Event: EventWorkflowFinished, Data: map[string]any{"total_tokens": float64(99)}},
		{Event: EventMessageEnd, Metadata: &ResponseMetadata{Usage: &Usage{TotalTokens: 10}}},
		{Event: EventMessageEnd, Metadata: &ResponseMetadata{Usage: &Usage{TotalTokens: 15}}},
	})
	if usage["total_tokens"] != 15 {
		t.Errorf("expected last message_end usage, got %v", usage)
	}
}

// TestStreamUsage_WorkflowFallback verifies the workflow_finished token
// count is used when no message_end carries usage.
func TestStreamUsage_WorkflowFallback(t *testing.T) {
	usage := streamUsage([]StreamEvent{
		{Event: EventWorkflowStarted},
		{Event: EventWorkflowFinished, Data: map[string]any{"total_tokens": float64(42)}},
	})
	if usage["total_tokens"] != 42 {
		t.Errorf("expected fallback usage, got %v", usage)
	}

	if got := streamUsage([]StreamEvent{{Event: EventMessage, Answer: "hi"}}); got != nil {
		t.Errorf("expected nil usage without usage events, got %v", got)
	}
}

// ---- streamSession tests ----------------------------------------------------

// TestStreamSession verifies that the first conversation id observed wins.
func TestStreamSession(t *testing.T) {
	session := streamSession([]StreamEvent{
		{Event: EventMessage, Answer: "a"},
		{Event: EventMessage, ConversationID: "conv-1"},
		{Event: EventMessage, ConversationID: "conv-2"},
	})
	if session != "conv-1" {
		t.Errorf("expected first conversation id, got %q", session)
	}
	if got := streamSession(nil); got != "" {
		t.Errorf("expected empty session for no events, got %q", got)
	}
}

// ---- record helper tests ----------------------------------------------------

// TestFinishRecord verifies status and error stamping.
func TestFinishRecord(t *testing.T) {
	rec := newRecord(methodChatMessages, nil, nil)
	finishRecord(rec, nil)
	if rec.Status != respan.StatusSuccess || rec.ErrorMessage != "" {
		t.Errorf("unexpected success record: %q %q", rec.Status, rec.ErrorMessage)
	}

	rec = newRecord(methodChatMessages, nil, nil)
	finishRecord(rec, errors.New("test failure"))
	if rec.Status != respan.StatusError || rec.ErrorMessage != "test failure" {
		t.Errorf("unexpected error record: %q %q", rec.Status, rec.ErrorMessage)
	}
}
