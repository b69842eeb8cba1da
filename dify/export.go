package dify

import (
	"time"

	respan "github.com/respan-ai/respan-go"
)

const integrationName = "dify"

// Method names as they appear in exported records.
const (
	methodChatMessages       = "chat_messages"
	methodCompletionMessages = "completion_messages"
	methodRunWorkflows       = "run_workflows"
)

// newRecord starts the call record for one wrapped call.
func newRecord(method string, input any, params *respan.Params) *respan.CallRecord {
	return &respan.CallRecord{
		Integration: integrationName,
		Method:      method,
		StartTime:   time.Now(),
		Input:       input,
		LogType:     respan.LogTypeGeneration,
		Params:      params,
	}
}

// finishRecord stamps the call's outcome onto rec.
func finishRecord(rec *respan.CallRecord, err error) {
	rec.EndTime = time.Now()
	if err != nil {
		rec.Status = respan.StatusError
		rec.ErrorMessage = err.Error()
		return
	}
	rec.Status = respan.StatusSuccess
}

// attachChatResponse copies the exportable parts of a blocking chat or
// completion response onto rec: the response itself, the conversation as
// session, usage, and the message id.
func attachChatResponse(rec *respan.CallRecord, res *ChatCompletionResponse) {
	if res == nil {
		return
	}
	rec.Output = res
	rec.SessionID = res.ConversationID
	if res.Metadata != nil {
		rec.Usage = usageMap(res.Metadata.Usage)
	}
	if id := messageID(res); id != "" {
		rec.Metadata = map[string]any{"message_id": id}
	}
}

// attachWorkflowResponse copies the exportable parts of a blocking
// workflow result onto rec. Workflow runs report only a total token count.
func attachWorkflowResponse(rec *respan.CallRecord, res *WorkflowRunResponse) {
	if res == nil {
		return
	}
	rec.Output = res
	if res.Data != nil && res.Data.TotalTokens > 0 {
		rec.Usage = respan.Usage{"total_tokens": res.Data.TotalTokens}
	}
	if res.WorkflowRunID != "" {
		rec.Metadata = map[string]any{"workflow_run_id": res.WorkflowRunID}
	}
}

// messageID returns the response's message identifier. Chat responses use
// message_id, completion responses use id.
func messageID(res *ChatCompletionResponse) string {
	if res.MessageID != "" {
		return res.MessageID
	}
	return res.ID
}

// usageMap flattens Dify's typed usage into the exporter's open map form,
// keeping only populated fields.
func usageMap(u *Usage) respan.Usage {
	if u == nil {
		return nil
	}
	m := respan.Usage{}
	if u.PromptTokens > 0 {
		m["prompt_tokens"] = u.PromptTokens
	}
	if u.CompletionTokens > 0 {
		m["completion_tokens"] = u.CompletionTokens
	}
	if u.TotalTokens > 0 {
		m["total_tokens"] = u.TotalTokens
	}
	if u.TotalPrice != "" {
		m["total_price"] = u.TotalPrice
	}
	if u.Currency != "" {
		m["currency"] = u.Currency
	}
	if u.Latency > 0 {
		m["latency"] = u.Latency
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

// streamUsage extracts token usage from the events observed on a stream.
// A message_end's metadata wins; the workflow_finished total_tokens count
// is the fallback for workflow streams.
func streamUsage(events []StreamEvent) respan.Usage {
	var usage respan.Usage
	for _, event := range events {
		switch event.Event {
		case EventMessageEnd:
			if event.Metadata != nil {
				if m := usageMap(event.Metadata.Usage); m != nil {
					usage = m
				}
			}
		case EventWorkflowFinished:
			if usage == nil && event.Data != nil {
				if n, ok := intFromEvent(event.Data["total_tokens"]); ok && n > 0 {
					usage = respan.Usage{"total_tokens": n}
				}
			}
		}
	}
	return usage
}

// streamSession returns the first conversation id observed on the stream.
func streamSession(events []StreamEvent) string {
	for _, event := range events {
		if event.ConversationID != "" {
			return event.ConversationID
		}
	}
	return ""
}

// intFromEvent reads an integer out of a decoded JSON event field.
func intFromEvent(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
