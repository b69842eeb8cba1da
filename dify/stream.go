package dify

import (
	"encoding/json"
	"fmt"
	"iter"
	"strings"
)

// EventStream wraps a streaming iterator over Dify SSE events. It supports
// range-based iteration via Iter for real-time processing and the Collect
// helpers for callers who want the accumulated result.
//
// Important: callers must consume the stream, either by iterating Iter
// (breaking out early is fine) or by calling one of the Collect helpers.
// The underlying client holds the HTTP response body open until the
// iterator completes or is abandoned via a loop break; constructing an
// EventStream and never iterating it leaks that connection.
type EventStream struct {
	iterator iter.Seq2[StreamEvent, error]
}

// NewEventStream creates an EventStream from a raw iterator. The iterator
// yields events with a nil error for normal deltas and may yield a non-nil
// error to signal a mid-stream failure, after which it stops.
func NewEventStream(iterator iter.Seq2[StreamEvent, error]) *EventStream {
	return &EventStream{iterator: iterator}
}

// Iter returns the underlying iterator for use with range-over-func loops.
//
// Example:
//
//	for event, err := range stream.Iter() {
//	    if err != nil { handle error }
//	    fmt.Print(event.Answer)
//	}
func (s *EventStream) Iter() iter.Seq2[StreamEvent, error] {
	return s.iterator
}

// Events consumes the stream and returns every event in arrival order. On
// a mid-stream error the events observed before the failure are returned
// with the error.
func (s *EventStream) Events() ([]StreamEvent, error) {
	var events []StreamEvent
	for event, err := range s.iterator {
		if err != nil {
			return events, err
		}
		events = append(events, event)
	}
	return events, nil
}

// Collect consumes the entire stream and accumulates message events into a
// blocking-style response: answer deltas are concatenated, message_replace
// restarts the answer, and message_end supplies the metadata. A mid-stream
// error terminates collection and returns the partial response with the
// error.
func (s *EventStream) Collect() (*ChatCompletionResponse, error) {
	res := &ChatCompletionResponse{Event: EventMessage}
	var answer strings.Builder

	fill := func(event StreamEvent) {
		if res.TaskID == "" {
			res.TaskID = event.TaskID
		}
		if res.MessageID == "" {
			res.MessageID = event.MessageID
		}
		if res.ConversationID == "" {
			res.ConversationID = event.ConversationID
		}
		if res.CreatedAt == 0 {
			res.CreatedAt = event.CreatedAt
		}
	}

	for event, err := range s.iterator {
		if err != nil {
			res.Answer = answer.String()
			return res, err
		}
		switch event.Event {
		case EventMessage, EventAgentMessage:
			answer.WriteString(event.Answer)
			fill(event)
		case EventMessageReplace:
			answer.Reset()
			answer.WriteString(event.Answer)
			fill(event)
		case EventMessageEnd:
			res.Metadata = event.Metadata
			fill(event)
		}
	}
	res.Answer = answer.String()
	return res, nil
}

// CollectWorkflowRun consumes the entire stream and returns the final
// workflow result carried by the workflow_finished event. A mid-stream
// error terminates collection and returns what was gathered so far with
// the error.
func (s *EventStream) CollectWorkflowRun() (*WorkflowRunResponse, error) {
	res := &WorkflowRunResponse{}
	for event, err := range s.iterator {
		if err != nil {
			return res, err
		}
		if res.TaskID == "" {
			res.TaskID = event.TaskID
		}
		if res.WorkflowRunID == "" {
			res.WorkflowRunID = event.WorkflowRunID
		}
		if event.Event == EventWorkflowFinished && event.Data != nil {
			data, decodeErr := decodeWorkflowData(event.Data)
			if decodeErr != nil {
				return res, fmt.Errorf("decoding workflow result: %w", decodeErr)
			}
			res.Data = data
		}
	}
	return res, nil
}

// decodeWorkflowData converts the loosely typed event data block into
// WorkflowRunData through a JSON round trip.
func decodeWorkflowData(raw map[string]any) (*WorkflowRunData, error) {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	data := &WorkflowRunData{}
	if err := json.Unmarshal(encoded, data); err != nil {
		return nil, err
	}
	return data, nil
}
