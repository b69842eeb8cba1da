// Package dify integrates the Dify conversational-AI API with Respan.
//
// It ships two layers. [APIClient] is a minimal typed client for the three
// operations Respan wraps: chat messages, completion messages, and workflow
// runs, each in blocking and streaming mode. [RespanClient] wraps any
// [Client] implementation (the in-package APIClient or your own) so that
// every call made through it is mirrored to the Respan ingest service:
// timing, request and response payloads, token usage, and the caller's
// correlation params, captured without changing what the wrapped call
// returns.
//
// Streaming calls return an [EventStream]; the wrapper instruments its
// iteration so the export fires exactly once when the consumer finishes
// with the stream, whether by exhausting it, hitting an error, or breaking
// out of the loop early.
package dify
