// Package httpx provides the low-level HTTP helpers shared by the API
// clients in this module: a generic JSON POST round-trip, a streaming POST
// that leaves the response body open for Server-Sent Events consumption,
// and an SSE line scanner.
//
// Key entry points: [PostJSON] for synchronous JSON round-trips, and
// [PostStream] together with [SSEScanner] for SSE streaming.
package httpx
