// Package respan is the shared core of the Respan Go SDK: correlation
// parameters, call records, ingest payload construction, and the
// best-effort exporter that delivers records to the Respan ingest service.
//
// Integration packages (dify, superagent) wrap third-party AI clients so
// that every call made through the wrapper is mirrored to Respan without
// changing what the wrapped client returns to the caller. This package is
// what those wrappers share; most applications only import an integration
// package and hand it a [Params] value per call.
//
// Export is strictly a side channel: a missing API key disables it
// silently, delivery failures are logged and dropped, and no exporter
// outcome ever reaches the wrapped call's caller.
package respan
