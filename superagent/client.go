// Package superagent integrates Superagent-style safety tooling with
// Respan. It defines the [Client] call surface (guard, redact, scan, test)
// and [RespanClient], a wrapper that mirrors every call to the Respan
// ingest service with the tool log type. No HTTP implementation ships
// here: the wrapper requires an existing Client.
package superagent

import "context"

// Client is the safety-tooling call surface the Respan wrapper intercepts.
type Client interface {
	// Guard decides whether a prompt should be blocked before execution.
	Guard(ctx context.Context, req *GuardRequest) (*GuardResult, error)
	// Redact masks sensitive spans in a text.
	Redact(ctx context.Context, req *RedactRequest) (*RedactResult, error)
	// Scan inspects a repository for risky content.
	Scan(ctx context.Context, req *ScanRequest) (*ScanResult, error)
	// Test runs the tooling's self-check.
	Test(ctx context.Context, req *TestRequest) (*TestResult, error)
}
