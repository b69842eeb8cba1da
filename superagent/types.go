package superagent

// GuardRequest asks whether a prompt is safe to execute.
type GuardRequest struct {
	Input string `json:"input"`
}

// GuardResult is the verdict for one guarded prompt.
type GuardResult struct {
	Rejected bool   `json:"rejected"`
	Reason   string `json:"reason,omitempty"`
}

// RedactRequest asks for sensitive spans in Text to be masked.
type RedactRequest struct {
	Text string `json:"text"`
}

// RedactResult carries the masked text.
type RedactResult struct {
	Redacted string `json:"redacted"`
}

// ScanRequest asks for a repository to be inspected.
type ScanRequest struct {
	Repo string `json:"repo"`
}

// ScanResult lists what a repository scan flagged.
type ScanResult struct {
	Findings []string `json:"findings,omitempty"`
}

// TestRequest runs the tooling's self-check. It carries no payload.
type TestRequest struct{}

// TestResult reports the self-check outcome.
type TestResult struct {
	Passed bool `json:"passed"`
}
