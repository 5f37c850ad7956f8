package ai

import "context"

// Request is one composed outbound unit for the completion service.
// Immutable once built; same contract + mode always composes byte-identical
// prompts.
type Request struct {
	ContractName string
	CodeHash     string
	Mode         string
	System       string
	User         string
	MaxTokens    int
}

// Analyzer sends one composed prompt to the completion service and returns
// the raw completion text. Retry policy for transient failures lives behind
// this port; callers see only the final outcome.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (string, error)
}
