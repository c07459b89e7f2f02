package nl2sql

import "context"

// GenerateRequest carries one prompt to a model backend. Backends decode
// greedily: temperature 0, a single candidate and the given seed.
type GenerateRequest struct {
	Prompt          string
	MaxOutputTokens int
	StopSequences   []string
	Seed            int64
}

type Generation struct {
	Text string
	// Truncated is set when decoding stopped at MaxOutputTokens.
	Truncated bool
}

// Model is a handle to a loaded text-generation model. Implementations need
// not be safe for concurrent use; Synthesizer serializes calls.
type Model interface {
	Name() string
	Generate(ctx context.Context, req GenerateRequest) (Generation, error)
	Close() error
}
