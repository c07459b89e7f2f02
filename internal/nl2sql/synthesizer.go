package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/recruitsql/recruitsql/internal/dialect"
	"github.com/recruitsql/recruitsql/internal/observability"
)

const DefaultMaxOutputTokens = 400

var (
	ErrSynthesisTruncated = errors.New("model output reached the token limit")
	ErrMalformedOutput    = errors.New("model output has no query")
)

type SynthesizerConfig struct {
	MaxOutputTokens int
	Seed            int64
}

// Synthesizer turns prompts into candidate queries. One generation runs at
// a time per Synthesizer; waiting callers honor their context.
type Synthesizer struct {
	model     Model
	lock      *semaphore.Weighted
	maxTokens int
	seed      int64
}

type generateResult struct {
	generation Generation
	err        error
}

func NewSynthesizer(model Model, cfg SynthesizerConfig) (*Synthesizer, error) {
	if model == nil {
		return nil, fmt.Errorf("model is required")
	}
	maxTokens := cfg.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxOutputTokens
	}
	return &Synthesizer{
		model:     model,
		lock:      semaphore.NewWeighted(1),
		maxTokens: maxTokens,
		seed:      cfg.Seed,
	}, nil
}

func (s *Synthesizer) ModelName() string {
	return s.model.Name()
}

func (s *Synthesizer) Synthesize(ctx context.Context, prompt string) (dialect.CandidateQuery, error) {
	generation, err := s.generate(ctx, prompt)
	if err != nil {
		return dialect.CandidateQuery{}, err
	}
	if generation.Truncated {
		return dialect.CandidateQuery{}, fmt.Errorf("%w: %d tokens", ErrSynthesisTruncated, s.maxTokens)
	}
	text, err := ExtractQuery(generation.Text)
	if err != nil {
		// Chat backends sometimes refuse in prose without the marker. Output
		// that carries the marker echoes the prompt, which names the
		// refusal phrase itself.
		if strings.Contains(generation.Text, SQLMarker) || !IsRefusal(generation.Text) {
			return dialect.CandidateQuery{}, err
		}
		text = strings.TrimSpace(generation.Text)
	}
	return dialect.CandidateQuery{RawText: text, SourceDialect: dialect.Postgres}, nil
}

// generate holds the model lock until the backend returns, even when ctx
// ends first; the caller is released on ctx.Done.
func (s *Synthesizer) generate(ctx context.Context, prompt string) (Generation, error) {
	waitStarted := time.Now()
	if err := s.lock.Acquire(ctx, 1); err != nil {
		return Generation{}, fmt.Errorf("wait for model %s: %w", s.model.Name(), err)
	}
	observability.ObserveModelLockWait(time.Since(waitStarted))

	done := make(chan generateResult, 1)
	started := time.Now()
	go func() {
		defer s.lock.Release(1)
		generation, err := s.model.Generate(ctx, GenerateRequest{
			Prompt:          prompt,
			MaxOutputTokens: s.maxTokens,
			StopSequences:   []string{SQLEndMarker},
			Seed:            s.seed,
		})
		observability.ObserveGeneration(s.model.Name(), generationOutcome(generation, err), time.Since(started))
		done <- generateResult{generation: generation, err: err}
	}()

	select {
	case result := <-done:
		if result.err != nil {
			return Generation{}, fmt.Errorf("generate with %s: %w", s.model.Name(), result.err)
		}
		return result.generation, nil
	case <-ctx.Done():
		return Generation{}, fmt.Errorf("generate with %s: %w", s.model.Name(), ctx.Err())
	}
}

func generationOutcome(generation Generation, err error) string {
	switch {
	case err != nil:
		return "error"
	case generation.Truncated:
		return "truncated"
	default:
		return "ok"
	}
}

// ExtractQuery returns the text after the last SQLMarker, cut at
// SQLEndMarker when present.
func ExtractQuery(raw string) (string, error) {
	idx := strings.LastIndex(raw, SQLMarker)
	if idx < 0 {
		return "", fmt.Errorf("%w: missing %s marker", ErrMalformedOutput, SQLMarker)
	}
	text := raw[idx+len(SQLMarker):]
	if end := strings.Index(text, SQLEndMarker); end >= 0 {
		text = text[:end]
	}
	text = stripMarkdownSQL(text)
	if text == "" {
		return "", fmt.Errorf("%w: nothing after %s", ErrMalformedOutput, SQLMarker)
	}
	return text, nil
}

func stripMarkdownSQL(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		return strings.TrimSpace(trimmed)
	}
	return trimmed
}
