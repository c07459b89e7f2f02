package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/recruitsql/recruitsql/internal/dialect"
	"github.com/recruitsql/recruitsql/internal/nl2sql"
	"github.com/recruitsql/recruitsql/internal/observability"
	"github.com/recruitsql/recruitsql/internal/query"
	"github.com/recruitsql/recruitsql/internal/schema"
)

const (
	DefaultSynthesisTimeout = 2 * time.Minute
	DefaultExecutionTimeout = 30 * time.Second
	DefaultCacheTTL         = 24 * time.Hour
)

type Config struct {
	SynthesisTimeout time.Duration
	ExecutionTimeout time.Duration
	CacheTTL         time.Duration
	MaxOutputTokens  int
	Seed             int64
}

// Cache memoizes synthesized candidates. Decoding is deterministic, so a
// prompt and model name always map to the same candidate.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type Dependencies struct {
	Schema   schema.Descriptor
	Model    nl2sql.Model
	Executor query.Executor
	// DB is the connection pool behind Executor. Chain closes it.
	DB     io.Closer
	Cache  Cache
	Logger *slog.Logger
}

// Translation is everything the chain learns about a question short of
// running it.
type Translation struct {
	Question   string
	Candidate  dialect.CandidateQuery
	Executable dialect.ExecutableQuery
	Cached     bool
}

// Chain answers recruiting questions: prompt, synthesize, refusal check,
// transpile, execute. Each stage runs once; the first failure ends the
// invocation with a *Failure.
type Chain struct {
	schema      schema.Descriptor
	model       nl2sql.Model
	synthesizer *nl2sql.Synthesizer
	executor    query.Executor
	db          io.Closer
	cache       Cache
	logger      *slog.Logger

	synthesisTimeout time.Duration
	executionTimeout time.Duration
	cacheTTL         time.Duration

	closeOnce sync.Once
	closeErr  error
}

func New(cfg Config, deps Dependencies) (*Chain, error) {
	if deps.Model == nil {
		return nil, fmt.Errorf("model is required")
	}
	if deps.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if err := deps.Schema.Validate(); err != nil {
		return nil, err
	}
	synthesizer, err := nl2sql.NewSynthesizer(deps.Model, nl2sql.SynthesizerConfig{
		MaxOutputTokens: cfg.MaxOutputTokens,
		Seed:            cfg.Seed,
	})
	if err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	synthesisTimeout := cfg.SynthesisTimeout
	if synthesisTimeout <= 0 {
		synthesisTimeout = DefaultSynthesisTimeout
	}
	executionTimeout := cfg.ExecutionTimeout
	if executionTimeout <= 0 {
		executionTimeout = DefaultExecutionTimeout
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}

	return &Chain{
		schema:           deps.Schema,
		model:            deps.Model,
		synthesizer:      synthesizer,
		executor:         deps.Executor,
		db:               deps.DB,
		cache:            deps.Cache,
		logger:           logger,
		synthesisTimeout: synthesisTimeout,
		executionTimeout: executionTimeout,
		cacheTTL:         cacheTTL,
	}, nil
}

func (c *Chain) Schema() schema.Descriptor {
	return c.schema
}

func (c *Chain) ModelName() string {
	return c.synthesizer.ModelName()
}

// Invoke answers question with the rows of the generated query. Every
// error it returns is a *Failure.
func (c *Chain) Invoke(ctx context.Context, question string) (query.Result, error) {
	started := time.Now()
	translation, err := c.translate(ctx, question)
	if err != nil {
		c.finish(ctx, "invoke", started, translation, query.Result{}, err)
		return query.Result{}, err
	}

	result, err := c.execute(ctx, translation.Executable)
	c.finish(ctx, "invoke", started, translation, result, err)
	if err != nil {
		return query.Result{}, err
	}
	return result, nil
}

// Translate runs the chain up to and including transpilation.
func (c *Chain) Translate(ctx context.Context, question string) (Translation, error) {
	started := time.Now()
	translation, err := c.translate(ctx, question)
	c.finish(ctx, "translate", started, translation, query.Result{}, err)
	if err != nil {
		return Translation{}, err
	}
	return translation, nil
}

// Close releases the model handle and the connection pool.
func (c *Chain) Close() error {
	c.closeOnce.Do(func() {
		var errs []error
		if err := c.model.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close model: %w", err))
		}
		if c.db != nil {
			if err := c.db.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close database: %w", err))
			}
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}

func (c *Chain) translate(ctx context.Context, question string) (Translation, error) {
	translation := Translation{Question: question}

	stageStarted := time.Now()
	prompt, err := nl2sql.BuildPrompt(question, c.schema)
	observability.ObserveStage(string(StagePrompt), time.Since(stageStarted))
	if err != nil {
		return translation, classify(StagePrompt, err)
	}

	stageStarted = time.Now()
	candidate, cached, err := c.synthesize(ctx, prompt)
	observability.ObserveStage(string(StageSynthesize), time.Since(stageStarted))
	if err != nil {
		return translation, classify(StageSynthesize, err)
	}
	translation.Candidate = candidate
	translation.Cached = cached

	if nl2sql.IsRefusal(candidate.RawText) {
		return translation, &Failure{Kind: KindNoAnswer, Stage: StageRefusal, Message: NoAnswerMessage}
	}

	stageStarted = time.Now()
	executable, err := dialect.Transpile(candidate)
	observability.ObserveStage(string(StageTranspile), time.Since(stageStarted))
	if err != nil {
		return translation, classify(StageTranspile, err)
	}
	translation.Executable = executable
	return translation, nil
}

func (c *Chain) synthesize(ctx context.Context, prompt string) (dialect.CandidateQuery, bool, error) {
	key := synthesisCacheKey(c.synthesizer.ModelName(), prompt)
	if c.cache != nil {
		text, ok, err := c.cache.Get(ctx, key)
		switch {
		case err != nil:
			observability.ObserveSynthesisCache("error")
			c.logger.WarnContext(ctx, "synthesis cache lookup failed", "error", err)
		case ok:
			observability.ObserveSynthesisCache("hit")
			return dialect.CandidateQuery{RawText: text, SourceDialect: dialect.Postgres}, true, nil
		default:
			observability.ObserveSynthesisCache("miss")
		}
	}

	synthCtx, cancel := context.WithTimeout(ctx, c.synthesisTimeout)
	defer cancel()
	candidate, err := c.synthesizer.Synthesize(synthCtx, prompt)
	if err != nil {
		return dialect.CandidateQuery{}, false, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, candidate.RawText, c.cacheTTL); err != nil {
			c.logger.WarnContext(ctx, "synthesis cache store failed", "error", err)
		}
	}
	return candidate, false, nil
}

func (c *Chain) execute(ctx context.Context, executable dialect.ExecutableQuery) (query.Result, error) {
	execCtx, cancel := context.WithTimeout(ctx, c.executionTimeout)
	defer cancel()

	stageStarted := time.Now()
	result, err := c.executor.Execute(execCtx, executable)
	observability.ObserveStage(string(StageExecute), time.Since(stageStarted))
	if err != nil {
		return query.Result{}, classify(StageExecute, err)
	}
	if result.Rows == nil {
		result.Rows = []query.Row{}
	}
	if result.Truncated {
		observability.IncrementResultTruncated()
	}
	return result, nil
}

func (c *Chain) finish(ctx context.Context, operation string, started time.Time, translation Translation, result query.Result, err error) {
	elapsed := time.Since(started)
	attrs := []any{
		"operation", operation,
		"trace_id", observability.TraceIDFromContext(ctx),
		"model", c.synthesizer.ModelName(),
		"duration_ms", elapsed.Milliseconds(),
		"cached", translation.Cached,
	}
	if translation.Executable.Text != "" {
		attrs = append(attrs, "sql", translation.Executable.Text)
	}

	if err == nil {
		observability.ObservePipeline(operation, "ok", elapsed)
		if operation == "invoke" {
			attrs = append(attrs, "rows", len(result.Rows), "truncated", result.Truncated)
		}
		c.logger.InfoContext(ctx, "pipeline_completed", attrs...)
		return
	}

	kind := KindOf(err)
	observability.ObservePipeline(operation, string(kind), elapsed)
	attrs = append(attrs, "kind", string(kind), "error", err.Error())
	var failure *Failure
	if errors.As(err, &failure) {
		attrs = append(attrs, "stage", string(failure.Stage))
	}
	if translation.Candidate.RawText != "" {
		attrs = append(attrs, "candidate", translation.Candidate.RawText)
	}
	level := slog.LevelWarn
	if kind == KindNoAnswer || kind == KindInvalidInput || kind == KindCanceled {
		level = slog.LevelInfo
	}
	c.logger.Log(ctx, level, "pipeline_failed", attrs...)
}

func synthesisCacheKey(model, prompt string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + prompt))
	return "synthesis:" + hex.EncodeToString(sum[:])
}
