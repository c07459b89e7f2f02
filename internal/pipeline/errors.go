package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/recruitsql/recruitsql/internal/dialect"
	"github.com/recruitsql/recruitsql/internal/nl2sql"
	"github.com/recruitsql/recruitsql/internal/query"
)

// Kind is the machine-readable category of a failed invocation.
type Kind string

const (
	KindInvalidInput         Kind = "INVALID_INPUT"
	KindSynthesisTruncated   Kind = "SYNTHESIS_TRUNCATED"
	KindMalformedModelOutput Kind = "MALFORMED_MODEL_OUTPUT"
	KindModelError           Kind = "MODEL_ERROR"
	KindNoAnswer             Kind = "NO_ANSWER"
	KindUnparseableQuery     Kind = "UNPARSEABLE_QUERY"
	KindUnsafeQuery          Kind = "UNSAFE_QUERY"
	KindExecutionError       Kind = "EXECUTION_ERROR"
	KindTimeout              Kind = "TIMEOUT"
	KindCanceled             Kind = "CANCELED"
)

type Stage string

const (
	StagePrompt     Stage = "prompt"
	StageSynthesize Stage = "synthesize"
	StageRefusal    Stage = "refusal"
	StageTranspile  Stage = "transpile"
	StageExecute    Stage = "execute"
)

const NoAnswerMessage = "query cannot be answered from the available schema"

// Failure is the error every invocation returns when it does not produce
// rows. Message is safe to show to the caller.
type Failure struct {
	Kind    Kind
	Stage   Stage
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err != nil && f.Err.Error() != f.Message {
		return fmt.Sprintf("%s at %s: %s: %v", f.Kind, f.Stage, f.Message, f.Err)
	}
	return fmt.Sprintf("%s at %s: %s", f.Kind, f.Stage, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Retryable reports whether the same question may succeed when asked again.
func (f *Failure) Retryable() bool {
	switch f.Kind {
	case KindTimeout, KindModelError, KindExecutionError:
		return true
	default:
		return false
	}
}

// KindOf returns the failure kind carried by err, or "" when err is not a
// *Failure.
func KindOf(err error) Kind {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure.Kind
	}
	return ""
}

func classify(stage Stage, err error) *Failure {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure
	}

	kind, message := kindFor(stage, err)
	return &Failure{Kind: kind, Stage: stage, Message: message, Err: err}
}

func kindFor(stage Stage, err error) (Kind, string) {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout, fmt.Sprintf("%s stage timed out", stage)
	case errors.As(err, &netErr) && netErr.Timeout():
		return KindTimeout, fmt.Sprintf("%s stage timed out", stage)
	case errors.Is(err, context.Canceled):
		return KindCanceled, "request canceled"
	case errors.Is(err, nl2sql.ErrEmptyQuestion):
		return KindInvalidInput, err.Error()
	case errors.Is(err, nl2sql.ErrSynthesisTruncated):
		return KindSynthesisTruncated, "model output was cut off before the query was complete"
	case errors.Is(err, nl2sql.ErrMalformedOutput):
		return KindMalformedModelOutput, "model output did not contain a query"
	case errors.Is(err, dialect.ErrUnsafe), errors.Is(err, query.ErrUnsafeQuery):
		return KindUnsafeQuery, "generated query is not a read-only select"
	case errors.Is(err, dialect.ErrUnparseable), errors.Is(err, dialect.ErrUnsupported):
		return KindUnparseableQuery, err.Error()
	}

	switch stage {
	case StageSynthesize:
		return KindModelError, "model backend failed"
	case StageExecute:
		var execErr *query.ExecutionError
		if errors.As(err, &execErr) {
			return KindExecutionError, execErr.Message
		}
		return KindExecutionError, err.Error()
	default:
		return KindExecutionError, err.Error()
	}
}
