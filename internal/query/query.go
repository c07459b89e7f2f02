package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/recruitsql/recruitsql/internal/dialect"
)

var ErrUnsafeQuery = errors.New("statement is not a read-only query")

// Row maps column name to value. When two columns share a name the first
// one wins; Result.Columns keeps every name in engine order.
type Row map[string]any

type Result struct {
	Columns   []string
	Rows      []Row
	Truncated bool
	Duration  time.Duration
}

type Executor interface {
	Execute(ctx context.Context, q dialect.ExecutableQuery) (Result, error)
}

// ExecutionError is an engine-side failure. Message is what the engine
// reported, suitable for showing to the caller.
type ExecutionError struct {
	Op      string
	Code    int
	Message string
	Err     error
}

func (e *ExecutionError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: error %d: %s", e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
