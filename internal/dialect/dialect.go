package dialect

import (
	"errors"
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
)

// CandidateQuery is model output, written against the PostgreSQL grammar.
type CandidateQuery struct {
	RawText       string
	SourceDialect Dialect
}

// ExecutableQuery is a single statement in the target grammar.
type ExecutableQuery struct {
	Text          string
	TargetDialect Dialect
}

var (
	ErrUnparseable = errors.New("query does not parse")
	ErrUnsupported = errors.New("query uses a construct with no mysql equivalent")
	ErrUnsafe      = errors.New("query is not a read-only select")
)

// Transpile parses candidate with the PostgreSQL grammar and re-emits it as
// MySQL. Only a single SELECT is accepted.
func Transpile(candidate CandidateQuery) (ExecutableQuery, error) {
	source := candidate.SourceDialect
	if source == "" {
		source = Postgres
	}
	if source != Postgres {
		return ExecutableQuery{}, fmt.Errorf("%w: unsupported source dialect %q", ErrUnsupported, source)
	}

	text := strings.TrimSpace(candidate.RawText)
	if text == "" {
		return ExecutableQuery{}, fmt.Errorf("%w: empty query", ErrUnparseable)
	}

	tree, err := pg_query.Parse(text)
	if err != nil {
		return ExecutableQuery{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	if len(tree.GetStmts()) == 0 {
		return ExecutableQuery{}, fmt.Errorf("%w: no statement found", ErrUnparseable)
	}
	for _, raw := range tree.GetStmts() {
		if raw.GetStmt().GetSelectStmt() == nil {
			return ExecutableQuery{}, fmt.Errorf("%w: %s statements are not allowed", ErrUnsafe, nodeName(raw.GetStmt()))
		}
	}
	if len(tree.GetStmts()) > 1 {
		return ExecutableQuery{}, fmt.Errorf("%w: expected a single statement, got %d", ErrUnparseable, len(tree.GetStmts()))
	}

	emitter := &mysqlEmitter{}
	out := emitter.selectStmt(tree.GetStmts()[0].GetStmt().GetSelectStmt())
	if emitter.err != nil {
		return ExecutableQuery{}, emitter.err
	}
	return ExecutableQuery{Text: out, TargetDialect: MySQL}, nil
}

func nodeName(node *pg_query.Node) string {
	if node == nil || node.GetNode() == nil {
		return "empty"
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", node.GetNode()), "*pg_query.Node_")
}
