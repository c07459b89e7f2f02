package mysql

import (
	"fmt"

	"vitess.io/vitess/go/vt/sqlparser"

	"github.com/recruitsql/recruitsql/internal/query"
)

const serverVersion = "8.0.36"

func newParser() (*sqlparser.Parser, error) {
	parser, err := sqlparser.New(sqlparser.Options{MySQLServerVersion: serverVersion})
	if err != nil {
		return nil, fmt.Errorf("create mysql parser: %w", err)
	}
	return parser, nil
}

// checkReadOnly accepts exactly one SELECT or UNION with no INTO target and
// no locking clause.
func checkReadOnly(parser *sqlparser.Parser, text string) error {
	stmt, err := parser.Parse(text)
	if err != nil {
		return fmt.Errorf("%w: cannot verify statement: %v", query.ErrUnsafeQuery, err)
	}
	switch stmt.(type) {
	case *sqlparser.Select, *sqlparser.Union:
	default:
		return fmt.Errorf("%w: %T statements are not allowed", query.ErrUnsafeQuery, stmt)
	}

	return sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		switch n := node.(type) {
		case *sqlparser.Select:
			if n.Into != nil {
				return false, fmt.Errorf("%w: SELECT ... INTO", query.ErrUnsafeQuery)
			}
			if n.Lock != sqlparser.NoLock {
				return false, fmt.Errorf("%w: locking read", query.ErrUnsafeQuery)
			}
		case *sqlparser.Union:
			if n.Into != nil {
				return false, fmt.Errorf("%w: UNION ... INTO", query.ErrUnsafeQuery)
			}
			if n.Lock != sqlparser.NoLock {
				return false, fmt.Errorf("%w: locking read", query.ErrUnsafeQuery)
			}
		}
		return true, nil
	}, stmt)
}
