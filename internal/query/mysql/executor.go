package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"vitess.io/vitess/go/vt/sqlparser"

	"github.com/recruitsql/recruitsql/internal/dialect"
	"github.com/recruitsql/recruitsql/internal/query"
)

type Config struct {
	// MaxRows caps the rows scanned per query. Zero means no cap.
	MaxRows int
}

// Executor runs read-only statements against MySQL. Each call checks a
// connection out of the pool, runs inside a READ ONLY transaction and rolls
// it back.
type Executor struct {
	db      *sql.DB
	parser  *sqlparser.Parser
	maxRows int
}

func NewExecutor(db *sql.DB, cfg Config) (*Executor, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	parser, err := newParser()
	if err != nil {
		return nil, err
	}
	return &Executor{db: db, parser: parser, maxRows: cfg.MaxRows}, nil
}

func (e *Executor) Execute(ctx context.Context, q dialect.ExecutableQuery) (query.Result, error) {
	if q.TargetDialect != dialect.MySQL {
		return query.Result{}, fmt.Errorf("executor runs %s, got %s", dialect.MySQL, q.TargetDialect)
	}
	sqlText := stripTrailingSemicolons(q.Text)
	if sqlText == "" {
		return query.Result{}, fmt.Errorf("%w: empty statement", query.ErrUnsafeQuery)
	}
	if err := checkReadOnly(e.parser, sqlText); err != nil {
		return query.Result{}, err
	}

	start := time.Now()
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return query.Result{}, engineError(ctx, "acquire connection", err)
	}
	defer func() { _ = conn.Close() }()

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return query.Result{}, engineError(ctx, "begin read-only transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, sqlText)
	if err != nil {
		return query.Result{}, engineError(ctx, "execute query", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, engineError(ctx, "query columns", err)
	}
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return query.Result{}, engineError(ctx, "query column types", err)
	}
	databaseTypes := make([]string, len(columnTypes))
	for i, columnType := range columnTypes {
		databaseTypes[i] = strings.ToUpper(columnType.DatabaseTypeName())
	}

	resultRows := make([]query.Row, 0)
	truncated := false
	for rows.Next() {
		if e.maxRows > 0 && len(resultRows) >= e.maxRows {
			truncated = true
			break
		}
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Result{}, engineError(ctx, "scan row", err)
		}
		row := make(query.Row, len(columns))
		for i, column := range columns {
			if _, dup := row[column]; dup {
				continue
			}
			row[column] = normalizeValue(values[i], databaseTypes[i])
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, engineError(ctx, "iterate rows", err)
	}

	return query.Result{
		Columns:   columns,
		Rows:      resultRows,
		Truncated: truncated,
		Duration:  time.Since(start),
	}, nil
}

func engineError(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, context.DeadlineExceeded)
	}
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%s: %w", op, context.Canceled)
	}

	var mysqlErr *mysqldriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return &query.ExecutionError{Op: op, Code: int(mysqlErr.Number), Message: mysqlErr.Message, Err: err}
	}
	return &query.ExecutionError{Op: op, Message: err.Error(), Err: err}
}

// normalizeValue turns driver values into JSON-friendly ones. The text
// protocol hands numbers back as bytes, so integer and float columns are
// parsed; BINARY(16) ids become UUID strings.
func normalizeValue(value any, databaseType string) any {
	raw, ok := value.([]byte)
	if !ok {
		return value
	}
	switch databaseType {
	case "BINARY", "VARBINARY":
		if len(raw) == 16 {
			if id, err := uuid.FromBytes(raw); err == nil {
				return id.String()
			}
		}
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT", "YEAR":
		if n, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
			return n
		}
	case "UNSIGNED TINYINT", "UNSIGNED SMALLINT", "UNSIGNED MEDIUMINT", "UNSIGNED INT", "UNSIGNED BIGINT":
		if n, err := strconv.ParseUint(string(raw), 10, 64); err == nil {
			return n
		}
	case "FLOAT", "DOUBLE":
		if f, err := strconv.ParseFloat(string(raw), 64); err == nil {
			return f
		}
	}
	return string(raw)
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
