package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

//go:embed sql/*.sql
var embeddedFS embed.FS

const (
	migrationTable = "recruitsql_schema_migrations"
	lockName       = "recruitsql_schema_migrations"
)

var migrationNamePattern = regexp.MustCompile(`^([0-9]+)_.+\.(up|down)\.sql$`)

// Runner applies the embedded recruiting schema to MySQL. MySQL commits DDL
// implicitly, so a failed script can leave earlier statements applied; the
// version is only recorded once every statement succeeded.
type Runner struct {
	fsys        fs.FS
	lockTimeout time.Duration
}

func NewRunner() *Runner {
	return &Runner{fsys: embeddedFS, lockTimeout: 30 * time.Second}
}

type migration struct {
	Version int64
	Name    string
	UpSQL   string
	DownSQL string
}

type Status struct {
	Version int64
	Name    string
	Applied bool
}

func (r *Runner) Up(ctx context.Context, db *sql.DB, steps int) (int, error) {
	migrations, err := loadMigrations(r.fsys)
	if err != nil {
		return 0, err
	}
	conn, release, err := r.lockedConn(ctx, db)
	if err != nil {
		return 0, err
	}
	defer release()

	applied, err := listAppliedVersions(ctx, conn, "ASC")
	if err != nil {
		return 0, err
	}
	appliedSet := make(map[int64]struct{}, len(applied))
	for _, version := range applied {
		appliedSet[version] = struct{}{}
	}

	runCount := 0
	for _, item := range migrations {
		if _, ok := appliedSet[item.Version]; ok {
			continue
		}
		if steps > 0 && runCount >= steps {
			break
		}
		if err := runScript(ctx, conn, item.UpSQL); err != nil {
			return runCount, fmt.Errorf("apply migration %d: %w", item.Version, err)
		}
		if _, err := conn.ExecContext(ctx, `INSERT INTO `+migrationTable+` (version, name) VALUES (?, ?)`, item.Version, item.Name); err != nil {
			return runCount, fmt.Errorf("mark migration %d: %w", item.Version, err)
		}
		runCount++
	}
	return runCount, nil
}

func (r *Runner) Down(ctx context.Context, db *sql.DB, steps int) (int, error) {
	if steps <= 0 {
		steps = 1
	}

	migrations, err := loadMigrations(r.fsys)
	if err != nil {
		return 0, err
	}
	conn, release, err := r.lockedConn(ctx, db)
	if err != nil {
		return 0, err
	}
	defer release()

	applied, err := listAppliedVersions(ctx, conn, "DESC")
	if err != nil {
		return 0, err
	}

	lookup := make(map[int64]migration, len(migrations))
	for _, item := range migrations {
		lookup[item.Version] = item
	}

	runCount := 0
	for _, version := range applied {
		if runCount >= steps {
			break
		}
		item, ok := lookup[version]
		if !ok {
			return runCount, fmt.Errorf("applied migration %d is missing from source", version)
		}
		if err := runScript(ctx, conn, item.DownSQL); err != nil {
			return runCount, fmt.Errorf("rollback migration %d: %w", version, err)
		}
		if _, err := conn.ExecContext(ctx, `DELETE FROM `+migrationTable+` WHERE version = ?`, version); err != nil {
			return runCount, fmt.Errorf("unmark migration %d: %w", version, err)
		}
		runCount++
	}
	return runCount, nil
}

// Status lists every known migration and whether it has been applied.
func (r *Runner) Status(ctx context.Context, db *sql.DB) ([]Status, error) {
	migrations, err := loadMigrations(r.fsys)
	if err != nil {
		return nil, err
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if err := ensureMigrationTable(ctx, conn); err != nil {
		return nil, err
	}
	applied, err := listAppliedVersions(ctx, conn, "ASC")
	if err != nil {
		return nil, err
	}
	appliedSet := make(map[int64]struct{}, len(applied))
	for _, version := range applied {
		appliedSet[version] = struct{}{}
	}

	statuses := make([]Status, 0, len(migrations))
	for _, item := range migrations {
		_, ok := appliedSet[item.Version]
		statuses = append(statuses, Status{Version: item.Version, Name: item.Name, Applied: ok})
	}
	return statuses, nil
}

// lockedConn pins one connection and takes a named MySQL lock on it so two
// runners never interleave.
func (r *Runner) lockedConn(ctx context.Context, db *sql.DB) (*sql.Conn, func(), error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired sql.NullInt64
	if err := conn.QueryRowContext(ctx, `SELECT GET_LOCK(?, ?)`, lockName, int(r.lockTimeout.Seconds())).Scan(&acquired); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("acquire migration lock: %w", err)
	}
	if !acquired.Valid || acquired.Int64 != 1 {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("migration lock %q is held by another runner", lockName)
	}
	release := func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT RELEASE_LOCK(?)`, lockName)
		_ = conn.Close()
	}

	if err := ensureMigrationTable(ctx, conn); err != nil {
		release()
		return nil, nil, err
	}
	return conn, release, nil
}

func ensureMigrationTable(ctx context.Context, conn *sql.Conn) error {
	query := `
CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (
	version BIGINT NOT NULL PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`
	if _, err := conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	return nil
}

func runScript(ctx context.Context, conn *sql.Conn, script string) error {
	for _, statement := range splitStatements(script) {
		if _, err := conn.ExecContext(ctx, statement); err != nil {
			return err
		}
	}
	return nil
}

func listAppliedVersions(ctx context.Context, conn *sql.Conn, order string) ([]int64, error) {
	rows, err := conn.QueryContext(ctx, `SELECT version FROM `+migrationTable+` ORDER BY version `+order)
	if err != nil {
		return nil, fmt.Errorf("query applied versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var versions []int64
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return versions, nil
}

// splitStatements breaks a script into statements at semicolons that end a
// line. The driver runs one statement per Exec unless multiStatements is
// set on the DSN.
func splitStatements(script string) []string {
	var (
		statements []string
		current    strings.Builder
	)
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			statement := strings.TrimSuffix(strings.TrimSpace(current.String()), ";")
			statements = append(statements, strings.TrimSpace(statement))
			current.Reset()
		}
	}
	if rest := strings.TrimSpace(current.String()); rest != "" {
		statements = append(statements, rest)
	}
	return statements
}

func loadMigrations(fsys fs.FS) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, "sql")
	if err != nil {
		return nil, fmt.Errorf("read migration dir: %w", err)
	}

	items := map[int64]migration{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		base := path.Base(entry.Name())
		matches := migrationNamePattern.FindStringSubmatch(base)
		if len(matches) != 3 {
			continue
		}
		version, err := strconv.ParseInt(matches[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse migration version for %q: %w", base, err)
		}
		direction := matches[2]

		script, err := fs.ReadFile(fsys, path.Join("sql", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %q: %w", entry.Name(), err)
		}

		item := items[version]
		item.Version = version
		item.Name = strings.TrimSuffix(base, "."+direction+".sql")
		switch direction {
		case "up":
			item.UpSQL = string(script)
		case "down":
			item.DownSQL = string(script)
		default:
			return nil, fmt.Errorf("unsupported migration direction %q", direction)
		}
		items[version] = item
	}

	versions := make([]int64, 0, len(items))
	for version := range items {
		versions = append(versions, version)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })

	migrations := make([]migration, 0, len(versions))
	for _, version := range versions {
		item := items[version]
		if strings.TrimSpace(item.UpSQL) == "" {
			return nil, fmt.Errorf("migration %d missing up SQL", version)
		}
		if strings.TrimSpace(item.DownSQL) == "" {
			return nil, fmt.Errorf("migration %d missing down SQL", version)
		}
		migrations = append(migrations, item)
	}
	return migrations, nil
}
