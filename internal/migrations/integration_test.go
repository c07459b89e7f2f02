//go:build integration

package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
)

func TestRunnerAppliesAndRollsBackRecruitingSchema(t *testing.T) {
	adminDSN := strings.TrimSpace(os.Getenv("RECRUITSQL_TEST_MYSQL_DSN"))
	if adminDSN == "" {
		t.Skip("RECRUITSQL_TEST_MYSQL_DSN is not set")
	}

	testDSN, cleanup := createTemporaryDatabase(t, adminDSN)
	defer cleanup()

	db, err := sql.Open("mysql", testDSN)
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	runner := NewRunner()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	applied, err := runner.Up(ctx, db, 0)
	if err != nil {
		t.Fatalf("runner.Up() error = %v", err)
	}
	if applied < 2 {
		t.Fatalf("runner.Up() applied %d migrations, want at least 2", applied)
	}

	assertTableExists(t, db, "clients", true)
	assertTableExists(t, db, "job_descriptions", true)
	assertTableExists(t, db, "resumes", true)

	again, err := runner.Up(ctx, db, 0)
	if err != nil {
		t.Fatalf("second runner.Up() error = %v", err)
	}
	if again != 0 {
		t.Fatalf("second runner.Up() applied %d, want 0", again)
	}

	rolledBack, err := runner.Down(ctx, db, applied)
	if err != nil {
		t.Fatalf("runner.Down() error = %v", err)
	}
	if rolledBack != applied {
		t.Fatalf("runner.Down() rolled back %d migrations, want %d", rolledBack, applied)
	}

	assertTableExists(t, db, "resumes", false)
	assertTableExists(t, db, "clients", false)
}

func createTemporaryDatabase(t *testing.T, adminDSN string) (string, func()) {
	t.Helper()

	cfg, err := mysql.ParseDSN(adminDSN)
	if err != nil {
		t.Fatalf("mysql.ParseDSN(adminDSN) error = %v", err)
	}

	adminDB, err := sql.Open("mysql", adminDSN)
	if err != nil {
		t.Fatalf("sql.Open(adminDSN) error = %v", err)
	}

	name := fmt.Sprintf("recruitsql_it_%d", time.Now().UnixNano())
	if _, err := adminDB.Exec("CREATE DATABASE `" + name + "`"); err != nil {
		t.Fatalf("CREATE DATABASE failed: %v", err)
	}

	testCfg := cfg.Clone()
	testCfg.DBName = name

	cleanup := func() {
		defer func() { _ = adminDB.Close() }()
		if _, err := adminDB.Exec("DROP DATABASE `" + name + "`"); err != nil {
			t.Fatalf("DROP DATABASE failed: %v", err)
		}
	}
	return testCfg.FormatDSN(), cleanup
}

func assertTableExists(t *testing.T, db *sql.DB, table string, expected bool) {
	t.Helper()

	var count int
	query := `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?`
	if err := db.QueryRow(query, table).Scan(&count); err != nil {
		t.Fatalf("query table %q existence failed: %v", table, err)
	}
	exists := count > 0
	if exists != expected {
		t.Fatalf("table %q exists = %v, want %v", table, exists, expected)
	}
}
