package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
)

const defaultPort = "3306"

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// DSN builds a driver DSN from discrete settings. Time columns are parsed
// into time.Time.
func DSN(host, user, password, database string) string {
	cfg := mysqldriver.NewConfig()
	cfg.User = user
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = host
	if _, _, err := net.SplitHostPort(host); err != nil {
		cfg.Addr = net.JoinHostPort(host, defaultPort)
	}
	cfg.DBName = database
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

func Open(ctx context.Context, cfg DBConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("mysql dsn is required")
	}
	if _, err := mysqldriver.ParseDSN(cfg.DSN); err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}

	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open mysql db: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql db: %w", err)
	}

	return db, nil
}
