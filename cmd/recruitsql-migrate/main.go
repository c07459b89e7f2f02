package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/recruitsql/recruitsql/internal/config"
	"github.com/recruitsql/recruitsql/internal/migrations"
	mysqlquery "github.com/recruitsql/recruitsql/internal/query/mysql"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up|down|status")
	steps := flag.Int("steps", 0, "number of migration steps; 0 means all for up, 1 for down")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("recruitsql-migrate")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	dsn := cfg.Database.DSN
	if strings.TrimSpace(dsn) == "" {
		dsn = mysqlquery.DSN(cfg.Database.Host, cfg.Database.User, cfg.Database.Password, cfg.Database.Name)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := mysqlquery.Open(ctx, mysqlquery.DBConfig{DSN: dsn, MaxOpenConns: 2})
	if err != nil {
		fmt.Fprintf(os.Stderr, "database open error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	runner := migrations.NewRunner()
	switch *direction {
	case "up":
		applied, err := runner.Up(ctx, db, *steps)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration up failed after %d migration(s): %v\n", applied, err)
			os.Exit(1)
		}
		fmt.Printf("applied %d migration(s)\n", applied)
	case "down":
		rolledBack, err := runner.Down(ctx, db, *steps)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration down failed after %d migration(s): %v\n", rolledBack, err)
			os.Exit(1)
		}
		fmt.Printf("rolled back %d migration(s)\n", rolledBack)
	case "status":
		statuses, err := runner.Status(ctx, db)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration status failed: %v\n", err)
			os.Exit(1)
		}
		for _, status := range statuses {
			state := "pending"
			if status.Applied {
				state = "applied"
			}
			fmt.Printf("%06d %-8s %s\n", status.Version, state, status.Name)
		}
	default:
		fmt.Fprintf(os.Stderr, "invalid direction: %s\n", *direction)
		os.Exit(1)
	}
}
