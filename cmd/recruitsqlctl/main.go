package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/recruitsql/recruitsql/internal/cli/recruitsqlctl"
)

func main() {
	_ = godotenv.Load()

	timeout := parseDurationWithDefault(strings.TrimSpace(os.Getenv("RECRUITSQL_CLI_TIMEOUT")), 3*time.Minute)
	options := recruitsqlctl.Options{
		BaseURL: envOr("RECRUITSQL_API_URL", "http://localhost:8000"),
		APIKey:  strings.TrimSpace(os.Getenv("RECRUITSQL_API_KEY")),
		Timeout: timeout,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := recruitsqlctl.Run(ctx, os.Args[1:], options)
	stop()
	os.Exit(code)
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseDurationWithDefault(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid RECRUITSQL_CLI_TIMEOUT %q; using %s\n", raw, fallback)
		return fallback
	}
	return parsed
}
