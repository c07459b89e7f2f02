package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/recruitsql/recruitsql/internal/cli/schemactl"
	"github.com/recruitsql/recruitsql/internal/config"
	s3store "github.com/recruitsql/recruitsql/internal/storage/s3"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("recruitsql-schema")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	options := schemactl.Options{
		Source: cfg.Schema.Source,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
	if strings.TrimSpace(cfg.ObjectStore.Endpoint) != "" {
		store, err := s3store.New(ctx, s3store.Config{
			Endpoint:         cfg.ObjectStore.Endpoint,
			Region:           cfg.ObjectStore.Region,
			Bucket:           cfg.ObjectStore.Bucket,
			AccessKeyID:      cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
			UseSSL:           cfg.ObjectStore.UseSSL,
			Prefix:           cfg.ObjectStore.Prefix,
			AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "object store error: %v\n", err)
			os.Exit(1)
		}
		options.Store = store
	}

	code := schemactl.Run(ctx, os.Args[1:], options)
	stop()
	os.Exit(code)
}
