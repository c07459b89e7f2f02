package schemactl

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/recruitsql/recruitsql/internal/nl2sql"
	"github.com/recruitsql/recruitsql/internal/schema"
	"github.com/recruitsql/recruitsql/internal/storage"
)

const descriptorContentType = "application/json"

type Options struct {
	Source string
	// Store is required for object: sources and for publish.
	Store  storage.ObjectStore
	Stdout io.Writer
	Stderr io.Writer
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("recruitsql-schema", flag.ContinueOnError)
	fs.SetOutput(stderr)

	source := fs.String("source", firstNonEmpty(defaults.Source, schema.SourceEmbedded), "descriptor source: embedded, file:<path> or object:<key>")
	key := fs.String("key", "", "object key to publish the descriptor under")
	question := fs.String("question", "", "question to render a prompt for")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		writeUsage(stderr)
		return 2
	}

	command := strings.TrimSpace(fs.Arg(0))
	switch command {
	case "validate", "ddl", "prompt", "publish":
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}

	var reader schema.ObjectReader
	if defaults.Store != nil {
		reader = defaults.Store
	}
	descriptor, err := schema.Load(ctx, *source, reader)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "load descriptor: %v\n", err)
		return 1
	}

	switch command {
	case "validate":
		_, _ = fmt.Fprintf(stdout, "descriptor %s ok: %d tables, %d synonym groups\n",
			descriptor.Version, len(descriptor.Tables), len(descriptor.SynonymGroups()))
	case "ddl":
		_, _ = fmt.Fprintln(stdout, descriptor.DDL())
	case "prompt":
		prompt, err := nl2sql.BuildPrompt(*question, descriptor)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "build prompt: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintln(stdout, prompt)
	case "publish":
		if defaults.Store == nil {
			_, _ = fmt.Fprintln(stderr, "publish requires an object store; set RECRUITSQL_OBJECTSTORE_ENDPOINT")
			return 1
		}
		if strings.TrimSpace(*key) == "" {
			_, _ = fmt.Fprintln(stderr, "publish requires -key")
			return 2
		}
		body, err := schema.Encode(descriptor)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "encode descriptor: %v\n", err)
			return 1
		}
		info, err := defaults.Store.Put(ctx, strings.TrimSpace(*key), body, descriptorContentType)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "publish descriptor: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "published descriptor %s to %s (%d bytes, etag %s)\n", descriptor.Version, info.Key, info.Size, info.ETag)
	}
	return 0
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: recruitsql-schema [flags] <command>")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  validate   load and validate the descriptor")
	_, _ = fmt.Fprintln(w, "  ddl        print the descriptor as CREATE TABLE statements")
	_, _ = fmt.Fprintln(w, "  prompt     print the model prompt for -question")
	_, _ = fmt.Fprintln(w, "  publish    upload the descriptor to the object store under -key")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}
