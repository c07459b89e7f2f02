package recruitsqlctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ExitNoAnswer is returned when the service understood the question but
// the recruiting schema cannot answer it.
const ExitNoAnswer = 3

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
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

	fs := flag.NewFlagSet("recruitsqlctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8000"), "recruitsql API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 3*time.Minute), "HTTP timeout (e.g. 90s)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	command := strings.TrimSpace(fs.Arg(0))
	question := strings.TrimSpace(strings.Join(fs.Args()[1:], " "))
	path := ""
	switch command {
	case "health":
		path = "/v1/health"
	case "ready":
		path = "/v1/ready"
	case "schema":
		path = "/v1/schema"
	case "ask", "translate":
		if question == "" {
			_, _ = fmt.Fprintf(stderr, "%s requires a question\n\n", command)
			writeUsage(stderr)
			return 2
		}
		path = "/query"
		if command == "translate" {
			path = "/v1/translate"
		}
		path += "?" + url.Values{"question": []string{question}}.Encode()
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}

	endpoint := strings.TrimRight(*baseURL, "/") + path
	code, responseBody, err := doRequest(ctx, client, endpoint, *apiKey)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if command == "ask" {
		if message, ok := noAnswer(responseBody); ok {
			_, _ = fmt.Fprintln(stderr, message)
			return ExitNoAnswer
		}
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

func doRequest(ctx context.Context, client *http.Client, url, apiKey string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if strings.TrimSpace(apiKey) != "" {
		req.Header.Set("X-API-Key", strings.TrimSpace(apiKey))
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func noAnswer(raw []byte) (string, bool) {
	var payload struct {
		Failed *string `json:"Failed"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Failed == nil {
		return "", false
	}
	return *payload.Failed, true
}

// prettyJSON indents without decoding so result columns keep their order.
func prettyJSON(raw []byte) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return "", false
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, trimmed, "", "  "); err != nil {
		return "", false
	}
	return buf.String(), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: recruitsqlctl [flags] <command> [question]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health               GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready                GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  schema               GET /v1/schema")
	_, _ = fmt.Fprintln(w, "  ask <question>       GET /query")
	_, _ = fmt.Fprintln(w, "  translate <question> GET /v1/translate")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
