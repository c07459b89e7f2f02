package recruitsqlctl

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRunAskCommand(t *testing.T) {
	var gotPath, gotQuestion, gotAPIKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuestion = r.URL.Query().Get("question")
		gotAPIKey = r.Header.Get("X-API-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"client_name":"Acme","COUNT(*)":3}]`))
	}))
	defer srv.Close()

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{
		"-base-url", srv.URL,
		"-api-key", "k1",
		"ask", "how many resumes", "per client?",
	}, Options{
		Stdout:  &stdout,
		Stderr:  &stderr,
		Timeout: 2 * time.Second,
	})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if gotPath != "/query" || gotQuestion != "how many resumes per client?" {
		t.Fatalf("request path=%q question=%q", gotPath, gotQuestion)
	}
	if gotAPIKey != "k1" {
		t.Fatalf("api key = %q", gotAPIKey)
	}
	out := stdout.String()
	if strings.Index(out, "client_name") > strings.Index(out, "COUNT(*)") {
		t.Fatalf("column order not preserved: %s", out)
	}
}

func TestRunAskReportsNoAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"Failed":"The question cannot be answered from the recruiting data."}`))
	}))
	defer srv.Close()

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "ask", "what is the weather"}, Options{Stdout: &stdout, Stderr: &stderr})
	if code != ExitNoAnswer {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stderr.String(), "cannot be answered") {
		t.Fatalf("stderr = %q", stderr.String())
	}
	if stdout.Len() != 0 {
		t.Fatalf("stdout = %q", stdout.String())
	}
}

func TestRunTranslateCommand(t *testing.T) {
	var gotPath, gotQuestion string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuestion = r.URL.Query().Get("question")
		_, _ = w.Write([]byte(`{"sql":"SELECT COUNT(*) FROM resumes"}`))
	}))
	defer srv.Close()

	code := Run(context.Background(), []string{"-base-url", srv.URL, "translate", "count resumes"}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if gotPath != "/v1/translate" || gotQuestion != "count resumes" {
		t.Fatalf("request path=%q question=%q", gotPath, gotQuestion)
	}
}

func TestRunSchemaCommand(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"version":"v1"}`))
	}))
	defer srv.Close()

	code := Run(context.Background(), []string{"-base-url", srv.URL, "schema"}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if gotPath != "/v1/schema" {
		t.Fatalf("request path = %q", gotPath)
	}
}

func TestRunReturnsErrorOnHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error_code":"UNSAFE_QUERY"}`))
	}))
	defer srv.Close()

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "ask", "drop everything"}, Options{Stderr: &stderr})
	if code != 1 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "http 422") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestRunAskRequiresQuestion(t *testing.T) {
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"ask"}, Options{Stderr: &stderr})
	if code != 2 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stderr.String(), "requires a question") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"unknown"}, Options{Stderr: &stderr})
	if code != 2 {
		t.Fatalf("exit code = %d", code)
	}
	if stderr.Len() == 0 {
		t.Fatal("expected usage output")
	}
}
