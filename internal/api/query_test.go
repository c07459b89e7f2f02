package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/recruitsql/recruitsql/internal/dialect"
	"github.com/recruitsql/recruitsql/internal/pipeline"
	"github.com/recruitsql/recruitsql/internal/query"
)

type fakePipeline struct {
	result      query.Result
	translation pipeline.Translation
	err         error
	questions   []string
}

func (f *fakePipeline) Invoke(_ context.Context, question string) (query.Result, error) {
	f.questions = append(f.questions, question)
	return f.result, f.err
}

func (f *fakePipeline) Translate(_ context.Context, question string) (pipeline.Translation, error) {
	f.questions = append(f.questions, question)
	return f.translation, f.err
}

func (f *fakePipeline) ModelName() string { return "defog/sqlcoder-7b-2" }

func countResult(n int64) query.Result {
	return query.Result{Columns: []string{"COUNT(*)"}, Rows: []query.Row{{"COUNT(*)": n}}}
}

func TestQueryEndpointReturnsRows(t *testing.T) {
	fake := &fakePipeline{result: countResult(3)}
	h := NewHandler(loadTestConfig(t, nil), Dependencies{Pipeline: fake})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/query?question=How+many+clients+are+there", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if got := rr.Body.String(); got != "[{\"COUNT(*)\":3}]\n" {
		t.Fatalf("body = %q", got)
	}
	if rr.Header().Get(truncatedHeader) != "false" {
		t.Fatalf("%s = %q", truncatedHeader, rr.Header().Get(truncatedHeader))
	}
	if len(fake.questions) != 1 || fake.questions[0] != "How many clients are there" {
		t.Fatalf("questions = %v", fake.questions)
	}
}

func TestQueryEndpointKeepsColumnOrder(t *testing.T) {
	fake := &fakePipeline{result: query.Result{
		Columns:   []string{"name", "candidate_count", "name"},
		Rows:      []query.Row{{"name": "Acme", "candidate_count": int64(12)}},
		Truncated: true,
	}}
	h := NewHandler(loadTestConfig(t, nil), Dependencies{Pipeline: fake})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/query?question=x", nil))
	if got := rr.Body.String(); got != "[{\"name\":\"Acme\",\"candidate_count\":12}]\n" {
		t.Fatalf("body = %q", got)
	}
	if rr.Header().Get(truncatedHeader) != "true" {
		t.Fatalf("%s = %q", truncatedHeader, rr.Header().Get(truncatedHeader))
	}
}

func TestQueryEndpointEmptyResultIsArray(t *testing.T) {
	h := NewHandler(loadTestConfig(t, nil), Dependencies{Pipeline: &fakePipeline{result: query.Result{Columns: []string{"client_name"}}}})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/query?question=x", nil))
	if got := rr.Body.String(); got != "[]\n" {
		t.Fatalf("body = %q", got)
	}
}

func TestQueryEndpointNoAnswer(t *testing.T) {
	fake := &fakePipeline{err: &pipeline.Failure{Kind: pipeline.KindNoAnswer, Stage: pipeline.StageRefusal, Message: pipeline.NoAnswerMessage}}
	h := NewHandler(loadTestConfig(t, nil), Dependencies{Pipeline: fake})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/query?question=What+is+the+weather", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["Failed"] != pipeline.NoAnswerMessage {
		t.Fatalf("body = %v", body)
	}
}

func TestQueryEndpointFailureStatuses(t *testing.T) {
	tests := []struct {
		kind      pipeline.Kind
		want      int
		retryable bool
	}{
		{kind: pipeline.KindInvalidInput, want: http.StatusBadRequest},
		{kind: pipeline.KindSynthesisTruncated, want: http.StatusBadGateway},
		{kind: pipeline.KindMalformedModelOutput, want: http.StatusBadGateway},
		{kind: pipeline.KindModelError, want: http.StatusBadGateway, retryable: true},
		{kind: pipeline.KindUnparseableQuery, want: http.StatusBadGateway},
		{kind: pipeline.KindUnsafeQuery, want: http.StatusUnprocessableEntity},
		{kind: pipeline.KindExecutionError, want: http.StatusInternalServerError, retryable: true},
		{kind: pipeline.KindTimeout, want: http.StatusGatewayTimeout, retryable: true},
		{kind: pipeline.KindCanceled, want: StatusClientClosedRequest},
	}
	for _, tc := range tests {
		t.Run(string(tc.kind), func(t *testing.T) {
			fake := &fakePipeline{err: &pipeline.Failure{Kind: tc.kind, Stage: pipeline.StageExecute, Message: "something failed"}}
			h := NewHandler(loadTestConfig(t, nil), Dependencies{Pipeline: fake})

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/query?question=x", nil))
			if rr.Code != tc.want {
				t.Fatalf("status = %d, want %d", rr.Code, tc.want)
			}
			body := decodeBody(t, rr)
			if body["Error"] != "something failed" || body["error_code"] != string(tc.kind) || body["retryable"] != tc.retryable {
				t.Fatalf("body = %v", body)
			}
			if body["trace_id"] == "" {
				t.Fatal("expected trace_id")
			}
		})
	}
}

func TestQueryEndpointNotConfigured(t *testing.T) {
	h := NewHandler(loadTestConfig(t, nil), Dependencies{})
	for _, path := range []string{"/query?question=x", "/v1/translate?question=x"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusNotImplemented {
			t.Fatalf("%s status = %d", path, rr.Code)
		}
	}
}

func TestTranslateEndpoint(t *testing.T) {
	fake := &fakePipeline{translation: pipeline.Translation{
		Question:   "How many candidates applied",
		Candidate:  dialect.CandidateQuery{RawText: "SELECT COUNT(*) FROM resumes WHERE active = true", SourceDialect: dialect.Postgres},
		Executable: dialect.ExecutableQuery{Text: "SELECT COUNT(*) FROM resumes WHERE active = 1", TargetDialect: dialect.MySQL},
		Cached:     true,
	}}
	h := NewHandler(loadTestConfig(t, nil), Dependencies{Pipeline: fake})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/translate?question=How+many+candidates+applied", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["sql"] != "SELECT COUNT(*) FROM resumes WHERE active = 1" || body["target_dialect"] != "mysql" {
		t.Fatalf("body = %v", body)
	}
	if body["model"] != "defog/sqlcoder-7b-2" || body["cached"] != true {
		t.Fatalf("body = %v", body)
	}
}
