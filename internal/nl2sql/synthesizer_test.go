package nl2sql

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/recruitsql/recruitsql/internal/dialect"
	"github.com/recruitsql/recruitsql/internal/schema"
)

type fakeModel struct {
	output    string
	truncated bool
	err       error
	block     chan struct{}

	mu       sync.Mutex
	requests []GenerateRequest
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (m *fakeModel) Name() string { return "fake-sqlcoder" }

func (m *fakeModel) Close() error { return nil }

func (m *fakeModel) Generate(_ context.Context, req GenerateRequest) (Generation, error) {
	current := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		seen := m.maxSeen.Load()
		if current <= seen || m.maxSeen.CompareAndSwap(seen, current) {
			break
		}
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.block != nil {
		<-m.block
	}
	if m.err != nil {
		return Generation{}, m.err
	}
	return Generation{Text: m.output, Truncated: m.truncated}, nil
}

func TestSynthesizeExtractsQueryAfterMarker(t *testing.T) {
	model := &fakeModel{output: "prompt text [SQL] ```sql\nSELECT COUNT(*) FROM clients;\n``` [/SQL] trailing"}
	synth, err := NewSynthesizer(model, SynthesizerConfig{Seed: 7})
	if err != nil {
		t.Fatalf("NewSynthesizer() error = %v", err)
	}

	candidate, err := synth.Synthesize(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if candidate.RawText != "SELECT COUNT(*) FROM clients;" {
		t.Fatalf("RawText = %q", candidate.RawText)
	}
	if candidate.SourceDialect != dialect.Postgres {
		t.Fatalf("SourceDialect = %q", candidate.SourceDialect)
	}

	req := model.requests[0]
	if req.MaxOutputTokens != DefaultMaxOutputTokens || req.Seed != 7 {
		t.Fatalf("request = %+v", req)
	}
	if len(req.StopSequences) != 1 || req.StopSequences[0] != SQLEndMarker {
		t.Fatalf("stop sequences = %v", req.StopSequences)
	}
}

func TestSynthesizeFailures(t *testing.T) {
	backendErr := errors.New("backend unavailable")
	tests := []struct {
		name    string
		model   *fakeModel
		wantErr error
	}{
		{name: "truncated", model: &fakeModel{output: "[SQL]SELECT", truncated: true}, wantErr: ErrSynthesisTruncated},
		{name: "no marker", model: &fakeModel{output: "SELECT 1"}, wantErr: ErrMalformedOutput},
		{name: "empty after marker", model: &fakeModel{output: "[SQL]  [/SQL]"}, wantErr: ErrMalformedOutput},
		{name: "backend error", model: &fakeModel{err: backendErr}, wantErr: backendErr},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			synth, err := NewSynthesizer(tc.model, SynthesizerConfig{})
			if err != nil {
				t.Fatalf("NewSynthesizer() error = %v", err)
			}
			if _, err := synth.Synthesize(context.Background(), "prompt"); !errors.Is(err, tc.wantErr) {
				t.Fatalf("Synthesize() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestSynthesizePassesProseRefusalThrough(t *testing.T) {
	synth, err := NewSynthesizer(&fakeModel{output: "I do not know.\n"}, SynthesizerConfig{})
	if err != nil {
		t.Fatalf("NewSynthesizer() error = %v", err)
	}
	candidate, err := synth.Synthesize(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if !IsRefusal(candidate.RawText) {
		t.Fatalf("RawText = %q, want refusal", candidate.RawText)
	}
}

func TestSynthesizeEmptyCompletionAfterEchoedPromptIsMalformed(t *testing.T) {
	descriptor, err := schema.Default()
	if err != nil {
		t.Fatalf("schema.Default() error = %v", err)
	}
	prompt, err := BuildPrompt("How many clients are there?", descriptor)
	if err != nil {
		t.Fatalf("BuildPrompt() error = %v", err)
	}
	if !IsRefusal(prompt) {
		t.Fatal("prompt should name the refusal phrase")
	}

	for _, completion := range []string{"", "\n", "  \n\t"} {
		synth, err := NewSynthesizer(&fakeModel{output: prompt + completion}, SynthesizerConfig{})
		if err != nil {
			t.Fatalf("NewSynthesizer() error = %v", err)
		}
		candidate, err := synth.Synthesize(context.Background(), prompt)
		if !errors.Is(err, ErrMalformedOutput) {
			t.Fatalf("Synthesize(completion %q) = %q, %v; want ErrMalformedOutput", completion, candidate.RawText, err)
		}
	}
}

func TestSynthesizeTimeoutReleasesModelLock(t *testing.T) {
	model := &fakeModel{output: "[SQL]SELECT 1[/SQL]", block: make(chan struct{})}
	synth, err := NewSynthesizer(model, SynthesizerConfig{})
	if err != nil {
		t.Fatalf("NewSynthesizer() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := synth.Synthesize(ctx, "prompt"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Synthesize() error = %v, want deadline exceeded", err)
	}

	close(model.block)

	next, cancelNext := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelNext()
	candidate, err := synth.Synthesize(next, "prompt")
	if err != nil {
		t.Fatalf("Synthesize() after timeout error = %v", err)
	}
	if candidate.RawText != "SELECT 1" {
		t.Fatalf("RawText = %q", candidate.RawText)
	}
}

func TestSynthesizeSerializesGenerations(t *testing.T) {
	model := &fakeModel{output: "[SQL]SELECT 1[/SQL]", block: make(chan struct{})}
	synth, err := NewSynthesizer(model, SynthesizerConfig{})
	if err != nil {
		t.Fatalf("NewSynthesizer() error = %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := synth.Synthesize(context.Background(), "prompt")
			errs <- err
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(model.block)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Synthesize() error = %v", err)
		}
	}
	if got := model.maxSeen.Load(); got != 1 {
		t.Fatalf("max concurrent generations = %d, want 1", got)
	}
}

func TestExtractQuery(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "[SQL]SELECT 1", want: "SELECT 1"},
		{raw: "### Answer\n[SQL]\nSELECT 1\n[/SQL]", want: "SELECT 1"},
		{raw: "Answer with [SQL] ... [SQL] SELECT 2 [/SQL] [SQL]", want: ""},
	}
	for _, tc := range tests[:2] {
		got, err := ExtractQuery(tc.raw)
		if err != nil {
			t.Fatalf("ExtractQuery(%q) error = %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("ExtractQuery(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
	if _, err := ExtractQuery(tests[2].raw); !errors.Is(err, ErrMalformedOutput) {
		t.Fatalf("ExtractQuery() with trailing marker error = %v, want ErrMalformedOutput", err)
	}
}

func TestStripMarkdownSQL(t *testing.T) {
	got := stripMarkdownSQL("```sql\nSELECT 1;\n```")
	if got != "SELECT 1;" {
		t.Fatalf("stripMarkdownSQL() = %q", got)
	}
}
