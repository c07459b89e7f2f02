package nl2sql

import (
	"errors"
	"strings"
	"testing"

	"github.com/recruitsql/recruitsql/internal/schema"
)

func TestBuildPromptIncludesSchemaHintsAndMarker(t *testing.T) {
	descriptor, err := schema.Default()
	if err != nil {
		t.Fatalf("schema.Default() error = %v", err)
	}

	prompt, err := BuildPrompt("  How many clients are there  ", descriptor)
	if err != nil {
		t.Fatalf("BuildPrompt() error = %v", err)
	}

	for _, fragment := range []string{
		"[QUESTION]How many clients are there[/QUESTION]",
		"Do not use ILIKE, use LIKE instead",
		"Write boolean values as 1 and 0",
		"CREATE TABLE resumes (",
		"FOREIGN KEY (client_id) REFERENCES clients(client_id)",
		"-- resumes.jd_id can be joined with job_descriptions.jd_id",
		"Users may refer to the resumes table as candidates",
		"Users may refer to the job_descriptions table as requirements or positions",
		"HR hiring system",
		"return 'I do not know'",
	} {
		if !strings.Contains(prompt, fragment) {
			t.Fatalf("prompt missing %q\n%s", fragment, prompt)
		}
	}
	if !strings.HasSuffix(prompt, "[/QUESTION]\n[SQL]") {
		t.Fatalf("prompt does not end with the answer marker: %q", prompt[len(prompt)-40:])
	}
}

func TestBuildPromptIsDeterministic(t *testing.T) {
	descriptor, err := schema.Default()
	if err != nil {
		t.Fatalf("schema.Default() error = %v", err)
	}
	first, err := BuildPrompt("list candidates", descriptor)
	if err != nil {
		t.Fatalf("BuildPrompt() error = %v", err)
	}
	second, _ := BuildPrompt("list candidates", descriptor)
	if first != second {
		t.Fatalf("BuildPrompt() is not deterministic")
	}
}

func TestBuildPromptRejectsEmptyQuestion(t *testing.T) {
	for _, question := range []string{"", "   ", "\n\t"} {
		if _, err := BuildPrompt(question, schema.Descriptor{}); !errors.Is(err, ErrEmptyQuestion) {
			t.Fatalf("BuildPrompt(%q) error = %v, want ErrEmptyQuestion", question, err)
		}
	}
}

func TestIsRefusal(t *testing.T) {
	tests := map[string]bool{
		"I do not know":                    true,
		"i DO NOT know the answer":         true,
		"SELECT 'I do not know' AS answer": true,
		"SELECT COUNT(*) FROM clients":     false,
		"I don't know":                     false,
	}
	for candidate, want := range tests {
		if got := IsRefusal(candidate); got != want {
			t.Fatalf("IsRefusal(%q) = %v, want %v", candidate, got, want)
		}
	}
}
