package nl2sql

import (
	"context"
	"testing"

	"google.golang.org/genai"
)

type fakeContentGenerator struct {
	resp   *genai.GenerateContentResponse
	model  string
	config *genai.GenerateContentConfig
}

func (f *fakeContentGenerator) GenerateContent(_ context.Context, model string, _ []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	return f.resp, nil
}

func TestGeminiModelGenerateUsesGreedyDecoding(t *testing.T) {
	fake := &fakeContentGenerator{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "thinking", Thought: true},
				{Text: "[SQL]SELECT COUNT(*) "},
				{Text: "FROM clients"},
			}},
			FinishReason: genai.FinishReasonStop,
		}},
	}}
	model := newGeminiModel(fake, "gemini-2.0-flash")

	generation, err := model.Generate(context.Background(), GenerateRequest{Prompt: "p", MaxOutputTokens: 400, Seed: 3})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if generation.Text != "[SQL]SELECT COUNT(*) FROM clients" || generation.Truncated {
		t.Fatalf("generation = %+v", generation)
	}
	if fake.model != "gemini-2.0-flash" {
		t.Fatalf("model = %q", fake.model)
	}
	if *fake.config.Temperature != 0 || *fake.config.TopK != 1 || fake.config.CandidateCount != 1 {
		t.Fatalf("decoding config = %+v", fake.config)
	}
	if fake.config.MaxOutputTokens != 400 || *fake.config.Seed != 3 {
		t.Fatalf("limits = %+v", fake.config)
	}
}

func TestGeminiModelReportsTruncation(t *testing.T) {
	fake := &fakeContentGenerator{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Parts: []*genai.Part{{Text: "[SQL]SELECT"}}},
			FinishReason: genai.FinishReasonMaxTokens,
		}},
	}}
	generation, err := newGeminiModel(fake, "gemini").Generate(context.Background(), GenerateRequest{Prompt: "p"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !generation.Truncated {
		t.Fatalf("expected truncated generation")
	}
}

func TestGeminiModelWithoutCandidates(t *testing.T) {
	fake := &fakeContentGenerator{resp: &genai.GenerateContentResponse{}}
	if _, err := newGeminiModel(fake, "gemini").Generate(context.Background(), GenerateRequest{Prompt: "p"}); err == nil {
		t.Fatalf("expected error without candidates")
	}
}
