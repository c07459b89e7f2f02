package nl2sql

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

type GeminiConfig struct {
	APIKey string
	Model  string
	// Project and Location select Vertex AI instead of the Gemini API.
	Project  string
	Location string
}

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type GeminiModel struct {
	models contentGenerator
	model  string
}

func NewGeminiModel(ctx context.Context, cfg GeminiConfig) (*GeminiModel, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.Project) != "" {
		clientConfig = &genai.ClientConfig{
			Project:  strings.TrimSpace(cfg.Project),
			Location: strings.TrimSpace(cfg.Location),
			Backend:  genai.BackendVertexAI,
		}
	} else if clientConfig.APIKey == "" {
		return nil, fmt.Errorf("api key is required for the gemini api")
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newGeminiModel(client.Models, model), nil
}

func newGeminiModel(models contentGenerator, model string) *GeminiModel {
	return &GeminiModel{models: models, model: model}
}

func (g *GeminiModel) Name() string {
	return g.model
}

// Close is a no-op; the genai client holds no resources that need release.
func (g *GeminiModel) Close() error {
	return nil
}

func (g *GeminiModel) Generate(ctx context.Context, req GenerateRequest) (Generation, error) {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0),
		TopK:            genai.Ptr[float32](1),
		CandidateCount:  1,
		MaxOutputTokens: int32(req.MaxOutputTokens),
		StopSequences:   req.StopSequences,
		Seed:            genai.Ptr(int32(req.Seed)),
	}

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), config)
	if err != nil {
		return Generation{}, fmt.Errorf("generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return Generation{}, fmt.Errorf("gemini returned no candidates")
	}

	candidate := resp.Candidates[0]
	var text strings.Builder
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			text.WriteString(part.Text)
		}
	}
	return Generation{
		Text:      text.String(),
		Truncated: candidate.FinishReason == genai.FinishReasonMaxTokens,
	}, nil
}
