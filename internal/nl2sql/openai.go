package nl2sql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	OpenAIModeChat        = "chat"
	OpenAIModeCompletions = "completions"
)

const openAISystemPrompt = "You translate questions about a recruiting database into a single PostgreSQL query. " +
	"Follow the instructions in the prompt exactly."

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	// Mode selects /v1/chat/completions or /v1/completions. Completion
	// output is appended to the prompt, the way a causal model decodes.
	Mode    string
	Timeout time.Duration
}

// OpenAIModel talks to any OpenAI-compatible server, including self-hosted
// vLLM or TGI deployments of code models.
type OpenAIModel struct {
	baseURL string
	apiKey  string
	model   string
	mode    string
	client  *http.Client
}

func NewOpenAIModel(cfg OpenAIConfig) (*OpenAIModel, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = OpenAIModeChat
	}
	if mode != OpenAIModeChat && mode != OpenAIModeCompletions {
		return nil, fmt.Errorf("unsupported openai mode %q", cfg.Mode)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &OpenAIModel{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:  strings.TrimSpace(cfg.APIKey),
		model:   model,
		mode:    mode,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (m *OpenAIModel) Name() string {
	return m.model
}

func (m *OpenAIModel) Close() error {
	m.client.CloseIdleConnections()
	return nil
}

type openAIChoice struct {
	Text    string `json:"text"`
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

func (m *OpenAIModel) Generate(ctx context.Context, req GenerateRequest) (Generation, error) {
	path, payload := m.buildPayload(req)
	body, err := json.Marshal(payload)
	if err != nil {
		return Generation{}, fmt.Errorf("marshal %s payload: %w", m.mode, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return Generation{}, fmt.Errorf("build %s request: %w", m.mode, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return Generation{}, fmt.Errorf("request %s: %w", m.mode, err)
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Generation{}, fmt.Errorf("read %s response body: %w", m.mode, err)
	}
	if resp.StatusCode >= 400 {
		return Generation{}, fmt.Errorf("%s failed status=%d body=%s", m.mode, resp.StatusCode, string(rawRespBody))
	}

	var parsed struct {
		Choices []openAIChoice `json:"choices"`
	}
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return Generation{}, fmt.Errorf("decode %s response: %w", m.mode, err)
	}
	if len(parsed.Choices) == 0 {
		return Generation{}, fmt.Errorf("empty %s choices", m.mode)
	}

	choice := parsed.Choices[0]
	text := choice.Message.Content
	if m.mode == OpenAIModeCompletions {
		text = req.Prompt + choice.Text
	}
	return Generation{
		Text:      text,
		Truncated: choice.FinishReason == "length",
	}, nil
}

func (m *OpenAIModel) buildPayload(req GenerateRequest) (string, map[string]any) {
	payload := map[string]any{
		"model":       m.model,
		"temperature": 0,
		"top_p":       1,
		"n":           1,
		"seed":        req.Seed,
		"max_tokens":  req.MaxOutputTokens,
	}
	if len(req.StopSequences) > 0 {
		payload["stop"] = req.StopSequences
	}
	if m.mode == OpenAIModeCompletions {
		payload["prompt"] = req.Prompt
		return "/v1/completions", payload
	}
	payload["messages"] = []map[string]string{
		{"role": "system", "content": openAISystemPrompt},
		{"role": "user", "content": req.Prompt},
	}
	return "/v1/chat/completions", payload
}
