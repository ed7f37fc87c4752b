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

	"github.com/starquery/starquery/internal/schema"
)

type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

type OpenAITranslator struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	catalog     *schema.Catalog
	client      *http.Client
}

func NewOpenAITranslator(cfg OpenAIConfig, catalog *schema.Catalog) (*OpenAITranslator, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("schema catalog is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &OpenAITranslator{
		baseURL:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       model,
		temperature: cfg.Temperature,
		catalog:     catalog,
		client:      &http.Client{Timeout: timeout},
	}, nil
}

func (t *OpenAITranslator) Translate(ctx context.Context, req Request) (Result, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return Result{}, fmt.Errorf("question is required")
	}
	model := t.model
	if override := strings.TrimSpace(req.Model); override != "" {
		model = override
	}

	body, err := json.Marshal(t.buildPayload(model, question))
	if err != nil {
		return Result{}, fmt.Errorf("marshal chat payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("request chat completion: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read chat response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return Result{}, fmt.Errorf("chat completion failed status=%d body=%s", resp.StatusCode, string(rawRespBody))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return Result{}, fmt.Errorf("decode chat completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return Result{}, fmt.Errorf("empty chat completion choices")
	}

	var generated struct {
		SQLQuery    string `json:"sql_query"`
		Explanation string `json:"explanation"`
	}
	content := stripMarkdownFence(parsed.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &generated); err != nil {
		return Result{}, fmt.Errorf("decode generated payload: %w", err)
	}
	if strings.TrimSpace(generated.SQLQuery) == "" {
		return Result{}, fmt.Errorf("model returned empty SQL")
	}

	return Result{
		SQL:         strings.TrimSpace(generated.SQLQuery),
		Explanation: strings.TrimSpace(generated.Explanation),
		Provider:    "openai-compatible",
		Model:       model,
	}, nil
}

func (t *OpenAITranslator) buildPayload(model, question string) map[string]any {
	systemPrompt := "You convert natural-language analytics questions into a single DuckDB SQL query " +
		"against the star schema below. DuckDB uses PostgreSQL-like syntax.\n\n" +
		t.catalog.PromptContext() + "\n" +
		"Respond with a JSON object holding two keys: \"sql_query\" (one SELECT statement, " +
		"no other statement kinds) and \"explanation\" (one sentence on how the query answers the question)."

	return map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": question},
		},
		"temperature":     t.temperature,
		"response_format": map[string]string{"type": "json_object"},
	}
}

func stripMarkdownFence(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		return strings.TrimSpace(trimmed)
	}
	return trimmed
}
