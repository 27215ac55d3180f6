package nl2sql

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tickerql/tickerql/internal/observability"
)

const openAISystemPrompt = "You convert natural language questions about historical stock prices into a single PostgreSQL query. " +
	"Return ONLY SQL. No markdown, no explanation."

type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
	Schema      string
	HTTPClient  *http.Client
}

// OpenAIGenerator talks to any OpenAI-compatible /v1/chat/completions endpoint.
type OpenAIGenerator struct {
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	schema      string
	client      *http.Client
}

type openAIRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type openAIResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	apiKey := strings.TrimSpace(cfg.APIKey)
	switch {
	case baseURL == "":
		return nil, fmt.Errorf("base URL is required")
	case apiKey == "":
		return nil, fmt.Errorf("api key is required")
	}

	g := &OpenAIGenerator{
		endpoint:    baseURL + "/v1/chat/completions",
		apiKey:      apiKey,
		model:       strings.TrimSpace(cfg.Model),
		temperature: cfg.Temperature,
		schema:      defaultSchema(cfg.Schema),
		client:      cfg.HTTPClient,
	}
	if g.model == "" {
		g.model = "gpt-5"
	}
	if g.client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		g.client = &http.Client{Timeout: timeout}
	}
	return g, nil
}

func (g *OpenAIGenerator) GenerateSQL(ctx context.Context, question string) (string, error) {
	start := time.Now()
	sql, err := g.complete(ctx, question)
	observability.ObserveSQLGeneration("openai", time.Since(start), err)
	return sql, err
}

func (g *OpenAIGenerator) complete(ctx context.Context, question string) (string, error) {
	payload, err := json.Marshal(openAIRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: openAISystemPrompt},
			{Role: "user", Content: BuildPrompt(g.schema, question)},
		},
		Temperature: g.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	raw, err := postJSON(ctx, g.client, g.endpoint, payload, map[string]string{"Authorization": "Bearer " + g.apiKey})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	var resp openAIResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode chat completion: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("chat completion: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return ExtractSQL(resp.Choices[0].Message.Content)
}
