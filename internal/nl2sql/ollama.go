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

	"github.com/tickerql/tickerql/internal/observability"
)

const (
	DefaultOllamaModel = "llama2"
	DefaultOllamaSeed  = 123
)

type OllamaConfig struct {
	BaseURL     string
	Model       string
	Seed        int
	Temperature float64
	Timeout     time.Duration
	Schema      string
	HTTPClient  *http.Client
}

type OllamaGenerator struct {
	baseURL     string
	model       string
	seed        int
	temperature float64
	schema      string
	client      *http.Client
}

func NewOllamaGenerator(cfg OllamaConfig) (*OllamaGenerator, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultOllamaModel
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 90 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &OllamaGenerator{
		baseURL:     baseURL,
		model:       model,
		seed:        cfg.Seed,
		temperature: cfg.Temperature,
		schema:      defaultSchema(cfg.Schema),
		client:      client,
	}, nil
}

// chatMessage is the message shape shared by the Ollama and OpenAI chat APIs.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Seed        int     `json:"seed"`
	Temperature float64 `json:"temperature"`
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Options  ollamaOptions `json:"options"`
	Stream   bool          `json:"stream"`
}

type ollamaChatResponse struct {
	Model   string      `json:"model"`
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error"`
}

func (g *OllamaGenerator) GenerateSQL(ctx context.Context, question string) (string, error) {
	start := time.Now()
	sql, err := g.generate(ctx, question)
	observability.ObserveSQLGeneration("ollama", time.Since(start), err)
	return sql, err
}

func (g *OllamaGenerator) generate(ctx context.Context, question string) (string, error) {
	content, err := g.chat(ctx, BuildPrompt(g.schema, question))
	if err != nil {
		return "", err
	}
	return ExtractSQL(content)
}

func (g *OllamaGenerator) chat(ctx context.Context, message string) (string, error) {
	body, err := json.Marshal(ollamaChatRequest{
		Model:    g.model,
		Messages: []chatMessage{{Role: "user", Content: message}},
		Options:  ollamaOptions{Seed: g.seed, Temperature: g.temperature},
		Stream:   false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	rawRespBody, err := postJSON(ctx, g.client, g.baseURL+"/api/chat", body, nil)
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}

	var parsed ollamaChatResponse
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return "", fmt.Errorf("decode ollama chat response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("ollama chat: %s", parsed.Error)
	}
	return parsed.Message.Content, nil
}

// postJSON sends body and returns the raw response, treating any 4xx/5xx as
// an error that carries the response text.
func postJSON(ctx context.Context, client *http.Client, url string, body []byte, headers map[string]string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("request failed status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(rawRespBody)))
	}
	return rawRespBody, nil
}
