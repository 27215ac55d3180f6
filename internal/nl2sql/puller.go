package nl2sql

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tickerql/tickerql/internal/observability"
)

// ModelPuller asks an Ollama server to download models so the first
// question does not pay for the download.
type ModelPuller struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewModelPuller(baseURL string, timeout time.Duration, logger *slog.Logger) (*ModelPuller, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ModelPuller{baseURL: baseURL, client: &http.Client{Timeout: timeout}, logger: logger}, nil
}

func (p *ModelPuller) Pull(ctx context.Context, model string) error {
	model = strings.TrimSpace(model)
	if model == "" {
		return fmt.Errorf("model name is required")
	}
	body, err := json.Marshal(map[string]any{"model": model, "stream": false})
	if err != nil {
		return fmt.Errorf("marshal pull payload: %w", err)
	}

	p.logger.InfoContext(ctx, "pulling model", slog.String("model", model))
	rawRespBody, err := postJSON(ctx, p.client, p.baseURL+"/api/pull", body, nil)
	if err == nil {
		var parsed struct {
			Status string `json:"status"`
			Error  string `json:"error"`
		}
		if decodeErr := json.Unmarshal(rawRespBody, &parsed); decodeErr != nil {
			err = fmt.Errorf("decode pull response: %w", decodeErr)
		} else if parsed.Error != "" {
			err = fmt.Errorf("%s", parsed.Error)
		}
	}
	observability.ObserveModelPull(err)
	if err != nil {
		return fmt.Errorf("pull model %q: %w", model, err)
	}
	p.logger.InfoContext(ctx, "model ready", slog.String("model", model))
	return nil
}

// PullAll pulls every model concurrently and returns the first failure.
func (p *ModelPuller) PullAll(ctx context.Context, models []string) error {
	group, groupCtx := errgroup.WithContext(ctx)
	for _, model := range models {
		group.Go(func() error {
			return p.Pull(groupCtx, model)
		})
	}
	return group.Wait()
}
