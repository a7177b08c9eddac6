package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/scentmatch/scentmatch-backend/internal/logger"
	errs "github.com/scentmatch/scentmatch-backend/internal/pkg/errors"
	"github.com/scentmatch/scentmatch-backend/internal/utils"
)

// Client is the embedding-generation collaborator. The engine treats it as
// a black box with a defined failure mode: transient failures are retried
// with backoff a bounded number of times, then surfaced as *errs.ServiceError
// so callers can degrade to a cached or default vector.
type Client interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

type client struct {
	log        *logger.Logger
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	maxRetries int
}

func NewClient(log *logger.Logger) (Client, error) {
	apiKey := strings.TrimSpace(utils.GetEnv("OPENAI_API_KEY", "", log))
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	baseURL := strings.TrimRight(utils.GetEnv("OPENAI_BASE_URL", "https://api.openai.com/v1", log), "/")
	model := utils.GetEnv("OPENAI_EMBED_MODEL", "text-embedding-3-small", log)
	dimensions := utils.GetEnvAsInt("EMBEDDING_DIM", 1024, log)
	timeout := utils.GetEnvAsDuration("OPENAI_TIMEOUT", 30*time.Second, log)
	maxRetries := utils.GetEnvAsInt("OPENAI_MAX_RETRIES", 3, log)

	return &client{
		log:        log.With("service", "OpenAIClient"),
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		dimensions: dimensions,
		maxRetries: maxRetries,
	}, nil
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (c *client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * 500 * time.Millisecond
			c.log.Warn("Retrying embedding request", "attempt", attempt, "backoff", backoff, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		vectors, retryable, err := c.embedOnce(ctx, inputs)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return nil, &errs.ServiceError{Service: "embedding", Err: lastErr}
}

func (c *client) embedOnce(ctx context.Context, inputs []string) ([][]float32, bool, error) {
	body, err := json.Marshal(embeddingRequest{
		Model:      c.model,
		Input:      inputs,
		Dimensions: c.dimensions,
	})
	if err != nil {
		return nil, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("embedding service status %d: %s", resp.StatusCode, truncate(raw, 256))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("embedding service status %d: %s", resp.StatusCode, truncate(raw, 256))
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, false, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(parsed.Data) != len(inputs) {
		return nil, false, fmt.Errorf("embedding response has %d vectors for %d inputs", len(parsed.Data), len(inputs))
	}

	vectors := make([][]float32, len(inputs))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, false, fmt.Errorf("embedding response index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, false, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
