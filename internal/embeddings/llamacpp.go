package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// LlamaCppConfig holds configuration for the llama.cpp embedding server
type LlamaCppConfig struct {
	URL           string
	Timeout       time.Duration
	RetryAttempts uint
	Concurrency   int
	ModelName     string
	Logger        *log.Logger
}

func NewLlamaCppConfig() LlamaCppConfig {
	return LlamaCppConfig{
		URL:           "http://localhost:8080",
		Timeout:       10 * time.Second,
		RetryAttempts: 3,
		Concurrency:   4,
	}
}

func (c LlamaCppConfig) WithURL(url string) LlamaCppConfig {
	c.URL = url
	return c
}
func (c LlamaCppConfig) WithTimeout(timeout time.Duration) LlamaCppConfig {
	c.Timeout = timeout
	return c
}
func (c LlamaCppConfig) WithRetryAttempts(attempts uint) LlamaCppConfig {
	c.RetryAttempts = attempts
	return c
}
func (c LlamaCppConfig) WithConcurrency(n int) LlamaCppConfig {
	c.Concurrency = n
	return c
}
func (c LlamaCppConfig) WithModelName(modelName string) LlamaCppConfig {
	c.ModelName = modelName
	return c
}
func (c LlamaCppConfig) WithLogger(logger *log.Logger) LlamaCppConfig {
	c.Logger = logger
	return c
}

func (c LlamaCppConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("embedding service URL is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be greater than 0")
	}
	if c.RetryAttempts == 0 {
		return fmt.Errorf("retry attempts must be greater than 0")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be greater than 0")
	}
	if c.ModelName == "" {
		return fmt.Errorf("model name is required")
	}
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	return nil
}

type LlamaCppEncoder struct {
	config     LlamaCppConfig
	httpClient *http.Client
	embedURL   string
	logger     *log.Logger
}

type llamaCppEmbeddingRequest struct {
	Content string `json:"content"`
}

type llamaCppEmbeddingResponse []struct {
	Index     int         `json:"index"`
	Embedding [][]float32 `json:"embedding"`
}

func NewLlamaCppEncoder(config LlamaCppConfig) (*LlamaCppEncoder, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	baseURL, err := url.Parse(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	return &LlamaCppEncoder{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		embedURL: baseURL.JoinPath("embedding").String(),
		logger:   config.Logger,
	}, nil
}

func (e *LlamaCppEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	jsonBody, err := json.Marshal(llamaCppEmbeddingRequest{Content: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var embeddings llamaCppEmbeddingResponse
	err = retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.embedURL, bytes.NewReader(jsonBody))
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := e.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("failed to make request: %w", err)
			}
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("failed to read response: %w", err)
			}
			if resp.StatusCode != http.StatusOK {
				err := fmt.Errorf("embedding server returned status %d: %s", resp.StatusCode, body)
				if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
					return retry.Unrecoverable(err)
				}
				return err
			}
			if err := json.Unmarshal(body, &embeddings); err != nil {
				e.logger.Debug("Failed to unmarshal embedding response", "body", string(body), "error", err)
				return fmt.Errorf("failed to unmarshal response: %w", err)
			}
			if len(embeddings) == 0 {
				return fmt.Errorf("no embeddings returned from server")
			}
			if len(embeddings[0].Embedding) == 0 || len(embeddings[0].Embedding[0]) == 0 {
				return fmt.Errorf("empty embedding returned from server")
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(e.config.RetryAttempts),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			e.logger.Warn("Retrying embedding request", "attempt", n+1, "max_attempts", e.config.RetryAttempts, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get embedding: %w", err)
	}
	// one content per request, so the first pooled embedding is ours
	embedding := embeddings[0].Embedding[0]
	e.logger.Debug("Generated embedding", "text_length", len(text), "embedding_length", len(embedding))
	return embedding, nil
}

// EncodeBatch fans out single requests with bounded concurrency; results keep input order
func (e *LlamaCppEncoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Concurrency)
	for i, text := range texts {
		g.Go(func() error {
			vec, err := e.Encode(gCtx, text)
			if err != nil {
				return fmt.Errorf("failed to encode text %d: %w", i, err)
			}
			out[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *LlamaCppEncoder) ModelName() string {
	return e.config.ModelName
}
