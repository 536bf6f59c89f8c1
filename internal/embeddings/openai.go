package embeddings

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/charmbracelet/log"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig holds configuration for an OpenAI-compatible embeddings endpoint
type OpenAIConfig struct {
	APIKey        string
	Endpoint      string // e.g. https://api.openai.com/v1
	ModelName     string
	Timeout       time.Duration
	RetryAttempts uint
	Logger        *log.Logger
}

func NewOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		Endpoint:      "https://api.openai.com/v1",
		Timeout:       10 * time.Second,
		RetryAttempts: 3,
	}
}

func (c OpenAIConfig) WithAPIKey(apiKey string) OpenAIConfig {
	c.APIKey = apiKey
	return c
}
func (c OpenAIConfig) WithEndpoint(endpoint string) OpenAIConfig {
	c.Endpoint = endpoint
	return c
}
func (c OpenAIConfig) WithModelName(modelName string) OpenAIConfig {
	c.ModelName = modelName
	return c
}
func (c OpenAIConfig) WithTimeout(timeout time.Duration) OpenAIConfig {
	c.Timeout = timeout
	return c
}
func (c OpenAIConfig) WithRetryAttempts(attempts uint) OpenAIConfig {
	c.RetryAttempts = attempts
	return c
}
func (c OpenAIConfig) WithLogger(logger *log.Logger) OpenAIConfig {
	c.Logger = logger
	return c
}

func (c OpenAIConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("openai api key is required")
	}
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	if c.ModelName == "" {
		return fmt.Errorf("model name is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be greater than 0")
	}
	if c.RetryAttempts == 0 {
		return fmt.Errorf("retry attempts must be greater than 0")
	}
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	return nil
}

// OpenAIEncoder implements Encoder using an OpenAI-compatible API
// (OpenAI, Ollama, LM Studio, text-embeddings-inference, etc)
type OpenAIEncoder struct {
	config OpenAIConfig
	client *openai.Client
	logger *log.Logger
}

func NewOpenAIEncoder(config OpenAIConfig) (*OpenAIEncoder, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg := openai.DefaultConfig(config.APIKey)
	cfg.BaseURL = config.Endpoint
	cfg.HTTPClient = &http.Client{Timeout: config.Timeout}
	return &OpenAIEncoder{
		config: config,
		client: openai.NewClientWithConfig(cfg),
		logger: config.Logger,
	}, nil
}

func (e *OpenAIEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EncodeBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EncodeBatch sends all texts in a single request; the API returns one
// embedding per input, tagged with its input index. Blank texts are sent as
// EmptyText since the API rejects empty input.
func (e *OpenAIEncoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	input := nonEmptyAll(texts)
	var out [][]float32
	start := time.Now()
	err := retry.Do(
		func() error {
			resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
				Model: openai.EmbeddingModel(e.config.ModelName),
				Input: input,
			})
			if err != nil {
				err = fmt.Errorf("failed to create embeddings: %w", err)
				if clientError(err) {
					return retry.Unrecoverable(err)
				}
				return err
			}
			if len(resp.Data) != len(texts) {
				return fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
			}
			vecs := make([][]float32, len(texts))
			for _, d := range resp.Data {
				if d.Index < 0 || d.Index >= len(texts) {
					return fmt.Errorf("embedding index %d out of range", d.Index)
				}
				vecs[d.Index] = d.Embedding
			}
			for i, v := range vecs {
				if len(v) == 0 {
					return fmt.Errorf("empty embedding returned for input %d", i)
				}
			}
			out = vecs
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(e.config.RetryAttempts),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			e.logger.Warn("Retrying OpenAI embedding request", "attempt", n+1, "max_attempts", e.config.RetryAttempts, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get OpenAI embeddings: %w", err)
	}
	e.logger.Debug("Generated OpenAI embeddings", "count", len(texts), "model", e.config.ModelName, "duration", time.Since(start))
	return out, nil
}

// clientError reports whether the API rejected the request itself, which
// retrying cannot fix
func clientError(err error) bool {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	return status >= 400 && status < 500 && status != http.StatusTooManyRequests
}

func (e *OpenAIEncoder) ModelName() string {
	return e.config.ModelName
}
