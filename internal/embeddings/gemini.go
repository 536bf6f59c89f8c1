package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/charmbracelet/log"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GeminiConfig holds configuration for the Gemini embedding service
type GeminiConfig struct {
	APIKey        string
	ModelName     string
	RetryAttempts uint
	Logger        *log.Logger
}

func NewGeminiConfig() GeminiConfig {
	return GeminiConfig{
		ModelName:     "text-embedding-004",
		RetryAttempts: 3,
	}
}

func (c GeminiConfig) WithAPIKey(apiKey string) GeminiConfig {
	c.APIKey = apiKey
	return c
}
func (c GeminiConfig) WithModelName(modelName string) GeminiConfig {
	c.ModelName = modelName
	return c
}
func (c GeminiConfig) WithRetryAttempts(attempts uint) GeminiConfig {
	c.RetryAttempts = attempts
	return c
}
func (c GeminiConfig) WithLogger(logger *log.Logger) GeminiConfig {
	c.Logger = logger
	return c
}

func (c GeminiConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("gemini api key is required")
	}
	if c.ModelName == "" {
		return fmt.Errorf("model name is required")
	}
	if c.RetryAttempts == 0 {
		return fmt.Errorf("retry attempts must be greater than 0")
	}
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	return nil
}

type GeminiEncoder struct {
	config GeminiConfig
	client *genai.Client
	model  *genai.EmbeddingModel
	logger *log.Logger
}

func NewGeminiEncoder(ctx context.Context, config GeminiConfig) (*GeminiEncoder, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiEncoder{
		config: config,
		client: client,
		model:  client.EmbeddingModel(config.ModelName),
		logger: config.Logger,
	}, nil
}

func (e *GeminiEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	var embedding []float32
	start := time.Now()
	err := retry.Do(
		func() error {
			result, err := e.model.EmbedContent(ctx, genai.Text(nonEmpty(text)))
			if err != nil {
				return geminiError("failed to generate embedding", err)
			}
			if result == nil || result.Embedding == nil {
				return fmt.Errorf("no embedding returned from Gemini API")
			}
			embedding = result.Embedding.Values
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(e.config.RetryAttempts),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			e.logger.Warn("Retrying Gemini embedding request", "attempt", n+1, "max_attempts", e.config.RetryAttempts, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get Gemini embedding: %w", err)
	}
	e.logger.Debug("Generated Gemini embedding", "text_length", len(text), "embedding_length", len(embedding), "model", e.config.ModelName, "duration", time.Since(start))
	return embedding, nil
}

// geminiError wraps err and stops retries when the request itself was rejected
func geminiError(msg string, err error) error {
	err = fmt.Errorf("%s: %w", msg, err)
	switch status.Code(err) {
	case codes.InvalidArgument, codes.NotFound, codes.PermissionDenied, codes.Unauthenticated, codes.FailedPrecondition:
		return retry.Unrecoverable(err)
	}
	return err
}

// EncodeBatch uses the batch endpoint, which embeds each content independently.
// Blank texts are sent as EmptyText, matching Encode.
func (e *GeminiEncoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	var out [][]float32
	err := retry.Do(
		func() error {
			batch := e.model.NewBatch()
			for _, text := range texts {
				batch.AddContent(genai.Text(nonEmpty(text)))
			}
			resp, err := e.model.BatchEmbedContents(ctx, batch)
			if err != nil {
				return geminiError("failed to batch embed", err)
			}
			if resp == nil || len(resp.Embeddings) != len(texts) {
				return fmt.Errorf("gemini returned a short batch for %d texts", len(texts))
			}
			vecs := make([][]float32, len(texts))
			for i, emb := range resp.Embeddings {
				if emb == nil || len(emb.Values) == 0 {
					return fmt.Errorf("empty embedding returned for input %d", i)
				}
				vecs[i] = emb.Values
			}
			out = vecs
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(e.config.RetryAttempts),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			e.logger.Warn("Retrying Gemini batch request", "attempt", n+1, "max_attempts", e.config.RetryAttempts, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get Gemini embeddings: %w", err)
	}
	return out, nil
}

func (e *GeminiEncoder) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

func (e *GeminiEncoder) ModelName() string {
	return e.config.ModelName
}
