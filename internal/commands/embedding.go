package commands

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/lox/transaction-risk-analyzer/internal/embeddings"
)

// SetupEncoder initializes the configured embedding provider, wraps it so
// every vector has the resolved dimension, and probes it once. Any failure
// here is fatal for the caller.
func SetupEncoder(ctx context.Context, config EmbeddingConfig, logger *log.Logger) (*embeddings.DimensionChecked, error) {
	dimension, err := config.ResolveDimension()
	if err != nil {
		return nil, err
	}

	var encoder embeddings.Encoder

	switch config.Provider {
	case "hash":
		encoder, err = embeddings.NewHashEncoder(dimension)
		if err != nil {
			return nil, fmt.Errorf("failed to create hash encoder: %w", err)
		}
		logger.Info("Using feature hashing for embeddings", "dimension", dimension)

	case "gemini":
		if config.GeminiAPIKey == "" {
			return nil, fmt.Errorf("gemini api key is required when using Gemini embeddings")
		}

		geminiConfig := embeddings.NewGeminiConfig().
			WithAPIKey(config.GeminiAPIKey).
			WithLogger(logger)

		// Set custom model name if provided
		if config.GeminiModel != "" {
			geminiConfig = geminiConfig.WithModelName(config.GeminiModel)
		}

		encoder, err = embeddings.NewGeminiEncoder(ctx, geminiConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini encoder: %w", err)
		}

		logger.Info("Using Gemini API for embeddings", "model", geminiConfig.ModelName)

	case "llamacpp":
		if config.LlamaCppModel == "" {
			return nil, fmt.Errorf("llamacpp model name is required when using LlamaCpp embeddings")
		}

		llamaCppConfig := embeddings.NewLlamaCppConfig().
			WithLogger(logger).
			WithModelName(config.LlamaCppModel)
		if config.LlamaCppURL != "" {
			llamaCppConfig = llamaCppConfig.WithURL(config.LlamaCppURL)
		}

		encoder, err = embeddings.NewLlamaCppEncoder(llamaCppConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create LlamaCpp encoder: %w", err)
		}

		logger.Info("Using LlamaCpp for embeddings", "model", llamaCppConfig.ModelName, "url", llamaCppConfig.URL)

	case "lmstudio":
		// LMStudio exposes an OpenAI-compatible API, so use the OpenAI encoder with the LMStudio endpoint
		encoder, err = embeddings.NewOpenAIEncoder(embeddings.NewOpenAIConfig().
			WithAPIKey("dummy").
			WithModelName(config.LMStudioModel).
			WithLogger(logger).
			WithEndpoint(config.LMStudioEndpoint))
		if err != nil {
			return nil, fmt.Errorf("failed to create LMStudio (OpenAI-compatible) encoder: %w", err)
		}
		logger.Info("Using LMStudio (OpenAI-compatible) for embeddings", "model", config.LMStudioModel, "endpoint", config.LMStudioEndpoint)

	case "ollama":
		encoder, err = embeddings.NewOpenAIEncoder(embeddings.NewOpenAIConfig().
			WithAPIKey("dummy").
			WithModelName(config.OllamaModel).
			WithLogger(logger).
			WithEndpoint(config.OllamaEndpoint))
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama encoder: %w", err)
		}
		logger.Info("Using Ollama for embeddings", "model", config.OllamaModel, "endpoint", config.OllamaEndpoint)

	case "openai":
		if config.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai api key is required when using OpenAI embeddings")
		}
		openaiConfig := embeddings.NewOpenAIConfig().
			WithAPIKey(config.OpenAIAPIKey).
			WithModelName(config.OpenAIModel).
			WithLogger(logger)
		if config.OpenAIEndpoint != "" {
			openaiConfig = openaiConfig.WithEndpoint(config.OpenAIEndpoint)
		}
		encoder, err = embeddings.NewOpenAIEncoder(openaiConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI encoder: %w", err)
		}
		logger.Info("Using OpenAI-compatible API for embeddings", "model", openaiConfig.ModelName, "endpoint", openaiConfig.Endpoint)

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", config.Provider)
	}

	checked := embeddings.NewDimensionChecked(encoder, dimension)
	if err := embeddings.Probe(ctx, checked); err != nil {
		CloseEncoder(checked, logger)
		return nil, err
	}
	return checked, nil
}

// CloseEncoder attempts to close the encoder if it implements Close
func CloseEncoder(encoder embeddings.Encoder, logger *log.Logger) {
	if checked, ok := encoder.(*embeddings.DimensionChecked); ok {
		encoder = checked.Encoder
	}
	if closer, ok := encoder.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Warn("Failed to close encoder", "error", err)
		}
	}
}
