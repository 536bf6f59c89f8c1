package commands

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/lox/transaction-risk-analyzer/internal/embeddings"
)

// knownDimensions lists the output size of the default and common models of
// each provider
var knownDimensions = map[string]int{
	"text-embedding-3-small":                   1536,
	"text-embedding-3-large":                   3072,
	"text-embedding-ada-002":                   1536,
	"text-embedding-004":                       768,
	"all-minilm":                               384,
	"nomic-embed-text":                         768,
	"mxbai-embed-large":                        1024,
	"text-embedding-all-minilm-l6-v2-embedding": 384,
}

// EmbeddingConfig contains common flag definitions for embedding configuration
type EmbeddingConfig struct {
	// Provider is the embedding provider to use
	Provider string `help:"Embedding provider to use" default:"hash" enum:"hash,openai,ollama,lmstudio,gemini,llamacpp" env:"EMBEDDING_PROVIDER"`
	// Dimension is the vector length every provider must produce; 0 uses the
	// known dimension of the selected model
	Dimension int `help:"Embedding dimension, fixed for the lifetime of the store. 0 uses the dimension of well-known models; set it for any other model" default:"0" env:"EMBEDDING_DIMENSION"`

	OpenAIAPIKey   string `help:"OpenAI API key" env:"OPENAI_API_KEY"`
	OpenAIModel    string `help:"OpenAI embedding model" default:"text-embedding-3-small" env:"OPENAI_EMBEDDING_MODEL"`
	OpenAIEndpoint string `help:"OpenAI-compatible API endpoint" env:"OPENAI_ENDPOINT"`

	OllamaModel    string `help:"Ollama embedding model" default:"all-minilm" env:"OLLAMA_EMBEDDING_MODEL"`
	OllamaEndpoint string `help:"Ollama OpenAI-compatible endpoint" default:"http://localhost:11434/v1" env:"OLLAMA_ENDPOINT"`

	LMStudioModel    string `help:"LM Studio embedding model" default:"text-embedding-all-minilm-l6-v2-embedding" env:"LMSTUDIO_EMBEDDING_MODEL"`
	LMStudioEndpoint string `help:"LM Studio OpenAI-compatible endpoint" default:"http://localhost:1234/v1" env:"LMSTUDIO_ENDPOINT"`

	// GeminiAPIKey is the API key for Gemini
	GeminiAPIKey string `help:"Google Gemini API key" env:"GEMINI_API_KEY"`
	GeminiModel  string `help:"Gemini embedding model" env:"GEMINI_EMBEDDING_MODEL"`

	// LlamaCppModel is the specific LLaMA.cpp embedding model name
	LlamaCppModel string `help:"Specific LLaMA.cpp embedding model name" env:"LLAMACPP_EMBEDDING_MODEL"`
	LlamaCppURL   string `help:"LLaMA.cpp server URL" env:"LLAMACPP_URL"`
}

// ModelName returns the model the selected provider will use
func (c EmbeddingConfig) ModelName() string {
	switch c.Provider {
	case "openai":
		return c.OpenAIModel
	case "ollama":
		return c.OllamaModel
	case "lmstudio":
		return c.LMStudioModel
	case "gemini":
		if c.GeminiModel != "" {
			return c.GeminiModel
		}
		return embeddings.NewGeminiConfig().ModelName
	case "llamacpp":
		return c.LlamaCppModel
	}
	return ""
}

// ResolveDimension returns the explicit dimension if set, otherwise the known
// dimension of the selected model
func (c EmbeddingConfig) ResolveDimension() (int, error) {
	switch {
	case c.Dimension < 0:
		return 0, fmt.Errorf("embedding dimension must be greater than 0")
	case c.Dimension > 0:
		return c.Dimension, nil
	case c.Provider == "hash":
		return embeddings.DefaultDimension, nil
	}
	if dim, ok := knownDimensions[c.ModelName()]; ok {
		return dim, nil
	}
	return 0, fmt.Errorf("unknown dimension for %s model %q, set --dimension", c.Provider, c.ModelName())
}

// CommonConfig contains configuration common to all commands
type CommonConfig struct {
	// DataDir is the path to the data directory
	DataDir string `help:"Path to data directory" default:"./data" env:"DATA_DIR"`
	// Store selects the transaction store backend
	Store string `help:"Transaction store backend (memory only with risk-server --demo-rows)" default:"sqlite" enum:"sqlite,memory" env:"STORE"`
	// LogLevel is the logging level to use
	LogLevel string `help:"Log level (debug, info, warn, error)" default:"warn" enum:"debug,info,warn,error" env:"LOG_LEVEL"`
}

// SetupLogger creates a stderr logger at the configured level
func SetupLogger(config CommonConfig) (*log.Logger, error) {
	logger := log.New(os.Stderr)
	level, err := log.ParseLevel(config.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(level)
	return logger, nil
}
