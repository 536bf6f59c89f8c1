package commands

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/transaction-risk-analyzer/internal/db"
	"github.com/lox/transaction-risk-analyzer/internal/memstore"
	"github.com/lox/transaction-risk-analyzer/internal/types"
)

func TestSetupEncoderHash(t *testing.T) {
	enc, err := SetupEncoder(context.Background(), EmbeddingConfig{Provider: "hash", Dimension: 32}, log.New(io.Discard))
	require.NoError(t, err)
	assert.Equal(t, 32, enc.Dimension())
	assert.Equal(t, "hash-32", enc.ModelName())
}

func TestSetupEncoderErrors(t *testing.T) {
	logger := log.New(io.Discard)
	tests := []EmbeddingConfig{
		{Provider: "hash", Dimension: -1},
		{Provider: "llamacpp", LlamaCppModel: "custom-gguf"},
		{Provider: "openai", Dimension: 384},
		{Provider: "gemini", Dimension: 384},
		{Provider: "llamacpp", Dimension: 384},
		{Provider: "word2vec", Dimension: 384},
	}
	for _, config := range tests {
		_, err := SetupEncoder(context.Background(), config, logger)
		assert.Error(t, err, config.Provider)
	}
}

func TestSetupStore(t *testing.T) {
	logger := log.New(io.Discard)

	store, err := SetupStore(CommonConfig{Store: "sqlite", DataDir: t.TempDir()}, logger)
	require.NoError(t, err)
	assert.IsType(t, &db.DB{}, store)
	require.NoError(t, store.Close())

	store, err = SetupStore(CommonConfig{Store: "memory"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &memstore.Store{}, store)

	_, err = SetupStore(CommonConfig{Store: "postgres"}, logger)
	assert.Error(t, err)
}

func TestSetupPersistentStore(t *testing.T) {
	logger := log.New(io.Discard)

	_, err := SetupPersistentStore(CommonConfig{Store: "memory"}, logger)
	assert.ErrorIs(t, err, ErrEphemeralStore)

	store, err := SetupPersistentStore(CommonConfig{Store: "sqlite", DataDir: t.TempDir()}, logger)
	require.NoError(t, err)
	assert.IsType(t, &db.DB{}, store)
	require.NoError(t, store.Close())
}

func TestResolveDimension(t *testing.T) {
	tests := []struct {
		config EmbeddingConfig
		want   int
	}{
		{EmbeddingConfig{Provider: "hash"}, 384},
		{EmbeddingConfig{Provider: "hash", Dimension: 32}, 32},
		{EmbeddingConfig{Provider: "openai", OpenAIModel: "text-embedding-3-small"}, 1536},
		{EmbeddingConfig{Provider: "openai", OpenAIModel: "text-embedding-3-large"}, 3072},
		{EmbeddingConfig{Provider: "gemini"}, 768},
		{EmbeddingConfig{Provider: "ollama", OllamaModel: "all-minilm"}, 384},
		{EmbeddingConfig{Provider: "llamacpp", LlamaCppModel: "custom-gguf", Dimension: 512}, 512},
	}
	for _, tt := range tests {
		got, err := tt.config.ResolveDimension()
		require.NoError(t, err, tt.config.Provider)
		assert.Equal(t, tt.want, got, tt.config.Provider)
	}

	_, err := EmbeddingConfig{Provider: "llamacpp", LlamaCppModel: "custom-gguf"}.ResolveDimension()
	assert.ErrorContains(t, err, "set --dimension")
	_, err = EmbeddingConfig{Provider: "hash", Dimension: -3}.ResolveDimension()
	assert.Error(t, err)
}

func TestSetupLogger(t *testing.T) {
	logger, err := SetupLogger(CommonConfig{LogLevel: "debug"})
	require.NoError(t, err)
	assert.Equal(t, log.DebugLevel, logger.GetLevel())

	_, err = SetupLogger(CommonConfig{LogLevel: "loud"})
	assert.Error(t, err)
}

func TestSetupPipeline(t *testing.T) {
	logger := log.New(io.Discard)
	enc, err := SetupEncoder(context.Background(), EmbeddingConfig{Provider: "hash", Dimension: 16}, logger)
	require.NoError(t, err)
	store, err := SetupStore(CommonConfig{Store: "memory"}, logger)
	require.NoError(t, err)

	p, err := SetupPipeline(enc, store, RulesConfig{}, logger)
	require.NoError(t, err)
	results, err := p.Score(context.Background(), types.NewQuery("Transfer"))
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = SetupPipeline(enc, store, RulesConfig{RulesFile: filepath.Join(t.TempDir(), "missing.yaml")}, logger)
	assert.Error(t, err)
}
