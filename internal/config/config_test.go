package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "qdrant", cfg.Vector.Backend)
	assert.Equal(t, 1024, cfg.Vector.Dimension)
	assert.Equal(t, 8, cfg.RAG.TopK)
	assert.Equal(t, "rag-chat-uploads", cfg.Storage.Bucket)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("VECTOR_BACKEND", "pgvector")
	t.Setenv("RAG_TOP_K", "4")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "pgvector", cfg.Vector.Backend)
	assert.Equal(t, 4, cfg.RAG.TopK)
}

func TestLoadRejectsBadInt(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")

	_, err := Load()
	require.Error(t, err)
}

func TestValidateMissingRequired(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "JWT_SECRET")
}
