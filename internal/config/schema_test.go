package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbsync/kbsync/internal/config"
	"github.com/kbsync/kbsync/internal/source/localfs"
)

func TestDecodeAdapterConfig_DecodesValidConfig(t *testing.T) {
	raw := map[string]any{
		"root_path":        "/data/docs",
		"include_patterns": []any{"*.md"},
	}

	cfg, err := config.DecodeAdapterConfig[localfs.Config](raw)

	require.NoError(t, err)
	assert.Equal(t, "/data/docs", cfg.RootPath)
	assert.Equal(t, []string{"*.md"}, cfg.IncludePatterns)
}

func TestDecodeAdapterConfig_RejectsWrongType(t *testing.T) {
	raw := map[string]any{
		"root_path": 12345, // not a string
	}

	_, err := config.DecodeAdapterConfig[localfs.Config](raw)

	assert.ErrorIs(t, err, config.ErrInvalidAdapterConfig)
}

func TestDecodeAdapterConfig_EmptyConfigDecodesToZeroValue(t *testing.T) {
	cfg, err := config.DecodeAdapterConfig[localfs.Config](map[string]any{})

	require.NoError(t, err)
	assert.Empty(t, cfg.RootPath)
}
