package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateDefaults(t *testing.T) {
	cfg := Load()
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadOverlap(t *testing.T) {
	cfg := Load()
	cfg.ChunkOverlap = cfg.ChunkSize
	require.Error(t, cfg.Validate())

	cfg = Load()
	cfg.ChunkOverlap = -1
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsBadThreshold(t *testing.T) {
	cfg := Load()
	cfg.MinSimilarity = 1.0
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsZeroDim(t *testing.T) {
	cfg := Load()
	cfg.EmbedDim = 0
	require.Error(t, cfg.Validate())
}
