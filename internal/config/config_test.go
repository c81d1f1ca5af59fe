package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	opts := Defaults()
	assert.Equal(t, 50000, opts.ChunkSize)
	assert.Equal(t, 2000, opts.MaxStoredViolations)
	assert.NoError(t, opts.Validate())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv(EnvChunkSize, "1000")
	t.Setenv(EnvMaxViolations, "50")

	opts, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 1000, opts.ChunkSize)
	assert.Equal(t, 50, opts.MaxStoredViolations)
}

func TestFromEnv_RejectsGarbage(t *testing.T) {
	t.Setenv(EnvChunkSize, "lots")
	_, err := FromEnv()
	assert.Error(t, err)

	t.Setenv(EnvChunkSize, "-5")
	_, err = FromEnv()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	opts := Defaults()
	opts.ChunkSize = 0
	assert.Error(t, opts.Validate())

	opts = Defaults()
	opts.MaxStoredViolations = -1
	assert.Error(t, opts.Validate())
}
