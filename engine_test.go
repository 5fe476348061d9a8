package starmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineInitIsIdempotent(t *testing.T) {
	e := NewEngine(Config{PoolSize: 2})
	require.NoError(t, e.Init(0))
	require.NoError(t, e.Init(0))
	assert.NotNil(t, e.Pool())
	assert.NoError(t, e.Shutdown())
}

func TestEngineShutdownWithoutInit(t *testing.T) {
	e := NewEngine(Config{})
	assert.NoError(t, e.Shutdown())
}

func TestEngineShutdownIsIdempotent(t *testing.T) {
	e := NewEngine(Config{PoolSize: 1})
	require.NoError(t, e.Init(0))
	require.NoError(t, e.Shutdown())
	require.NoError(t, e.Shutdown())
}

func TestEnginePoolSizeOverride(t *testing.T) {
	e := NewEngine(Config{PoolSize: 1})
	require.NoError(t, e.Init(3))
	assert.NotNil(t, e.Pool())
	assert.NoError(t, e.Shutdown())
}
