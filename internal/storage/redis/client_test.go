package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/taoyao-code/drivelink/internal/config"
)

func TestNewClient_Disabled(t *testing.T) {
	c, err := NewClient(cfgpkg.RedisConfig{Enable: false})
	assert.Nil(t, c)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestClient_Probe(t *testing.T) {
	c := setupTestClient(t)
	rtt, err := c.Probe(context.Background())
	require.NoError(t, err)
	assert.Positive(t, int64(rtt))
}
