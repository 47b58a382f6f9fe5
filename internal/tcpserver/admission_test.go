package tcpserver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmission_ConnectionCap(t *testing.T) {
	a := newAdmission(2, 50*time.Millisecond, 0, 0)
	ctx := context.Background()
	require.NoError(t, a.admit(ctx))
	require.NoError(t, a.admit(ctx))
	assert.ErrorIs(t, a.admit(ctx), ErrTooManyConns)

	a.release()
	require.NoError(t, a.admit(ctx), "释放后应可再次接入")

	st := a.stats()
	assert.Equal(t, 2, st.ActiveConnections)
	assert.Equal(t, 2, st.MaxConnections)
	assert.Equal(t, int64(1), st.RejectedFull)
	assert.Zero(t, st.AcceptRate)
}

func TestAdmission_ExtraReleaseIgnored(t *testing.T) {
	a := newAdmission(1, time.Second, 0, 0)
	a.release()
	assert.Equal(t, 0, a.stats().ActiveConnections)
}

func TestAdmission_AcceptRate(t *testing.T) {
	a := newAdmission(100, time.Second, 10, 3)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, a.admit(ctx), "突发第%d个连接", i+1)
	}
	assert.ErrorIs(t, a.admit(ctx), ErrAcceptRateLimited)

	time.Sleep(150 * time.Millisecond)
	assert.NoError(t, a.admit(ctx), "令牌恢复后应放行")

	st := a.stats()
	assert.Equal(t, int64(1), st.RejectedRate)
	assert.Equal(t, 10.0, st.AcceptRate)
	assert.Equal(t, 4, st.ActiveConnections)
}
