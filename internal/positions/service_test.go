package positions

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predictdesk/engine/internal/contracts"
	"github.com/predictdesk/engine/pkg/logger"
)

type scriptedSource struct {
	calls     int32
	positions []contracts.Position
	balance   float64
	err       error
}

func (s *scriptedSource) GetPositions(ctx context.Context) ([]contracts.Position, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return nil, s.err
	}
	return s.positions, nil
}

func (s *scriptedSource) GetBalance(ctx context.Context) (float64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.balance, nil
}

func TestService_CachesWithinTTL(t *testing.T) {
	src := &scriptedSource{balance: 100}
	svc := NewService(src, time.Minute, nil, "0xwallet", logger.NewNop())

	first, err := svc.Snapshot(context.Background())
	require.NoError(t, err)

	second, err := svc.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.calls))
}

func TestService_RefreshesWhenExpired(t *testing.T) {
	src := &scriptedSource{balance: 100}
	svc := NewService(src, time.Minute, nil, "0xwallet", logger.NewNop())

	_, err := svc.Snapshot(context.Background())
	require.NoError(t, err)

	svc.clock = func() time.Time { return time.Now().Add(2 * time.Minute) }

	_, err = svc.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&src.calls))
}

func TestService_InvalidateForcesRefresh(t *testing.T) {
	src := &scriptedSource{balance: 100}
	svc := NewService(src, time.Minute, nil, "0xwallet", logger.NewNop())

	_, err := svc.Snapshot(context.Background())
	require.NoError(t, err)

	svc.Invalidate()

	_, err = svc.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&src.calls))
}

func TestService_ServesStaleOnRefreshFailure(t *testing.T) {
	src := &scriptedSource{balance: 42}
	svc := NewService(src, time.Minute, nil, "0xwallet", logger.NewNop())

	_, err := svc.Snapshot(context.Background())
	require.NoError(t, err)

	svc.clock = func() time.Time { return time.Now().Add(2 * time.Minute) }
	src.err = assert.AnError

	snap, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Stale)
	assert.Equal(t, 42.0, snap.Balance)
}

func TestService_ErrorWithNoSnapshot(t *testing.T) {
	src := &scriptedSource{err: assert.AnError}
	svc := NewService(src, time.Minute, nil, "0xwallet", logger.NewNop())

	_, err := svc.Snapshot(context.Background())
	assert.Error(t, err)
}

func TestAccountState(t *testing.T) {
	snap := &contracts.Snapshot{
		Balance: 55,
		Positions: []contracts.Position{
			{Asset: "tok-1", Size: 12},
		},
	}

	balance, held := AccountState(snap, "tok-1")
	assert.Equal(t, 55.0, balance)
	assert.Equal(t, 12.0, held)

	_, held = AccountState(snap, "tok-x")
	assert.Zero(t, held)
}
