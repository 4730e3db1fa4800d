package settlement

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predictdesk/engine/internal/contracts"
	"github.com/predictdesk/engine/pkg/logger"
)

type fakeSource struct {
	mu          sync.Mutex
	sizes       map[string]float64
	refreshes   int32
	invalidates int32
	err         error
}

func newFakeSource(sizes map[string]float64) *fakeSource {
	return &fakeSource{sizes: sizes}
}

func (f *fakeSource) Refresh(ctx context.Context) (*contracts.Snapshot, error) {
	atomic.AddInt32(&f.refreshes, 1)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	snap := &contracts.Snapshot{FetchedAt: time.Now()}
	for asset, size := range f.sizes {
		snap.Positions = append(snap.Positions, contracts.Position{Asset: asset, Size: size})
	}
	return snap, nil
}

func (f *fakeSource) Invalidate() {
	atomic.AddInt32(&f.invalidates, 1)
}

func (f *fakeSource) setSize(asset string, size float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sizes[asset] = size
}

func testConfig() Config {
	return Config{
		PollInterval: 5 * time.Millisecond,
		PollBudget:   200 * time.Millisecond,
	}
}

func TestReconciler_ConfirmsOnSizeDecrease(t *testing.T) {
	src := newFakeSource(map[string]float64{"tok-1": 100})
	r := New(src, testConfig(), logger.NewNop())
	defer r.Close()

	var resolved atomic.Value
	r.OnResolved(func(p *Pending) { resolved.Store(p.State) })

	r.Track("tok-1", 100, "ord-1")

	state, ok := r.StateOf("tok-1")
	require.True(t, ok)
	assert.Equal(t, StatePolling, state)

	// Unchanged size must not confirm.
	time.Sleep(20 * time.Millisecond)
	_, ok = r.StateOf("tok-1")
	assert.True(t, ok)

	src.setSize("tok-1", 60)

	assert.Eventually(t, func() bool {
		return r.Len() == 0
	}, time.Second, 2*time.Millisecond)

	assert.Equal(t, StateConfirmed, resolved.Load())
}

func TestReconciler_IncreaseDoesNotConfirm(t *testing.T) {
	src := newFakeSource(map[string]float64{"tok-1": 100})
	r := New(src, testConfig(), logger.NewNop())
	defer r.Close()

	r.Track("tok-1", 100, "")

	src.setSize("tok-1", 140)

	time.Sleep(30 * time.Millisecond)
	_, ok := r.StateOf("tok-1")
	assert.True(t, ok, "size increase must keep the action pending")
}

func TestReconciler_TimesOutAndRemoves(t *testing.T) {
	src := newFakeSource(map[string]float64{"tok-1": 100})
	cfg := testConfig()
	cfg.PollBudget = 30 * time.Millisecond

	r := New(src, cfg, logger.NewNop())
	defer r.Close()

	var resolved atomic.Value
	r.OnResolved(func(p *Pending) { resolved.Store(p.State) })

	r.Track("tok-1", 100, "")

	assert.Eventually(t, func() bool {
		return r.Len() == 0
	}, time.Second, 2*time.Millisecond)

	assert.Equal(t, StateTimedOut, resolved.Load())
}

func TestReconciler_ConcurrentActionsIndependent(t *testing.T) {
	src := newFakeSource(map[string]float64{"tok-a": 50, "tok-b": 80})
	r := New(src, testConfig(), logger.NewNop())
	defer r.Close()

	r.Track("tok-a", 50, "")
	r.Track("tok-b", 80, "")
	require.Equal(t, 2, r.Len())

	src.setSize("tok-a", 10)

	assert.Eventually(t, func() bool {
		_, ok := r.StateOf("tok-a")
		return !ok
	}, time.Second, 2*time.Millisecond)

	_, ok := r.StateOf("tok-b")
	assert.True(t, ok, "confirming one asset must not resolve another")
}

func TestReconciler_ConfirmFill(t *testing.T) {
	src := newFakeSource(map[string]float64{"tok-1": 100})
	r := New(src, testConfig(), logger.NewNop())
	defer r.Close()

	r.Track("tok-1", 100, "ord-1")

	assert.False(t, r.ConfirmFill("tok-1", "ord-other"), "mismatched order id must not confirm")
	assert.False(t, r.ConfirmFill("tok-2", ""), "unknown asset must not confirm")

	assert.True(t, r.ConfirmFill("tok-1", "ord-1"))
	assert.Zero(t, r.Len())
}

func TestReconciler_RefreshErrorKeepsPolling(t *testing.T) {
	src := newFakeSource(map[string]float64{"tok-1": 100})
	src.mu.Lock()
	src.err = assert.AnError
	src.mu.Unlock()

	r := New(src, testConfig(), logger.NewNop())
	defer r.Close()

	r.Track("tok-1", 100, "")

	time.Sleep(30 * time.Millisecond)
	_, ok := r.StateOf("tok-1")
	require.True(t, ok)

	src.mu.Lock()
	src.err = nil
	src.sizes["tok-1"] = 0
	src.mu.Unlock()

	assert.Eventually(t, func() bool {
		return r.Len() == 0
	}, time.Second, 2*time.Millisecond)
}

func TestReconciler_TrackInvalidatesSnapshot(t *testing.T) {
	src := newFakeSource(map[string]float64{"tok-1": 100})
	r := New(src, testConfig(), logger.NewNop())
	defer r.Close()

	r.Track("tok-1", 100, "")

	assert.GreaterOrEqual(t, atomic.LoadInt32(&src.invalidates), int32(1))
}

func TestReconciler_SweepTimesOutExpired(t *testing.T) {
	src := newFakeSource(map[string]float64{"tok-1": 100})
	cfg := testConfig()
	cfg.PollInterval = time.Hour // poller never fires on its own
	cfg.PollBudget = time.Hour

	r := New(src, cfg, logger.NewNop())
	defer r.Close()

	r.Track("tok-1", 100, "")

	assert.Zero(t, r.Sweep(), "unexpired entries stay")

	r.mu.Lock()
	r.pending["tok-1"].Deadline = time.Now().Add(-time.Second)
	r.mu.Unlock()

	assert.Equal(t, 1, r.Sweep())
	assert.Zero(t, r.Len())
}
