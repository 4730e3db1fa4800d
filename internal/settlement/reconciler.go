// Package settlement tracks sell and redeem actions until the external
// ledger reflects them. There is no authoritative push channel for
// settlement, so confirmation is a bounded polling heuristic: the
// affected asset's size strictly decreasing from its pre-action value.
package settlement

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/predictdesk/engine/internal/contracts"
	"github.com/predictdesk/engine/pkg/logger"
)

// State is the lifecycle of one pending settlement action.
type State string

const (
	StateSubmitted State = "SUBMITTED"
	StatePolling   State = "POLLING"
	StateConfirmed State = "CONFIRMED"
	StateTimedOut  State = "TIMED_OUT"
)

// sizeEpsilon guards the strict-decrease comparison against float noise.
const sizeEpsilon = 1e-9

// refreshTimeout bounds a single snapshot refresh during polling.
const refreshTimeout = 10 * time.Second

// SnapshotSource provides fresh position/balance snapshots.
type SnapshotSource interface {
	Refresh(ctx context.Context) (*contracts.Snapshot, error)
	Invalidate()
}

// Pending is one tracked settlement-affecting action. It maps an
// outcome asset to the share size observed immediately before the
// action was submitted. In-memory only; never a source of truth.
type Pending struct {
	ID        string
	Asset     string
	OrderID   string // submitting order id, when known
	PreSize   float64
	Deadline  time.Time
	State     State
	CreatedAt time.Time

	stop chan struct{}
	once sync.Once
}

// Config holds reconciliation timing.
type Config struct {
	PollInterval time.Duration
	PollBudget   time.Duration
}

// Reconciler owns the registry of pending settlement actions. Each
// action polls independently; actions on different assets never block
// each other.
type Reconciler struct {
	mu      sync.Mutex
	pending map[string]*Pending // keyed by asset id

	source SnapshotSource
	cfg    Config
	logger *logger.Logger
	clock  func() time.Time

	onResolved func(p *Pending)
}

// New creates a new settlement reconciler.
func New(source SnapshotSource, cfg Config, log *logger.Logger) *Reconciler {
	return &Reconciler{
		pending: make(map[string]*Pending),
		source:  source,
		cfg:     cfg,
		logger:  log,
		clock:   time.Now,
	}
}

// OnResolved registers a callback invoked after an action reaches
// CONFIRMED or TIMED_OUT. Used to update the order journal and the UI.
func (r *Reconciler) OnResolved(fn func(p *Pending)) {
	r.onResolved = fn
}

// Track registers a settlement-affecting action for the asset and
// starts its polling loop. The cached snapshot is invalidated so the
// next read is forced fresh. A previous pending action on the same
// asset is superseded.
func (r *Reconciler) Track(asset string, preSize float64, orderID string) *Pending {
	now := r.clock()
	p := &Pending{
		ID:        uuid.NewString(),
		Asset:     asset,
		OrderID:   orderID,
		PreSize:   preSize,
		Deadline:  now.Add(r.cfg.PollBudget),
		State:     StateSubmitted,
		CreatedAt: now,
		stop:      make(chan struct{}),
	}

	r.mu.Lock()
	if old, ok := r.pending[asset]; ok {
		old.once.Do(func() { close(old.stop) })
		r.logger.WithField("asset", asset).Warn("Superseding pending settlement for asset")
	}
	p.State = StatePolling
	r.pending[asset] = p
	r.mu.Unlock()

	r.source.Invalidate()

	go r.poll(p)

	r.logger.WithFields(map[string]interface{}{
		"asset":    asset,
		"pre_size": preSize,
		"order_id": orderID,
		"deadline": p.Deadline,
	}).Info("Tracking settlement")

	return p
}

// poll re-fetches snapshots on a fixed interval until the asset's size
// strictly decreases from the recorded pre-action size, the budget
// elapses, or the entry is resolved externally.
func (r *Reconciler) poll(p *Pending) {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	deadline := time.NewTimer(time.Until(p.Deadline))
	defer deadline.Stop()

	for {
		select {
		case <-p.stop:
			return

		case <-deadline.C:
			// Not a failure: settlement may still complete after the
			// window. The entry is actively removed so the asset is
			// not filtered from future confirmation checks.
			r.resolve(p, StateTimedOut)
			return

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
			snap, err := r.source.Refresh(ctx)
			cancel()

			if err != nil {
				r.logger.WithFields(map[string]interface{}{
					"asset": p.Asset,
					"error": err,
				}).Warn("Settlement poll refresh failed")
				continue
			}

			if snap.SizeOf(p.Asset) < p.PreSize-sizeEpsilon {
				r.resolve(p, StateConfirmed)
				return
			}
		}
	}
}

// ConfirmFill resolves a pending action early from an exchange trade
// event. When orderID is non-empty it must match the tracked order.
// Returns whether a pending action was confirmed.
func (r *Reconciler) ConfirmFill(asset, orderID string) bool {
	r.mu.Lock()
	p, ok := r.pending[asset]
	if ok && orderID != "" && p.OrderID != "" && p.OrderID != orderID {
		ok = false
	}
	r.mu.Unlock()

	if !ok {
		return false
	}

	r.resolve(p, StateConfirmed)
	return true
}

// resolve finalizes a pending action exactly once and clears it from
// the registry.
func (r *Reconciler) resolve(p *Pending, outcome State) {
	resolved := false
	p.once.Do(func() {
		resolved = true
		close(p.stop)
	})
	if !resolved {
		return
	}

	r.mu.Lock()
	if cur, ok := r.pending[p.Asset]; ok && cur == p {
		delete(r.pending, p.Asset)
	}
	p.State = outcome
	r.mu.Unlock()

	r.source.Invalidate()

	r.logger.WithFields(map[string]interface{}{
		"asset":    p.Asset,
		"order_id": p.OrderID,
		"state":    outcome,
		"age":      r.clock().Sub(p.CreatedAt),
	}).Info("Settlement resolved")

	if r.onResolved != nil {
		r.onResolved(p)
	}
}

// StateOf returns the state of the pending action for an asset.
func (r *Reconciler) StateOf(asset string) (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pending[asset]
	if !ok {
		return "", false
	}
	return p.State, true
}

// Len returns the number of pending actions.
func (r *Reconciler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.pending)
}

// Sweep times out entries whose deadline has passed. The per-action
// poller normally handles this; the sweep is a safety net run by the
// scheduler so nothing lingers if a poller was lost.
func (r *Reconciler) Sweep() int {
	now := r.clock()

	r.mu.Lock()
	expired := make([]*Pending, 0)
	for _, p := range r.pending {
		if now.After(p.Deadline) {
			expired = append(expired, p)
		}
	}
	r.mu.Unlock()

	for _, p := range expired {
		r.resolve(p, StateTimedOut)
	}

	return len(expired)
}

// Close stops all polling. Pending entries are left unresolved.
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for asset, p := range r.pending {
		p.once.Do(func() { close(p.stop) })
		delete(r.pending, asset)
	}
}
