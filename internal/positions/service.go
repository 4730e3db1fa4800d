package positions

import (
	"context"
	"sync"
	"time"

	"github.com/predictdesk/engine/internal/contracts"
	"github.com/predictdesk/engine/pkg/logger"
	"github.com/predictdesk/engine/pkg/redis"
)

// Source fetches portfolio state from the data provider.
type Source interface {
	GetPositions(ctx context.Context) ([]contracts.Position, error)
	GetBalance(ctx context.Context) (float64, error)
}

// Service caches the latest portfolio snapshot. Snapshots are advisory
// for display and settlement heuristics; balance checks at order time
// always tolerate a stale read, so a failed refresh degrades to the
// last known snapshot flagged stale instead of an error.
type Service struct {
	mu       sync.Mutex
	snapshot *contracts.Snapshot

	source Source
	ttl    time.Duration
	l2     *redis.Cache // optional
	wallet string
	logger *logger.Logger
	clock  func() time.Time
}

// NewService creates a snapshot service. cache may be nil.
func NewService(source Source, ttl time.Duration, cache *redis.Cache, wallet string, log *logger.Logger) *Service {
	return &Service{
		source: source,
		ttl:    ttl,
		l2:     cache,
		wallet: wallet,
		logger: log,
		clock:  time.Now,
	}
}

// Snapshot returns the cached snapshot, refreshing it when older than
// the TTL. When a refresh fails and an old snapshot exists, that
// snapshot is returned with Stale set; with no snapshot at all the
// error is surfaced.
func (s *Service) Snapshot(ctx context.Context) (*contracts.Snapshot, error) {
	s.mu.Lock()
	cached := s.snapshot
	s.mu.Unlock()

	if cached != nil && s.clock().Sub(cached.FetchedAt) < s.ttl {
		return cached, nil
	}

	snap, err := s.Refresh(ctx)
	if err != nil {
		if cached == nil {
			return nil, err
		}
		s.logger.WithError(err).Warn("Snapshot refresh failed, serving stale")
		stale := *cached
		stale.Stale = true
		return &stale, nil
	}
	return snap, nil
}

// Refresh fetches a fresh snapshot unconditionally and caches it.
func (s *Service) Refresh(ctx context.Context) (*contracts.Snapshot, error) {
	positions, err := s.source.GetPositions(ctx)
	if err != nil {
		return nil, err
	}

	balance, err := s.source.GetBalance(ctx)
	if err != nil {
		return nil, err
	}

	snap := &contracts.Snapshot{
		Positions: positions,
		Balance:   balance,
		FetchedAt: s.clock(),
	}

	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()

	if s.l2 != nil {
		if err := s.l2.Set(ctx, redis.SnapshotKey(s.wallet), snap, redis.TTLShort); err != nil {
			s.logger.WithError(err).Debug("Snapshot cache write failed")
		}
	}

	return snap, nil
}

// Invalidate drops the cached snapshot so the next read is fresh.
// Called after any settlement-affecting action.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.snapshot = nil
	s.mu.Unlock()

	if s.l2 != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.l2.Delete(ctx, redis.SnapshotKey(s.wallet)); err != nil {
			s.logger.WithError(err).Debug("Snapshot cache delete failed")
		}
	}
}

// AccountState derives the order-validation view for one asset from a
// snapshot.
func AccountState(snap *contracts.Snapshot, asset string) (balance, heldShares float64) {
	return snap.Balance, snap.SizeOf(asset)
}
