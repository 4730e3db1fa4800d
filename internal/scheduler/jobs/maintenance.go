// Package jobs holds the scheduled job implementations.
package jobs

import (
	"context"
	"fmt"

	"github.com/predictdesk/engine/internal/positions"
	"github.com/predictdesk/engine/internal/settlement"
	"github.com/predictdesk/engine/pkg/logger"
)

// SnapshotRefreshJob keeps the position snapshot warm so interactive
// reads rarely block on the data API.
type SnapshotRefreshJob struct {
	service *positions.Service
	logger  *logger.Logger
}

// NewSnapshotRefreshJob creates the snapshot refresh job.
func NewSnapshotRefreshJob(service *positions.Service, log *logger.Logger) *SnapshotRefreshJob {
	return &SnapshotRefreshJob{service: service, logger: log}
}

func (j *SnapshotRefreshJob) Name() string     { return "snapshot_refresh" }
func (j *SnapshotRefreshJob) Schedule() string { return "@every 1m" }

func (j *SnapshotRefreshJob) Run(ctx context.Context) error {
	snap, err := j.service.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("refresh snapshot: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"positions": len(snap.Positions),
		"balance":   snap.Balance,
	}).Debug("Snapshot refreshed")

	return nil
}

// SettlementSweepJob times out pending settlement actions whose
// polling budget has elapsed, as a backstop to the per-action pollers.
type SettlementSweepJob struct {
	reconciler *settlement.Reconciler
	logger     *logger.Logger
}

// NewSettlementSweepJob creates the settlement sweep job.
func NewSettlementSweepJob(reconciler *settlement.Reconciler, log *logger.Logger) *SettlementSweepJob {
	return &SettlementSweepJob{reconciler: reconciler, logger: log}
}

func (j *SettlementSweepJob) Name() string     { return "settlement_sweep" }
func (j *SettlementSweepJob) Schedule() string { return "*/30 * * * * *" }

func (j *SettlementSweepJob) Run(ctx context.Context) error {
	if n := j.reconciler.Sweep(); n > 0 {
		j.logger.WithField("timed_out", n).Warn("Swept expired settlement actions")
	}
	return nil
}
