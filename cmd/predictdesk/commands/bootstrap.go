package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/predictdesk/engine/internal/external/clob"
	"github.com/predictdesk/engine/internal/external/dataapi"
	"github.com/predictdesk/engine/internal/external/relayer"
	"github.com/predictdesk/engine/internal/positions"
	"github.com/predictdesk/engine/internal/quotes"
	"github.com/predictdesk/engine/internal/settlement"
	"github.com/predictdesk/engine/internal/trading"
	"github.com/predictdesk/engine/pkg/config"
	"github.com/predictdesk/engine/pkg/database"
	"github.com/predictdesk/engine/pkg/httputil"
	"github.com/predictdesk/engine/pkg/logger"
	"github.com/predictdesk/engine/pkg/redis"
)

// app wires the full dependency graph for a command invocation.
type app struct {
	cfg    *config.Config
	logger *logger.Logger

	redis *redis.Client
	db    *database.DB

	clob    *clob.Client
	dataAPI *dataapi.Client
	relayer *relayer.Client

	quotes     *quotes.Cache
	snapshots  *positions.Service
	validator  *trading.Validator
	gateway    *trading.Gateway
	reconciler *settlement.Reconciler
	journal    *trading.Repository
}

// newApp loads configuration and builds the service graph. Redis and
// PostgreSQL are optional; everything else is required.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if verbose {
		cfg.LogLevel = "debug"
	}

	log := logger.New(cfg)

	a := &app{cfg: cfg, logger: log}

	a.redis, err = redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, running without shared cache")
	}

	var tickCache, snapCache *redis.Cache
	if a.redis != nil && a.redis.Enabled() {
		tickCache = redis.NewCache(a.redis, "quotes")
		snapCache = redis.NewCache(a.redis, "positions")
	}

	if cfg.Database.URL != "" {
		a.db, err = database.New(cfg)
		if err != nil {
			log.WithError(err).Warn("Database unavailable, order journal disabled")
		} else {
			a.journal = trading.NewRepository(a.db.Pool)
			if err := a.journal.EnsureSchema(ctx); err != nil {
				log.WithError(err).Warn("Order journal schema check failed")
				a.journal = nil
			}
		}
	}

	clobHTTP := httputil.New(log)
	dataHTTP := httputil.New(log)
	if a.redis != nil && a.redis.Enabled() {
		// Cross-process quota shared with any concurrent watcher.
		limiter := redis.NewRateLimiter(a.redis, "predictdesk")
		clobHTTP.WithRateLimiter(limiter, redis.CLOBRateLimit)
		dataHTTP.WithRateLimiter(limiter, redis.DataAPIRateLimit)
	}

	a.clob = clob.NewClient(cfg.CLOB, clobHTTP, log)
	a.dataAPI = dataapi.NewClient(cfg.DataAPI, dataHTTP, log)
	a.relayer = relayer.NewClient(cfg.Relayer, httputil.New(log), log)

	a.quotes = quotes.New(a.clob, cfg.Trading.QuoteTTL, tickCache, log)
	a.snapshots = positions.NewService(a.dataAPI, cfg.Trading.SnapshotTTL, snapCache, cfg.DataAPI.Wallet, log)

	a.validator = trading.NewValidator(a.quotes, cfg.Trading, log)

	var journal trading.Journal
	if a.journal != nil {
		journal = a.journal
	}
	a.gateway = trading.NewGateway(a.clob, journal, log)

	a.reconciler = settlement.New(a.snapshots, settlement.Config{
		PollInterval: cfg.Trading.PollInterval,
		PollBudget:   cfg.Trading.PollBudget,
	}, log)

	if a.journal != nil {
		journal := a.journal
		a.reconciler.OnResolved(func(p *settlement.Pending) {
			if p.OrderID == "" {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := journal.MarkSettlement(ctx, p.OrderID, string(p.State)); err != nil {
				log.WithError(err).Warn("Failed to journal settlement outcome")
			}
		})
	}

	return a, nil
}

// close releases infrastructure handles.
func (a *app) close() {
	if a.reconciler != nil {
		a.reconciler.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
}
