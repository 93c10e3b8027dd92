// Package app wires the purchases worker: it builds every client once from
// configuration and runs the reception worker, the outbox relay, queue
// maintenance and the ops endpoint together.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"purchases/internal/config"
	"purchases/internal/core/featureflag"
	"purchases/internal/domain/purchasing"
	"purchases/internal/infrastructure/http/ops"
	"purchases/internal/infrastructure/queue"
	"purchases/internal/infrastructure/storage/postgres"
	"purchases/internal/infrastructure/storage/postgres/purchase_repo"
	"purchases/internal/replication"
	"purchases/pkg/logger"
	"purchases/pkg/numerator"
)

const (
	relayLockKey       = "lock:outbox:relay"
	promoteInterval    = time.Second
	promoteLimit       = 100
	cleanupInterval    = time.Hour
	publishedRetention = 24 * time.Hour
)

// App holds the process-wide clients and services.
type App struct {
	cfg *config.Config
	log *logger.Logger

	Pool       *postgres.Pool
	TxManager  *postgres.TxManager
	Redis      *redis.Client
	Queue      *queue.Queue
	Locker     *queue.Locker
	Producer   *replication.Producer
	Registry   *replication.Registry
	Worker     *replication.Worker
	Relay      *postgres.OutboxRelay
	Flags      *featureflag.InMemoryFlags
	Purchasing *purchasing.Service
}

// New connects to PostgreSQL and Redis and builds the services.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{cfg: cfg, log: log}

	poolCfg := postgres.DefaultPoolConfig(cfg.Database.DSN)
	poolCfg.ApplicationName = cfg.App.Name
	if cfg.Database.MaxConns > 0 {
		poolCfg.MaxConns = cfg.Database.MaxConns
	}
	if cfg.Database.MinConns > 0 {
		poolCfg.MinConns = cfg.Database.MinConns
	}
	if cfg.Database.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime
	}

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.Pool = pool
	a.TxManager = postgres.NewTxManager(pool)

	rdb, err := queue.NewClient(ctx, queue.ClientConfig{
		Addr:     cfg.Redis.Addr(),
		Network:  cfg.Redis.Network(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	a.Redis = rdb
	a.Locker = queue.NewLocker(rdb, cfg.Outbox.LockTTL)
	a.Queue = queue.New(rdb, a.Locker, queue.Options{
		VisibilityTimeout: cfg.Redis.VisibilityTimeout,
		MaxAttempts:       cfg.Redis.MaxAttempts,
	})

	a.Producer = replication.NewProducer(a.Queue, replication.NewRouter(map[replication.Topic]string{
		replication.TopicPurchases: cfg.Redis.QueuePurchases,
		replication.TopicProducts:  cfg.Redis.QueueProducts,
	}))

	a.Registry = NewRegistry(a.TxManager)
	a.Worker = replication.NewWorker(a.Queue, a.Registry, replication.WorkerConfig{
		Queues:         []string{cfg.Redis.QueuePurchases},
		Concurrency:    cfg.Worker.Concurrency,
		ReserveTimeout: cfg.Worker.ReserveTimeout,
	}, log)

	a.Relay, err = postgres.NewOutboxRelay(a.TxManager,
		postgres.OutboxHandlerFunc(func(ctx context.Context, msg *postgres.OutboxMessage) error {
			return a.Producer.Forward(ctx, msg.Payload)
		}),
		postgres.OutboxRelayConfig{BatchSize: cfg.Outbox.BatchSize, MaxRetries: cfg.Outbox.MaxRetries})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Flags = featureflag.NewInMemoryFlags(cfg.Features)
	if a.Purchasing, err = a.newPurchasing(); err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

func (a *App) newPurchasing() (*purchasing.Service, error) {
	mode, err := purchasing.ParseDeliveryMode(a.cfg.Purchasing.DeliveryMode)
	if err != nil {
		return nil, err
	}
	policy, err := purchasing.NewStockPolicy(a.cfg.Purchasing.StockRule)
	if err != nil {
		return nil, err
	}
	publisher, err := postgres.NewOutboxPublisher(a.TxManager, a.cfg.Outbox.CompressThreshold)
	if err != nil {
		return nil, err
	}

	txm := a.TxManager
	return purchasing.NewService(purchasing.ServiceConfig{
		Repo:      purchase_repo.NewOrderRepo(txm),
		TxManager: txm,
		Numerator: numerator.New(txm, func(ctx context.Context) numerator.Querier {
			return txm.GetQuerier(ctx)
		}),
		Policy: policy,
		Flags:  a.Flags,
		Mode:   mode,
		Outbox: purchase_repo.NewOutboxWriter(publisher),
		Sender: a.Producer,
	})
}

// Run runs every loop until ctx is cancelled. In-flight jobs finish before
// Run returns.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.Worker.Run(ctx) })
	g.Go(func() error { a.maintainQueue(ctx); return nil })

	if a.cfg.Outbox.Enabled {
		g.Go(func() error { a.relayOutbox(ctx); return nil })
	}

	if a.cfg.Ops.Addr != "" {
		routerCfg := ops.RouterConfig{
			Logger: a.log.WithComponent("ops"),
			Checks: map[string]ops.Pinger{
				"database": a.TxManager,
				"redis":    a.Queue,
			},
			Pool:       a.Pool,
			Jobs:       a.Worker.Recent(),
			Queues:     a.Queue,
			QueueNames: []string{a.cfg.Redis.QueuePurchases, a.cfg.Redis.QueueProducts},
		}
		if a.cfg.Outbox.Enabled {
			routerCfg.Outbox = a.Relay
		}
		router := ops.NewRouter(routerCfg)
		g.Go(func() error {
			a.log.Infow("ops endpoint listening", "addr", a.cfg.Ops.Addr)
			return ops.Serve(ctx, a.cfg.Ops.Addr, router)
		})
	}

	return g.Wait()
}

// relayOutbox drains the outbox while holding the relay lock.
func (a *App) relayOutbox(ctx context.Context) {
	log := a.log.WithComponent("outbox-relay")
	ticker := time.NewTicker(a.cfg.Outbox.PollInterval)
	defer ticker.Stop()
	cleanup := time.NewTicker(cleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, err := a.Locker.RunExclusive(ctx, relayLockKey, a.drainOutbox)
			if err != nil && ctx.Err() == nil {
				log.Errorw("outbox relay failed", "error", err)
			}
		case <-cleanup.C:
			if n, err := a.Relay.CleanupPublished(ctx, publishedRetention); err != nil {
				log.Errorw("outbox cleanup failed", "error", err)
			} else if n > 0 {
				log.Infow("outbox cleaned up", "deleted", n)
			}
		}
	}
}

func (a *App) drainOutbox(ctx context.Context) error {
	for {
		n, err := a.Relay.ProcessBatch(ctx)
		if err != nil {
			return err
		}
		if n < a.cfg.Outbox.BatchSize {
			break
		}
	}
	moved, err := a.Relay.MoveToDLQ(ctx)
	if err != nil {
		return err
	}
	if moved > 0 {
		logger.Error(ctx, "outbox messages moved to dead letter table", "alert", true, "count", moved)
	}
	return nil
}

// maintainQueue promotes due retries and recovers jobs abandoned by crashed
// workers on the inbound queue.
func (a *App) maintainQueue(ctx context.Context) {
	log := a.log.WithComponent("queue-maintenance")
	name := a.cfg.Redis.QueuePurchases

	promote := time.NewTicker(promoteInterval)
	defer promote.Stop()
	recoverTicker := time.NewTicker(a.cfg.Worker.RecoverInterval)
	defer recoverTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-promote.C:
			if _, err := a.Queue.PromoteDelayed(ctx, name, promoteLimit); err != nil && ctx.Err() == nil {
				log.Errorw("promote delayed jobs failed", "queue", name, "error", err)
			}
		case <-recoverTicker.C:
			n, err := a.Queue.RecoverStale(ctx, name)
			if err != nil && ctx.Err() == nil {
				log.Errorw("recover stale jobs failed", "queue", name, "error", err)
				continue
			}
			if n > 0 {
				log.Warnw("recovered stale jobs", "queue", name, "count", n)
			}
		}
	}
}

// Close releases the clients.
func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
