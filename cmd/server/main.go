package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	httpapi "github.com/resale-hub/claim-engine/internal/api/http"
	"github.com/resale-hub/claim-engine/internal/application/bidding"
	"github.com/resale-hub/claim-engine/internal/application/claim"
	"github.com/resale-hub/claim-engine/internal/application/conversation"
	appListing "github.com/resale-hub/claim-engine/internal/application/listing"
	"github.com/resale-hub/claim-engine/internal/application/notify"
	"github.com/resale-hub/claim-engine/internal/application/payment"
	"github.com/resale-hub/claim-engine/internal/config"
	"github.com/resale-hub/claim-engine/internal/domain/activity"
	"github.com/resale-hub/claim-engine/internal/domain/bid"
	domainConversation "github.com/resale-hub/claim-engine/internal/domain/conversation"
	"github.com/resale-hub/claim-engine/internal/domain/event"
	"github.com/resale-hub/claim-engine/internal/domain/listing"
	domainLock "github.com/resale-hub/claim-engine/internal/domain/lock"
	"github.com/resale-hub/claim-engine/internal/domain/notification"
	domainPayment "github.com/resale-hub/claim-engine/internal/domain/payment"
	"github.com/resale-hub/claim-engine/internal/infrastructure/eventbus"
	"github.com/resale-hub/claim-engine/internal/infrastructure/lock"
	"github.com/resale-hub/claim-engine/internal/infrastructure/memory"
	"github.com/resale-hub/claim-engine/internal/infrastructure/natsbus"
	"github.com/resale-hub/claim-engine/internal/infrastructure/postgres"
	"github.com/resale-hub/claim-engine/internal/infrastructure/redis"
	"github.com/resale-hub/claim-engine/internal/infrastructure/sse"
	"github.com/resale-hub/claim-engine/internal/infrastructure/ws"
)

type repositories struct {
	listings      listing.Repository
	ledger        activity.Repository
	bids          bid.Repository
	payments      domainPayment.Repository
	conversations domainConversation.Repository
	notifications notification.Repository
}

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config error")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// repositories
	var repos repositories
	switch cfg.Storage {
	case config.StorageMemory:
		logger.Warn().Msg("using in-memory storage; state is lost on restart")
		repos = repositories{
			listings:      memory.NewListingRepository(),
			ledger:        memory.NewActivityRepository(),
			bids:          memory.NewBidRepository(),
			payments:      memory.NewPaymentRepository(),
			conversations: memory.NewConversationRepository(),
			notifications: memory.NewNotificationRepository(),
		}
	default:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("db error")
		}
		defer pool.Close()
		if err := postgres.RunMigrations(ctx, pool, cfg.MigrationsDir); err != nil {
			logger.Fatal().Err(err).Msg("migration error")
		}
		repos = repositories{
			listings:      postgres.NewListingRepository(pool),
			ledger:        postgres.NewActivityRepository(pool),
			bids:          postgres.NewBidRepository(pool),
			payments:      postgres.NewPaymentRepository(pool),
			conversations: postgres.NewConversationRepository(pool),
			notifications: postgres.NewNotificationRepository(pool),
		}
	}

	// infrastructure
	sseHub := sse.NewHub()
	wsHub := ws.NewHub(logger)
	var (
		locker    domainLock.Locker      = lock.NewKeyed()
		deduper   notification.Deduper   = memory.NewDeduper()
		publisher eventbus.Fanout
		relay     *redis.EventBus
	)
	if cfg.RedisAddr != "" {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("redis error")
		}
		defer rc.Close()
		locker = redis.NewLockManager(rc)
		deduper = redis.NewDeduper(rc)
		relay = redis.NewEventBus(rc, logger)
		publisher = append(publisher, relay)
	} else {
		publisher = append(publisher, wsHub)
	}
	if cfg.NatsURL != "" {
		np, err := natsbus.Connect(ctx, cfg.NatsURL, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("nats error")
		}
		defer np.Close()
		publisher = append(publisher, np)
	}

	filter, err := payment.NewEligibilityFilter(cfg.FallbackCondition)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid fallback condition")
	}

	// services
	notifySvc := notify.NewService(repos.notifications, deduper, sseHub, cfg.NotifyDedupWindow.Duration, logger)
	conversationSvc := conversation.NewService(repos.conversations, publisher, logger)
	paymentMgr := payment.NewManager(repos.payments, repos.listings, repos.ledger, notifySvc, publisher, locker,
		payment.Options{Window: cfg.PaymentWindow.Duration, LockTTL: cfg.LockTTL.Duration, Filter: filter}, logger)
	defer paymentMgr.Stop()
	claimSvc := claim.NewService(repos.listings, repos.ledger, locker, conversationSvc, notifySvc, paymentMgr, publisher,
		claim.Options{LockTTL: cfg.LockTTL.Duration}, logger)
	biddingSvc := bidding.NewService(repos.listings, repos.bids, repos.ledger, locker, notifySvc, publisher,
		bidding.Options{LockTTL: cfg.LockTTL.Duration}, logger)
	listingSvc := appListing.NewService(repos.listings, repos.ledger, repos.bids, repos.payments, logger)

	if n, err := paymentMgr.Recover(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to recover payment windows")
	} else {
		logger.Info().Int("armed", n).Msg("payment windows recovered")
	}

	// API server
	apiServer := httpapi.NewServer(listingSvc, claimSvc, biddingSvc, paymentMgr, notifySvc, conversationSvc, sseHub, wsHub, logger)
	httpServer := &http.Server{
		Addr:        cfg.ServerAddr,
		Handler:     apiServer.Router(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.ServerAddr).Str("storage", cfg.Storage).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		sweep(gctx, cfg.SweepInterval.Duration, paymentMgr, claimSvc, logger)
		return nil
	})
	if relay != nil {
		g.Go(func() error {
			return relay.Relay(gctx, func(e *event.Event) { _ = wsHub.Deliver(e) })
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		sseHub.Stop()
		wsHub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
	}
}

// sweep backs up the in-process timers: it serves expired payment windows
// and closes listings whose deadline has passed.
func sweep(ctx context.Context, every time.Duration, mgr *payment.Manager, claims *claim.Service, logger zerolog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := mgr.ProcessExpired(ctx, 100); err != nil {
				logger.Warn().Err(err).Msg("payment sweep failed")
			} else if n > 0 {
				logger.Info().Int("count", n).Msg("expired payment windows processed")
			}
			if n, err := claims.CloseDueListings(ctx, 100); err != nil {
				logger.Warn().Err(err).Msg("listing sweep failed")
			} else if n > 0 {
				logger.Info().Int("count", n).Msg("due listings closed")
			}
		}
	}
}
