package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	compliancecache "brickshare/internal/compliance/cache"
	complianceservice "brickshare/internal/compliance/service"
	compliancestore "brickshare/internal/compliance/store"
	governanceservice "brickshare/internal/governance/service"
	governancestore "brickshare/internal/governance/store"
	ledgerservice "brickshare/internal/ledger/service"
	ledgerstore "brickshare/internal/ledger/store"
	marketservice "brickshare/internal/market/service"
	marketstore "brickshare/internal/market/store"
	"brickshare/internal/platform/config"
	"brickshare/internal/platform/httpserver"
	"brickshare/internal/platform/logger"
	"brickshare/internal/platform/metrics"
	"brickshare/internal/platform/postgres"
	"brickshare/internal/platform/redis"
	"brickshare/pkg/platform/events"
	"brickshare/pkg/platform/events/kafka"
	"brickshare/pkg/platform/events/worker"
	"brickshare/pkg/platform/httputil"
	"brickshare/pkg/platform/middleware/requesttime"
)

const eventInboxSize = 1024

// main wires stores, services, and the event pipeline, then runs the
// operational HTTP surface until a shutdown signal arrives. Business logic
// lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	var (
		ledgerSt     ledgerstore.Store
		marketSt     marketstore.Store
		governanceSt governancestore.Store
		complianceSt compliancestore.Store
		db           *sql.DB
	)
	if cfg.PostgresURL != "" {
		var err error
		db, err = postgres.Open(cfg.PostgresURL)
		if err != nil {
			log.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		ledgerSt = ledgerstore.NewPostgres(db)
		marketSt = marketstore.NewPostgres(db)
		governanceSt = governancestore.NewPostgres(db)
		complianceSt = compliancestore.NewPostgres(db)
		log.Info("using postgres store")
	} else {
		ledgerSt = ledgerstore.NewMemoryStore()
		marketSt = marketstore.NewMemoryStore()
		governanceSt = governancestore.NewMemoryStore()
		complianceSt = compliancestore.NewMemoryStore()
		log.Info("using in-memory store")
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Events flow through a buffered inbox so a slow sink never blocks an
	// operation. The sink is Kafka when brokers are configured, otherwise
	// an in-process recorder.
	inbox := make(chan events.Event, eventInboxSize)
	publisher := worker.NewChannelPublisher(inbox)

	var sink events.Store
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPub, err := kafka.New(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("kafka unavailable", "error", err)
			os.Exit(1)
		}
		defer kafkaPub.Close()
		sink = kafkaPub
		log.Info("streaming events to kafka", "topic", cfg.Kafka.Topic)
	} else {
		sink = events.NewRecorder()
	}

	ledgerSvc := ledgerservice.NewService(ledgerSt, publisher, log, cfg.Owner,
		ledgerservice.WithMetrics(m))
	marketSvc := marketservice.NewService(marketSt, ledgerSvc, publisher, log, cfg.Owner,
		marketservice.WithMetrics(m))
	governanceSvc := governanceservice.NewService(governanceSt, ledgerSvc, publisher, log, cfg.Owner,
		governanceservice.WithMetrics(m))

	complianceOpts := []complianceservice.Option{complianceservice.WithMetrics(m)}
	if redisClient != nil {
		complianceOpts = append(complianceOpts,
			complianceservice.WithCache(compliancecache.New(redisClient.Client)))
		log.Info("compliance verification cache enabled")
	}
	complianceSvc := complianceservice.NewService(complianceSt, publisher, log, cfg.Owner, complianceOpts...)

	// Check the loaded state before serving: a supply violation in the
	// durable store means the ledger cannot be trusted.
	assets, err := ledgerSvc.ListAssets(ctx)
	if err != nil {
		log.Error("failed to load assets", "error", err)
		os.Exit(1)
	}
	for _, asset := range assets {
		if err := ledgerSvc.CheckSupplyInvariant(ctx, asset.ID); err != nil {
			log.Error("supply invariant violated", "asset_id", asset.ID, "error", err)
			os.Exit(1)
		}
	}
	listings, err := marketSvc.GetActiveListings(ctx)
	if err != nil {
		log.Error("failed to load listings", "error", err)
		os.Exit(1)
	}
	auctions, err := marketSvc.GetActiveAuctions(ctx)
	if err != nil {
		log.Error("failed to load auctions", "error", err)
		os.Exit(1)
	}
	paused, err := complianceSvc.IsPaused(ctx)
	if err != nil {
		log.Error("failed to load registry state", "error", err)
		os.Exit(1)
	}
	if ledgerPool, err := ledgerSt.Pool(ctx); err == nil {
		m.SetPool("ledger", ledgerPool)
	}
	if marketPool, err := marketSt.Pool(ctx); err == nil {
		m.SetPool("market", marketPool)
	}
	log.Info("state loaded",
		"assets", len(assets),
		"active_listings", len(listings),
		"active_auctions", len(auctions),
		"registry_paused", paused,
		"proposal_threshold_bps", governanceSvc.ProposalThresholdBps(),
		"approval_threshold_bps", governanceSvc.ApprovalThresholdBps())

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(requesttime.Middleware)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "postgres not ready"})
				return
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "redis not ready"})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	router.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting brickshare", "addr", cfg.Addr, "owner", cfg.Owner)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		err := worker.NewWorker(sink, inbox).Run(groupCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("shutdown with error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
