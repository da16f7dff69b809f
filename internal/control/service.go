// Package control assembles and supervises the pipeline: chain adapters,
// unified client, dedup cache, proof generator, broadcaster, event stream,
// and the monitoring server. Every component is constructed here and passed
// down explicitly; nothing in the pipeline reaches for ambient singletons.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/Shubhojit-17/cewce/internal/audit"
	"github.com/Shubhojit-17/cewce/internal/core/config"
	"github.com/Shubhojit-17/cewce/internal/core/domain"
	"github.com/Shubhojit-17/cewce/internal/infra/chain"
	"github.com/Shubhojit-17/cewce/internal/infra/chain/node"
	"github.com/Shubhojit-17/cewce/internal/infra/chain/sidecar"
	redisclient "github.com/Shubhojit-17/cewce/internal/infra/redis"
	"github.com/Shubhojit-17/cewce/internal/infra/storage/postgres"
	"github.com/Shubhojit-17/cewce/internal/ingest"
	"github.com/Shubhojit-17/cewce/internal/monitoring/health"
	"github.com/Shubhojit-17/cewce/internal/proof"
	"github.com/Shubhojit-17/cewce/internal/stream"
)

// Service is the assembled pipeline with its lifecycle.
type Service struct {
	cfg config.AppConfig
	log *slog.Logger

	client       *chain.UnifiedClient
	cache        ingest.Cache
	memCache     *ingest.MemoryCache // non-nil when the memory backend is used
	pipeline     *ingest.Pipeline
	broadcaster  *audit.Broadcaster
	natsMirror   *audit.NATSPublisher
	eventStream  *stream.Stream
	db           *postgres.DB
	healthServer *health.Server

	cancelBg context.CancelFunc
}

// New wires all components from configuration. No connections are opened to
// the chain backends; Redis, Postgres, and NATS are dialed eagerly so a
// misconfigured deployment fails at startup, not mid-stream.
func New(cfg config.AppConfig, log *slog.Logger) (*Service, error) {
	s := &Service{cfg: cfg, log: log}

	// Chain access: sidecar preferred, node authoritative.
	sidecarAdapter := sidecar.New(cfg.Chain.SidecarConfig())
	nodeAdapter := node.New(cfg.Chain.NodeConfig())
	s.client = chain.NewUnifiedClient(sidecarAdapter, nodeAdapter, log)

	// Dedup cache: per-instance memory by default, Redis when instances
	// must share the window.
	switch cfg.Dedup.Backend {
	case "redis":
		redisClient, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis dedup cache: %w", err)
		}
		s.cache = ingest.NewRedisCache(redisClient, cfg.Dedup.CacheExpiry)
		log.Info("Using Redis dedup cache")
	case "memory":
		s.memCache = ingest.NewMemoryCache(cfg.Dedup.CacheExpiry)
		s.cache = s.memCache
		log.Info("Using memory dedup cache")
	default:
		return nil, fmt.Errorf("unknown dedup backend %q", cfg.Dedup.Backend)
	}

	// Proof store, when a database is configured.
	var store audit.ProofStore
	var proofRepo *postgres.ProofRepo
	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		s.db = db

		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}

		proofRepo = postgres.NewProofRepo(db)
		store = proofRepo
		log.Info("Using PostgreSQL proof store")
	}

	// Broadcaster, optionally mirrored to NATS.
	var mirror audit.Mirror
	if cfg.NATS.URL != "" {
		pub, err := audit.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to init nats mirror: %w", err)
		}
		s.natsMirror = pub
		mirror = pub
		log.Info("Mirroring audit events to NATS", "url", cfg.NATS.URL)
	}
	s.broadcaster = audit.NewBroadcaster(mirror, log)

	// Ingestion: stream → dedup → proof → broadcast.
	generator := proof.NewGenerator(s.client, cfg.Chain.ContractHash, log)
	processor := audit.NewProcessor(generator, s.broadcaster, store, log)
	s.pipeline = ingest.New(s.cache, processor, log)

	backoff := stream.BackoffConfig{
		BaseDelay: cfg.Stream.BaseDelay,
		MaxDelay:  cfg.Stream.MaxDelay,
		JitterMax: cfg.Stream.JitterMax,
	}
	connector := stream.NewSSEConnector(cfg.Chain.EventsURL)
	s.eventStream = stream.New(connector, s.handleStreamEvent, backoff, log)

	wsHandler := audit.NewWSHandler(s.broadcaster, log)
	s.healthServer = health.NewServer(cfg.Server.Port, s.client, s.eventStream, s.broadcaster, wsHandler, proofRepo)

	return s, nil
}

// handleStreamEvent feeds the ingestion pipeline; duplicates are a normal
// outcome, so only forwarding failures are logged as errors.
func (s *Service) handleStreamEvent(ctx context.Context, event domain.ChainEvent) {
	if _, err := s.pipeline.Process(ctx, event); err != nil {
		s.log.Error("failed to process stream event", "type", event.Type, "error", err)
	}
}

// Start launches the stream, the cache sweeper, and the monitoring server.
func (s *Service) Start(ctx context.Context) error {
	bgCtx, cancel := context.WithCancel(ctx)
	s.cancelBg = cancel

	if s.memCache != nil {
		go s.memCache.StartSweeper(bgCtx, s.cfg.Dedup.SweepInterval)
	}

	go func() {
		if err := s.eventStream.Run(bgCtx); err != nil {
			s.log.Error("event stream stopped", "error", err)
		}
	}()

	go func() {
		s.log.Info("Monitoring server listening", "port", s.cfg.Server.Port)
		if err := s.healthServer.Start(); err != nil && err != http.ErrServerClosed {
			s.log.Error("monitoring server failed", "error", err)
		}
	}()

	return nil
}

// Stop shuts everything down in dependency order: stream first so no new
// events arrive, then the HTTP surface, then the external connections.
func (s *Service) Stop(ctx context.Context) {
	s.eventStream.Close()
	if s.cancelBg != nil {
		s.cancelBg()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.healthServer.Stop(shutdownCtx); err != nil {
		s.log.Warn("monitoring server shutdown failed", "error", err)
	}

	if err := s.cache.Close(); err != nil {
		s.log.Warn("dedup cache close failed", "error", err)
	}
	if s.natsMirror != nil {
		s.natsMirror.Close()
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.Warn("database close failed", "error", err)
		}
	}

	s.log.Info("Shutdown complete")
}
