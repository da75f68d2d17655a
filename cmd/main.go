package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Vasu1712/stemhub-backend/internal/api/projects"
	"github.com/Vasu1712/stemhub-backend/internal/api/users"
	"github.com/Vasu1712/stemhub-backend/internal/config"
	"github.com/Vasu1712/stemhub-backend/internal/group"
	"github.com/Vasu1712/stemhub-backend/internal/identity"
	"github.com/Vasu1712/stemhub-backend/internal/lifecycle"
	"github.com/Vasu1712/stemhub-backend/internal/metrics"
	"github.com/Vasu1712/stemhub-backend/internal/middleware"
	"github.com/Vasu1712/stemhub-backend/internal/queue"
	"github.com/Vasu1712/stemhub-backend/internal/storage"
	"github.com/Vasu1712/stemhub-backend/internal/storage/memory"
	"github.com/Vasu1712/stemhub-backend/internal/storage/postgres"
	"github.com/Vasu1712/stemhub-backend/internal/storage/valkey"
	"github.com/Vasu1712/stemhub-backend/internal/ws"
)

type stores struct {
	projects  storage.ProjectStore
	users     storage.UserStore
	stems     storage.StemStore
	allocator storage.GroupAllocator
	close     func()
}

func openStores(ctx context.Context, cfg *config.Config, log *zap.Logger) (*stores, error) {
	switch cfg.Store {
	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, err
		}
		return &stores{
			projects:  postgres.NewProjectStore(db, log),
			users:     postgres.NewUserStore(db),
			stems:     postgres.NewStemStore(db),
			allocator: postgres.NewGroupSequence(db),
			close:     func() { db.Close() },
		}, nil
	case config.StoreValkey:
		client, err := valkey.Connect(cfg.ValkeyAddr)
		if err != nil {
			return nil, err
		}
		log.Info("Connected to Valkey", zap.String("addr", cfg.ValkeyAddr))
		return &stores{
			projects:  valkey.NewProjectStore(client),
			users:     valkey.NewUserStore(client),
			stems:     valkey.NewStemStore(client),
			allocator: valkey.NewGroupCounter(client),
			close:     client.Close,
		}, nil
	default:
		log.Warn("Using in-memory store; data is lost on restart")
		return &stores{
			projects:  memory.NewProjectStore(log),
			users:     memory.NewUserStore(),
			stems:     memory.NewStemStore(),
			allocator: memory.NewGroupAllocator(),
			close:     func() {},
		}, nil
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(registry)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	hub := ws.NewHub(log)
	groups := group.NewService(st.projects, st.allocator)
	queueManager := queue.NewManager(st.projects, hub, m, log)
	lc := lifecycle.NewService(st.projects, st.users, st.stems, groups, queueManager, m, log)
	identities := identity.NewRegistry(st.users, st.projects, m, log)

	handler := &projects.ProjectHandler{
		Lifecycle:  lc,
		Queue:      queueManager,
		Identities: identities,
		Groups:     groups,
		Hub:        hub,
		Log:        log,
	}

	auth := middleware.NewAuthenticator(cfg.JWTSecret, log)
	router := mux.NewRouter()
	projects.RegisterProjectRoutes(router, handler, auth)
	users.RegisterUserRoutes(router, &users.UserHandler{Lifecycle: lc, Log: log}, auth)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           middleware.CORS(cfg.CORSOrigin, log)(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})
	if cfg.PromoteInterval > 0 {
		policy := lifecycle.Policy{MaxPromotions: cfg.PromoteMax, MinVotes: cfg.PromoteMinVotes}
		g.Go(func() error {
			return lc.RunPromoter(ctx, cfg.PromoteInterval, policy)
		})
	}
	g.Go(func() error {
		log.Info("Server started", zap.String("addr", server.Addr), zap.String("store", cfg.Store))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
