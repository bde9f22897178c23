package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/imatefx/control-tower/internal/app/migrate"
	"github.com/imatefx/control-tower/internal/audit"
	"github.com/imatefx/control-tower/internal/domain"
	"github.com/imatefx/control-tower/internal/events"
	httpx "github.com/imatefx/control-tower/internal/http"
	"github.com/imatefx/control-tower/internal/repository"
	"github.com/imatefx/control-tower/internal/repository/postgres"
	"github.com/imatefx/control-tower/internal/service/approval"
	"github.com/imatefx/control-tower/internal/service/catalog"
	"github.com/imatefx/control-tower/internal/service/checklist"
	"github.com/imatefx/control-tower/internal/service/deployment"
	"github.com/imatefx/control-tower/pkg/config"
	"github.com/imatefx/control-tower/pkg/logger"
)

func main() {
	cfg := config.LoadAPIConfig()
	log := logger.New("api", slog.LevelInfo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	defer runner.Close()
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	repo := postgres.New(pool)
	hub := events.NewHub(cfg.EventBuffer)

	recorder := audit.NewRecorder(repo, log)
	interceptor := audit.NewInterceptor(recorder, log, cfg.AuditEnabled)
	registerAuditedResources(interceptor, repo)

	checklistSvc := checklist.New(repo, log)
	catalogSvc := catalog.New(repo, repo, interceptor, log)
	deploySvc := deployment.New(repo, repo, repo, checklistSvc, interceptor, recorder, hub, log)
	approvalSvc := approval.New(repo, repo, repo, repo, deploySvc, recorder, hub, log)

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, catalogSvc, deploySvc, checklistSvc, approvalSvc, recorder, hub, limiter, pool.Ping)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}

// registerAuditedResources wires the interceptor allow-list. Tracked field
// names follow the entities' JSON tags; everything off this list bypasses
// change tracking.
func registerAuditedResources(ic *audit.Interceptor, repo *postgres.Repository) {
	ic.Register(domain.ResourceProduct, audit.ResourceConfig{
		TrackedFields: []string{"name", "description", "is_adapter"},
		Snapshot:      productSnapshot(repo),
	})
	ic.Register(domain.ResourceClient, audit.ResourceConfig{
		TrackedFields: []string{"name", "contact_email", "region"},
		Snapshot:      clientSnapshot(repo),
	})
	ic.Register(domain.ResourceDeployment, audit.ResourceConfig{
		TrackedFields: []string{"status", "deployment_type", "owner", "target_date", "client_ids", "notify_emails"},
		Snapshot:      deploymentSnapshot(repo),
	})
}

func productSnapshot(repo repository.ProductRepository) audit.SnapshotFunc {
	return func(ctx context.Context, id string) (map[string]any, string, error) {
		product, err := repo.GetProductByID(ctx, id)
		if err != nil {
			return nil, "", err
		}
		state, err := audit.Snapshot(product)
		return state, product.Name, err
	}
}

func clientSnapshot(repo repository.ClientRepository) audit.SnapshotFunc {
	return func(ctx context.Context, id string) (map[string]any, string, error) {
		client, err := repo.GetClientByID(ctx, id)
		if err != nil {
			return nil, "", err
		}
		state, err := audit.Snapshot(client)
		return state, client.Name, err
	}
}

func deploymentSnapshot(repo repository.DeploymentRepository) audit.SnapshotFunc {
	return func(ctx context.Context, id string) (map[string]any, string, error) {
		dep, err := repo.GetDeploymentByID(ctx, id)
		if err != nil {
			return nil, "", err
		}
		state, err := audit.Snapshot(dep)
		return state, "", err
	}
}
