package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/househealth/househealth-api/internal/adapters/httpapi"
	memfamilyrepo "github.com/househealth/househealth-api/internal/adapters/memory/familyrepo"
	memhealthlogrepo "github.com/househealth/househealth-api/internal/adapters/memory/healthlogrepo"
	memidempotency "github.com/househealth/househealth-api/internal/adapters/memory/idempotency"
	memreminderrepo "github.com/househealth/househealth-api/internal/adapters/memory/reminderrepo"
	memuserrepo "github.com/househealth/househealth-api/internal/adapters/memory/userrepo"
	"github.com/househealth/househealth-api/internal/adapters/postgres"
	pgfamilyrepo "github.com/househealth/househealth-api/internal/adapters/postgres/familyrepo"
	pghealthlogrepo "github.com/househealth/househealth-api/internal/adapters/postgres/healthlogrepo"
	pgidempotency "github.com/househealth/househealth-api/internal/adapters/postgres/idempotency"
	pgreminderrepo "github.com/househealth/househealth-api/internal/adapters/postgres/reminderrepo"
	pguserrepo "github.com/househealth/househealth-api/internal/adapters/postgres/userrepo"
	"github.com/househealth/househealth-api/internal/adapters/sqlite"
	"github.com/househealth/househealth-api/internal/app/families"
	"github.com/househealth/househealth-api/internal/app/healthlogs"
	"github.com/househealth/househealth-api/internal/app/reminders"
	"github.com/househealth/househealth-api/internal/app/users"
	"github.com/househealth/househealth-api/internal/platform/auth/jwtverifier"
	platformclock "github.com/househealth/househealth-api/internal/platform/clock"
	"github.com/househealth/househealth-api/internal/platform/config"
	"github.com/househealth/househealth-api/internal/platform/logging"
	"github.com/househealth/househealth-api/internal/platform/metrics"
	"github.com/househealth/househealth-api/internal/ports/out/familyrepo"
	"github.com/househealth/househealth-api/internal/ports/out/healthlogrepo"
	"github.com/househealth/househealth-api/internal/ports/out/idempotency"
	"github.com/househealth/househealth-api/internal/ports/out/reminderrepo"
	"github.com/househealth/househealth-api/internal/ports/out/userrepo"
)

const pruneInterval = time.Hour

type repositories struct {
	users      userrepo.Repository
	families   familyrepo.Repository
	healthLogs healthlogrepo.Repository
	reminders  reminderrepo.Repository
	idem       idempotency.Store

	cleanup func()
}

func main() {
	if err := run(); err != nil {
		slog.Error("api exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.Setup(os.Stderr, cfg.Server.LogLevel, cfg.Server.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repos, err := openStorage(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer repos.cleanup()

	authMW := authMiddleware(cfg.Auth, logger)

	m := metrics.New()
	clk := platformclock.NewSystemClock()

	userSvc := users.NewService(repos.users, clk)
	userSvc.Logger = logger
	dir := families.NewDirectory(repos.families, userSvc, clk)
	dir.Logger, dir.Metrics = logger, m
	eng := families.NewEngine(repos.families, dir, userSvc, clk)
	eng.Logger, eng.Metrics = logger, m

	if err := userSvc.BootstrapAdmins(ctx, cfg.AdminEmails); err != nil {
		return fmt.Errorf("bootstrap admins: %w", err)
	}

	api := httpapi.NewServer(httpapi.Services{
		Users:      userSvc,
		Directory:  dir,
		Engine:     eng,
		HealthLogs: healthlogs.NewService(repos.healthLogs, clk),
		Reminders:  reminders.NewService(repos.reminders, clk),
	}, repos.idem)
	api.Logger = logger

	apiSrv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: httpapi.NewRouter(api, httpapi.RouterOptions{
			AuthMiddleware: authMW,
			Logger:         logger,
			Metrics:        m,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", m.Handler())
	metricsSrv := &http.Server{
		Addr:              cfg.Server.MetricsAddr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return serve(logger, "api", apiSrv) })
	g.Go(func() error { return serve(logger, "metrics", metricsSrv) })
	if p, ok := repos.idem.(idempotency.Pruner); ok {
		g.Go(func() error {
			pruneLoop(gctx, logger, p)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return errors.Join(apiSrv.Shutdown(shutdownCtx), metricsSrv.Shutdown(shutdownCtx))
	})
	return g.Wait()
}

func serve(logger *slog.Logger, name string, srv *http.Server) error {
	logger.Info("listening", "server", name, "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s server: %w", name, err)
	}
	return nil
}

func openStorage(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (repositories, error) {
	switch cfg.Backend {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolOptions{MaxConns: cfg.MaxConns})
		if err != nil {
			return repositories{}, fmt.Errorf("open postgres: %w", err)
		}
		if err := postgres.Migrate(ctx, pool, logger); err != nil {
			pool.Close()
			return repositories{}, err
		}
		return repositories{
			users:      pguserrepo.NewRepo(pool),
			families:   pgfamilyrepo.NewRepo(pool),
			healthLogs: pghealthlogrepo.NewRepo(pool),
			reminders:  pgreminderrepo.NewRepo(pool),
			idem:       pgidempotency.NewStoreWithRetention(pool, cfg.IdempotencyRetention),
			cleanup:    pool.Close,
		}, nil
	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return repositories{}, err
		}
		return repositories{
			users:      sqlite.NewUserRepo(db),
			families:   sqlite.NewFamilyRepo(db),
			healthLogs: sqlite.NewHealthLogRepo(db),
			reminders:  sqlite.NewReminderRepo(db),
			idem:       sqlite.NewIdempotencyStore(db, cfg.IdempotencyRetention),
			cleanup:    func() { _ = db.Close() },
		}, nil
	default:
		logger.Warn("using in-memory storage; data is lost on restart")
		return repositories{
			users:      memuserrepo.NewRepo(),
			families:   memfamilyrepo.NewRepo(),
			healthLogs: memhealthlogrepo.NewRepo(),
			reminders:  memreminderrepo.NewRepo(),
			idem: memidempotency.NewStoreWithRetention(cfg.IdempotencyRetention, func() time.Time {
				return time.Now().UTC()
			}),
			cleanup: func() {},
		}, nil
	}
}

func authMiddleware(cfg config.AuthConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	if cfg.Mode == "dev" {
		logger.Warn("dev auth enabled; requests are trusted via X-Debug-Subject")
		return httpapi.NewDevAuthMiddleware(cfg.DevSubject)
	}
	return httpapi.NewAuthMiddleware(jwtverifier.New(cfg))
}

func pruneLoop(ctx context.Context, logger *slog.Logger, p idempotency.Pruner) {
	t := time.NewTicker(pruneInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := p.Prune(ctx)
			if err != nil {
				logger.WarnContext(ctx, "idempotency prune failed", "error", err)
				continue
			}
			logger.DebugContext(ctx, "idempotency records pruned", "count", n)
		}
	}
}
