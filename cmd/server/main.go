package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	accesshandler "truconn/internal/access/handler"
	accessservice "truconn/internal/access/service"
	accessstore "truconn/internal/access/store"
	compliancehandler "truconn/internal/compliance/handler"
	"truconn/internal/compliance/engine"
	"truconn/internal/compliance/recorder"
	complianceservice "truconn/internal/compliance/service"
	compliancestore "truconn/internal/compliance/store"
	consenthandler "truconn/internal/consent/handler"
	consentservice "truconn/internal/consent/service"
	consentstore "truconn/internal/consent/store"
	"truconn/internal/integrity"
	"truconn/internal/notify"
	orgmodels "truconn/internal/organization/models"
	orgstore "truconn/internal/organization/store"
	"truconn/internal/platform/config"
	"truconn/internal/platform/database"
	"truconn/internal/platform/health"
	"truconn/internal/platform/httpserver"
	"truconn/internal/platform/kafka/producer"
	"truconn/internal/platform/logger"
	"truconn/internal/platform/metrics"
	"truconn/internal/platform/redis"
	"truconn/internal/reporting"
	httptransport "truconn/internal/transport/http"
	trusthandler "truconn/internal/trust/handler"
	trustservice "truconn/internal/trust/service"
	"truconn/migrations"
)

// Storage unions: each backend (memory or postgres) satisfies the full
// surface, so main picks one implementation per domain and hands the same
// value to every consumer.
type consentStorage interface {
	consentservice.Store
	reporting.ConsentCounter
}

type organizationStorage interface {
	trustservice.Directory
	reporting.OrgDirectory
	FindByOwner(ctx context.Context, ownerUserID string) (*orgmodels.Organization, error)
}

type accessStorage interface {
	accessservice.Store
	reporting.AccessCounter
}

type complianceStorage interface {
	recorder.Store
	complianceservice.Store
	trustservice.ViolationCounter
	reporting.ComplianceCounter
}

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	persistence := "memory"
	if cfg.DatabaseURL != "" {
		persistence = "postgres"
	}
	log.Info("initializing truconn",
		"addr", cfg.Addr,
		"persistence", persistence,
	)

	ctx := context.Background()

	pool, err := database.New(database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}

	var (
		consents      consentStorage
		organizations organizationStorage
		requests      accessStorage
		compliance    complianceStorage
	)
	if pool != nil {
		if err := applyMigrations(ctx, pool.DB()); err != nil {
			log.Error("migrations failed", "error", err)
			os.Exit(1)
		}
		consents = consentstore.NewPostgres(pool.DB())
		organizations = orgstore.NewPostgres(pool.DB())
		requests = accessstore.NewPostgres(pool.DB())
		compliance = compliancestore.NewPostgres(pool.DB())
	} else {
		consents = consentstore.New()
		organizations = orgstore.New()
		requests = accessstore.New()
		compliance = compliancestore.New()
	}

	if err := consentstore.SeedTypes(ctx, consents, time.Now().UTC()); err != nil {
		log.Error("seeding consent types failed", "error", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}

	var notifier *notify.Notifier
	if cfg.KafkaBrokers != "" {
		producerCfg := producer.DefaultConfig()
		producerCfg.Brokers = cfg.KafkaBrokers
		kafkaProducer, err := producer.New(producerCfg, log)
		if err != nil {
			log.Error("kafka init failed", "error", err)
			os.Exit(1)
		}
		defer kafkaProducer.Close()
		notifier = notify.New(kafkaProducer, cfg.NotifyTopic, notify.WithLogger(log))
		defer notifier.Close()
	}

	consentOpts := []consentservice.Option{
		consentservice.WithLogger(log),
		consentservice.WithMetrics(m),
	}
	accessOpts := []accessservice.Option{
		accessservice.WithLogger(log),
		accessservice.WithMetrics(m),
	}
	complianceOpts := []complianceservice.Option{
		complianceservice.WithLogger(log),
		complianceservice.WithMetrics(m),
		complianceservice.WithWindow(cfg.IdempotencyWindow),
	}
	if notifier != nil {
		consentOpts = append(consentOpts, consentservice.WithNotifier(notifier))
		accessOpts = append(accessOpts, accessservice.WithNotifier(notifier))
		complianceOpts = append(complianceOpts, complianceservice.WithNotifier(notifier))
	}

	consentSvc := consentservice.New(consents, consentOpts...)
	accessSvc := accessservice.New(requests, accessOpts...)

	catalog := engine.DefaultCatalog()
	scanner := engine.New(catalog, requests, consents)
	scanRecorder := recorder.New(compliance, catalog,
		recorder.WithWindow(cfg.IdempotencyWindow),
		recorder.WithLogger(log))
	complianceSvc := complianceservice.New(scanner, scanRecorder, compliance, complianceOpts...)

	trustOpts := []trustservice.Option{
		trustservice.WithLogger(log),
		trustservice.WithMetrics(m),
	}
	if redisClient != nil {
		trustOpts = append(trustOpts, trustservice.WithRankingCache(redisClient, cfg.RankingCacheTTL))
	}
	trustSvc := trustservice.New(organizations, scanner, compliance, requests, consents, trustOpts...)

	reporter := reporting.New(organizations, consents, requests, compliance)

	consentHandler := consenthandler.New(consentSvc, log)
	accessHandler := accesshandler.New(accessSvc, organizations, log)
	complianceHandler := compliancehandler.New(complianceSvc, organizations, log)
	trustHandler := trusthandler.New(trustSvc, organizations, log)
	integrityHandler := integrity.NewHandler(integrity.NewChecker(requests), organizations, log)
	reportingHandler := reporting.NewHandler(reporter, log)

	checks := map[string]health.Checker{}
	if pool != nil {
		checks["database"] = pool
	}
	if redisClient != nil {
		checks["redis"] = redisClient
	}

	router := httptransport.NewRouter(
		httptransport.Config{
			SigningKey: cfg.JWTSigningKey,
			Health:     health.New(checks),
			Logger:     log,
		},
		httptransport.Routes{
			Public: []httptransport.RouteRegistrar{
				trustHandler.RegisterPublicRoutes,
				reportingHandler.RegisterRoutes,
			},
			Citizen: []httptransport.RouteRegistrar{
				consentHandler.RegisterRoutes,
				accessHandler.RegisterCitizenRoutes,
			},
			Organization: []httptransport.RouteRegistrar{
				accessHandler.RegisterOrganizationRoutes,
				complianceHandler.RegisterOrganizationRoutes,
				trustHandler.RegisterOrganizationRoutes,
				integrityHandler.RegisterRoutes,
			},
			Oversight: []httptransport.RouteRegistrar{
				complianceHandler.RegisterAuditRoutes,
			},
		},
	)

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting http server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	log.Info("shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	if pool != nil {
		_ = pool.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}

	log.Info("server stopped")
}

// applyMigrations executes the embedded *.up.sql files in order. The
// statements are written to be re-runnable, so boot-time application is safe.
func applyMigrations(ctx context.Context, db *sql.DB) error {
	entries, err := fs.ReadDir(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	for _, file := range files {
		content, err := fs.ReadFile(migrations.FS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("execute migration %s: %w", file, err)
		}
	}
	return nil
}
