package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"annuaire/internal/audit"
	certservice "annuaire/internal/certificate/service"
	certstore "annuaire/internal/certificate/store"
	docservice "annuaire/internal/document/service"
	docstore "annuaire/internal/document/store"
	certextract "annuaire/internal/integrations/certservice"
	"annuaire/internal/integrations/registrar"
	"annuaire/internal/integrations/signserver"
	"annuaire/internal/platform/config"
	"annuaire/internal/platform/db"
	"annuaire/internal/platform/filestore"
	"annuaire/internal/platform/httpserver"
	"annuaire/internal/platform/logger"
	"annuaire/internal/platform/metrics"
	"annuaire/internal/platform/redisclient"
	"annuaire/internal/resolve"
	httptransport "annuaire/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps
// the server lifecycle small. Business logic lives in internal services.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	m := metrics.New()

	// Audit trail: persistent store plus optional Kafka fan-out.
	var auditStore audit.Store
	var auditOpts []audit.Option
	auditOpts = append(auditOpts, audit.WithLogger(log))

	var certs certstore.Store
	var docs docstore.Store
	if cfg.DatabaseURL != "" {
		if err := db.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
			log.Error("migrations failed", "error", err)
			os.Exit(1)
		}
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			log.Error("database connection failed", "error", err)
			os.Exit(1)
		}
		defer conn.Close()
		certs = certstore.NewPostgres(conn)
		docs = docstore.NewPostgres(conn)
		auditStore = audit.NewPostgresStore(conn)
	} else {
		log.Warn("no database configured, using in-memory stores")
		certs = certstore.NewInMemory()
		docs = docstore.NewInMemory()
		auditStore = audit.NewInMemoryStore()
	}

	if len(cfg.KafkaBrokers) > 0 {
		sink, err := audit.NewKafkaSink(cfg.KafkaBrokers, cfg.AuditKafkaTopic)
		if err != nil {
			log.Error("kafka sink setup failed", "error", err)
			os.Exit(1)
		}
		defer sink.Close()
		auditOpts = append(auditOpts, audit.WithSink(sink))
	}
	auditPublisher := audit.NewPublisher(auditStore, auditOpts...)

	files, err := filestore.NewDisk(cfg.FileStoreDir)
	if err != nil {
		log.Error("file store setup failed", "error", err)
		os.Exit(1)
	}

	extractor := certextract.New(cfg.ExtractorJarPath,
		certextract.WithJavaBin(cfg.ExtractorJavaBin),
		certextract.WithLogger(log))
	signer := signserver.New(cfg.SignServerURL,
		signserver.WithWorkerName(cfg.SignServerWorkerName),
		signserver.WithLogger(log))
	reg := registrar.New(cfg.RegistrarURL, registrar.WithLogger(log))

	certificates := certservice.New(certs, extractor, files, docs,
		certservice.WithLogger(log),
		certservice.WithAuditPublisher(auditPublisher),
		certservice.WithMetrics(m))
	documents := docservice.New(docs, certs, signer, reg, cfg.Domain,
		docservice.WithLogger(log),
		docservice.WithAuditPublisher(auditPublisher),
		docservice.WithMetrics(m),
		docservice.WithPlatformName(cfg.PlatformName))

	var resolveCache resolve.Cache
	redisConn, err := redisclient.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisConn != nil {
		defer redisConn.Close()
		resolveCache = resolve.NewRedisCache(redisConn.Client, cfg.ResolveCacheTTL)
	} else {
		log.Warn("no redis configured, using in-process resolution cache")
		resolveCache = resolve.NewMemoryCache(cfg.ResolveCacheTTL)
	}
	resolver := resolve.New(docs, resolveCache,
		resolve.WithLogger(log),
		resolve.WithAuditPublisher(auditPublisher),
		resolve.WithMetrics(m))

	router := httptransport.NewRouter(
		httptransport.NewResolveHandler(resolver, log),
		httptransport.NewCertificateHandler(certificates, log),
		httptransport.NewDocumentHandler(documents, log),
	)
	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("starting annuaire", "addr", cfg.Addr, "domain", cfg.Domain)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
