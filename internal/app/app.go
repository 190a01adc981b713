// Package app provides the unified application lifecycle management for the
// skyquery pushdown query service.
package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	grpcapi "github.com/arkilian/skyquery/internal/api/grpc"
	httpapi "github.com/arkilian/skyquery/internal/api/http"
	"github.com/arkilian/skyquery/internal/cache"
	"github.com/arkilian/skyquery/internal/config"
	"github.com/arkilian/skyquery/internal/index"
	"github.com/arkilian/skyquery/internal/manifest"
	"github.com/arkilian/skyquery/internal/observability"
	"github.com/arkilian/skyquery/internal/queryengine"
	"github.com/arkilian/skyquery/internal/router"
	"github.com/arkilian/skyquery/internal/server"
	"github.com/arkilian/skyquery/internal/storage"
	"google.golang.org/grpc"
)

// App manages the skyquery-serve process lifecycle: one HTTP query server,
// one gRPC query server, and a background secondary-index policy loop, all
// sharing one manifest catalog and object store.
type App struct {
	cfg *config.Config

	// Shared resources
	storage  storage.ObjectStorage
	catalog  *manifest.SQLiteCatalog
	stats    *observability.QueryStats
	lookup   *index.Lookup
	builder  *index.Builder
	engine   *queryengine.Engine
	objCache *cache.NVMeCache
	notifier *router.Notifier

	shutdown *server.ShutdownManager

	httpServer   *http.Server
	grpcServer   *grpc.Server
	grpcListener net.Listener

	// Lifecycle
	mu           sync.Mutex
	running      bool
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	policyCancel map[string]context.CancelFunc
	policyMu     sync.Mutex
}

// New creates a new App with the given configuration.
func New(cfg *config.Config) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	return &App{
		cfg:          cfg,
		policyCancel: make(map[string]context.CancelFunc),
	}, nil
}

// Start initializes shared resources and starts the HTTP/gRPC query servers
// and the background index policy loop.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app is already running")
	}
	a.running = true
	a.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.initSharedResources(); err != nil {
		a.cleanup()
		return fmt.Errorf("failed to initialize shared resources: %w", err)
	}

	if err := a.startQueryService(); err != nil {
		a.cleanup()
		return fmt.Errorf("failed to start query service: %w", err)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.runIndexDiscoveryLoop(ctx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.logIndexNotifications(ctx)
	}()

	log.Printf("skyquery-serve started: http=%s grpc=%s", a.cfg.HTTP.Addr, a.cfg.GRPC.Addr)
	return nil
}

// initSharedResources initializes storage, the manifest catalog, query
// stats, the secondary-index builder/lookup, and the query engine.
func (a *App) initSharedResources() error {
	var err error

	switch a.cfg.Storage.Type {
	case "local":
		a.storage, err = storage.NewLocalStorage(a.cfg.Storage.Path)
	case "s3":
		s3Cfg := storage.DefaultS3Config()
		if a.cfg.Storage.S3.Region != "" {
			s3Cfg.Region = a.cfg.Storage.S3.Region
		}
		if a.cfg.Storage.S3.Endpoint != "" {
			s3Cfg.Endpoint = a.cfg.Storage.S3.Endpoint
		}
		a.storage, err = storage.NewS3Storage(context.Background(), a.cfg.Storage.S3.Bucket, s3Cfg)
	default:
		return fmt.Errorf("unsupported storage type: %s", a.cfg.Storage.Type)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	log.Printf("Storage initialized: type=%s", a.cfg.Storage.Type)
	if a.cfg.Storage.Type == "s3" {
		log.Printf("S3 config: bucket=%s region=%s endpoint=%s",
			a.cfg.Storage.S3.Bucket, a.cfg.Storage.S3.Region, a.cfg.Storage.S3.Endpoint)
	}

	a.catalog, err = manifest.NewCatalog(a.cfg.ManifestPath())
	if err != nil {
		return fmt.Errorf("failed to initialize manifest catalog: %w", err)
	}
	log.Printf("Manifest catalog initialized: %s", a.cfg.ManifestPath())

	a.stats = observability.NewQueryStats(24 * time.Hour)

	a.builder = index.NewBuilder(a.storage, a.catalog, a.cfg.Query.DownloadDir, a.cfg.Query.IndexBuildConcurrency)
	a.lookup = index.NewLookup(a.catalog)

	if a.cfg.Query.CacheSizeMB > 0 {
		objCache, err := cache.NewNVMeCache(a.cfg.Query.CacheDir, a.cfg.Query.CacheSizeMB*1024*1024)
		if err != nil {
			return fmt.Errorf("failed to initialize object cache: %w", err)
		}
		a.objCache = objCache
		log.Printf("Object cache initialized: dir=%s size=%dMB", a.cfg.Query.CacheDir, a.cfg.Query.CacheSizeMB)
	}

	a.engine = queryengine.NewEngine(a.catalog, a.lookup, a.storage, a.stats, a.cfg.Query.DownloadDir, a.cfg.Query.Concurrency).
		WithCache(a.objCache)

	a.notifier = router.NewNotifier(64)

	a.shutdown = server.NewShutdownManager(server.DefaultShutdownConfig())
	a.shutdown.RegisterCloser(a.catalog)
	if a.objCache != nil {
		a.shutdown.RegisterCloser(server.CloserFunc(func() error {
			a.objCache.Close()
			return nil
		}))
	}

	return nil
}

// logIndexNotifications drains the notifier's stream and logs each newly
// built secondary index, exercising the notification bus the index policy
// loop publishes to. Returns when ctx is cancelled.
func (a *App) logIndexNotifications(ctx context.Context) {
	ch := a.notifier.SubscribeAutoID()
	for {
		select {
		case <-ctx.Done():
			return
		case notif := <-ch:
			if notif.Type == router.IndexCreated {
				log.Printf("index policy: index available for %s", notif.ObjectPath)
			}
		}
	}
}

// startQueryService starts the HTTP and, if enabled, gRPC query servers.
func (a *App) startQueryService() error {
	queryHandler := httpapi.NewQueryHandler(a.engine)

	mux := http.NewServeMux()
	middleware := httpapi.ChainMiddleware(
		server.ShutdownMiddleware(a.shutdown),
		httpapi.RecoveryMiddleware,
		httpapi.RequestIDMiddleware,
		httpapi.CorrelationIDMiddleware,
		httpapi.ContentTypeMiddleware,
	)
	mux.Handle("/v1/query", middleware(queryHandler))
	mux.HandleFunc("/health", a.healthHandler())

	a.httpServer = &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      mux,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		log.Printf("Query HTTP server listening on %s", a.cfg.HTTP.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Query HTTP server error: %v", err)
		}
	}()

	if a.cfg.GRPC.Enabled {
		a.grpcServer = grpc.NewServer()
		grpcapi.RegisterQueryServiceServer(a.grpcServer, grpcapi.NewQueryServer(a.engine))

		var err error
		a.grpcListener, err = net.Listen("tcp", a.cfg.GRPC.Addr)
		if err != nil {
			return fmt.Errorf("failed to listen on gRPC address: %w", err)
		}

		a.shutdown.RegisterCloser(server.CloserFunc(func() error {
			a.grpcServer.GracefulStop()
			return nil
		}))

		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			log.Printf("gRPC query server listening on %s", a.cfg.GRPC.Addr)
			if err := a.grpcServer.Serve(a.grpcListener); err != nil {
				log.Printf("gRPC server error: %v", err)
			}
		}()
	}

	return nil
}

// runIndexDiscoveryLoop periodically lists every db_schema.table_name pair
// with registered containers and starts one index.Policy loop per table
// that isn't already being managed. The query engine has no fixed table
// list at startup, so table discovery has to happen continuously rather
// than once during initSharedResources.
func (a *App) runIndexDiscoveryLoop(ctx context.Context) {
	interval := a.cfg.Index.CheckInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	a.discoverTables(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.discoverTables(ctx)
		}
	}
}

func (a *App) discoverTables(ctx context.Context) {
	tables, err := a.catalog.DistinctTables(ctx)
	if err != nil {
		log.Printf("index discovery: failed to list tables: %v", err)
		return
	}

	a.policyMu.Lock()
	defer a.policyMu.Unlock()

	for _, t := range tables {
		key := t.DBSchema + "." + t.TableName
		if _, ok := a.policyCancel[key]; ok {
			continue
		}

		policyCtx, cancel := context.WithCancel(ctx)
		a.policyCancel[key] = cancel

		policy := index.NewPolicy(a.stats, a.builder, a.catalog, a.catalog, t.DBSchema, t.TableName, a.cfg.Index).
			SetNotifier(a.notifier)
		a.wg.Add(1)
		go func(tableKey string) {
			defer a.wg.Done()
			log.Printf("index policy: managing %s", tableKey)
			policy.Run(policyCtx)
		}(key)
	}
}

// Stop gracefully stops the HTTP/gRPC servers and the index policy loops.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	log.Printf("Initiating graceful shutdown...")

	if a.cancel != nil {
		a.cancel()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Query HTTP server shutdown error: %v", err)
		}
	}

	if a.grpcServer != nil {
		a.grpcServer.GracefulStop()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Printf("Shutdown timeout, some goroutines may not have finished")
	}

	a.cleanup()

	log.Printf("skyquery-serve stopped")
	return nil
}

func (a *App) cleanup() {
	if a.catalog != nil {
		a.catalog.Close()
	}
}

func (a *App) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","service":"skyquery-serve"}`)
	}
}

// WaitForShutdown blocks until a shutdown signal is received.
func (a *App) WaitForShutdown(ctx context.Context) error {
	return a.shutdown.ListenForSignals(ctx)
}
