package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"itinera/config"
	"itinera/db"
	"itinera/itinerary"
	"itinera/logging"
	"itinera/middleware"
	"itinera/mq"
	"itinera/planner"
	"itinera/propagate"
	"itinera/ratelim"
	"itinera/rdx"
	"itinera/routes"
	"itinera/schedule"
	"itinera/store"
	"itinera/transport"
	"itinera/utils"
)

// securityHeaders applies a set of recommended HTTP security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "frame-ancestors 'none'")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs each request method, path, status, and duration.
func loggingMiddleware(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)),
		)
	})
}

func durationProvider(cfg config.Config, logger *zap.Logger) transport.Provider {
	var base transport.Provider = transport.EstimateProvider{}
	if cfg.DurationProvider == config.ProviderZero {
		base = transport.ZeroProvider{}
	}
	bc := transport.DefaultBreakerConfig()
	bc.Timeout = cfg.DurationTimeout
	return transport.NewBreakerProvider(base, bc, logger)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("invalid configuration", zap.Error(err))
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		zap.NewExample().Fatal("invalid log level", zap.Error(err))
	}
	defer logger.Sync()

	scope, err := schedule.ParseScope(cfg.NeighborScope)
	if err != nil {
		logger.Fatal("invalid neighbor scope", zap.Error(err))
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 15*time.Second)
	mongoClient, err := db.Connect(startCtx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		logger.Fatal("mongo", zap.Error(err))
	}
	if err := db.EnsureIndexes(startCtx); err != nil {
		logger.Fatal("mongo indexes", zap.Error(err))
	}
	rdb, err := rdx.Connect(startCtx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	cancelStart()

	stores := store.NewMongo(mongoClient)
	provider := transport.NewCachedProvider(durationProvider(cfg, logger), rdb, cfg.DurationCacheTTL, logger)
	propagator := propagate.New(stores.Items(), stores.Places(), provider, scope, logger)

	deps := planner.Deps{
		Items:       stores.Items(),
		Itineraries: stores.Itineraries(),
		Places:      stores.Places(),
		UnitOfWork:  stores,
		Propagator:  propagator,
	}
	if cfg.PropagationMode == config.PropagationAsync {
		deps.Queue = mq.NewQueue(rdb, logger)
	}
	svc := planner.New(deps, planner.Options{
		Mode:   cfg.PropagationMode,
		Logger: logger,
		NewID:  utils.NewID,
	})

	workerCtx, stopWorker := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	if cfg.PropagationMode == config.PropagationAsync {
		worker := mq.NewWorker(rdb, mq.DefaultWorkerConfig(), func(ctx context.Context, task mq.PropagationTask) error {
			return propagator.RefreshDay(ctx, task.ItineraryID, task.DayNumber)
		}, logger)
		if err := worker.EnsureGroup(workerCtx); err != nil {
			logger.Fatal("propagation queue", zap.Error(err))
		}
		workers.Add(1)
		go func() {
			defer workers.Done()
			if err := worker.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("propagation worker stopped", zap.Error(err))
			}
		}()
	}

	router := httprouter.New()
	routes.RoutesWrapper(router,
		itinerary.NewHandler(svc, logger),
		middleware.NewAuth(cfg.JWTSecret),
		ratelim.NewRateLimiter(120, 20),
	)

	// apply middleware: CORS → security headers → logging → router
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "If-Match"},
		ExposedHeaders:   []string{"ETag"},
		AllowCredentials: true,
	}).Handler(router)

	server := &http.Server{
		Addr:              cfg.Port,
		Handler:           loggingMiddleware(logger, securityHeaders(corsHandler)),
		ReadTimeout:       7 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Port), zap.String("propagation", cfg.PropagationMode))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("ListenAndServe", zap.Error(err))
		}
	}()

	// wait for interrupt or SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received; shutting down gracefully")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	stopWorker()
	workers.Wait()
	if err := mongoClient.Disconnect(ctx); err != nil {
		logger.Warn("mongo disconnect", zap.Error(err))
	}
	if err := rdb.Close(); err != nil {
		logger.Warn("redis close", zap.Error(err))
	}
	logger.Info("server stopped cleanly")
}
