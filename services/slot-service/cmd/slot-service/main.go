package main

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/md-rashed-zaman/freeslots/libs/config"
	"github.com/md-rashed-zaman/freeslots/libs/db"
	"github.com/md-rashed-zaman/freeslots/libs/httpx"
	"github.com/md-rashed-zaman/freeslots/libs/kafkax"
	otelx "github.com/md-rashed-zaman/freeslots/libs/otel"
	"github.com/md-rashed-zaman/freeslots/libs/runtime"
	"github.com/md-rashed-zaman/freeslots/services/slot-service/internal/cache"
	"github.com/md-rashed-zaman/freeslots/services/slot-service/internal/events"
	"github.com/md-rashed-zaman/freeslots/services/slot-service/internal/finder"
	"github.com/md-rashed-zaman/freeslots/services/slot-service/internal/grpcserver"
	"github.com/md-rashed-zaman/freeslots/services/slot-service/internal/handlers"
	"github.com/md-rashed-zaman/freeslots/services/slot-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "slot-service")
	port := must(config.Port("PORT", "8080"))
	grpcPort := must(config.Port("GRPC_PORT", "9090"))
	strict := must(config.Bool("SLOTS_STRICT", true))
	cacheTTL := must(config.Duration("CACHE_TTL", 5*time.Minute))
	limitPerMinute := must(config.Int("RATE_LIMIT_PER_MINUTE", 120))
	bodyLimit := must(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))
	failOpen := must(config.Bool("RATE_LIMIT_FAIL_OPEN", true))
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	var shutdown []runtime.ShutdownFunc

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		shutdown = append(shutdown, runtime.ShutdownFunc{Name: "otel", Fn: otelShutdown})
	}

	var (
		pool     *db.Pool
		repo     *storage.Repository
		store    finder.BusyStore
		busyRepo handlers.BusyRepository
	)
	if dbURL := config.String("DATABASE_URL", ""); dbURL != "" {
		pool, err = db.Open(ctx, dbURL, db.PoolOptions{})
		if err != nil {
			logger.Error("db connection failed", "err", err)
			panic(err)
		}
		shutdown = append(shutdown, runtime.ShutdownFunc{Name: "db", Fn: func(context.Context) error {
			pool.Close()
			return nil
		}})
		repo = storage.NewRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			logger.Error("schema bootstrap failed", "err", err)
			panic(err)
		}
		store, busyRepo = repo, repo
	} else {
		logger.Warn("calendar endpoints disabled (DATABASE_URL not set)")
	}

	var (
		rdb         *redis.Client
		resultCache finder.ResultCache
	)
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		redisDB := 0
		if v, err := strconv.Atoi(config.String("REDIS_DB", "0")); err == nil && v >= 0 {
			redisDB = v
		}
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       redisDB,
		})
		shutdown = append(shutdown, runtime.ShutdownFunc{Name: "redis", Fn: func(context.Context) error {
			return rdb.Close()
		}})
		resultCache = cache.New(rdb, cacheTTL)
		logger.Info("slot cache enabled (redis)", "redis_addr", addr, "ttl", cacheTTL.String())
	}

	brokers := config.String("KAFKA_BROKERS", "")
	var (
		publisher finder.EventPublisher
		workers   sync.WaitGroup
	)
	if len(kafkax.SplitBrokers(brokers)) > 0 {
		pub := events.NewPublisher(logger, events.NewKafkaWriter(brokers), events.PublisherConfig{
			Topic: config.String("KAFKA_PUBLISH_TOPIC", events.ComputedEventType),
		})
		publisher = pub
		workers.Add(1)
		go func() {
			defer workers.Done()
			pub.Run(ctx)
		}()
	} else {
		logger.Warn("event publishing disabled (no kafka brokers configured)")
	}

	slotFinder := finder.New(logger, store, resultCache, publisher, finder.Config{Strict: strict})

	if repo != nil && len(kafkax.SplitBrokers(brokers)) > 0 {
		reader := events.NewKafkaReader(events.ConsumerConfig{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", service),
			Topic:   config.String("KAFKA_CONSUME_TOPIC", events.BusyChangedEventType),
		})
		consumer := events.NewConsumer(logger, reader, repo, slotFinder)
		workers.Add(1)
		go func() {
			defer workers.Done()
			consumer.Run(ctx)
		}()
	}
	shutdown = append(shutdown, runtime.ShutdownFunc{Name: "workers", Fn: func(ctx context.Context) error {
		done := make(chan struct{})
		go func() {
			workers.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}})

	checks := []runtime.ReadyCheck{{Name: "kafka", Check: kafkax.ReadyCheck(brokers)}}
	if pool != nil {
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})
	}
	if rdb != nil {
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	mux := runtime.NewBaseMuxWithReady(checks...)
	handlers.New(logger, slotFinder, busyRepo).Register(mux)

	var limiter httpx.Limiter
	if rdb != nil {
		limiter = httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute)
	} else {
		limiter = httpx.NewRateLimiter(limitPerMinute, time.Minute)
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(int64(bodyLimit)),
		httpx.WithRateLimit(limiter, logger, failOpen),
	)
	handler = otelhttp.NewHandler(handler, "slots")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lis, err := net.Listen("tcp", ":"+grpcPort)
	if err != nil {
		logger.Error("grpc listen failed", "err", err)
		panic(err)
	}
	grpcSrv := grpcserver.NewServer(logger, slotFinder)
	shutdown = append(shutdown, runtime.ShutdownFunc{Name: "grpc", Fn: func(ctx context.Context) error {
		done := make(chan struct{})
		go func() {
			grpcSrv.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			grpcSrv.Stop()
			return ctx.Err()
		}
	}})
	shutdown = append(shutdown, runtime.ShutdownFunc{Name: "http", Fn: srv.Shutdown})

	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()
	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	runtime.Shutdown(logger, 10*time.Second, shutdown...)
	logger.Info("slot service stopped")
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
