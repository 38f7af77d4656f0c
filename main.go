package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ms-events/internal/config"
	"ms-events/internal/database"
	eventdb "ms-events/internal/events/db"
	"ms-events/internal/events/event_api"
	rediswrap "ms-events/internal/events/redis"
	"ms-events/internal/events/service"
	"ms-events/internal/kafka"
	"ms-events/internal/logger"
	"ms-events/internal/metrics"
	"ms-events/internal/pass"
	"ms-events/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*redis.Client, service.RegistrationLock) {
	if !cfg.Enabled {
		log.Warn("REDIS", "Redis disabled, registration lock is a no-op")
		return nil, rediswrap.NoopLock{}
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("REDIS", fmt.Sprintf("Redis connection successful to %s (DB: %d)", cfg.Addr, client.Options().DB))
	return client, rediswrap.NewRedis(client, cfg.LockTTL, log)
}

func connectKafka(ctx context.Context, cfg config.KafkaConfig, log *logger.Logger) (*kafka.Producer, service.Publisher) {
	if !cfg.Enabled {
		log.Warn("KAFKA", "Kafka disabled, domain events are dropped")
		return nil, kafka.NoopPublisher{}
	}

	log.Info("KAFKA", fmt.Sprintf("Using Kafka brokers %v", cfg.Brokers))
	if err := kafka.EnsureTopicsExist(ctx, cfg.Brokers, cfg.Topics.All(), log); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	} else {
		log.Info("KAFKA", "Required topics ensured successfully")
	}

	producer := kafka.NewProducer(cfg.Brokers, log)
	return producer, kafka.NewEventPublisher(producer, cfg.Topics)
}

func healthHandler(store pinger, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status, body := http.StatusOK, utils.SuccessResponse("ok")
		if err := store.Ping(ctx); err != nil {
			log.Error("HEALTH", fmt.Sprintf("Store ping failed: %v", err))
			status, body = http.StatusServiceUnavailable, utils.ErrorResponse("unavailable", err.Error())
		}
		if err := utils.WriteJSON(w, status, body); err != nil {
			log.Error("HEALTH", fmt.Sprintf("failed to encode response: %v", err))
		}
	}
}

func newRouter(cfg *config.Config, handler *event_api.Handler, store pinger, m *metrics.Metrics, log *logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(m.Middleware)
	r.Use(event_api.RequestLogger(log))

	r.Get("/health", healthHandler(store, log))
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route(cfg.Server.RoutePrefix, handler.RegisterRoutes)
	log.Info("ROUTER", fmt.Sprintf("Event routes registered under %s", cfg.Server.RoutePrefix))
	return r
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println(".env file not found, using environment variables")
	}
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Dir, "event-service", cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	log.Info("APP", "Starting Event Service initialization")
	ctx := context.Background()

	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, bunDB, cfg.Database, log); err != nil {
			log.Fatal("MIGRATION", fmt.Sprintf("Failed to migrate schema: %v", err))
		}
		log.Info("MIGRATION", "Schema is up to date")
	}

	redisClient, lock := connectRedis(ctx, cfg.Redis, log)
	if redisClient != nil {
		defer redisClient.Close()
	}

	producer, publisher := connectKafka(ctx, cfg.Kafka, log)
	if producer != nil {
		defer producer.Close()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(registry)

	store := &eventdb.DB{Bun: bunDB}
	eventService := service.NewEventService(store, lock, publisher, pass.NewGenerator(cfg.Pass.SecretKey), log)
	eventService.Recorder = m

	handler := event_api.NewHandler(eventService, log)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      newRouter(cfg, handler, eventService, m, log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Event Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "Event Service shutdown complete")
	}
}
