package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gta-grind-tracker/internal/cache"
	"gta-grind-tracker/internal/clock"
	"gta-grind-tracker/internal/config"
	"gta-grind-tracker/internal/eventbus"
	"gta-grind-tracker/internal/handler"
	"gta-grind-tracker/internal/notify"
	"gta-grind-tracker/internal/repository"
	"gta-grind-tracker/internal/router"
	"gta-grind-tracker/internal/service"

	"github.com/redis/go-redis/v9"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting GTA Grind Tracker...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	// Initialize record store based on config
	store, err := repository.Open(repository.StoreOptions{
		Type:        cfg.Store.Type,
		Path:        cfg.Store.Path,
		PostgresDSN: cfg.Store.PostgresDSN(),
		MySQL: repository.MySQLConfig{
			Host:     cfg.Store.Host,
			Port:     cfg.Store.Port,
			User:     cfg.Store.User,
			Password: cfg.Store.Password,
			Database: cfg.Store.Name,
		},
	})
	if err != nil {
		log.Fatalf("Failed to initialize %s store: %v", cfg.Store.Type, err)
	}
	defer store.Close()

	// Initialize Redis client (optional)
	var redisClient *redis.Client
	if cfg.Cache.UsesRedis() || cfg.Notify.RedisChannel != "" {
		redisClient, err = cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			log.Printf("Warning: Redis connection failed: %v", err)
			redisClient = nil
		} else {
			log.Println("Redis client initialized")
			defer redisClient.Close()
		}
	}

	// Catalog cache
	var catalogCache cache.Cache = cache.NewMemoryCache()
	if cfg.Cache.UsesRedis() && redisClient != nil {
		catalogCache = cache.NewRedisCache(redisClient, "")
		log.Println("Redis catalog cache initialized")
	}

	// Notification sinks
	clk := clock.NewReal()
	hub := eventbus.NewHub()

	opts := []notify.Option{
		notify.WithGrace(cfg.Notify.Grace),
		notify.WithHub(hub),
		notify.WithToaster(notify.NewHubToaster(hub, clk, cfg.Notify.ToastTTL)),
	}
	if cfg.Notify.Sound {
		opts = append(opts, notify.WithSounder(notify.BellSounder{W: os.Stdout}))
	}
	if cfg.Notify.RedisChannel != "" && redisClient != nil {
		opts = append(opts, notify.WithPlatform(notify.NewRedisPlatform(redisClient, notify.RedisPlatformConfig{
			Channel: cfg.Notify.RedisChannel,
		})))
		log.Printf("Redis notification platform on channel %s", cfg.Notify.RedisChannel)
	}

	var listeners []notify.Listener
	var notificationLogs repository.NotificationLogRepository
	if cfg.Notify.MongoURI != "" {
		mongoLog, err := repository.NewMongoNotificationLog(
			cfg.Notify.MongoURI,
			cfg.Notify.MongoDatabase,
			cfg.Notify.MongoCollection,
		)
		if err != nil {
			log.Printf("Warning: MongoDB notification log failed: %v", err)
		} else {
			defer mongoLog.Close()
			notificationLogs = mongoLog
			listeners = append(listeners, mongoLog)
			log.Println("MongoDB notification log initialized")
		}
	}

	var kafkaPublisher *notify.KafkaPublisher
	if brokers := cfg.Notify.Brokers(); len(brokers) > 0 {
		kafkaPublisher = notify.NewKafkaPublisher(brokers, cfg.Notify.KafkaTopic)
		listeners = append(listeners, kafkaPublisher)
		log.Printf("Kafka publisher initialized for topic %s", cfg.Notify.KafkaTopic)
	}
	opts = append(opts, notify.WithListeners(listeners...))

	scheduler := notify.NewScheduler(clk, opts...)
	permCtx, permCancel := context.WithTimeout(context.Background(), 5*time.Second)
	scheduler.RequestPermission(permCtx)
	permCancel()

	// Initialize services
	catalog := service.NewCatalogService(store, catalogCache, cfg.Cache.TTL)
	if cfg.App.SeedCatalog {
		seedCtx, seedCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if _, err := catalog.Seed(seedCtx, false); err != nil {
			log.Printf("Warning: catalog seed failed: %v", err)
		}
		seedCancel()
	}

	refresher := service.NewRefresher(store, scheduler, clk, hub, service.RefreshConfig{
		Interval: cfg.Refresh.Interval,
		Grace:    cfg.Notify.Grace,
		Timeout:  cfg.Refresh.Timeout,
	})
	tracker := service.NewTrackerService(store, catalog, refresher, clk)
	refresher.Start()

	// Create router
	rateLimit := 0
	if cfg.RateLimit.Enabled {
		rateLimit = cfg.RateLimit.Requests
	}
	r := router.New(router.Config{
		Handler:             handler.New(store, cfg.App.Name, cfg.App.Version),
		ActivityHandler:     handler.NewActivityHandler(catalog),
		TrackerHandler:      handler.NewTrackerHandler(tracker, refresher),
		NotificationHandler: handler.NewNotificationHandler(scheduler, hub, notificationLogs),
		AdminHandler:        handler.NewAdminHandler(refresher, scheduler, hub, store.Dialect()),
		RateLimitRequests:   rateLimit,
		RateLimitWindow:     cfg.RateLimit.Window,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop the refresh loop first, then cancel every pending timer
	refresher.Stop()
	scheduler.Close()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			log.Printf("Kafka publisher close error: %v", err)
		}
	}

	log.Println("Server stopped")
	fmt.Println("Goodbye!")
}
