package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"uberapp/internal/config"
	"uberapp/internal/handlers"
	"uberapp/internal/middleware"
	"uberapp/internal/repositories/mongodb"
	"uberapp/internal/services"
	"uberapp/pkg/cache"
	"uberapp/pkg/database"
	"uberapp/pkg/identity"
	"uberapp/pkg/logger"
	"uberapp/pkg/maps"
	"uberapp/pkg/storage"
	"uberapp/pkg/websocket"
	"uberapp/routes"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(&logger.Config{
		Level:  logger.LogLevel(cfg.App.LogLevel),
		Format: cfg.App.LogFormat,
		Caller: cfg.App.Debug,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Mongo carries the ride and user records; its change streams feed the
	// live subscription fan-out.
	db, err := database.NewMongoDB(&database.DatabaseConfig{
		URI:            cfg.Database.URI,
		Database:       cfg.Database.Database,
		MaxPoolSize:    cfg.Database.MaxPoolSize,
		MinPoolSize:    cfg.Database.MinPoolSize,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		SocketTimeout:  cfg.Database.SocketTimeout,
	})
	if err != nil {
		log.Fatalf("failed to connect to mongodb: %v", err)
	}
	defer db.Close()

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.EnsureIndexes(indexCtx); err != nil {
		cancelIndexes()
		log.Fatalf("failed to ensure indexes: %v", err)
	}
	cancelIndexes()

	redisCache, err := cache.NewRedisCache(&cache.RedisConfig{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisCache.Close()

	identityProvider, err := buildIdentityProvider(cfg, log)
	if err != nil {
		log.Fatalf("failed to create identity provider: %v", err)
	}

	storageProvider, err := buildStorageProvider(cfg)
	if err != nil {
		log.Fatalf("failed to create storage provider: %v", err)
	}

	var mapsProvider maps.Provider
	if cfg.Maps.APIKey != "" {
		mapsProvider, err = maps.NewGoogleMapsProvider(cfg.Maps.APIKey)
		if err != nil {
			log.Fatalf("failed to create maps provider: %v", err)
		}
	} else {
		log.Warn("maps api key not set, route previews disabled")
	}

	rideRepo := mongodb.NewRideRepository(db.Database)
	userRepo := mongodb.NewUserRepository(db.Database)

	cacheService := services.NewCacheService(redisCache)
	userService := services.NewUserService(userRepo, identityProvider, storageProvider, cacheService, log)
	rideService := services.NewRideService(rideRepo, userRepo, mapsProvider, cacheService, log)

	hub := websocket.NewHub()
	go hub.Run()

	subscriptionService := services.NewSubscriptionService(rideRepo, hub, log)
	subCtx, cancelSub := context.WithCancel(context.Background())
	defer cancelSub()
	if err := subscriptionService.Start(subCtx); err != nil {
		log.Fatalf("failed to start ride subscriptions: %v", err)
	}
	defer subscriptionService.Stop()

	rideHandler := handlers.NewRideHandler(rideService)
	userHandler := handlers.NewUserHandler(userService)
	adminHandler := handlers.NewAdminHandler(userService)
	wsHandler := handlers.NewWSHandler(hub, log)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.Security.CORSAllowedOrigins))
	router.Use(middleware.RequestLogger(log))

	v1 := router.Group("/api/v1")
	{
		routes.SetupRideRoutes(v1, rideHandler, identityProvider, userService)
		routes.SetupUserRoutes(v1, userHandler, adminHandler, wsHandler, identityProvider, userService)
	}

	router.GET("/health", func(c *gin.Context) {
		status := "healthy"
		code := http.StatusOK
		if err := db.Ping(); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":  status,
			"version": cfg.App.Version,
		})
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: router,
	}

	go func() {
		log.Infof("server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("forced shutdown: %v", err)
	}
}

func buildIdentityProvider(cfg *config.Config, log *logger.Logger) (identity.Provider, error) {
	switch cfg.Identity.Provider {
	case "firebase":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return identity.NewFirebaseProvider(ctx, cfg.Identity.CredentialsFile)
	case "jwt":
		log.Warn("using local jwt identity provider")
		return identity.NewJWTProvider(cfg.Security.JWTSecret, cfg.Security.JWTAccessTokenTTL), nil
	default:
		return nil, fmt.Errorf("unknown identity provider %q", cfg.Identity.Provider)
	}
}

func buildStorageProvider(cfg *config.Config) (storage.Provider, error) {
	switch cfg.Storage.Provider {
	case "s3":
		return storage.NewAWSS3Storage(cfg.Storage.Region, cfg.Storage.Bucket, cfg.Storage.CDNDomain)
	case "gcs":
		return storage.NewGCPStorage(cfg.Storage.Bucket, cfg.Storage.CredentialsFile, cfg.Storage.CDNDomain)
	case "local":
		return storage.NewLocalStorage(cfg.Storage.LocalPath, cfg.Storage.LocalBaseURL)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}
}
