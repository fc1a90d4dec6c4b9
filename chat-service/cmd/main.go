package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/cache"
	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/config"
	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/domain"
	chatgrpc "github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/grpc"
	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/handler"
	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/hub"
	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/kafka"
	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/metrics"
	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/realtime"
	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/repository"
	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/service"
	"github.com/iDecide-Org/iDecide-API-sub000/pkg/database"
	"github.com/iDecide-Org/iDecide-API-sub000/pkg/jwt"
	pkglog "github.com/iDecide-Org/iDecide-API-sub000/pkg/log"
	"github.com/iDecide-Org/iDecide-API-sub000/pkg/middleware"
	"github.com/iDecide-Org/iDecide-API-sub000/pkg/pubsub"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: "chat-service",
	})
	logger := pkglog.L()

	// Connect to database using GORM
	db, err := database.New(&database.Config{
		Driver:          cfg.Database.Driver,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		FilePath:        cfg.Database.FilePath,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db, &domain.PrincipalModel{}, &domain.MessageModel{}); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database migration completed")

	// Repositories
	messageRepo := repository.NewGormMessageRepository(db)
	principalRepo := repository.NewGormPrincipalRepository(db)

	// Principal cache
	var principalCache cache.PrincipalCache = cache.NoopPrincipalCache{}
	if cfg.Cache.Enabled {
		redisCache, err := cache.NewRedisPrincipalCache(cfg.Redis, cfg.Cache.Prefix)
		if err != nil {
			logger.Warn().Err(err).Msg("redis cache unavailable, continuing without cache")
		} else {
			principalCache = redisCache
			logger.Info().Str("address", cfg.Redis.Address).Msg("redis cache connected")
		}
	}
	defer principalCache.Close()

	// Realtime bus
	bus, err := pubsub.NewPubSub(pubsubConfig(cfg))
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.PubSub.Driver).Msg("failed to initialize pubsub")
	}
	defer bus.Close()
	logger.Info().Str("driver", cfg.PubSub.Driver).Msg("realtime bus ready")

	// Domain events
	var producer kafka.EventProducer = kafka.NoopProducer{}
	if cfg.Kafka.EventsEnabled {
		p, err := kafka.NewConfluentProducer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic, cfg.Kafka.Partitions)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize kafka producer")
		}
		producer = p
		logger.Info().Str("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.EventsTopic).Msg("kafka producer connected")
	}
	defer producer.Close()

	// Services
	wsHub := hub.NewHub(cfg.WebSocket)
	broadcaster := realtime.NewBusBroadcaster(bus)
	principalService := service.NewPrincipalService(principalRepo, principalCache, cfg.Cache.TTL)
	messageService := service.NewMessageService(messageRepo, principalService, broadcaster, producer, service.MessageOptions{
		MaxContentLength: cfg.Chat.MaxContentLength,
		UnreadWorkers:    cfg.Chat.UnreadWorkers,
	})
	realtimeService := service.NewRealtimeService(wsHub, broadcaster)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	relayDone, err := realtime.NewRelay(bus, wsHub).Start(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start realtime relay")
	}

	// Principal directory sync
	if cfg.Kafka.DirectoryEnabled {
		consumer, err := kafka.NewDirectoryConsumer(cfg.Kafka.Brokers, cfg.Kafka.DirectoryTopic, cfg.Kafka.DirectoryGroup, principalService)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize directory consumer")
		}
		if err := consumer.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to start directory consumer")
		}
		defer consumer.Close()
		logger.Info().Str("topic", cfg.Kafka.DirectoryTopic).Msg("principal directory consumer started")
	}

	// Auth
	jwtManager, err := jwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create jwt manager")
	}
	authMiddleware := middleware.NewAuthMiddleware(jwtManager)

	var sendLimiter *middleware.RateLimiter
	if cfg.RateLimit.PerSecond > 0 {
		sendLimiter = middleware.NewRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst)
		defer sendLimiter.Stop()
	}

	// gRPC health
	var grpcServer *chatgrpc.Server
	if cfg.GRPC.Enabled {
		grpcServer = chatgrpc.NewServer(logger, func(ctx context.Context) error {
			return database.Ping(ctx, db)
		}, 10*time.Second)
		grpcAddr := fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
		if err := grpcServer.Start(grpcAddr); err != nil {
			logger.Fatal().Err(err).Msg("failed to start grpc server")
		}
	}

	// Setup Gin router
	r := newRouter(logger, cfg, db)
	handler.NewHandler(messageService, authMiddleware, sendLimiter).RegisterRoutes(r)
	handler.NewWSHandler(wsHub, realtimeService, authMiddleware).RegisterRoutes(r)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("chat-service starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down chat-service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	if grpcServer != nil {
		grpcServer.Stop()
	}

	wsHub.Shutdown()
	cancel()
	select {
	case <-relayDone:
	case <-shutdownCtx.Done():
		logger.Warn().Msg("realtime relay did not stop in time")
	}

	logger.Info().Msg("chat-service stopped")
}

func newRouter(logger zerolog.Logger, cfg *config.Config, db *gorm.DB) *gin.Engine {
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))
	r.Use(metrics.GinMiddleware())
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		if err := database.Ping(c.Request.Context(), db); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	return r
}

func pubsubConfig(cfg *config.Config) pubsub.Config {
	pc := pubsub.DefaultConfig()
	pc.Driver = cfg.PubSub.Driver
	pc.Redis.Address = cfg.Redis.Address
	pc.Redis.Password = cfg.Redis.Password
	pc.Redis.DB = cfg.Redis.DB
	pc.Kafka.Brokers = cfg.Kafka.Brokers
	pc.Kafka.GroupID = cfg.PubSub.GroupID
	if cfg.Kafka.Partitions > 0 {
		pc.Kafka.Partitions = cfg.Kafka.Partitions
	}
	return pc
}
