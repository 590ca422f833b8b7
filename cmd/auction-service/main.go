package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"heritage-auction-service/internal/adapters/auth"
	"heritage-auction-service/internal/adapters/broadcaster"
	"heritage-auction-service/internal/adapters/db"
	"heritage-auction-service/internal/adapters/httpapi"
	"heritage-auction-service/internal/adapters/memory"
	"heritage-auction-service/internal/adapters/redis"
	"heritage-auction-service/internal/adapters/scheduler"
	"heritage-auction-service/internal/adapters/ws"
	"heritage-auction-service/internal/app"
	"heritage-auction-service/internal/config"
	"heritage-auction-service/internal/ports/outbound"
	"heritage-auction-service/internal/seed"
)

type closingBroadcaster interface {
	outbound.Broadcaster
	Close() error
}

func main() {

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	initLogging(cfg)

	log.Info().Str("store", cfg.Auction.StoreDriver).Msg("Starting Heritage Auction Service...")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the store
	var repositories app.RepositorySource
	switch cfg.Auction.StoreDriver {
	case config.StorePostgres:
		dbConn, err := db.NewConnection(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer dbConn.Close()

		if err := dbConn.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply database schema")
		}
		log.Info().Msg("Database connection established")
		repositories = db.NewRepositoryFactory(dbConn)
	default:
		store := memory.NewStore(memory.StoreParams{Logger: log.Logger})
		defer store.Close()
		log.Warn().Msg("Using in-memory store, data is lost on restart")
		repositories = store
	}

	// Redis is optional; without it events stay in this process
	var redisClient *goredis.Client
	var eventBroadcaster closingBroadcaster
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(cfg)
		if err := redis.Ping(ctx, redisClient); err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()
		log.Info().Msg("Redis connection established")

		eventBroadcaster = broadcaster.NewRedisBroadcaster(broadcaster.RedisBroadcasterParams{
			RedisClient: redisClient,
			Logger:      log.Logger,
		})
	} else {
		eventBroadcaster = broadcaster.NewLocalBroadcaster(broadcaster.LocalBroadcasterParams{
			Logger: log.Logger,
		})
	}
	defer eventBroadcaster.Close()

	tokens, err := auth.NewTokenManager(auth.TokenManagerParams{
		Secret: cfg.Auth.JWTSecret,
		TTL:    cfg.Auth.JWTTTL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create token manager")
	}

	// Create business services
	services := app.NewServices(app.ServicesParams{
		Repositories:     repositories,
		Broadcaster:      eventBroadcaster,
		Hasher:           auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		Tokens:           tokens,
		SweepConcurrency: cfg.Auction.SweepConcurrency,
		Logger:           log.Logger,
	})
	log.Info().Msg("Business services initialized")

	if cfg.Auction.SeedDemoData {
		if _, err := seed.Load(ctx, seed.Params{Services: services, Logger: log.Logger}); err != nil {
			log.Fatal().Err(err).Msg("Failed to load demo data")
		}
	}

	// Create and start the expiry sweep
	listingScheduler := scheduler.NewListingScheduler(scheduler.ListingSchedulerParams{
		RedisClient: redisClient,
		Closer:      services.Listings,
		Interval:    cfg.Auction.SweepInterval,
		Logger:      log.Logger,
	})
	listingScheduler.Start()
	log.Info().Dur("interval", cfg.Auction.SweepInterval).Msg("Listing scheduler started")

	wsHandler := ws.NewHandler(ws.WsHandlerParams{
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
			WriteBufferSize: cfg.WebSocket.WriteBufferSize,
		},
		Tokens:         tokens,
		ListingService: services.Listings,
		BidService:     services.Engine,
		Snapshots:      services.Engine,
		Broadcaster:    eventBroadcaster,
		MaxWorkers:     cfg.WebSocket.MaxWorkers,
		MaxCapacity:    cfg.WebSocket.MaxCapacity,
		Logger:         log.Logger,
	})

	router := httpapi.SetupRouter(httpapi.RouterParams{
		Handler: httpapi.NewHandler(httpapi.HandlerParams{
			Accounts: services.Accounts,
			Listings: services.Listings,
			Bids:     services.Engine,
			Logger:   log.Logger,
		}),
		Tokens:    tokens,
		WebSocket: wsHandler.HandleWebSocket,
		Logger:    log.Logger,
	})

	server := httpapi.NewServer(httpapi.ServerParams{
		Config:  cfg,
		Handler: router,
		Logger:  log.Logger,
	})

	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Failed to start HTTP server")
			cancel()
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case <-ctx.Done():
		log.Info().Msg("Context cancelled")
	}

	// Graceful shutdown
	log.Info().Msg("Starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	listingScheduler.Stop()
	log.Info().Msg("Listing scheduler stopped")

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping HTTP server")
	}

	log.Info().Msg("Graceful shutdown completed")
}

func initLogging(cfg *config.Config) {
	// Set log level
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Set log format
	if cfg.Logging.Format == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		// Console format for development
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	zerolog.DefaultContextLogger = &log.Logger
}
