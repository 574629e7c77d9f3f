package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/anoncity/chat-app/internal/config"
	"github.com/anoncity/chat-app/internal/geo"
	"github.com/anoncity/chat-app/internal/matching"
	"github.com/anoncity/chat-app/internal/messaging"
	"github.com/anoncity/chat-app/internal/metrics"
	"github.com/anoncity/chat-app/internal/ratelimit"
	"github.com/anoncity/chat-app/internal/relay"
	"github.com/anoncity/chat-app/internal/session"
	"github.com/anoncity/chat-app/internal/store"
	"github.com/anoncity/chat-app/internal/ws"
)

func main() {
	cfg := config.Load()

	wsConfig := ws.ServerConfig{
		ListenAddr:     cfg.ListenAddr,
		WorkerPoolSize: cfg.WorkerPoolSize,
		MaxConnections: cfg.MaxConnections,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
	}

	// --- Postgres ---
	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	if err := db.Migrate(); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	// --- Redis (optional, geo cache only) ---
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Printf("redis unavailable, geo cache disabled: %v", err)
			redisClient = nil
		}
	}

	// --- NATS (optional, moderation events) ---
	var publisher relay.Publisher
	var natsClient *messaging.Client
	if cfg.NATSURL != "" {
		natsConfig := messaging.DefaultConfig()
		natsConfig.URL = cfg.NATSURL
		natsConfig.Name = "citychat-wsserver"
		natsClient, err = messaging.NewClient(natsConfig)
		if err != nil {
			log.Fatalf("failed to connect to NATS: %v", err)
		}
		publisher = natsClient
	}

	log.Printf("CityChat WebSocket server starting")
	log.Printf("  listen_addr:     %s", cfg.ListenAddr)
	log.Printf("  worker_pool:     %d", cfg.WorkerPoolSize)
	log.Printf("  max_connections: %d", cfg.MaxConnections)
	log.Printf("  read_timeout:    %s", cfg.ReadTimeout)
	log.Printf("  write_timeout:   %s", cfg.WriteTimeout)
	log.Printf("  redis_addr:      %s", cfg.RedisAddr)
	log.Printf("  nats_url:        %s", cfg.NATSURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	limiter := ratelimit.NewLimiter()
	limiter.StartSweep(ctx, cfg.RateLimitSweepInterval)

	registry := session.NewRegistry()
	matcher := matching.New(db)
	resolver := geo.NewResolver(redisClient, cfg.NominatimUserAgent)

	// Declare server early so the gateway's sender can capture it.
	var server *ws.Server

	gateway := relay.NewGateway(db, matcher, registry, limiter, publisher,
		func(connID string, data []byte) error {
			return server.SendMessage(connID, data)
		})

	dispatcher := ws.NewMessageDispatcher(nil)
	gateway.Bind(dispatcher)

	server = ws.NewServer(wsConfig, dispatcher.Dispatch)
	dispatcher.SetServer(server)

	server.Handle("/api/city", resolver.Handler())
	server.Handle("/metrics", metrics.Handler())
	server.SetOnDisconnect(gateway.HandleDisconnect)

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, initiating graceful shutdown...", sig)
		cancel()
		if natsClient != nil {
			natsClient.Close()
		}
		if err := server.Shutdown(); err != nil {
			log.Printf("shutdown error: %v", err)
		}
		if redisClient != nil {
			_ = redisClient.Close()
		}
		if err := db.Close(); err != nil {
			log.Printf("store close error: %v", err)
		}
		os.Exit(0)
	}()

	if err := server.Start(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
