// Package main our entry point.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/johndosdos/relay/internal/chat"
	"github.com/johndosdos/relay/internal/handler"
	"github.com/johndosdos/relay/internal/ratelimiter"
	"github.com/johndosdos/relay/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("failed to load .env file: %+v", err)
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.SetOutput(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:              "0.0.0.0:" + port,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	// Init store
	log.Println("Starting application...")

	var (
		st          store.Store
		redisClient *redis.Client
	)

	if os.Getenv("STORE") == "memory" {
		log.Println("Using in-memory store; state will not survive a restart")
		st = store.NewMemStore()
	} else {
		log.Println("Initializing Redis connection...")

		redisAddr := os.Getenv("REDIS_ADDR")
		if redisAddr == "" {
			redisAddr = "localhost:6379"
		}
		redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))

		redisClient = redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		})

		// Fail fast on a bad address at boot. A Redis outage while
		// running is transient and handled per operation.
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatalf("could not connect to redis at %s: %v", redisAddr, err)
		}
		cancel()
		log.Println("Connected to Redis!")

		st = store.NewRedisStore(redisClient)
	}

	// hub.Run is our central hub that fans events out to every
	// connected client.
	hub := chat.NewHub()
	go hub.Run(ctx)

	// Limit websocket upgrade attempts per IP.
	wsLimiter := ratelimiter.NewIPRateLimiter(10, time.Minute, ratelimiter.CleanupOpts{
		TTL:      10 * time.Minute,
		Interval: time.Minute,
	})
	defer wsLimiter.Cancel()

	mux := http.NewServeMux()
	mux.Handle("/ws", wsLimiter.Middleware(handler.ServeWs(hub, st)))
	mux.Handle("/", handler.ServeRoot("static"))

	server.Handler = mux

	go func() {
		log.Printf("Server starting at 0.0.0.0:%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutdown signal received; shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Println(err)
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Printf("couldn't close redis client: %+v", err)
		}
	}

	log.Println("Server stopped")
}
