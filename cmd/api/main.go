package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"draftdesk/api/internal/app"
	"draftdesk/api/internal/authpw"
	"draftdesk/api/internal/blob"
	"draftdesk/api/internal/config"
	"draftdesk/api/internal/gitrepo"
	"draftdesk/api/internal/ratelimit"
	"draftdesk/api/internal/search"
	"draftdesk/api/internal/session"
	"draftdesk/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	if err := os.MkdirAll(cfg.ReposDir, 0o755); err != nil {
		log.Fatalf("failed to create repos dir: %v", err)
	}

	dataStore := store.NewPostgresStore(db)
	gitService := gitrepo.New(cfg.ReposDir)

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts)

	// One Redis connection serves refresh sessions and the admission
	// counters. Without Redis both fall back to process-local storage.
	var refreshSessions app.RefreshStore = dataStore
	var limitStore ratelimit.Store = ratelimit.NewMemoryStore()
	if strings.TrimSpace(cfg.RedisURL) != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("invalid redis url: %v", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer client.Close()
		log.Printf("Using Redis for refresh tokens and rate limit counters")
		refreshSessions = session.NewRedisStoreWithClient(client)
		limitStore = ratelimit.NewRedisStore(client)
	} else {
		log.Printf("Using PostgreSQL refresh tokens and in-memory rate limit counters")
	}

	service := app.New(cfg, dataStore, refreshSessions, gitService).
		WithSearch(searchService).
		WithAuthPassword(authpw.NewService(dataStore))

	if strings.TrimSpace(cfg.S3Endpoint) != "" {
		blobStore, err := blob.New(ctx, cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3UseSSL)
		if err != nil {
			log.Printf("WARNING: blob store unavailable, exports will not be archived: %v", err)
		} else {
			service = service.WithArtifactStore(blobStore)
		}
	}

	if meiliClient != nil {
		go searchService.ReindexAllFromPG(ctx)
	}

	limiter := ratelimit.NewController(limitStore, ratelimit.DefaultClasses())

	httpServer := app.NewHTTPServer(service, limiter, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("DraftDesk API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
