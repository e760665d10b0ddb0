package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/billrelay/backend/docs"
	"github.com/billrelay/backend/internal/config"
	"github.com/billrelay/backend/internal/crypto"
	"github.com/billrelay/backend/internal/database"
	"github.com/billrelay/backend/internal/handlers"
	mW "github.com/billrelay/backend/internal/middleware"
	"github.com/billrelay/backend/internal/qbo"
	"github.com/billrelay/backend/internal/queue"
	"github.com/billrelay/backend/internal/records"
	"github.com/billrelay/backend/internal/store"
	syncengine "github.com/billrelay/backend/internal/sync"
	"github.com/billrelay/backend/internal/token"
	"github.com/billrelay/backend/internal/worker"
)

// @title Bill Relay API
// @version 1.0
// @description Relays billing records to QuickBooks Online
// @host localhost:8080
// @BasePath /
// @schemes http https

func main() {
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	docs.SwaggerInfo.Title = "Bill Relay API"
	docs.SwaggerInfo.Version = cfg.AppVersion

	db := database.InitDatabase()
	defer db.Close()

	if _, err := db.Exec(store.Schema); err != nil {
		log.Fatalf("Failed to ensure connection schema: %v", err)
	}

	redisClient := database.InitRedis()
	defer redisClient.Close()

	cipher, err := crypto.NewTokenCipher(cfg.Token.CipherSecret, cfg.Token.CipherSalt)
	if err != nil {
		log.Fatalf("Failed to initialize token cipher: %v", err)
	}

	connStore := store.NewConnectionStore(db, cipher)
	authClient := qbo.NewAuthClient(cfg.QuickBooks.ClientID, cfg.QuickBooks.ClientSecret, cfg.QuickBooks.RedirectURI)
	tokenManager := token.NewManager(connStore, authClient, redisClient, token.Options{
		SafetyWindow: cfg.Token.SafetyWindow,
		LockTTL:      cfg.Token.LockTTL,
		LockWait:     cfg.Token.LockWait,
		LockPoll:     cfg.Token.LockPoll,
	})

	qboClient := qbo.NewHTTPClient(cfg.QuickBooks.Environment, cfg.QuickBooks.MinorVersion, tokenManager)
	recordsClient := records.NewClient(cfg.Records.APIBase, cfg.Records.Token, cfg.Records.BaseID, cfg.Records.Table)
	engine := syncengine.NewEngine(recordsClient, connStore, qboClient)

	jobQueue := queue.New(redisClient)
	pool := worker.NewPool(jobQueue, engine, worker.Options{
		Concurrency: cfg.Worker.Concurrency,
		MaxAttempts: cfg.Worker.MaxAttempts,
		RetryDelay:  cfg.Worker.RetryDelay,
	})

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	workersDone := make(chan struct{})
	go func() {
		defer close(workersDone)
		log.Printf("[WORKER] Starting pool with %d slots", cfg.Worker.Concurrency)
		pool.Run(workerCtx)
	}()

	webhookHandler := handlers.NewWebhookHandler(jobQueue)
	qboHandler := handlers.NewQBOHandler(tokenManager, cfg.QuickBooks.Environment)

	r := chi.NewRouter()
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"app":     cfg.AppName,
			"version": cfg.AppVersion,
			"status":  "running",
		})
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:"+cfg.Port+"/swagger/doc.json"),
	))

	r.Route("/qbo", func(r chi.Router) {
		r.Get("/connect", qboHandler.Connect)
		r.Get("/callback", qboHandler.Callback)
	})

	r.Route("/bills", func(r chi.Router) {
		r.Use(mW.AuthMiddleware)
		r.Post("/webhook", webhookHandler.Receive)
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	stopWorkers()
	select {
	case <-workersDone:
	case <-time.After(10 * time.Second):
		log.Println("Worker pool did not drain in time")
	}

	log.Println("Server stopped")
}
