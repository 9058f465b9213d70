package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"unimarket/internal/chat"
	"unimarket/internal/config"
	"unimarket/internal/db"
	"unimarket/internal/middleware"
	"unimarket/internal/product"
	"unimarket/internal/user"
)

func main() {
	// 1. Config
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("invalid configuration")
	}

	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	// 2. Database
	database, err := db.NewDatabase(cfg.DBDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	logger.Info().Msg("connected to PostgreSQL")

	if err := database.AutoMigrate(); err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}

	// 3. Broadcast broker: Redis pub/sub when configured, loopback otherwise.
	var broker chat.Broker = chat.NewLoopbackBroker()
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		logger.Info().Msg("connected to Redis")
		broker = chat.NewRedisBroker(redisClient, logger)
	}

	// 4. Users & auth
	var mailer user.Mailer
	if cfg.SMTPHost != "" {
		mailer = &user.SMTPMailer{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.MailFrom,
		}
	} else {
		mailer = &user.LogMailer{Log: logger}
	}

	userRepo := user.NewRepository(database.Conn)
	userService := user.NewService(userRepo, mailer, cfg.JWTSecret, cfg.EmailDomain)
	userHandler := user.NewHandler(userService, cfg.IsDevelopment())

	// 5. Products
	productRepo := product.NewRepository(database.Conn)
	productHandler := product.NewHandler(productRepo)

	// 6. Chat: repo -> store -> hub -> handler
	chatRepo := chat.NewRepository(database.Conn)
	messageStore := chat.NewMessageStore(chatRepo)
	hub := chat.NewHub(broker, logger)
	go hub.Run()
	chatHandler := chat.NewHandler(chatRepo, messageStore, hub, logger)

	authMiddleware := middleware.NewAuthMiddleware(userService)
	authLimiter := middleware.NewLimiterStore(10, 5, 5*time.Minute)
	defer authLimiter.Stop()

	// 7. Routes
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	r.Handle("/metrics", promhttp.Handler())

	// Public routes
	r.Group(func(r chi.Router) {
		r.Use(authLimiter.Handle)
		r.Post("/api/auth/verify-email", userHandler.VerifyEmail)
		r.Post("/api/auth/verify-code", userHandler.VerifyCode)
	})
	r.Get("/api/products", productHandler.List)
	r.Get("/api/products/{id}", productHandler.Get)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handle)

		r.Post("/api/products", productHandler.Create)

		r.Post("/api/chats", chatHandler.StartChat)
		r.Get("/api/chats", chatHandler.ListChats)
		r.Get("/api/chats/{id}", chatHandler.GetChat)
		r.Get("/api/chats/{id}/messages", chatHandler.GetMessages)
		r.Post("/api/chats/{id}/messages", chatHandler.SendMessage)

		// WebSocket (real-time)
		r.Get("/ws", chatHandler.ServeWS)
	})

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("env", cfg.Env).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
