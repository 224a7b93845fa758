package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pact-proof-backend/internal/config"
	"pact-proof-backend/internal/handlers"
	"pact-proof-backend/internal/middleware"
	"pact-proof-backend/internal/repository"
	"pact-proof-backend/internal/services"
	"pact-proof-backend/internal/session"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	// Connect to database
	db, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	// Record store and per-user session caches
	store := repository.NewStore(db)
	sessions := session.NewManager(store, cfg.Feed.Window)
	defer sessions.Close()

	// Collaborators: blob store, authenticity scorer, push
	blobs, err := services.NewS3Store(
		context.Background(),
		cfg.AWS.Region,
		cfg.AWS.S3Bucket,
		cfg.AWS.AccessKey,
		cfg.AWS.SecretKey,
		cfg.AWS.Endpoint,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create blob store")
	}
	scorer := services.NewVerifier(cfg.Verifier.Endpoint, cfg.Verifier.APIKey, cfg.Verifier.Timeout)

	profileService := services.NewProfileService(store.Profiles, cfg.JWT.Secret)
	checkInService := services.NewCheckInService(scorer, blobs)
	push, err := services.NewPushNotifier(
		cfg.Push.CertPath,
		cfg.Push.CertPassword,
		cfg.Push.Topic,
		cfg.Push.Production,
		store.Profiles,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create push notifier")
	}
	hub := services.NewFeedHub()

	// Initialize handlers
	profileHandler := handlers.NewProfileHandler(profileService)
	goalHandler := handlers.NewGoalHandler(sessions)
	checkInHandler := handlers.NewCheckInHandler(sessions, checkInService, store.Crews, hub, push)
	crewHandler := handlers.NewCrewHandler(sessions)
	wsHandler := handlers.NewWebSocketHandler(hub, profileService, store.Crews)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/profiles", profileHandler.CreateProfile)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(profileService))
			r.Get("/profiles/me", profileHandler.GetMe)
			r.Put("/profiles/me/push-token", profileHandler.UpdatePushToken)

			r.Get("/goals", goalHandler.ListGoals)
			r.Post("/goals", goalHandler.CreateGoal)
			r.Patch("/goals/{goal_id}", goalHandler.UpdateGoal)
			r.Delete("/goals/{goal_id}", goalHandler.DeleteGoal)

			r.Get("/feed", checkInHandler.GetFeed)
			r.Get("/check-ins", checkInHandler.ListCheckIns)
			r.Post("/check-ins", checkInHandler.CreateCheckIn)
			r.Post("/check-ins/{check_in_id}/kudos", checkInHandler.ToggleKudos)

			r.Get("/crews", crewHandler.ListCrews)
			r.Post("/crews", crewHandler.CreateCrew)
			r.Post("/crews/join", crewHandler.JoinCrew)
			r.Delete("/crews/{crew_id}/members/me", crewHandler.LeaveCrew)
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
