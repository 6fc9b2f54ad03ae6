package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"knowledgecheckr/internal/attempt"
	"knowledgecheckr/internal/auth"
	"knowledgecheckr/internal/check"
	"knowledgecheckr/internal/models"
	"knowledgecheckr/internal/system"
	"knowledgecheckr/pkg/cache"
	"knowledgecheckr/pkg/database"
	"knowledgecheckr/pkg/realtime"
)

const version = "1.0.0"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found")
	}

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()
	logger := zapLogger.Sugar()

	dbConfig := &database.Config{
		Host:     os.Getenv("DB_HOST"),
		Port:     os.Getenv("DB_PORT"),
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		DBName:   os.Getenv("DB_NAME"),
	}

	db, err := database.Get(dbConfig)
	if err != nil {
		logger.Fatalw("failed to connect to database", "error", err)
	}
	defer database.Close()

	err = db.AutoMigrate(
		&models.User{},
		&models.KnowledgeCheck{},
		&models.Category{},
		&models.Question{},
		&models.Answer{},
		&models.Settings{},
		&models.Collaborator{},
		&models.AttemptResult{},
	)
	if err != nil {
		logger.Fatalw("failed to migrate database", "error", err)
	}

	redisCache := cache.NewRedisCache(os.Getenv("REDIS_ADDR"))

	jwtSecret := os.Getenv("JWT_SECRET")

	authRepo := auth.NewRepository(db, logger)
	authService := auth.NewService(authRepo, jwtSecret)
	authHandler := auth.NewHandler(authService)

	checkRepo := check.NewRepository(db, logger)
	checkService := check.NewService(checkRepo, redisCache, logger)
	checkHandler := check.NewHandler(checkService)

	feedHub := realtime.NewHub(func(shareKey, userID string) bool {
		c, err := checkService.GetCheckByShareKey(shareKey)
		if err != nil {
			return false
		}
		return check.HasCollaborativePermissions(c, userID)
	}, logger)
	go feedHub.Run()

	attemptStore := attempt.NewStore()
	attemptRepo := attempt.NewRepository(db, logger)
	attemptService := attempt.NewService(attemptRepo, checkService, attemptStore, feedHub, logger)
	attemptHandler := attempt.NewHandler(attemptService)

	systemHandler := system.NewHandler(version, logger)

	router := mux.NewRouter()

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	handler := corsMiddleware.Handler(router)

	// Public routes.
	router.HandleFunc("/api/auth/register", authHandler.Register).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/auth/login", authHandler.Login).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/version", systemHandler.Version).Methods("GET")
	router.HandleFunc("/api/logs", systemHandler.ForwardLogs).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/checks/discover", checkHandler.Discover).Methods("GET", "OPTIONS")

	// Attempt routes carry an identity when one is presented but stay open
	// for checks that allow anonymous access.
	attemptRouter := router.PathPrefix("/api").Subrouter()
	attemptRouter.Use(auth.OptionalAuthentication(jwtSecret))
	attemptRouter.HandleFunc("/checks/shared/{shareKey}", checkHandler.GetShared).Methods("GET", "OPTIONS")
	attemptRouter.HandleFunc("/checks/shared/{shareKey}/practice/categories", attemptHandler.PracticeCategories).Methods("GET", "OPTIONS")
	attemptRouter.HandleFunc("/attempts/{shareKey}/start", attemptHandler.Start).Methods("POST", "OPTIONS")
	attemptRouter.HandleFunc("/attempts/{shareKey}/results", attemptHandler.Results).Methods("GET", "OPTIONS")
	attemptRouter.HandleFunc("/attempts/sessions/{sessionID}/answer", attemptHandler.Answer).Methods("POST", "OPTIONS")
	attemptRouter.HandleFunc("/attempts/sessions/{sessionID}/next", attemptHandler.Next).Methods("POST", "OPTIONS")
	attemptRouter.HandleFunc("/attempts/sessions/{sessionID}/previous", attemptHandler.Previous).Methods("POST", "OPTIONS")
	attemptRouter.HandleFunc("/attempts/sessions/{sessionID}/finish", attemptHandler.Finish).Methods("POST", "OPTIONS")

	// Authoring routes require a session.
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(auth.RequireAuthentication(jwtSecret))
	apiRouter.HandleFunc("/insert/knowledgeCheck", checkHandler.InsertKnowledgeCheck).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/checks/my-checks", checkHandler.MyChecks).Methods("GET", "OPTIONS")
	apiRouter.HandleFunc("/checks/{checkID}", checkHandler.GetForEditing).Methods("GET", "OPTIONS")
	apiRouter.HandleFunc("/checks/{checkID}", checkHandler.DeleteCheck).Methods("DELETE", "OPTIONS")
	apiRouter.HandleFunc("/checks/{checkID}/categories", checkHandler.AddCategory).Methods("POST", "OPTIONS")

	// Live attempt feed for owners and collaborators.
	wsRouter := router.PathPrefix("/ws").Subrouter()
	wsRouter.Use(auth.RequireAuthentication(jwtSecret))
	wsRouter.HandleFunc("/checks/{shareKey}", feedHub.HandleWebSocket)

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Infow("server starting", "addr", srv.Addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalw("failed to start server", "error", err)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorw("server forced to shutdown", "error", err)
	}

	logger.Infow("server shutdown gracefully")
}
