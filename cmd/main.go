package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/soapify/soapify-backend/internal/db"
	"github.com/soapify/soapify-backend/internal/handlers"
	"github.com/soapify/soapify-backend/internal/logger"
	"github.com/soapify/soapify-backend/internal/middleware"
	"github.com/soapify/soapify-backend/internal/qdrant"
	"github.com/soapify/soapify-backend/internal/repos"
	"github.com/soapify/soapify-backend/internal/server"
	"github.com/soapify/soapify-backend/internal/services"
	"github.com/soapify/soapify-backend/internal/utils"
)

func main() {
	_ = godotenv.Load()

	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
	refreshTokenTTL := utils.GetEnvAsInt("REFRESH_TOKEN_TTL", 86400, log)
	workerConcurrency := utils.GetEnvAsInt("WORKER_CONCURRENCY", 4, log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	userTokenRepo := repos.NewUserTokenRepo(thePG, log)
	patientRepo := repos.NewPatientRepo(thePG, log)
	transcriptRepo := repos.NewTranscriptRepo(thePG, log)
	noteRepo := repos.NewSOAPNoteRepo(thePG, log)

	// Services
	log.Info("Setting up Services from main...")
	llmClient, err := services.NewLLMClientFromEnv(log)
	if err != nil {
		log.Error("Could not init LLM client", "error", err)
		os.Exit(1)
	}
	log.Info("LLM backend selected", "provider", llmClient.Provider())

	// History store is best-effort: when the vector store or the embedder
	// cannot be configured the service starts without retrieval.
	var vectorStore qdrant.VectorStore
	var embedder services.Embedder
	qdrantCfg, err := qdrant.ResolveConfigFromEnv()
	if err != nil {
		log.Warn("Qdrant config invalid, history store disabled", "error", err)
	} else {
		vectorStore, err = qdrant.NewVectorStore(log, qdrantCfg)
		if err != nil {
			log.Warn("Qdrant init failed, history store disabled", "error", err)
			vectorStore = nil
		}
	}
	if vectorStore != nil {
		embedder, err = services.NewEmbedderFromEnv(log)
		if err != nil {
			log.Warn("Embedder init failed, history store disabled", "error", err)
			embedder = nil
		}
	}
	historyStore := services.NewHistoryStore(log, vectorStore, embedder)

	authService := services.NewAuthService(thePG, log, userRepo, userTokenRepo, jwtSecretKey, time.Duration(accessTokenTTL)*time.Second, time.Duration(refreshTokenTTL)*time.Second)
	userService := services.NewUserService(thePG, log, userRepo)
	generationService := services.NewSOAPGenerationService(thePG, log, patientRepo, transcriptRepo, noteRepo, llmClient, historyStore)
	generationService.StartWorker(context.Background(), workerConcurrency)
	noteService := services.NewNoteService(thePG, log, noteRepo, patientRepo)

	// Handlers
	log.Info("Setting up handlers from main...")
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	noteHandler := handlers.NewNoteHandler(generationService, noteService)
	healthHandler := handlers.NewHealthHandler(thePG, llmClient.Provider())

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	log.Info("Setting up router from main...")
	var allowOrigins []string
	if raw := utils.GetEnv("CORS_ALLOW_ORIGINS", "", log); raw != "" {
		for _, origin := range strings.Split(raw, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				allowOrigins = append(allowOrigins, origin)
			}
		}
	}
	router := server.NewRouter(server.RouterConfig{
		AuthHandler:    authHandler,
		AuthMiddleware: authMiddleware,
		UserHandler:    userHandler,
		NoteHandler:    noteHandler,
		HealthHandler:  healthHandler,
		AllowOrigins:   allowOrigins,
	})

	port := utils.GetEnv("PORT", "8080", log)
	log.Info("Server listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Server failed", "error", err)
	}
}
