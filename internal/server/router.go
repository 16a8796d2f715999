package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/soapify/soapify-backend/internal/handlers"
	"github.com/soapify/soapify-backend/internal/middleware"
)

type RouterConfig struct {
	AuthHandler    *handlers.AuthHandler
	AuthMiddleware *middleware.AuthMiddleware
	UserHandler    *handlers.UserHandler
	NoteHandler    *handlers.NoteHandler
	HealthHandler  *handlers.HealthHandler
	AllowOrigins   []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	allowOrigins := cfg.AllowOrigins
	if len(allowOrigins) == 0 {
		allowOrigins = []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5173",
		}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", cfg.HealthHandler.Check)
	api := router.Group("/api/v1")
	{
		api.POST("/auth/register", cfg.AuthHandler.Register)
		api.POST("/auth/login", cfg.AuthHandler.Login)
	}

	// ===============
	// || Protected ||
	// ===============
	protected := router.Group("/api/v1")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	// Auth
	protected.POST("/auth/refresh", cfg.AuthHandler.Refresh)
	protected.POST("/auth/logout", cfg.AuthHandler.Logout)
	// User
	protected.GET("/users/me", cfg.UserHandler.GetMe)
	// Notes
	protected.POST("/notes/generate", cfg.NoteHandler.Generate)
	protected.GET("/notes/:id/status", cfg.NoteHandler.Status)
	protected.PUT("/notes/:id", cfg.NoteHandler.Update)
	protected.GET("/notes/dashboard", cfg.NoteHandler.Dashboard)
	protected.GET("/patients/:id/history", cfg.NoteHandler.PatientHistory)

	return router
}
