package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yeoul-labs/alimguard-backend/internal/handlers"
)

type RouterConfig struct {
	TemplateHandler *handlers.TemplateHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
		},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api/v1")
	{
		api.POST("/templates/validate", cfg.TemplateHandler.Validate)
		api.POST("/templates/generate", cfg.TemplateHandler.Generate)
		api.GET("/templates/stats", cfg.TemplateHandler.Stats)
	}

	return router
}
