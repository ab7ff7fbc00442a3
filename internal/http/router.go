// Package http exposes the computed diagnostics over a small JSON API.
package http

import (
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/rmshkv/mom6-tools/internal/usecase"
)

// SetupRouter creates and configures the Gin router.
func SetupRouter(diag *usecase.Diagnostics) *gin.Engine {
	router := gin.Default()

	// Setup CORS middleware. Default to allow all origins if not specified.
	corsConfig := cors.DefaultConfig()
	allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
	if allowedOrigins != "" {
		corsConfig.AllowOrigins = strings.Split(allowedOrigins, ",")
	} else {
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	handler := NewHandler(diag)

	v1 := router.Group("/v1")
	v1.GET("/stats", handler.GetStats)
	v1.GET("/basins", handler.GetBasins)
	v1.GET("/sections", handler.GetSections)

	router.GET("/health", handler.HealthCheck)

	return router
}
