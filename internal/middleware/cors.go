package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/temcen/platerank/internal/config"
)

func CORS(cfg *config.CORSConfig) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowOrigins:  cfg.AllowedOrigins,
		AllowMethods:  cfg.AllowedMethods,
		AllowHeaders:  cfg.AllowedHeaders,
		ExposeHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
	}

	// Credentials cannot be combined with a wildcard origin.
	for _, origin := range cfg.AllowedOrigins {
		if origin == "*" {
			return cors.New(corsConfig)
		}
	}
	corsConfig.AllowCredentials = true
	return cors.New(corsConfig)
}
