package http

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS allows the configured origins, a comma separated list. Empty
// means any origin.
func CORS(allowOrigins string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders:  []string{"Origin", "Content-Type", "authorization", "multipart/form-data", "x-requested-with"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if allowOrigins == "" || allowOrigins == "*" {
		config.AllowAllOrigins = true
	} else {
		for _, origin := range strings.Split(allowOrigins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				config.AllowOrigins = append(config.AllowOrigins, origin)
			}
		}
		config.AllowCredentials = true
	}
	return cors.New(config)
}
