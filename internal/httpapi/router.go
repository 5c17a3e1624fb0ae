// Package httpapi exposes the swarm, the render callback and the chat relay
// over HTTP.
package httpapi

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RouterConfig carries the handlers to mount. A nil handler leaves its route
// unregistered.
type RouterConfig struct {
	Swarm          *SwarmHandler
	RenderCallback *RenderCallbackHandler
	Chat           *ChatHandler
}

// CORS answers preflight requests from any origin.
func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"authorization", "x-client-info", "apikey", "content-type"},
	})
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), CORS())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Swarm != nil {
		router.POST("/swarm", cfg.Swarm.Handle)
	}
	if cfg.RenderCallback != nil {
		router.POST("/render-callback", cfg.RenderCallback.Handle)
	}
	if cfg.Chat != nil {
		router.POST("/chat", cfg.Chat.Handle)
	}
	return router
}

// Single serves h on every path, the way a function URL is invoked.
func Single(h gin.HandlerFunc) http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), CORS())
	router.Any("/*path", h)
	return router
}
