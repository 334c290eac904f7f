package http

import (
	"github.com/gin-gonic/gin"

	"github.com/iamasit07/hextron/backend/internal/transport/http/middleware"
)

// Routes bundles everything the router serves. History and WebSocket are
// optional.
type Routes struct {
	AllowedOrigins []string
	Watch          *WatchHandler
	History        *HistoryHandler
	WebSocket      gin.HandlerFunc
}

func NewRouter(r Routes) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	// probes stay outside CORS
	router.GET("/health", Health)

	api := router.Group("/api")
	api.Use(middleware.CORSMiddleware(r.AllowedOrigins))
	{
		// preflight is answered by the CORS middleware
		api.OPTIONS("/*path", func(*gin.Context) {})
		api.GET("/matches", r.Watch.GetLiveMatches)
		if r.History != nil {
			api.GET("/history/:id", r.History.GetMatchDetails)
			api.GET("/players/:id/history", r.History.GetPlayerHistory)
		}
	}

	if r.WebSocket != nil {
		router.GET("/ws", r.WebSocket)
	}
	return router
}
