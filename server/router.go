package server

import (
	"net/http"
	"slices"
	"time"

	httpHandler "crm-social/interfaces/http"
	"crm-social/interfaces/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers groups everything the router mounts. OAuth handlers are optional.
type Handlers struct {
	Publish       httpHandler.IPublishHandler
	Messaging     httpHandler.IMessagingHandler
	Connection    httpHandler.IConnectionHandler
	FacebookOAuth httpHandler.IFacebookOAuthHandler
	YouTubeAuth   httpHandler.IYouTubeAuthHandler
	// ShareStream serves the SSE publish status stream.
	ShareStream gin.HandlerFunc
}

var defaultOrigins = []string{"http://localhost:4200", "https://localhost:4200"}

func InitiateRouter(h Handlers, secretKey string, allowOrigins []string) *gin.Engine {
	if len(allowOrigins) == 0 {
		allowOrigins = defaultOrigins
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		AllowOriginFunc: func(origin string) bool {
			return slices.Contains(allowOrigins, origin)
		},
		MaxAge: 12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("api")
	api.Use(middleware.Auth(secretKey))

	// OAuth: the auth URL binds state to the signed-in user, the callback is hit by the platform.
	if h.FacebookOAuth != nil {
		api.GET("/auth/facebook", h.FacebookOAuth.GetAuthURL)
		router.GET("/auth/facebook/callback", h.FacebookOAuth.Callback)
	}
	if h.YouTubeAuth != nil {
		api.GET("/auth/youtube", h.YouTubeAuth.GetAuthURL)
		router.GET("/auth/youtube/callback", h.YouTubeAuth.HandleCallback)
	}

	if h.Connection != nil {
		api.GET("/connections", h.Connection.Status)
		api.DELETE("/connections/:platform", h.Connection.Disconnect)
	}

	if h.Publish != nil {
		api.GET("/platforms", h.Publish.GetPlatforms)
		api.POST("/posts/:postRef/publish", h.Publish.Publish)
		api.GET("/posts/:postRef/status", h.Publish.GetStatus)

		platform := api.Group("/platforms/:platform")
		{
			platform.PATCH("/posts/:postId", h.Publish.Update)
			platform.DELETE("/posts/:postId", h.Publish.Delete)
			platform.GET("/posts/:postId/metrics", h.Publish.GetMetrics)
			platform.POST("/metrics/sync", h.Publish.SyncMetrics)
		}
	}

	if h.Messaging != nil {
		customers := api.Group("/platforms/:platform/customers/:customerId")
		{
			customers.GET("", h.Messaging.GetCustomerInfo)
			customers.POST("/messages", h.Messaging.SendMessage)
			customers.POST("/read", h.Messaging.MarkAsRead)
		}
	}

	if h.ShareStream != nil {
		api.GET("/stream", h.ShareStream)
	}

	return router
}
