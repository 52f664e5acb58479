package api

import (
	"github.com/gin-gonic/gin"

	"github.com/steamsedu/steams/internal/handlers"
)

func registerNotificationRoutes(api *gin.RouterGroup, handler *handlers.NotificationHandler) {
	group := api.Group("/notifications")
	{
		group.GET("/vapid-key", handler.VAPIDKey)
		group.GET("/subscriptions", handler.ListSubscriptions)
		group.POST("/subscribe", handler.Subscribe)
		group.DELETE("/subscribe", handler.Unsubscribe)
		group.POST("/send", handler.Send)
	}
}
