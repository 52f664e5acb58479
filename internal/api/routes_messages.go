package api

import (
	"github.com/gin-gonic/gin"

	"github.com/steamsedu/steams/internal/handlers"
)

func registerMessageRoutes(api *gin.RouterGroup, handler *handlers.MessageHandler) {
	group := api.Group("/messages")
	{
		group.GET("", handler.List)
		group.POST("", handler.Send)
		group.POST("/:id/read", handler.MarkRead)
	}
}
