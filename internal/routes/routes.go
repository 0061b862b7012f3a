package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/nexus-org/nexus-backend/internal/handler"
	"github.com/nexus-org/nexus-backend/internal/middleware"
	"github.com/nexus-org/nexus-backend/pkg/jwt"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// Setup configures all API routes
func Setup(
	router *gin.Engine,
	conversationHandler *handler.ConversationHandler,
	messageHandler *handler.MessageHandler,
	wsHandler *handler.WSHandler,
	jwtManager *jwt.Manager,
	redisClient *redis.Client,
) {
	// Health and metrics sit outside auth
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1",
		middleware.JWTAuth(jwtManager),
		middleware.RateLimitPerUser(redisClient, 120),
	)

	// Conversations
	conversations := api.Group("/conversations")
	{
		conversations.GET("", conversationHandler.List)
		conversations.POST("", conversationHandler.Create)
		conversations.GET("/:id", conversationHandler.Get)
		conversations.PATCH("/:id", conversationHandler.Update)
		conversations.DELETE("/:id", conversationHandler.Leave)
		conversations.PATCH("/:id/read", conversationHandler.MarkRead)
		conversations.PATCH("/:id/mute", conversationHandler.Mute)
		conversations.PATCH("/:id/participants/:userID", conversationHandler.UpdateParticipantRole)

		// Messages within a conversation
		messages := conversations.Group("/:id/messages")
		{
			messages.GET("", messageHandler.List)
			messages.POST("", messageHandler.Send)
			messages.PATCH("/:messageID", messageHandler.Edit)
			messages.DELETE("/:messageID", messageHandler.Delete)
			messages.POST("/:messageID/reactions", messageHandler.React)
		}
	}

	// Aggregate unread badge for the client poll
	api.GET("/messages/unread-count", conversationHandler.UnreadCount)

	// Live event stream
	api.GET("/ws", wsHandler.Connect)
}
