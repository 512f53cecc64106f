package api

import (
	"Parley/internal/api/dto"
	"Parley/internal/api/middleware"
	"Parley/internal/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRouter(group *HandlersGroup, allowedOrigins []string) *gin.Engine {
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"localhost"})

	// TraceId & Logger & CORS
	r.Use(middleware.TraceMiddleware())
	r.Use(middleware.AuditMiddleware())
	r.Use(middleware.CORSMiddleware(allowedOrigins))
	logger.SetupGin(r)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, dto.Response{Code: http.StatusOK, Message: "pong"})
		})

		apiGroup.POST("/webhooks/identity", group.WebhookHandler.Identity)

		userGroup := apiGroup.Group("/user")
		userGroup.Use(middleware.AuthMiddleware())
		{
			userGroup.POST("/sync", group.UserHandler.Sync)
			userGroup.GET("/me", group.UserHandler.GetMe)
			userGroup.GET("/list", group.UserHandler.ListUsers)
			userGroup.GET("/search", group.UserHandler.SearchUsers)
			userGroup.POST("/presence", group.UserHandler.SetPresence)
		}

		imGroup := apiGroup.Group("/im")
		{
			// 浏览器 WebSocket 无法携带请求头，token 走 query
			imGroup.GET("/ws", group.WSHandler.Connect)

			authGroup := imGroup.Group("")
			authGroup.Use(middleware.AuthMiddleware())
			{
				authGroup.POST("/conversations", group.IMHandler.CreateConversation)
				authGroup.POST("/groups", group.IMHandler.CreateGroup)
				authGroup.GET("/conversations", group.IMHandler.GetConversationList)
				authGroup.GET("/conversations/:id", group.IMHandler.GetConversation)
				authGroup.GET("/conversations/:id/messages", group.IMHandler.GetMessages)
				authGroup.GET("/conversations/:id/unread", group.IMHandler.GetUnreadCount)
				authGroup.POST("/conversations/:id/read", group.IMHandler.MarkAsRead)
				authGroup.POST("/conversations/:id/typing", group.IMHandler.SetTyping)
				authGroup.GET("/conversations/:id/typing", group.IMHandler.GetTyping)
				authGroup.POST("/messages", group.IMHandler.SendMessage)
				authGroup.DELETE("/messages/:id", group.IMHandler.DeleteMessage)
			}
		}

		mediaGroup := apiGroup.Group("/media")
		{
			mediaGroup.Use(middleware.AuthMiddleware())
			mediaGroup.POST("/upload", group.MediaHandler.Upload)
		}
	}

	return r
}
