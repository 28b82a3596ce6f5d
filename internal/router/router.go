package router

import (
	"github.com/gin-gonic/gin"

	"github.com/zaxchat/zax-backend/internal/handler"
	"github.com/zaxchat/zax-backend/internal/middleware"
	"github.com/zaxchat/zax-backend/internal/service/auth"
)

// SetupRouter builds the route table: the public widget surface under
// /api and the token-protected staff console under /api/admin.
func SetupRouter(h *handler.Handlers, authSvc *auth.Service) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RecoveryMiddleware())
	r.Use(middleware.LoggingMiddleware())
	r.Use(middleware.CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		// Widget
		api.POST("/chat", h.Chat.Chat)
		api.POST("/send-user-message", h.Chat.Chat)
		api.POST("/request-assistance", h.Chat.RequestAssistance)
		api.GET("/session-status/:session_id", h.Chat.SessionStatus)
		api.GET("/chat-history/:session_id", h.Chat.ChatHistory)
		api.POST("/upload", h.Chat.Upload)
		api.GET("/files/:id", h.Chat.GetFile)

		// FAQ quick questions
		api.GET("/faqs/popular", h.FAQ.Popular)
		api.POST("/faqs/:id/hit", h.FAQ.Hit)

		// Staff console
		admin := api.Group("/admin")
		admin.POST("/login", h.Admin.Login)

		protected := admin.Group("")
		protected.Use(middleware.RequireStaff(authSvc))
		{
			protected.GET("/active-sessions", h.Admin.ActiveSessions)
			protected.POST("/connect", h.Admin.Connect)
			protected.GET("/chat-history/:session_id", h.Admin.ChatHistory)
			protected.POST("/send-message", h.Admin.SendMessage)
			protected.POST("/end-session", h.Admin.EndSession)
		}
	}

	return r
}
