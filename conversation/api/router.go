package api

import (
	"grassroot-chatbot/backend/conversation/ws"
	"grassroot-chatbot/backend/pkg/jwt"
	"grassroot-chatbot/backend/pkg/logger"
	"grassroot-chatbot/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, handler *WebhookHandler, admin *AdminHandler, console *ws.Console, jwtService *jwt.Service, log *logger.Logger) {
	r.POST("/inbound", handler.Inbound)
	r.GET("/status", handler.Status)

	adminGroup := r.Group("/admin")
	adminGroup.Use(middleware.JWTAuthMiddleware(jwtService, log))
	adminGroup.Use(middleware.RequireAnyRole(jwt.RoleOperator, jwt.RoleAdmin))
	{
		adminGroup.GET("/turns/:sender", admin.RecentTurns)
		adminGroup.GET("/console", gin.WrapH(console))
	}
}
