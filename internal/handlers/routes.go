package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"paperpayout-client/internal/middleware"
	"paperpayout-client/internal/services"
)

func SetupRouter(ctx context.Context, app *services.App, jwtService *services.JWTService, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(log))

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	viewHandler := NewViewHandler(app, log)
	wsHandler := NewWebSocketHandler(ctx, app, log)

	router.GET("/healthz", Healthz)

	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware(jwtService))
	{
		api.GET("/view", viewHandler.GetView)
		api.GET("/ws", wsHandler.HandleWebSocket)

		auth := api.Group("/auth")
		{
			auth.POST("/login", viewHandler.Login)
			auth.POST("/signup", viewHandler.Signup)
			auth.POST("/logout", viewHandler.Logout)
			auth.POST("/prompt", viewHandler.OpenAuth)
			auth.POST("/dismiss", viewHandler.DismissAuth)
		}

		wallet := api.Group("/wallet")
		{
			wallet.POST("/refresh", viewHandler.RefreshWallet)
			wallet.POST("/withdraw", viewHandler.Withdraw)
			wallet.POST("/deposit", viewHandler.Deposit)
		}

		lobby := api.Group("/lobby")
		{
			lobby.POST("/wager", viewHandler.SelectWager)
			lobby.POST("/join", viewHandler.JoinGame)
		}

		api.POST("/leaderboard/period", viewHandler.SetPeriod)
		api.POST("/stats/refresh", viewHandler.RefreshStats)
		api.POST("/friends/refresh", viewHandler.RefreshFriends)
	}

	return router
}
