package server

import (
	"time"

	"ChatRelay/metrics"
	appmw "ChatRelay/middleware"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

func (s *Server) setupMiddleware() {
	e := s.Echo
	e.HideBanner = true
	e.Validator = appmw.NewRequestValidator()

	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     s.Config.Server.AllowedOrigins,
		AllowMethods:     []string{echo.GET, echo.POST, echo.PUT, echo.DELETE, echo.OPTIONS},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))
	e.Use(s.SessionStore.Middleware())
}

func (s *Server) setupRoutes() {
	e := s.Echo

	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	api := e.Group("/api/v1")

	loginLimit := appmw.NewRateLimitMiddleware(s.Limiter, appmw.RateLimitConfig{
		Limit:  10,
		Window: time.Minute,
	})
	historyLimit := appmw.NewRateLimitMiddleware(s.Limiter, appmw.RateLimitConfig{
		Limit:  60,
		Window: time.Minute,
	})

	auth := api.Group("/auth")
	auth.GET("/providers", s.authHandler.GetProviders)
	auth.POST("/register", s.authHandler.Register, loginLimit)
	auth.POST("/login", s.authHandler.Login, loginLimit)
	auth.POST("/refresh", s.authHandler.RefreshToken)
	auth.POST("/logout", s.authHandler.Logout)
	auth.GET("/:provider", s.authHandler.OAuthLogin)
	auth.GET("/:provider/callback", s.authHandler.OAuthCallback)

	api.GET("/session/views", s.sessionHandler.PageViews)

	requireAuth := appmw.AuthMiddleware(s.authService)

	api.GET("/me", s.authHandler.GetCurrentUser, requireAuth)

	rooms := api.Group("/rooms", requireAuth)
	rooms.POST("", s.roomHandler.CreateRoom)
	rooms.GET("", s.roomHandler.ListRooms)
	rooms.GET("/:id", s.roomHandler.GetRoom)
	rooms.POST("/:id/join", s.roomHandler.JoinRoom)
	rooms.DELETE("/:id", s.roomHandler.DeleteRoom)

	chat := api.Group("/chat", requireAuth)
	chat.GET("/:roomId/ws", s.chatHandler.HandleWebSocket)
	chat.GET("/:roomId/online", s.chatHandler.GetOnlineUsers)
	chat.GET("/:roomId/messages", s.chatHandler.GetMessages, historyLimit)

	admin := api.Group("/admin", requireAuth, appmw.AdminAuthMiddleware())
	admin.GET("/stats", s.adminHandler.Stats)

	customers := api.Group("/customers", requireAuth)
	customers.POST("", s.customerHandler.CreateCustomer)
	customers.GET("/search", s.customerHandler.SearchCustomers)
	customers.GET("/by-city/:city", s.customerHandler.GetCustomersByCity)
	customers.GET("/by-city/:city/count", s.customerHandler.CountCustomersByCity)
	customers.GET("/:id", s.customerHandler.GetCustomer)
}
