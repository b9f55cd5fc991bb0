package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/intervia/intervia/internal/auth"
	"github.com/intervia/intervia/internal/handlers"
	"github.com/intervia/intervia/internal/middleware"
	"github.com/intervia/intervia/internal/services"
)

// RouterConfig carries the collaborators the HTTP layer needs.
type RouterConfig struct {
	DB             *gorm.DB
	JWT            *auth.JWTService
	Auth           *services.AuthService
	PasswordResets *services.PasswordResetService
}

// NewRouter assembles the gin engine with the shared middleware chain and
// every route the API serves.
func NewRouter(cfg RouterConfig) (*gin.Engine, error) {
	authHandler, err := handlers.NewAuthHandler(cfg.DB, cfg.Auth, cfg.PasswordResets)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())
	r.NoRoute(middleware.NotFoundHandler)

	r.GET("/health", handlers.Health())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authGroup := r.Group("/api/auth")
	{
		authGroup.POST("/signup", authHandler.Signup)
		authGroup.POST("/verify-otp", authHandler.VerifyOTP)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/forgot-password", authHandler.ForgotPassword)
		authGroup.POST("/reset-password", authHandler.ResetPassword)

		authGroup.GET("/me", middleware.Auth(cfg.JWT), authHandler.Me)
	}

	return r, nil
}
