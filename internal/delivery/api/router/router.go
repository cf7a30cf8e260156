// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"authsvc/config"
	"authsvc/internal/delivery/api/middleware"
	"authsvc/internal/delivery/api/router/handler"
	"authsvc/internal/domain/entity"
	"authsvc/internal/infra/metrics"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	AuthHandler         *handler.AuthHandler
	VerificationHandler *handler.VerificationHandler
	ProfileHandler      *handler.ProfileHandler
	TestHandler         *handler.TestHandler
	AuthMiddleware      *middleware.AuthMiddleware
	Metrics             *metrics.Metrics
	Config              *config.Config
}

// router holds all the handlers that need to be registered.
type router struct {
	authHandler         *handler.AuthHandler
	verificationHandler *handler.VerificationHandler
	profileHandler      *handler.ProfileHandler
	testHandler         *handler.TestHandler
	authMiddleware      *middleware.AuthMiddleware
	metrics             *metrics.Metrics
	config              *config.Config
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		authHandler:         params.AuthHandler,
		verificationHandler: params.VerificationHandler,
		profileHandler:      params.ProfileHandler,
		testHandler:         params.TestHandler,
		authMiddleware:      params.AuthMiddleware,
		metrics:             params.Metrics,
		config:              params.Config,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", handler.HealthCheck)

	if r.config.Metrics.Enabled && r.metrics != nil {
		e.GET(r.config.Metrics.Path, echo.WrapHandler(r.metrics.Handler()))
	}

	authGroup := e.Group(r.config.HTTP.BasePath)
	{
		authGroup.POST("/login", r.authHandler.Login)
		authGroup.POST("/register", r.authHandler.Register)
		authGroup.POST("/refresh-token", r.authHandler.RefreshToken)
		authGroup.POST("/logout", r.authHandler.Logout)

		authGroup.GET("/connect/:provider", r.authHandler.Connect)
		authGroup.GET("/callback/:provider", r.authHandler.Callback)

		authGroup.POST("/reset-password", r.verificationHandler.ForgotPassword)
		authGroup.POST("/reset-password/:token", r.verificationHandler.ResetPassword)
	}

	// Routes below require a bearer access token. Middleware is attached per route so
	// unknown paths under the group still answer 404 instead of 401.
	authenticate := r.authMiddleware.Authenticate
	authGroup.POST("/verify-email/:code", r.verificationHandler.VerifyEmail, authenticate)
	authGroup.POST("/resend-verify-email", r.verificationHandler.ResendVerifyEmail, authenticate)
	authGroup.GET("/me", r.profileHandler.GetMe, authenticate)
	authGroup.PATCH("/me", r.profileHandler.UpdateMe, authenticate)

	e.GET("/admin/ping", r.testHandler.AdminPing, authenticate, r.authMiddleware.RequireRole(entity.RoleAdmin))
}

func (r *router) RegisterTestRoutes(e *echo.Echo) {
	// Test routes - only enabled when configured
	if r.config.TestRoutes != nil && r.config.TestRoutes.Enabled {
		testGroup := e.Group("/test")
		testGroup.GET("/public", r.testHandler.TestPublicEndpoint)
		testGroup.GET("/auth", r.testHandler.TestAuthMiddleware, r.authMiddleware.Authenticate)
	}
}
