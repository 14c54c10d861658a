package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/fittrack/internal/infra/config"
	"github.com/yanqian/fittrack/pkg/metrics"
)

// NewRouter wires up the HTTP handlers and returns a configured server.
func NewRouter(cfg *config.Config, handler *Handler, m *metrics.Metrics, logger *slog.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	logger = logger.With("component", "http.router")

	router := gin.New()
	router.Use(
		recoveryMiddleware(logger, cfg.App.IsDevelopment()),
		requestIDMiddleware(),
		requestLogger(logger),
		metricsMiddleware(m),
		corsMiddleware(cfg.HTTP.AllowedOrigins),
		errorHandlingMiddleware(logger, cfg.App.IsDevelopment()),
		rateLimitMiddleware(cfg.HTTP.RateLimit, logger),
	)

	router.GET("/health", handler.Health)
	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	strict := requireAuth(handler.authSvc, handler.cookies)
	optional := optionalAuth(handler.authSvc, handler.cookies, logger)

	authRoutes := router.Group("/api/auth")
	{
		credentials := authRoutes.Group("", rateLimitMiddleware(cfg.HTTP.AuthRateLimit, logger))
		credentials.POST("/register", handler.Register)
		credentials.POST("/login", handler.Login)
		credentials.POST("/refresh", handler.Refresh)

		authRoutes.POST("/logout", handler.Logout)
		authRoutes.POST("/logout-all", strict, handler.LogoutAll)
		authRoutes.GET("/me", strict, handler.Me)
		authRoutes.PUT("/change-password", strict, handler.ChangePassword)
	}

	exercises := router.Group("/api/exercises")
	{
		exercises.GET("", optional, handler.ListExercises)
		exercises.POST("", strict, handler.CreateExercise)
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        withRetry(router, cfg.HTTP.Retry, logger),
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}
