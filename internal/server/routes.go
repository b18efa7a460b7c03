package server

import (
	"github.com/labstack/echo/v4"

	"example.com/practice-advisor/backend/internal/handlers"
)

func registerRoutes(
	e *echo.Echo,
	analysisHandler *handlers.AnalysisHandler,
	commitmentHandler *handlers.CommitmentHandler,
	notificationHandler *handlers.NotificationHandler,
	healthHandler *handlers.HealthHandler,
	authMiddleware echo.MiddlewareFunc,
	streamAuthMiddleware echo.MiddlewareFunc,
	analysisRateLimiter echo.MiddlewareFunc,
) {
	e.GET("/health", healthHandler.Health)

	api := e.Group("/api/v1")

	api.GET("/engagements/:engagementId/events", notificationHandler.Stream, streamAuthMiddleware)

	engagements := api.Group("/engagements/:engagementId", authMiddleware)
	engagements.POST("/analysis", analysisHandler.Trigger, analysisRateLimiter)
	engagements.GET("/trends", analysisHandler.ListTrends)
	engagements.GET("/seasonality", analysisHandler.GetSeasonality)
	engagements.GET("/forecasts/:periodEnd", analysisHandler.GetForecast)
	engagements.GET("/forecasts/:periodEnd/export/csv", analysisHandler.ExportForecastCSV)
	engagements.GET("/scenarios/:periodEnd", analysisHandler.ListScenarios)
	engagements.POST("/scenarios/:periodEnd", analysisHandler.RunScenarios, analysisRateLimiter)
	engagements.GET("/commitments", commitmentHandler.List)
	engagements.POST("/commitments", commitmentHandler.Create)

	commitments := api.Group("/commitments", authMiddleware)
	commitments.PUT("/:commitmentId", commitmentHandler.Update)
	commitments.DELETE("/:commitmentId", commitmentHandler.Delete)
}
