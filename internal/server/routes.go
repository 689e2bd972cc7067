package server

import (
	"net/http"

	user "MediMate_V1.0/internal/User"
	"MediMate_V1.0/internal/admin"
	"MediMate_V1.0/internal/auth"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"https://*", "http://*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Platform"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Traditional Auth Routes
	e.POST("/signup", auth.SignupHandler)
	e.POST("/login", auth.LoginHandler)
	e.POST("/password/reset/request", auth.RequestPasswordResetHandler)
	e.POST("/password/reset/complete", auth.ResetPasswordHandler)

	e.GET("/health", s.healthHandler)

	e.Use(LoggerMiddleware)

	// Protected routes
	protected := e.Group("")
	protected.Use(auth.JwtAuthMiddleware)

	// User's Account & Profile Functions Routes
	protected.GET("/profile", user.GetProfileHandler)
	protected.PUT("/profile", user.UpdateProfileHandler)
	protected.GET("/profile/lifestyle", user.GetLifestyleHandler)
	protected.PUT("/profile/lifestyle", user.UpdateLifestyleHandler)
	protected.DELETE("/profile/lifestyle", user.DeleteLifestyleHandler)
	protected.GET("/profile/medical-history", user.GetMedicalHistoryHandler)
	protected.PUT("/profile/medical-history", user.UpdateMedicalHistoryHandler)
	protected.DELETE("/profile/medical-history", user.DeleteMedicalHistoryHandler)
	protected.GET("/user/data", user.GetUserDataHandler)

	// AI Health Features Routes
	protected.GET("/tips", user.GetHealthTipsHandler)
	protected.GET("/chat", user.GetChatHistoryHandler)
	protected.POST("/chat", user.SendChatMessageHandler)
	protected.DELETE("/chat", user.ClearChatHandler)

	// Emergency Features Routes
	protected.GET("/hospitals/nearby", user.NearbyHospitalsHandler)
	protected.GET("/firstaid", user.GetFirstAidTopicsHandler)
	protected.GET("/firstaid/:id", user.GetFirstAidTopicHandler)

	// Operational Routes
	protected.GET("/admin/system", admin.GetSystemStatusHandler)

	return e
}

func (s *Server) healthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, s.db.Health())
}

func LoggerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := c.Request().Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Response().Header().Set("X-Request-ID", requestID)

		logger := log.With().Str("request_id", requestID).Logger()

		c.Set("logger", &logger)

		return next(c)
	}
}
