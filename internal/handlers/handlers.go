package handlers

import (
	"database/sql"

	"setora/internal/config"
	"setora/internal/email"
	"setora/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(r *gin.Engine, db *sql.DB, cfg *config.Config, emailService *email.Service) {
	blocker := middleware.NewNotFoundBlocker(cfg)

	r.Use(middleware.RequestID())
	r.Use(middleware.LogRequests())
	r.Use(middleware.Metrics())
	r.Use(blocker.IPBlocker())
	r.Use(blocker.Track404AndBlock())
	r.Use(middleware.SecurityHeaders(cfg))
	r.Use(middleware.CORS(cfg.Origins()))
	r.Use(middleware.RateLimit(cfg))
	r.Use(middleware.TrimSpaces())
	r.Use(middleware.AddDBContext(db))
	r.Use(middleware.AddConfigContext(cfg))
	r.Use(addEmailServiceContext(emailService))

	r.GET("/health", handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := r.Group("/api/auth")
	{
		auth.POST("/signup", middleware.AuthRateLimit(cfg), handleSignup)
		auth.POST("/login", middleware.AuthRateLimit(cfg), handleLogin)
		auth.POST("/logout", handleLogout)
		auth.GET("/check", handleAuthCheck)
	}

	api := r.Group("/api")
	api.Use(middleware.AuthRequired(db))
	{
		api.GET("/user", handleGetUser)
		api.PUT("/user", handleUpdateUser)

		api.GET("/exercises", handleGetExercises)
		api.POST("/exercises", handleCreateExercise)
		api.GET("/exercises/all", handleGetAllExercises)
		api.POST("/exercises/custom", handleCreateCustomExercise)
		api.DELETE("/exercises/custom/:id", handleDeleteCustomExercise)

		api.GET("/workouts", handleGetWorkouts)
		api.POST("/workouts", handleLogWorkout)
		api.POST("/workouts/rest", handleLogRestDay)
		api.GET("/workouts/:date", handleGetWorkout)
		api.DELETE("/workouts/:date", handleDeleteWorkout)

		api.GET("/weight", handleGetWeightLogs)
		api.POST("/weight", handleLogWeight)
		api.DELETE("/weight/:id", handleDeleteWeightLog)

		api.GET("/progress", handleGetProgress)

		api.GET("/templates", handleGetTemplates)
		api.POST("/templates", handleCreateTemplate)
		api.DELETE("/templates/:id", handleDeleteTemplate)
	}
}

func addEmailServiceContext(emailService *email.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("email_service", emailService)
		c.Next()
	}
}
