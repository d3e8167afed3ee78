package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"setora/internal/config"
	"setora/internal/database"
	emailService "setora/internal/email"
	"setora/internal/logger"
	"setora/internal/metrics"
	"setora/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const (
	minPasswordLength = 8
	// bcrypt ignores everything past 72 bytes.
	maxPasswordLength = 72
)

type signupRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"required,max=100"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(email)
}

// fieldFailed reports whether err is a validation failure on field for any
// rule other than required.
func fieldFailed(err error, field string) bool {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return false
	}
	for _, fe := range validationErrors {
		if fe.Field() == field && fe.Tag() != "required" {
			return true
		}
	}
	return false
}

func handleSignup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		switch {
		case fieldFailed(err, "Email"):
			respondError(c, http.StatusBadRequest, "Please enter a valid email address")
		case fieldFailed(err, "Name"):
			respondError(c, http.StatusBadRequest, "Name must be at most 100 characters")
		default:
			respondError(c, http.StatusBadRequest, "Missing required fields")
		}
		return
	}

	email := normalizeEmail(req.Email)

	switch {
	case len(req.Password) < minPasswordLength:
		respondError(c, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	case len(req.Password) > maxPasswordLength:
		respondError(c, http.StatusBadRequest, "Password must be at most 72 bytes")
		return
	}

	db := c.MustGet("db").(*sql.DB)
	cfg := c.MustGet("config").(*config.Config)

	user, err := database.CreateUser(db, email, req.Password, req.Name)
	if err != nil {
		if database.IsUniqueViolation(err) {
			respondError(c, http.StatusBadRequest, "Email already exists")
			return
		}
		respondInternalError(c, "Failed to create user", err)
		return
	}
	metrics.SignupsTotal.Inc()

	session, err := database.CreateSession(db, user.ID, cfg.SessionDuration)
	if err != nil {
		respondInternalError(c, "Failed to create session", err)
		return
	}

	logger.Info("User signed up", "email", user.Email, "user_id", user.ID)

	emailSvc, _ := c.Get("email_service")
	if service, ok := emailSvc.(*emailService.Service); ok {
		service.SendWelcomeEmailAsync(user)
	}

	setSessionCookie(c, cfg, session.Token)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user": gin.H{
			"id":    user.ID,
			"name":  user.Name,
			"email": user.Email,
		},
		"token": session.Token,
	})
}

func handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Missing credentials")
		return
	}

	db := c.MustGet("db").(*sql.DB)
	cfg := c.MustGet("config").(*config.Config)

	user, err := database.AuthenticateUser(db, normalizeEmail(req.Email), req.Password)
	if err != nil {
		if errors.Is(err, database.ErrInvalidCredentials) {
			metrics.LoginsTotal.WithLabelValues(metrics.LoginFailure).Inc()
			logger.Warn("Failed login attempt", "email", req.Email, "client_ip", c.ClientIP())
			respondError(c, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		respondInternalError(c, "Failed to authenticate user", err)
		return
	}

	session, err := database.CreateSession(db, user.ID, cfg.SessionDuration)
	if err != nil {
		respondInternalError(c, "Failed to create session", err)
		return
	}
	metrics.LoginsTotal.WithLabelValues(metrics.LoginSuccess).Inc()

	setSessionCookie(c, cfg, session.Token)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user": gin.H{
			"id":               user.ID,
			"email":            user.Email,
			"name":             user.Name,
			"theme_preference": user.ThemePreference,
		},
		"token": session.Token,
	})
}

func handleLogout(c *gin.Context) {
	cfg := c.MustGet("config").(*config.Config)

	if token := middleware.TokenFromRequest(c); token != "" {
		db := c.MustGet("db").(*sql.DB)
		if err := database.DeleteSession(db, token); err != nil {
			respondInternalError(c, "Failed to delete session", err)
			return
		}
	}

	clearSessionCookie(c, cfg)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func handleAuthCheck(c *gin.Context) {
	db := c.MustGet("db").(*sql.DB)

	user, err := middleware.Authenticate(db, c)
	if err != nil {
		if errors.Is(err, database.ErrSessionNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"authenticated": false})
			return
		}
		respondInternalError(c, "Failed to check session", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"authenticated": true, "user": user})
}

func setSessionCookie(c *gin.Context, cfg *config.Config, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookieName, token, int(cfg.SessionDuration.Seconds()), "/", "", !cfg.IsDevelopment(), true)
}

func clearSessionCookie(c *gin.Context, cfg *config.Config) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookieName, "", -1, "/", "", !cfg.IsDevelopment(), true)
}
