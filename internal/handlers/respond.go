package handlers

import (
	"errors"
	"net/http"

	"setora/internal/database"
	"setora/internal/logger"

	"github.com/gin-gonic/gin"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "error": message})
}

// respondInternalError logs err and answers with a generic message so
// driver and SQL details never reach the client.
func respondInternalError(c *gin.Context, msg string, err error) {
	keysAndValues := []interface{}{"error", err, "request_id", c.GetString("request_id")}
	if userID, ok := c.Get("user_id"); ok {
		keysAndValues = append(keysAndValues, "user_id", userID)
	}
	logger.Error(msg, keysAndValues...)
	respondError(c, http.StatusInternalServerError, "Internal server error")
}

// respondDBError maps repository sentinels to status codes and falls back to
// a 500 for anything else.
func respondDBError(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		respondError(c, http.StatusNotFound, "Not found")
	case errors.Is(err, database.ErrUnknownExercise):
		respondError(c, http.StatusBadRequest, "Unknown exercise")
	case errors.Is(err, database.ErrExerciseInUse):
		respondError(c, http.StatusBadRequest, "Exercise is used by logged workouts")
	default:
		respondInternalError(c, msg, err)
	}
}

func currentUserID(c *gin.Context) int {
	return c.MustGet("user_id").(int)
}
