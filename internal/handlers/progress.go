package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"setora/internal/database"
	"setora/internal/metrics"

	"github.com/gin-gonic/gin"
)

func handleGetProgress(c *gin.Context) {
	db := c.MustGet("db").(*sql.DB)
	userID := currentUserID(c)

	var progress *database.Progress
	err := metrics.ObserveDB(metrics.DBOpGetProgress, func() error {
		var err error
		progress, err = database.GetProgress(db, userID)
		return err
	})
	if err != nil {
		respondInternalError(c, "Failed to get progress", err)
		return
	}

	c.JSON(http.StatusOK, progress)
}

func handleHealth(c *gin.Context) {
	db := c.MustGet("db").(*sql.DB)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": "unreachable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "ok"})
}
