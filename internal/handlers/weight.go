package handlers

import (
	"database/sql"
	"net/http"
	"strconv"

	"setora/internal/database"
	"setora/internal/metrics"
	"setora/internal/models"

	"github.com/gin-gonic/gin"
)

type weightRequest struct {
	Date   string  `json:"date" binding:"required,datetime=2006-01-02"`
	Weight float64 `json:"weight" binding:"required,gt=0,lt=1000"`
}

func handleLogWeight(c *gin.Context) {
	var req weightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "A valid date and weight are required")
		return
	}

	db := c.MustGet("db").(*sql.DB)
	userID := currentUserID(c)

	var log *models.WeightLog
	err := metrics.ObserveDB(metrics.DBOpLogWeight, func() error {
		var err error
		log, err = database.LogWeight(db, userID, req.Date, req.Weight)
		return err
	})
	if err != nil {
		respondInternalError(c, "Failed to log weight", err)
		return
	}
	metrics.WeightLogsTotal.Inc()

	c.JSON(http.StatusOK, gin.H{"success": true, "id": log.ID})
}

func handleGetWeightLogs(c *gin.Context) {
	db := c.MustGet("db").(*sql.DB)

	logs, err := database.GetWeightLogs(db, currentUserID(c))
	if err != nil {
		respondInternalError(c, "Failed to get weight logs", err)
		return
	}

	c.JSON(http.StatusOK, logs)
}

func handleDeleteWeightLog(c *gin.Context) {
	logID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid weight log ID")
		return
	}

	db := c.MustGet("db").(*sql.DB)
	if err := database.DeleteWeightLog(db, currentUserID(c), logID); err != nil {
		respondDBError(c, "Failed to delete weight log", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
