package handlers

import (
	"database/sql"
	"net/http"

	"setora/internal/database"
	"setora/internal/models"

	"github.com/gin-gonic/gin"
)

func handleGetUser(c *gin.Context) {
	c.JSON(http.StatusOK, c.MustGet("user").(*models.User))
}

func handleUpdateUser(c *gin.Context) {
	var update models.ProfileUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid profile data")
		return
	}

	db := c.MustGet("db").(*sql.DB)
	if err := database.UpdateUserProfile(db, currentUserID(c), update); err != nil {
		respondDBError(c, "Failed to update profile", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
