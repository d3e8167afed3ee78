package handlers

import (
	"database/sql"
	"net/http"

	"setora/internal/database"
	"setora/internal/models"

	"github.com/gin-gonic/gin"
)

type exerciseRequest struct {
	Name      string `json:"name" binding:"required,max=100"`
	Category  string `json:"category" binding:"required,max=50"`
	Equipment string `json:"equipment" binding:"max=50"`
	ImageURL  string `json:"image_url" binding:"omitempty,url,max=500"`
}

func handleGetExercises(c *gin.Context) {
	db := c.MustGet("db").(*sql.DB)

	exercises, err := database.GetExercises(db)
	if err != nil {
		respondInternalError(c, "Failed to get exercises", err)
		return
	}

	c.JSON(http.StatusOK, exercises)
}

func handleCreateExercise(c *gin.Context) {
	var req exerciseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Name and category are required")
		return
	}

	db := c.MustGet("db").(*sql.DB)
	exercise, err := database.CreateExercise(db, req.Name, req.Category, req.Equipment)
	if err != nil {
		if database.IsUniqueViolation(err) {
			respondError(c, http.StatusBadRequest, "Exercise already exists")
			return
		}
		respondInternalError(c, "Failed to create exercise", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "id": exercise.ID})
}

func handleGetAllExercises(c *gin.Context) {
	db := c.MustGet("db").(*sql.DB)

	exercises, err := database.GetAllExercises(db, currentUserID(c))
	if err != nil {
		respondInternalError(c, "Failed to get exercises", err)
		return
	}

	c.JSON(http.StatusOK, exercises)
}

func handleCreateCustomExercise(c *gin.Context) {
	var req exerciseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Name and category are required")
		return
	}

	db := c.MustGet("db").(*sql.DB)
	exercise, err := database.CreateCustomExercise(db, currentUserID(c), models.CustomExercise{
		Name:      req.Name,
		Category:  req.Category,
		Equipment: req.Equipment,
		ImageURL:  req.ImageURL,
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			respondError(c, http.StatusBadRequest, "Exercise already exists")
			return
		}
		respondInternalError(c, "Failed to create custom exercise", err)
		return
	}

	ref := models.ExerciseRef{ID: exercise.ID, IsCustom: true}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": ref.String()})
}

// handleDeleteCustomExercise accepts both "custom_12" and "12".
func handleDeleteCustomExercise(c *gin.Context) {
	ref, err := models.ParseExerciseRef(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid exercise ID")
		return
	}

	db := c.MustGet("db").(*sql.DB)
	if err := database.DeleteCustomExercise(db, currentUserID(c), ref.ID); err != nil {
		respondDBError(c, "Failed to delete custom exercise", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
