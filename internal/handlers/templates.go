package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"

	"setora/internal/database"

	"github.com/gin-gonic/gin"
)

type templateRequest struct {
	Name      string          `json:"name" binding:"required,max=100"`
	Exercises json.RawMessage `json:"exercises" binding:"required"`
}

func handleGetTemplates(c *gin.Context) {
	db := c.MustGet("db").(*sql.DB)

	templates, err := database.GetTemplates(db, currentUserID(c))
	if err != nil {
		respondInternalError(c, "Failed to get templates", err)
		return
	}

	c.JSON(http.StatusOK, templates)
}

func handleCreateTemplate(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Name and exercises are required")
		return
	}

	if !bytes.HasPrefix(bytes.TrimSpace(req.Exercises), []byte("[")) {
		respondError(c, http.StatusBadRequest, "Exercises must be a list")
		return
	}

	db := c.MustGet("db").(*sql.DB)
	template, err := database.CreateTemplate(db, currentUserID(c), req.Name, req.Exercises)
	if err != nil {
		respondInternalError(c, "Failed to create template", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "id": template.ID})
}

func handleDeleteTemplate(c *gin.Context) {
	templateID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid template ID")
		return
	}

	db := c.MustGet("db").(*sql.DB)
	if err := database.DeleteTemplate(db, currentUserID(c), templateID); err != nil {
		respondDBError(c, "Failed to delete template", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
