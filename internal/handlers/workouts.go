package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"setora/internal/database"
	"setora/internal/logger"
	"setora/internal/metrics"
	"setora/internal/models"

	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

type restDayRequest struct {
	Date  string `json:"date" binding:"required,datetime=2006-01-02"`
	Notes string `json:"notes" binding:"max=2000"`
}

func validDate(s string) bool {
	_, err := time.Parse(dateLayout, s)
	return err == nil
}

func handleLogWorkout(c *gin.Context) {
	var sub models.WorkoutSubmission
	if err := c.ShouldBindJSON(&sub); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid workout data")
		return
	}

	if !sub.IsRestDay && len(sub.Exercises) == 0 {
		respondError(c, http.StatusBadRequest, "No exercises provided")
		return
	}

	upsertWorkout(c, sub)
}

func handleLogRestDay(c *gin.Context) {
	var req restDayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "A valid date is required")
		return
	}

	upsertWorkout(c, models.WorkoutSubmission{
		Date:      req.Date,
		Notes:     req.Notes,
		IsRestDay: true,
	})
}

func upsertWorkout(c *gin.Context, sub models.WorkoutSubmission) {
	db := c.MustGet("db").(*sql.DB)
	userID := currentUserID(c)

	var result *models.UpsertResult
	err := metrics.ObserveDB(metrics.DBOpUpsertWorkout, func() error {
		var err error
		result, err = database.UpsertWorkout(db, userID, sub)
		return err
	})
	if err != nil {
		respondDBError(c, "Failed to save workout", err)
		return
	}

	outcome := metrics.WorkoutCreated
	switch {
	case sub.IsRestDay:
		outcome = metrics.WorkoutRestDay
	case result.Merged:
		outcome = metrics.WorkoutMerged
	}
	metrics.WorkoutSubmissionsTotal.WithLabelValues(outcome).Inc()
	if !sub.IsRestDay {
		metrics.ExercisesLoggedTotal.Add(float64(len(sub.Exercises)))
	}

	logger.Debug("Workout saved",
		"user_id", userID,
		"date", sub.Date,
		"workout_id", result.WorkoutID,
		"outcome", outcome)

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"workout_id": result.WorkoutID,
		"merged":     result.Merged,
	})
}

func handleGetWorkouts(c *gin.Context) {
	filter := database.WorkoutFilter{
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
	}
	if (filter.StartDate != "" && !validDate(filter.StartDate)) || (filter.EndDate != "" && !validDate(filter.EndDate)) {
		respondError(c, http.StatusBadRequest, "Dates must be formatted as YYYY-MM-DD")
		return
	}

	db := c.MustGet("db").(*sql.DB)
	userID := currentUserID(c)

	var workouts []models.Workout
	err := metrics.ObserveDB(metrics.DBOpGetWorkouts, func() error {
		var err error
		workouts, err = database.GetWorkouts(db, userID, filter)
		return err
	})
	if err != nil {
		respondInternalError(c, "Failed to get workouts", err)
		return
	}

	c.JSON(http.StatusOK, workouts)
}

func handleGetWorkout(c *gin.Context) {
	date := c.Param("date")
	if !validDate(date) {
		respondError(c, http.StatusBadRequest, "Dates must be formatted as YYYY-MM-DD")
		return
	}

	db := c.MustGet("db").(*sql.DB)
	workout, err := database.GetWorkoutByDate(db, currentUserID(c), date)
	if err != nil {
		respondDBError(c, "Failed to get workout", err)
		return
	}

	c.JSON(http.StatusOK, workout)
}

func handleDeleteWorkout(c *gin.Context) {
	date := c.Param("date")
	if !validDate(date) {
		respondError(c, http.StatusBadRequest, "Dates must be formatted as YYYY-MM-DD")
		return
	}

	db := c.MustGet("db").(*sql.DB)
	if err := database.DeleteWorkout(db, currentUserID(c), date); err != nil {
		respondDBError(c, "Failed to delete workout", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
