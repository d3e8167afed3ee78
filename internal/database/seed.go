package database

import (
	"database/sql"
	"fmt"

	"setora/internal/models"
)

var builtinExercises = []models.Exercise{
	{Name: "Bench Press", Category: "Chest", Equipment: "Barbell"},
	{Name: "Incline Dumbbell Press", Category: "Chest", Equipment: "Dumbbell"},
	{Name: "Push-ups", Category: "Chest", Equipment: "Bodyweight"},
	{Name: "Barbell Curl", Category: "Biceps", Equipment: "Barbell"},
	{Name: "Dumbbell Curl", Category: "Biceps", Equipment: "Dumbbell"},
	{Name: "Hammer Curl", Category: "Biceps", Equipment: "Dumbbell"},
	{Name: "Tricep Dips", Category: "Triceps", Equipment: "Bodyweight"},
	{Name: "Tricep Pushdown", Category: "Triceps", Equipment: "Cable"},
	{Name: "Overhead Extension", Category: "Triceps", Equipment: "Dumbbell"},
	{Name: "Squat", Category: "Legs", Equipment: "Barbell"},
	{Name: "Leg Press", Category: "Legs", Equipment: "Machine"},
	{Name: "Lunges", Category: "Legs", Equipment: "Dumbbell"},
	{Name: "Deadlift", Category: "Back", Equipment: "Barbell"},
	{Name: "Pull-ups", Category: "Back", Equipment: "Bodyweight"},
	{Name: "Lat Pulldown", Category: "Back", Equipment: "Cable"},
	{Name: "Shoulder Press", Category: "Shoulders", Equipment: "Dumbbell"},
	{Name: "Lateral Raise", Category: "Shoulders", Equipment: "Dumbbell"},
	{Name: "Front Raise", Category: "Shoulders", Equipment: "Dumbbell"},
	{Name: "Running", Category: "Cardio", Equipment: "None"},
	{Name: "Cycling", Category: "Cardio", Equipment: "Machine"},
	{Name: "Jump Rope", Category: "Cardio", Equipment: "Equipment"},
	{Name: "Plank", Category: "Core", Equipment: "Bodyweight"},
	{Name: "Crunches", Category: "Core", Equipment: "Bodyweight"},
	{Name: "Russian Twist", Category: "Core", Equipment: "Bodyweight"},
}

// SeedExercises fills the built-in catalog when it is empty and returns the
// number of rows inserted.
func SeedExercises(db *sql.DB) (int, error) {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM exercises").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count exercises: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT INTO exercises (name, category, equipment) VALUES (?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare seed statement: %w", err)
	}
	defer stmt.Close()

	for _, ex := range builtinExercises {
		if _, err := stmt.Exec(ex.Name, ex.Category, ex.Equipment); err != nil {
			return 0, fmt.Errorf("failed to seed exercise %s: %w", ex.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit seed: %w", err)
	}

	return len(builtinExercises), nil
}
