package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"setora/internal/models"
)

func GetTemplates(db *sql.DB, userID int) ([]models.WorkoutTemplate, error) {
	rows, err := db.Query("SELECT id, user_id, name, exercises FROM workout_templates WHERE user_id = ? ORDER BY name, id", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	defer rows.Close()

	templates := []models.WorkoutTemplate{}
	for rows.Next() {
		var t models.WorkoutTemplate
		var exercises string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &exercises); err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		if !json.Valid([]byte(exercises)) {
			exercises = "[]"
		}
		t.Exercises = json.RawMessage(exercises)
		templates = append(templates, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating templates: %w", err)
	}

	return templates, nil
}

func CreateTemplate(db *sql.DB, userID int, name string, exercises json.RawMessage) (*models.WorkoutTemplate, error) {
	if !json.Valid(exercises) {
		return nil, fmt.Errorf("template exercises are not valid JSON")
	}

	result, err := db.Exec("INSERT INTO workout_templates (user_id, name, exercises) VALUES (?, ?, ?)", userID, name, string(exercises))
	if err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get template ID: %w", err)
	}

	return &models.WorkoutTemplate{
		ID:        int(id),
		UserID:    userID,
		Name:      name,
		Exercises: exercises,
	}, nil
}

func DeleteTemplate(db *sql.DB, userID, templateID int) error {
	result, err := db.Exec("DELETE FROM workout_templates WHERE id = ? AND user_id = ?", templateID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("template %d: %w", templateID, ErrNotFound)
	}

	return nil
}
