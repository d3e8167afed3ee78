package database

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"setora/internal/models"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

func GetExercises(db *sql.DB) ([]models.Exercise, error) {
	query := `
		SELECT id, name, category, COALESCE(equipment, '')
		FROM exercises
		ORDER BY category, name
	`

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query exercises: %w", err)
	}
	defer rows.Close()

	exercises := []models.Exercise{}
	for rows.Next() {
		var ex models.Exercise
		if err := rows.Scan(&ex.ID, &ex.Name, &ex.Category, &ex.Equipment); err != nil {
			return nil, fmt.Errorf("failed to scan exercise: %w", err)
		}
		exercises = append(exercises, ex)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating exercises: %w", err)
	}

	return exercises, nil
}

func CreateExercise(db *sql.DB, name, category, equipment string) (*models.Exercise, error) {
	result, err := db.Exec("INSERT INTO exercises (name, category, equipment) VALUES (?, ?, ?)", name, category, equipment)
	if err != nil {
		return nil, fmt.Errorf("failed to create exercise: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get exercise ID: %w", err)
	}

	return &models.Exercise{
		ID:        int(id),
		Name:      name,
		Category:  category,
		Equipment: equipment,
	}, nil
}

func GetCustomExercises(db *sql.DB, userID int) ([]models.CustomExercise, error) {
	query := `
		SELECT id, user_id, name, category, COALESCE(equipment, ''), COALESCE(image_url, '')
		FROM user_exercises
		WHERE user_id = ?
		ORDER BY category, name
	`

	rows, err := db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query custom exercises: %w", err)
	}
	defer rows.Close()

	exercises := []models.CustomExercise{}
	for rows.Next() {
		var ex models.CustomExercise
		if err := rows.Scan(&ex.ID, &ex.UserID, &ex.Name, &ex.Category, &ex.Equipment, &ex.ImageURL); err != nil {
			return nil, fmt.Errorf("failed to scan custom exercise: %w", err)
		}
		exercises = append(exercises, ex)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating custom exercises: %w", err)
	}

	return exercises, nil
}

func CreateCustomExercise(db *sql.DB, userID int, ex models.CustomExercise) (*models.CustomExercise, error) {
	query := `
		INSERT INTO user_exercises (user_id, name, category, equipment, image_url)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := db.Exec(query, userID, ex.Name, ex.Category, ex.Equipment, ex.ImageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create custom exercise: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get custom exercise ID: %w", err)
	}

	ex.ID = int(id)
	ex.UserID = userID
	return &ex, nil
}

// DeleteCustomExercise removes one of the user's custom exercises. Exercises
// referenced by logged workouts are kept so history stays readable.
func DeleteCustomExercise(db *sql.DB, userID, exerciseID int) error {
	var owned int
	err := db.QueryRow("SELECT COUNT(*) FROM user_exercises WHERE id = ? AND user_id = ?", exerciseID, userID).Scan(&owned)
	if err != nil {
		return fmt.Errorf("failed to look up custom exercise: %w", err)
	}
	if owned == 0 {
		return fmt.Errorf("custom exercise %d: %w", exerciseID, ErrNotFound)
	}

	var uses int
	countQuery := `
		SELECT COUNT(*)
		FROM workout_exercises we
		JOIN workouts w ON w.id = we.workout_id
		WHERE we.is_custom = 1 AND we.exercise_id = ? AND w.user_id = ?
	`
	if err := db.QueryRow(countQuery, exerciseID, userID).Scan(&uses); err != nil {
		return fmt.Errorf("failed to check exercise usage: %w", err)
	}
	if uses > 0 {
		return fmt.Errorf("custom exercise %d appears in %d workouts: %w", exerciseID, uses, ErrExerciseInUse)
	}

	if _, err := db.Exec("DELETE FROM user_exercises WHERE id = ? AND user_id = ?", exerciseID, userID); err != nil {
		return fmt.Errorf("failed to delete custom exercise: %w", err)
	}

	return nil
}

// GetAllExercises lists the built-in catalog together with the user's
// custom exercises, ordered by category then name.
func GetAllExercises(db *sql.DB, userID int) ([]models.CatalogEntry, error) {
	builtin, err := GetExercises(db)
	if err != nil {
		return nil, err
	}

	custom, err := GetCustomExercises(db, userID)
	if err != nil {
		return nil, err
	}

	entries := make([]models.CatalogEntry, 0, len(builtin)+len(custom))
	for _, ex := range builtin {
		entries = append(entries, models.CatalogEntry{
			ID:        models.ExerciseRef{ID: ex.ID},
			Name:      ex.Name,
			Category:  ex.Category,
			Equipment: ex.Equipment,
		})
	}
	for _, ex := range custom {
		entries = append(entries, models.CatalogEntry{
			ID:        models.ExerciseRef{ID: ex.ID, IsCustom: true},
			Name:      ex.Name,
			Category:  ex.Category,
			Equipment: ex.Equipment,
			ImageURL:  ex.ImageURL,
			IsCustom:  true,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Category != entries[j].Category {
			return entries[i].Category < entries[j].Category
		}
		return entries[i].Name < entries[j].Name
	})

	return entries, nil
}

// resolveExercise checks that ref names a built-in exercise or one of the
// user's custom exercises.
func resolveExercise(q querier, userID int, ref models.ExerciseRef) error {
	var id int
	var err error
	if ref.IsCustom {
		err = q.QueryRow("SELECT id FROM user_exercises WHERE id = ? AND user_id = ?", ref.ID, userID).Scan(&id)
	} else {
		err = q.QueryRow("SELECT id FROM exercises WHERE id = ?", ref.ID).Scan(&id)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("exercise %s: %w", ref, ErrUnknownExercise)
		}
		return fmt.Errorf("failed to resolve exercise: %w", err)
	}
	return nil
}
