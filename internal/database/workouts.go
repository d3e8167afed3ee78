package database

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"setora/internal/models"
)

type WorkoutFilter struct {
	StartDate string
	EndDate   string
}

// UpsertWorkout records a day's training for a user. There is at most one
// workout row per (user, date): a second submission for the same date is
// merged into the existing row. A rest day replaces whatever exercises the
// day held; an exercise submission turns a rest day back into a training
// day. New exercises are appended after the ones already logged.
func UpsertWorkout(db *sql.DB, userID int, sub models.WorkoutSubmission) (*models.UpsertResult, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	workoutID, existingNotes, found, err := findWorkout(tx, userID, sub.Date)
	if err != nil {
		return nil, err
	}

	if sub.IsRestDay {
		workoutID, err = markRestDay(tx, userID, sub.Date, sub.Notes, workoutID, found)
	} else {
		workoutID, err = appendExercises(tx, userID, sub, workoutID, existingNotes, found)
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit workout: %w", err)
	}

	return &models.UpsertResult{WorkoutID: workoutID, Merged: found}, nil
}

func findWorkout(q querier, userID int, date string) (int, string, bool, error) {
	var id int
	var notes string
	err := q.QueryRow("SELECT id, COALESCE(notes, '') FROM workouts WHERE user_id = ? AND date = ?", userID, date).Scan(&id, &notes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, "", false, nil
		}
		return 0, "", false, fmt.Errorf("failed to look up workout: %w", err)
	}
	return id, notes, true, nil
}

func markRestDay(tx *sql.Tx, userID int, date, notes string, workoutID int, found bool) (int, error) {
	if !found {
		result, err := tx.Exec("INSERT INTO workouts (user_id, date, notes, is_rest_day) VALUES (?, ?, ?, 1)", userID, date, notes)
		if err != nil {
			return 0, fmt.Errorf("failed to create rest day: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("failed to get workout ID: %w", err)
		}
		return int(id), nil
	}

	if err := deleteWorkoutExercises(tx, workoutID); err != nil {
		return 0, err
	}

	_, err := tx.Exec("UPDATE workouts SET is_rest_day = 1, notes = ? WHERE id = ?", notes, workoutID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark rest day: %w", err)
	}
	return workoutID, nil
}

func appendExercises(tx *sql.Tx, userID int, sub models.WorkoutSubmission, workoutID int, existingNotes string, found bool) (int, error) {
	if found {
		notes := existingNotes
		if sub.Notes != "" {
			if notes != "" {
				notes += "\n"
			}
			notes += sub.Notes
		}
		mergedAt := time.Now().UTC().Format(time.RFC3339)
		_, err := tx.Exec("UPDATE workouts SET is_rest_day = 0, merged_at = ?, notes = ? WHERE id = ?", mergedAt, notes, workoutID)
		if err != nil {
			return 0, fmt.Errorf("failed to merge workout: %w", err)
		}
	} else {
		result, err := tx.Exec("INSERT INTO workouts (user_id, date, notes, is_rest_day) VALUES (?, ?, ?, 0)", userID, sub.Date, sub.Notes)
		if err != nil {
			return 0, fmt.Errorf("failed to create workout: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("failed to get workout ID: %w", err)
		}
		workoutID = int(id)
	}

	var nextIndex int
	err := tx.QueryRow("SELECT COALESCE(MAX(order_index), -1) + 1 FROM workout_exercises WHERE workout_id = ?", workoutID).Scan(&nextIndex)
	if err != nil {
		return 0, fmt.Errorf("failed to get next order index: %w", err)
	}

	insertExercise := `
		INSERT INTO workout_exercises (workout_id, exercise_id, is_custom, order_index, notes)
		VALUES (?, ?, ?, ?, ?)
	`
	insertSet := `
		INSERT INTO workout_sets (workout_exercise_id, set_number, reps, weight, duration, notes)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	for i, entry := range sub.Exercises {
		if err := resolveExercise(tx, userID, entry.ExerciseID); err != nil {
			return 0, err
		}

		result, err := tx.Exec(insertExercise, workoutID, entry.ExerciseID.ID, entry.ExerciseID.IsCustom, nextIndex+i, entry.Notes)
		if err != nil {
			return 0, fmt.Errorf("failed to add exercise to workout: %w", err)
		}
		workoutExerciseID, err := result.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("failed to get workout exercise ID: %w", err)
		}

		for n, set := range entry.Sets {
			if _, err := tx.Exec(insertSet, workoutExerciseID, n+1, set.Reps, set.Weight, set.Duration, set.Notes); err != nil {
				return 0, fmt.Errorf("failed to add set: %w", err)
			}
		}
	}

	return workoutID, nil
}

func deleteWorkoutExercises(q querier, workoutID int) error {
	_, err := q.Exec(`DELETE FROM workout_sets WHERE workout_exercise_id IN (
		SELECT id FROM workout_exercises WHERE workout_id = ?)`, workoutID)
	if err != nil {
		return fmt.Errorf("failed to delete workout sets: %w", err)
	}

	if _, err := q.Exec("DELETE FROM workout_exercises WHERE workout_id = ?", workoutID); err != nil {
		return fmt.Errorf("failed to delete workout exercises: %w", err)
	}
	return nil
}

func GetWorkouts(db *sql.DB, userID int, filter WorkoutFilter) ([]models.Workout, error) {
	query := `
		SELECT id, user_id, date, COALESCE(notes, ''), COALESCE(is_rest_day, 0), merged_at
		FROM workouts
		WHERE user_id = ?
	`
	args := []interface{}{userID}

	if filter.StartDate != "" {
		query += " AND date >= ?"
		args = append(args, filter.StartDate)
	}
	if filter.EndDate != "" {
		query += " AND date <= ?"
		args = append(args, filter.EndDate)
	}
	query += " ORDER BY date DESC, id DESC"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workouts: %w", err)
	}

	workouts := []models.Workout{}
	for rows.Next() {
		var w models.Workout
		if err := rows.Scan(&w.ID, &w.UserID, &w.Date, &w.Notes, &w.IsRestDay, &w.MergedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan workout: %w", err)
		}
		workouts = append(workouts, w)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating workouts: %w", err)
	}
	rows.Close()

	for i := range workouts {
		if err := loadExercises(db, &workouts[i]); err != nil {
			return nil, err
		}
	}

	return workouts, nil
}

func GetWorkoutByDate(db *sql.DB, userID int, date string) (*models.Workout, error) {
	query := `
		SELECT id, user_id, date, COALESCE(notes, ''), COALESCE(is_rest_day, 0), merged_at
		FROM workouts
		WHERE user_id = ? AND date = ?
	`

	var w models.Workout
	err := db.QueryRow(query, userID, date).Scan(&w.ID, &w.UserID, &w.Date, &w.Notes, &w.IsRestDay, &w.MergedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("workout on %s: %w", date, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query workout: %w", err)
	}

	if err := loadExercises(db, &w); err != nil {
		return nil, err
	}

	return &w, nil
}

// DeleteWorkout removes a day's workout together with its exercises and sets.
func DeleteWorkout(db *sql.DB, userID int, date string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	workoutID, _, found, err := findWorkout(tx, userID, date)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("workout on %s: %w", date, ErrNotFound)
	}

	if err := deleteWorkoutExercises(tx, workoutID); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM workouts WHERE id = ?", workoutID); err != nil {
		return fmt.Errorf("failed to delete workout: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit workout deletion: %w", err)
	}
	return nil
}

func loadExercises(q querier, w *models.Workout) error {
	query := `
		SELECT we.id, we.workout_id, we.exercise_id, COALESCE(we.is_custom, 0), COALESCE(we.order_index, 0),
		       COALESCE(we.notes, ''),
		       COALESCE(CASE WHEN we.is_custom = 1 THEN ue.name ELSE e.name END, ''),
		       COALESCE(CASE WHEN we.is_custom = 1 THEN ue.category ELSE e.category END, '')
		FROM workout_exercises we
		LEFT JOIN exercises e ON e.id = we.exercise_id
		LEFT JOIN user_exercises ue ON ue.id = we.exercise_id
		WHERE we.workout_id = ?
		ORDER BY we.order_index, we.id
	`

	rows, err := q.Query(query, w.ID)
	if err != nil {
		return fmt.Errorf("failed to query workout exercises: %w", err)
	}

	exercises := []models.WorkoutExercise{}
	index := map[int]int{}
	for rows.Next() {
		var ex models.WorkoutExercise
		var exerciseID int
		if err := rows.Scan(&ex.ID, &ex.WorkoutID, &exerciseID, &ex.IsCustom, &ex.OrderIndex, &ex.Notes, &ex.Name, &ex.Category); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan workout exercise: %w", err)
		}
		ex.ExerciseID = models.ExerciseRef{ID: exerciseID, IsCustom: ex.IsCustom}
		ex.Sets = []models.WorkoutSet{}
		index[ex.ID] = len(exercises)
		exercises = append(exercises, ex)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("error iterating workout exercises: %w", err)
	}
	rows.Close()

	setQuery := `
		SELECT ws.id, ws.workout_exercise_id, ws.set_number, ws.reps, ws.weight, ws.duration, COALESCE(ws.notes, '')
		FROM workout_sets ws
		JOIN workout_exercises we ON we.id = ws.workout_exercise_id
		WHERE we.workout_id = ?
		ORDER BY ws.workout_exercise_id, ws.set_number, ws.id
	`

	setRows, err := q.Query(setQuery, w.ID)
	if err != nil {
		return fmt.Errorf("failed to query workout sets: %w", err)
	}
	defer setRows.Close()

	for setRows.Next() {
		var set models.WorkoutSet
		if err := setRows.Scan(&set.ID, &set.WorkoutExerciseID, &set.SetNumber, &set.Reps, &set.Weight, &set.Duration, &set.Notes); err != nil {
			return fmt.Errorf("failed to scan workout set: %w", err)
		}
		if i, ok := index[set.WorkoutExerciseID]; ok {
			exercises[i].Sets = append(exercises[i].Sets, set)
		}
	}
	if err := setRows.Err(); err != nil {
		return fmt.Errorf("error iterating workout sets: %w", err)
	}

	w.Exercises = exercises
	w.DayType = dayType(w)
	return nil
}

// dayType labels a workout by the categories it trained, e.g. "Chest Day"
// or "Back + Biceps Day".
func dayType(w *models.Workout) string {
	if w.IsRestDay {
		return "Rest Day"
	}

	seen := map[string]bool{}
	var categories []string
	for _, ex := range w.Exercises {
		if ex.Category == "" || seen[ex.Category] {
			continue
		}
		seen[ex.Category] = true
		categories = append(categories, ex.Category)
	}

	if len(categories) == 0 {
		return "Workout Day"
	}
	sort.Strings(categories)
	return strings.Join(categories, " + ") + " Day"
}
