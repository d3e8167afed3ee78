package database

import (
	"database/sql"
	"fmt"
)

type WorkoutStat struct {
	Date          string  `json:"date"`
	Category      string  `json:"category"`
	Volume        float64 `json:"volume"`
	ExerciseCount int     `json:"exercise_count"`
}

type CategoryFrequency struct {
	Category  string `json:"category"`
	Frequency int    `json:"frequency"`
}

type ProgressSummary struct {
	TotalWorkouts int     `json:"total_workouts"`
	RestDays      int     `json:"rest_days"`
	TotalSets     int     `json:"total_sets"`
	TotalVolume   float64 `json:"total_volume"`
}

type WeightTrend struct {
	StartDate   string  `json:"start_date"`
	StartWeight float64 `json:"start_weight"`
	LatestDate  string  `json:"latest_date"`
	Latest      float64 `json:"latest_weight"`
	Change      float64 `json:"change"`
}

type Progress struct {
	WorkoutStats      []WorkoutStat       `json:"workout_stats"`
	CategoryFrequency []CategoryFrequency `json:"category_frequency"`
	Summary           ProgressSummary     `json:"summary"`
	WeightTrend       *WeightTrend        `json:"weight_trend"`
}

// Category of a logged exercise, resolved against the table its is_custom
// flag points to.
const exerciseCategory = `COALESCE(CASE WHEN we.is_custom = 1 THEN ue.category ELSE e.category END, 'Other')`

const trainingJoins = `
	FROM workouts w
	JOIN workout_exercises we ON we.workout_id = w.id
	LEFT JOIN exercises e ON e.id = we.exercise_id
	LEFT JOIN user_exercises ue ON ue.id = we.exercise_id
`

func GetProgress(db *sql.DB, userID int) (*Progress, error) {
	progress := &Progress{
		WorkoutStats:      []WorkoutStat{},
		CategoryFrequency: []CategoryFrequency{},
	}

	statsQuery := `
		WITH exercise_volume AS (
			SELECT we.id AS workout_exercise_id,
			       COALESCE(SUM(COALESCE(ws.reps, 0) * COALESCE(ws.weight, 0)), 0) AS volume
			FROM workout_exercises we
			LEFT JOIN workout_sets ws ON ws.workout_exercise_id = we.id
			GROUP BY we.id
		)
		SELECT w.date, ` + exerciseCategory + ` AS exercise_category,
		       COALESCE(SUM(ev.volume), 0) AS volume,
		       COUNT(we.id) AS exercise_count
	` + trainingJoins + `
		JOIN exercise_volume ev ON ev.workout_exercise_id = we.id
		WHERE w.user_id = ? AND COALESCE(w.is_rest_day, 0) = 0
		GROUP BY w.date, exercise_category
		ORDER BY w.date, exercise_category
	`

	rows, err := db.Query(statsQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workout stats: %w", err)
	}
	for rows.Next() {
		var stat WorkoutStat
		if err := rows.Scan(&stat.Date, &stat.Category, &stat.Volume, &stat.ExerciseCount); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan workout stat: %w", err)
		}
		progress.WorkoutStats = append(progress.WorkoutStats, stat)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating workout stats: %w", err)
	}
	rows.Close()

	freqQuery := `
		SELECT ` + exerciseCategory + ` AS exercise_category, COUNT(DISTINCT w.date) AS frequency
	` + trainingJoins + `
		WHERE w.user_id = ? AND COALESCE(w.is_rest_day, 0) = 0
		GROUP BY exercise_category
		ORDER BY exercise_category
	`

	rows, err = db.Query(freqQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query category frequency: %w", err)
	}
	for rows.Next() {
		var freq CategoryFrequency
		if err := rows.Scan(&freq.Category, &freq.Frequency); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan category frequency: %w", err)
		}
		progress.CategoryFrequency = append(progress.CategoryFrequency, freq)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating category frequency: %w", err)
	}
	rows.Close()

	summary, err := getProgressSummary(db, userID)
	if err != nil {
		return nil, err
	}
	progress.Summary = *summary

	progress.WeightTrend, err = getWeightTrend(db, userID)
	if err != nil {
		return nil, err
	}

	return progress, nil
}

func getProgressSummary(db *sql.DB, userID int) (*ProgressSummary, error) {
	summary := &ProgressSummary{}

	err := db.QueryRow("SELECT COUNT(*) FROM workouts WHERE user_id = ? AND COALESCE(is_rest_day, 0) = 0", userID).Scan(&summary.TotalWorkouts)
	if err != nil {
		return nil, fmt.Errorf("failed to count workouts: %w", err)
	}

	err = db.QueryRow("SELECT COUNT(*) FROM workouts WHERE user_id = ? AND is_rest_day = 1", userID).Scan(&summary.RestDays)
	if err != nil {
		return nil, fmt.Errorf("failed to count rest days: %w", err)
	}

	setsQuery := `
		SELECT COUNT(ws.id), COALESCE(SUM(COALESCE(ws.reps, 0) * COALESCE(ws.weight, 0)), 0)
		FROM workout_sets ws
		JOIN workout_exercises we ON we.id = ws.workout_exercise_id
		JOIN workouts w ON w.id = we.workout_id
		WHERE w.user_id = ?
	`
	err = db.QueryRow(setsQuery, userID).Scan(&summary.TotalSets, &summary.TotalVolume)
	if err != nil {
		return nil, fmt.Errorf("failed to total sets: %w", err)
	}

	return summary, nil
}

func getWeightTrend(db *sql.DB, userID int) (*WeightTrend, error) {
	trend := &WeightTrend{}

	err := db.QueryRow("SELECT date, weight FROM weight_logs WHERE user_id = ? ORDER BY date ASC, id ASC LIMIT 1", userID).
		Scan(&trend.StartDate, &trend.StartWeight)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get first weight log: %w", err)
	}

	err = db.QueryRow("SELECT date, weight FROM weight_logs WHERE user_id = ? ORDER BY date DESC, id DESC LIMIT 1", userID).
		Scan(&trend.LatestDate, &trend.Latest)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest weight log: %w", err)
	}

	trend.Change = trend.Latest - trend.StartWeight
	return trend, nil
}
