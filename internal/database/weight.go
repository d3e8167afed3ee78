package database

import (
	"database/sql"
	"fmt"

	"setora/internal/models"
)

// LogWeight stores the user's body weight for a date. A second sample for
// the same date replaces the first.
func LogWeight(db *sql.DB, userID int, date string, weight float64) (*models.WeightLog, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRow("SELECT id FROM weight_logs WHERE user_id = ? AND date = ? ORDER BY id LIMIT 1", userID, date).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		result, err := tx.Exec("INSERT INTO weight_logs (user_id, date, weight) VALUES (?, ?, ?)", userID, date, weight)
		if err != nil {
			return nil, fmt.Errorf("failed to log weight: %w", err)
		}
		if id, err = result.LastInsertId(); err != nil {
			return nil, fmt.Errorf("failed to get weight log ID: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to look up weight log: %w", err)
	default:
		if _, err := tx.Exec("UPDATE weight_logs SET weight = ? WHERE user_id = ? AND date = ?", weight, userID, date); err != nil {
			return nil, fmt.Errorf("failed to update weight log: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit weight log: %w", err)
	}

	return &models.WeightLog{ID: int(id), UserID: userID, Date: date, Weight: weight}, nil
}

func GetWeightLogs(db *sql.DB, userID int) ([]models.WeightLog, error) {
	rows, err := db.Query("SELECT id, user_id, date, weight FROM weight_logs WHERE user_id = ? ORDER BY date DESC, id DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query weight logs: %w", err)
	}
	defer rows.Close()

	logs := []models.WeightLog{}
	for rows.Next() {
		var log models.WeightLog
		if err := rows.Scan(&log.ID, &log.UserID, &log.Date, &log.Weight); err != nil {
			return nil, fmt.Errorf("failed to scan weight log: %w", err)
		}
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating weight logs: %w", err)
	}

	return logs, nil
}

func DeleteWeightLog(db *sql.DB, userID, logID int) error {
	result, err := db.Exec("DELETE FROM weight_logs WHERE id = ? AND user_id = ?", logID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete weight log: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("weight log %d: %w", logID, ErrNotFound)
	}

	return nil
}
