package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"setora/internal/logger"

	_ "github.com/mattn/go-sqlite3"
)

func Initialize(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to :memory: is its own database.
	if dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory") {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Migrate brings any database, including one created by the first
// release of the schema, up to date. It is safe to run on every start.
func Migrate(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			name TEXT NOT NULL,
			age INTEGER,
			gender TEXT,
			height REAL,
			weight REAL,
			goal TEXT,
			unit_preference TEXT DEFAULT 'kg',
			theme_preference TEXT DEFAULT 'light',
			created_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			token TEXT NOT NULL UNIQUE,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			expires_at TEXT NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`,
		`CREATE TABLE IF NOT EXISTS exercises (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			category TEXT NOT NULL,
			equipment TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS workouts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			date TEXT NOT NULL,
			notes TEXT,
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`,
		`CREATE TABLE IF NOT EXISTS workout_exercises (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			workout_id INTEGER NOT NULL,
			exercise_id INTEGER NOT NULL,
			sets INTEGER,
			reps INTEGER,
			weight REAL,
			duration REAL,
			notes TEXT,
			FOREIGN KEY (workout_id) REFERENCES workouts(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS weight_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			date TEXT NOT NULL,
			weight REAL NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`,
		`CREATE TABLE IF NOT EXISTS workout_templates (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			exercises TEXT NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	if err := createUserExercisesTable(db); err != nil {
		return fmt.Errorf("failed to create user_exercises table: %w", err)
	}

	if err := createWorkoutSetsTable(db); err != nil {
		return fmt.Errorf("failed to create workout_sets table: %w", err)
	}

	columns := []struct {
		table, column, definition string
	}{
		{"workouts", "is_rest_day", "INTEGER DEFAULT 0"},
		{"workouts", "merged_at", "TEXT"},
		{"workout_exercises", "is_custom", "INTEGER DEFAULT 0"},
		{"workout_exercises", "order_index", "INTEGER DEFAULT 0"},
	}
	for _, col := range columns {
		if err := addColumn(db, col.table, col.column, col.definition); err != nil {
			return fmt.Errorf("failed to add %s.%s column: %w", col.table, col.column, err)
		}
	}

	if err := dropExerciseForeignKey(db); err != nil {
		return fmt.Errorf("failed to rebuild workout_exercises: %w", err)
	}

	migrated, err := MigrateLegacySets(db)
	if err != nil {
		return fmt.Errorf("failed to migrate legacy sets: %w", err)
	}
	if migrated > 0 {
		logger.Info("Migrated legacy workout rows into sets", "sets", migrated)
	}

	folded, err := MergeDuplicateWorkouts(db)
	if err != nil {
		return fmt.Errorf("failed to merge duplicate workouts: %w", err)
	}
	if folded > 0 {
		logger.Info("Merged duplicate same-day workouts", "workouts", folded)
	}

	normalized, err := NormalizeUserEmails(db)
	if err != nil {
		return fmt.Errorf("failed to normalize user emails: %w", err)
	}
	if normalized > 0 {
		logger.Info("Lowercased stored user emails", "users", normalized)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_user_exercises_user ON user_exercises(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_workout_sets_exercise ON workout_sets(workout_exercise_id)`,
		`DROP INDEX IF EXISTS idx_workouts_date`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_workouts_user_date ON workouts(user_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_workout_exercises_workout ON workout_exercises(workout_id)`,
		`CREATE INDEX IF NOT EXISTS idx_weight_logs_user_date ON weight_logs(user_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_workout_templates_user ON workout_templates(user_id)`,
	}
	for _, index := range indexes {
		if _, err := db.Exec(index); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

func createUserExercisesTable(db *sql.DB) error {
	query := `CREATE TABLE IF NOT EXISTS user_exercises (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		equipment TEXT,
		image_url TEXT,
		created_at TEXT DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id),
		UNIQUE(user_id, name)
	)`

	_, err := db.Exec(query)
	return err
}

func createWorkoutSetsTable(db *sql.DB) error {
	query := `CREATE TABLE IF NOT EXISTS workout_sets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		workout_exercise_id INTEGER NOT NULL,
		set_number INTEGER NOT NULL,
		reps INTEGER,
		weight REAL,
		duration REAL,
		notes TEXT,
		FOREIGN KEY (workout_exercise_id) REFERENCES workout_exercises(id) ON DELETE CASCADE
	)`

	_, err := db.Exec(query)
	return err
}

func hasColumn(db *sql.DB, table, column string) (bool, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", table, column).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func addColumn(db *sql.DB, table, column, definition string) error {
	exists, err := hasColumn(db, table, column)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition))
	return err
}

// dropExerciseForeignKey rebuilds workout_exercises when it still carries
// the first release's foreign key on exercise_id. Custom exercise ids share
// that column, so the constraint cannot hold once they exist.
func dropExerciseForeignKey(db *sql.DB) error {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM pragma_foreign_key_list('workout_exercises') WHERE "table" = 'exercises'`).Scan(&count)
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}

	ctx := context.Background()
	conn, err := db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Dropping the old table must not cascade into workout_sets.
	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return err
	}
	defer conn.ExecContext(ctx, "PRAGMA foreign_keys = ON")

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	migrations := []string{
		`CREATE TABLE workout_exercises_new (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			workout_id INTEGER NOT NULL,
			exercise_id INTEGER NOT NULL,
			sets INTEGER,
			reps INTEGER,
			weight REAL,
			duration REAL,
			notes TEXT,
			is_custom INTEGER DEFAULT 0,
			order_index INTEGER DEFAULT 0,
			FOREIGN KEY (workout_id) REFERENCES workouts(id) ON DELETE CASCADE
		)`,
		`INSERT INTO workout_exercises_new (id, workout_id, exercise_id, sets, reps, weight, duration, notes, is_custom, order_index)
		 SELECT id, workout_id, exercise_id, sets, reps, weight, duration, notes, COALESCE(is_custom, 0), COALESCE(order_index, 0)
		 FROM workout_exercises`,
		`DROP TABLE workout_exercises`,
		`ALTER TABLE workout_exercises_new RENAME TO workout_exercises`,
	}

	for _, migration := range migrations {
		if _, err := tx.ExecContext(ctx, migration); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// MigrateLegacySets expands first-release workout_exercises rows, which kept
// sets/reps/weight/duration inline, into individual workout_sets rows. Rows
// that already own sets are left alone. It returns the number of sets written.
func MigrateLegacySets(db *sql.DB) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		SELECT we.id, we.sets, we.reps, we.weight, we.duration
		FROM workout_exercises we
		WHERE (we.sets IS NOT NULL OR we.reps IS NOT NULL OR we.weight IS NOT NULL)
		  AND NOT EXISTS (SELECT 1 FROM workout_sets ws WHERE ws.workout_exercise_id = we.id)
	`

	type legacyRow struct {
		id       int
		sets     sql.NullInt64
		reps     *int
		weight   *float64
		duration *float64
	}

	rows, err := tx.Query(query)
	if err != nil {
		return 0, fmt.Errorf("failed to query legacy rows: %w", err)
	}

	var legacy []legacyRow
	for rows.Next() {
		var r legacyRow
		if err := rows.Scan(&r.id, &r.sets, &r.reps, &r.weight, &r.duration); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan legacy row: %w", err)
		}
		legacy = append(legacy, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("error iterating legacy rows: %w", err)
	}
	rows.Close()

	insert := `
		INSERT INTO workout_sets (workout_exercise_id, set_number, reps, weight, duration)
		VALUES (?, ?, ?, ?, ?)
	`

	migrated := 0
	for _, r := range legacy {
		numSets := 1
		if r.sets.Valid && r.sets.Int64 > 0 {
			numSets = int(r.sets.Int64)
		}
		for setNum := 1; setNum <= numSets; setNum++ {
			if _, err := tx.Exec(insert, r.id, setNum, r.reps, r.weight, r.duration); err != nil {
				return 0, fmt.Errorf("failed to insert migrated set: %w", err)
			}
			migrated++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit legacy migration: %w", err)
	}

	return migrated, nil
}

// MergeDuplicateWorkouts folds workouts that share a (user, date) into the
// oldest row for that day. Earlier releases inserted a new row on every
// submission. Exercises keep their order after the ones already on the day
// and notes are joined line by line. It returns the number of rows folded
// away.
func MergeDuplicateWorkouts(db *sql.DB) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	type workoutDay struct {
		userID int
		date   string
	}

	rows, err := tx.Query("SELECT user_id, date FROM workouts GROUP BY user_id, date HAVING COUNT(*) > 1")
	if err != nil {
		return 0, fmt.Errorf("failed to query duplicate workouts: %w", err)
	}

	var days []workoutDay
	for rows.Next() {
		var d workoutDay
		if err := rows.Scan(&d.userID, &d.date); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan duplicate workout: %w", err)
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("error iterating duplicate workouts: %w", err)
	}
	rows.Close()

	folded := 0
	for _, d := range days {
		n, err := mergeWorkoutDay(tx, d.userID, d.date)
		if err != nil {
			return 0, err
		}
		folded += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit workout merge: %w", err)
	}

	return folded, nil
}

func mergeWorkoutDay(tx *sql.Tx, userID int, date string) (int, error) {
	type workoutRow struct {
		id        int
		notes     string
		isRestDay bool
	}

	rows, err := tx.Query(`
		SELECT id, COALESCE(notes, ''), COALESCE(is_rest_day, 0)
		FROM workouts
		WHERE user_id = ? AND date = ?
		ORDER BY id
	`, userID, date)
	if err != nil {
		return 0, fmt.Errorf("failed to query workouts on %s: %w", date, err)
	}

	var day []workoutRow
	for rows.Next() {
		var w workoutRow
		if err := rows.Scan(&w.id, &w.notes, &w.isRestDay); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan workout: %w", err)
		}
		day = append(day, w)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("error iterating workouts: %w", err)
	}
	rows.Close()

	if len(day) < 2 {
		return 0, nil
	}

	keep := day[0]
	var notes []string
	restDay := true
	for _, w := range day {
		if w.notes != "" {
			notes = append(notes, w.notes)
		}
		restDay = restDay && w.isRestDay
	}

	var nextIndex int
	err = tx.QueryRow("SELECT COALESCE(MAX(order_index), -1) + 1 FROM workout_exercises WHERE workout_id = ?", keep.id).Scan(&nextIndex)
	if err != nil {
		return 0, fmt.Errorf("failed to get next order index: %w", err)
	}

	for _, dup := range day[1:] {
		exerciseIDs, err := workoutExerciseIDs(tx, dup.id)
		if err != nil {
			return 0, err
		}
		for _, id := range exerciseIDs {
			if _, err := tx.Exec("UPDATE workout_exercises SET workout_id = ?, order_index = ? WHERE id = ?", keep.id, nextIndex, id); err != nil {
				return 0, fmt.Errorf("failed to move workout exercise: %w", err)
			}
			nextIndex++
		}
		if _, err := tx.Exec("DELETE FROM workouts WHERE id = ?", dup.id); err != nil {
			return 0, fmt.Errorf("failed to delete duplicate workout: %w", err)
		}
	}

	if nextIndex > 0 {
		restDay = false
	}

	mergedAt := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.Exec("UPDATE workouts SET notes = ?, is_rest_day = ?, merged_at = ? WHERE id = ?",
		strings.Join(notes, "\n"), restDay, mergedAt, keep.id)
	if err != nil {
		return 0, fmt.Errorf("failed to update merged workout: %w", err)
	}

	return len(day) - 1, nil
}

func workoutExerciseIDs(tx *sql.Tx, workoutID int) ([]int, error) {
	rows, err := tx.Query("SELECT id FROM workout_exercises WHERE workout_id = ? ORDER BY COALESCE(order_index, 0), id", workoutID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workout exercises: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan workout exercise: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// NormalizeUserEmails lowercases stored emails, which earlier releases kept
// as typed. An address whose lowercase form already belongs to another
// account is left unchanged. It returns the number of rows updated.
func NormalizeUserEmails(db *sql.DB) (int, error) {
	type userEmail struct {
		id    int
		email string
	}

	rows, err := db.Query("SELECT id, email FROM users WHERE email != LOWER(TRIM(email)) ORDER BY id")
	if err != nil {
		return 0, fmt.Errorf("failed to query user emails: %w", err)
	}

	var pending []userEmail
	for rows.Next() {
		var u userEmail
		if err := rows.Scan(&u.id, &u.email); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan user email: %w", err)
		}
		pending = append(pending, u)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("error iterating user emails: %w", err)
	}
	rows.Close()

	updated := 0
	for _, u := range pending {
		normalized := strings.ToLower(strings.TrimSpace(u.email))
		if _, err := db.Exec("UPDATE users SET email = ? WHERE id = ?", normalized, u.id); err != nil {
			if IsUniqueViolation(err) {
				logger.Warn("Email already taken in lowercase form, left unchanged", "user_id", u.id, "email", u.email)
				continue
			}
			return updated, fmt.Errorf("failed to normalize email for user %d: %w", u.id, err)
		}
		updated++
	}

	return updated, nil
}
