package database

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"setora/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := Initialize(":memory:")
	require.NoError(t, err, "failed to open test database")
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(db), "failed to run migrations")

	seeded, err := SeedExercises(db)
	require.NoError(t, err)
	require.Equal(t, len(builtinExercises), seeded)

	return db
}

func createTestUser(t *testing.T, db *sql.DB, email string) *models.User {
	t.Helper()

	user, err := CreateUser(db, email, "password123", "Test User")
	require.NoError(t, err)
	return user
}

func exerciseID(t *testing.T, db *sql.DB, name string) int {
	t.Helper()

	var id int
	require.NoError(t, db.QueryRow("SELECT id FROM exercises WHERE name = ?", name).Scan(&id))
	return id
}

func intPtr(n int) *int                 { return &n }
func floatPtr(f float64) *float64       { return &f }
func strPtr(s string) *string           { return &s }
func builtin(id int) models.ExerciseRef { return models.ExerciseRef{ID: id} }

func TestMigrateIsIdempotent(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, Migrate(db))

	seeded, err := SeedExercises(db)
	require.NoError(t, err)
	assert.Zero(t, seeded, "seeding twice should not duplicate the catalog")

	for _, col := range []struct{ table, column string }{
		{"workouts", "is_rest_day"},
		{"workouts", "merged_at"},
		{"workout_exercises", "is_custom"},
		{"workout_exercises", "order_index"},
	} {
		exists, err := hasColumn(db, col.table, col.column)
		require.NoError(t, err)
		assert.True(t, exists, "%s.%s should exist", col.table, col.column)
	}
}

func TestUserCreationAndAuthentication(t *testing.T) {
	db := setupTestDB(t)

	user := createTestUser(t, db, "test@example.com")
	assert.Equal(t, "test@example.com", user.Email)
	assert.Equal(t, "kg", user.UnitPreference)
	assert.Equal(t, "light", user.ThemePreference)

	authUser, err := AuthenticateUser(db, "test@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, authUser.ID)

	_, err = AuthenticateUser(db, "test@example.com", "wrongpassword")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = AuthenticateUser(db, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = CreateUser(db, "test@example.com", "password456", "Someone Else")
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
}

func TestLegacyPasswordIsUpgraded(t *testing.T) {
	db := setupTestDB(t)

	sum := sha256.Sum256([]byte("oldsecret"))
	_, err := db.Exec("INSERT INTO users (email, password_hash, name) VALUES (?, ?, ?)",
		"legacy@example.com", hex.EncodeToString(sum[:]), "Legacy")
	require.NoError(t, err)

	_, err = AuthenticateUser(db, "legacy@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	user, err := AuthenticateUser(db, "legacy@example.com", "oldsecret")
	require.NoError(t, err)
	assert.Equal(t, "Legacy", user.Name)

	var stored string
	require.NoError(t, db.QueryRow("SELECT password_hash FROM users WHERE id = ?", user.ID).Scan(&stored))
	assert.True(t, strings.HasPrefix(stored, "$2"), "legacy hash should be replaced by bcrypt")

	_, err = AuthenticateUser(db, "legacy@example.com", "oldsecret")
	assert.NoError(t, err)
}

func TestUpdateUserProfile(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "profile@example.com")

	err := UpdateUserProfile(db, user.ID, models.ProfileUpdate{
		Age:             intPtr(30),
		Height:          floatPtr(180.5),
		ThemePreference: strPtr("dark"),
	})
	require.NoError(t, err)

	updated, err := GetUserByID(db, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test User", updated.Name, "omitted fields stay unchanged")
	require.NotNil(t, updated.Age)
	assert.Equal(t, 30, *updated.Age)
	require.NotNil(t, updated.Height)
	assert.Equal(t, 180.5, *updated.Height)
	assert.Equal(t, "dark", updated.ThemePreference)
	assert.Nil(t, updated.Gender)

	err = UpdateUserProfile(db, 9999, models.ProfileUpdate{Name: strPtr("Ghost")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionManagement(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "session@example.com")

	session, err := CreateSession(db, user.ID, time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.True(t, session.ExpiresAt.After(time.Now()))

	validated, err := ValidateSession(db, session.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, validated.ID)

	_, err = ValidateSession(db, "invalid-token")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = ValidateSession(db, "")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, DeleteSession(db, session.Token))
	_, err = ValidateSession(db, session.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestExpiredSessions(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "expired@example.com")

	expired, err := CreateSession(db, user.ID, -time.Minute)
	require.NoError(t, err)
	live, err := CreateSession(db, user.ID, time.Hour)
	require.NoError(t, err)

	_, err = ValidateSession(db, expired.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	removed, err := CleanupExpiredSessions(db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = ValidateSession(db, live.Token)
	assert.NoError(t, err)
}

func TestExerciseCatalog(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "catalog@example.com")
	other := createTestUser(t, db, "other@example.com")

	custom, err := CreateCustomExercise(db, user.ID, models.CustomExercise{
		Name:      "Cable Fly",
		Category:  "Chest",
		Equipment: "Cable",
	})
	require.NoError(t, err)
	assert.Equal(t, user.ID, custom.UserID)

	_, err = CreateCustomExercise(db, user.ID, models.CustomExercise{Name: "Cable Fly", Category: "Chest"})
	assert.True(t, IsUniqueViolation(err), "custom names are unique per user")

	_, err = CreateCustomExercise(db, other.ID, models.CustomExercise{Name: "Cable Fly", Category: "Chest"})
	assert.NoError(t, err, "another user may reuse the name")

	all, err := GetAllExercises(db, user.ID)
	require.NoError(t, err)
	assert.Len(t, all, len(builtinExercises)+1)

	for i := 1; i < len(all); i++ {
		prev, cur := all[i-1], all[i]
		assert.True(t, prev.Category < cur.Category || (prev.Category == cur.Category && prev.Name <= cur.Name),
			"catalog out of order at %d: %s/%s before %s/%s", i, prev.Category, prev.Name, cur.Category, cur.Name)
	}

	var found *models.CatalogEntry
	for i := range all {
		if all[i].IsCustom {
			found = &all[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, "custom_"+strconv.Itoa(custom.ID), found.ID.String())

	_, err = CreateExercise(db, "Bench Press", "Chest", "Barbell")
	assert.True(t, IsUniqueViolation(err))
}

func TestDeleteCustomExercise(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "delete@example.com")
	other := createTestUser(t, db, "intruder@example.com")

	unused, err := CreateCustomExercise(db, user.ID, models.CustomExercise{Name: "Sled Push", Category: "Legs"})
	require.NoError(t, err)
	used, err := CreateCustomExercise(db, user.ID, models.CustomExercise{Name: "Landmine Press", Category: "Shoulders"})
	require.NoError(t, err)

	_, err = UpsertWorkout(db, user.ID, models.WorkoutSubmission{
		Date: "2024-03-01",
		Exercises: []models.ExerciseEntry{
			{ExerciseID: models.ExerciseRef{ID: used.ID, IsCustom: true}, Sets: []models.SetEntry{{Reps: intPtr(8)}}},
		},
	})
	require.NoError(t, err)

	assert.ErrorIs(t, DeleteCustomExercise(db, other.ID, unused.ID), ErrNotFound)
	assert.ErrorIs(t, DeleteCustomExercise(db, user.ID, used.ID), ErrExerciseInUse)
	assert.NoError(t, DeleteCustomExercise(db, user.ID, unused.ID))

	custom, err := GetCustomExercises(db, user.ID)
	require.NoError(t, err)
	require.Len(t, custom, 1)
	assert.Equal(t, "Landmine Press", custom[0].Name)
}

func TestUpsertWorkoutCreatesAndMerges(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "merge@example.com")
	bench := exerciseID(t, db, "Bench Press")
	curl := exerciseID(t, db, "Barbell Curl")

	first, err := UpsertWorkout(db, user.ID, models.WorkoutSubmission{
		Date:  "2024-03-01",
		Notes: "morning",
		Exercises: []models.ExerciseEntry{
			{ExerciseID: builtin(bench), Sets: []models.SetEntry{
				{Reps: intPtr(10), Weight: floatPtr(60)},
				{Reps: intPtr(8), Weight: floatPtr(70)},
			}},
		},
	})
	require.NoError(t, err)
	assert.False(t, first.Merged)

	second, err := UpsertWorkout(db, user.ID, models.WorkoutSubmission{
		Date:  "2024-03-01",
		Notes: "evening",
		Exercises: []models.ExerciseEntry{
			{ExerciseID: builtin(curl), Sets: []models.SetEntry{{Reps: intPtr(12), Weight: floatPtr(25)}}},
		},
	})
	require.NoError(t, err)
	assert.True(t, second.Merged)
	assert.Equal(t, first.WorkoutID, second.WorkoutID)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM workouts WHERE user_id = ? AND date = ?", user.ID, "2024-03-01").Scan(&count))
	assert.Equal(t, 1, count)

	workout, err := GetWorkoutByDate(db, user.ID, "2024-03-01")
	require.NoError(t, err)
	assert.False(t, workout.IsRestDay)
	assert.NotNil(t, workout.MergedAt)
	assert.Equal(t, "morning\nevening", workout.Notes)
	assert.Equal(t, "Biceps + Chest Day", workout.DayType)

	require.Len(t, workout.Exercises, 2)
	assert.Equal(t, "Bench Press", workout.Exercises[0].Name)
	assert.Equal(t, 0, workout.Exercises[0].OrderIndex)
	assert.Equal(t, "Barbell Curl", workout.Exercises[1].Name)
	assert.Equal(t, 1, workout.Exercises[1].OrderIndex)

	sets := workout.Exercises[0].Sets
	require.Len(t, sets, 2)
	assert.Equal(t, 1, sets[0].SetNumber)
	assert.Equal(t, 2, sets[1].SetNumber)
	assert.Equal(t, 70.0, *sets[1].Weight)
	require.Len(t, workout.Exercises[1].Sets, 1)
	assert.Equal(t, 1, workout.Exercises[1].Sets[0].SetNumber)
}

func TestUpsertWorkoutRestDay(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "rest@example.com")
	squat := exerciseID(t, db, "Squat")

	_, err := UpsertWorkout(db, user.ID, models.WorkoutSubmission{
		Date: "2024-03-02",
		Exercises: []models.ExerciseEntry{
			{ExerciseID: builtin(squat), Sets: []models.SetEntry{{Reps: intPtr(5), Weight: floatPtr(100)}}},
		},
	})
	require.NoError(t, err)

	result, err := UpsertWorkout(db, user.ID, models.WorkoutSubmission{Date: "2024-03-02", IsRestDay: true, Notes: "sore"})
	require.NoError(t, err)
	assert.True(t, result.Merged)

	workout, err := GetWorkoutByDate(db, user.ID, "2024-03-02")
	require.NoError(t, err)
	assert.True(t, workout.IsRestDay)
	assert.Equal(t, "Rest Day", workout.DayType)
	assert.Empty(t, workout.Exercises)
	assert.Equal(t, "sore", workout.Notes)

	var orphans int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM workout_sets").Scan(&orphans))
	assert.Zero(t, orphans)

	_, err = UpsertWorkout(db, user.ID, models.WorkoutSubmission{
		Date: "2024-03-02",
		Exercises: []models.ExerciseEntry{
			{ExerciseID: builtin(squat), Sets: []models.SetEntry{{Reps: intPtr(5)}}},
		},
	})
	require.NoError(t, err)

	workout, err = GetWorkoutByDate(db, user.ID, "2024-03-02")
	require.NoError(t, err)
	assert.False(t, workout.IsRestDay, "logging exercises clears the rest flag")
	assert.Equal(t, "Legs Day", workout.DayType)
	assert.Len(t, workout.Exercises, 1)
}

func TestUpsertWorkoutUnknownExerciseRollsBack(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "unknown@example.com")
	other := createTestUser(t, db, "owner@example.com")
	bench := exerciseID(t, db, "Bench Press")

	foreign, err := CreateCustomExercise(db, other.ID, models.CustomExercise{Name: "Secret Move", Category: "Core"})
	require.NoError(t, err)

	for name, ref := range map[string]models.ExerciseRef{
		"missing builtin":       builtin(99999),
		"another user's custom": {ID: foreign.ID, IsCustom: true},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := UpsertWorkout(db, user.ID, models.WorkoutSubmission{
				Date: "2024-03-03",
				Exercises: []models.ExerciseEntry{
					{ExerciseID: builtin(bench), Sets: []models.SetEntry{{Reps: intPtr(10)}}},
					{ExerciseID: ref, Sets: []models.SetEntry{{Reps: intPtr(10)}}},
				},
			})
			assert.ErrorIs(t, err, ErrUnknownExercise)

			_, err = GetWorkoutByDate(db, user.ID, "2024-03-03")
			assert.ErrorIs(t, err, ErrNotFound, "nothing from the failed request should be stored")
		})
	}
}

func TestGetWorkoutsAndDelete(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "list@example.com")
	deadlift := exerciseID(t, db, "Deadlift")

	for _, date := range []string{"2024-01-10", "2024-01-20", "2024-01-15"} {
		_, err := UpsertWorkout(db, user.ID, models.WorkoutSubmission{
			Date: date,
			Exercises: []models.ExerciseEntry{
				{ExerciseID: builtin(deadlift), Sets: []models.SetEntry{{Reps: intPtr(3), Weight: floatPtr(140)}}},
			},
		})
		require.NoError(t, err)
	}

	workouts, err := GetWorkouts(db, user.ID, WorkoutFilter{})
	require.NoError(t, err)
	require.Len(t, workouts, 3)
	assert.Equal(t, "2024-01-20", workouts[0].Date)
	assert.Equal(t, "2024-01-15", workouts[1].Date)
	assert.Equal(t, "2024-01-10", workouts[2].Date)
	assert.Equal(t, "Back Day", workouts[0].DayType)

	filtered, err := GetWorkouts(db, user.ID, WorkoutFilter{StartDate: "2024-01-12", EndDate: "2024-01-20"})
	require.NoError(t, err)
	assert.Len(t, filtered, 2)

	other := createTestUser(t, db, "stranger@example.com")
	theirs, err := GetWorkouts(db, other.ID, WorkoutFilter{})
	require.NoError(t, err)
	assert.Empty(t, theirs)

	require.NoError(t, DeleteWorkout(db, user.ID, "2024-01-15"))
	assert.ErrorIs(t, DeleteWorkout(db, user.ID, "2024-01-15"), ErrNotFound)

	var sets int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM workout_sets").Scan(&sets))
	assert.Equal(t, 2, sets)
}

func TestWeightLogs(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "weight@example.com")

	first, err := LogWeight(db, user.ID, "2024-02-01", 80.5)
	require.NoError(t, err)
	_, err = LogWeight(db, user.ID, "2024-02-08", 79.0)
	require.NoError(t, err)

	replaced, err := LogWeight(db, user.ID, "2024-02-01", 81.0)
	require.NoError(t, err)
	assert.Equal(t, first.ID, replaced.ID, "same date should replace the sample")

	logs, err := GetWeightLogs(db, user.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "2024-02-08", logs[0].Date)
	assert.Equal(t, 81.0, logs[1].Weight)

	assert.ErrorIs(t, DeleteWeightLog(db, user.ID+1, first.ID), ErrNotFound)
	require.NoError(t, DeleteWeightLog(db, user.ID, first.ID))

	logs, err = GetWeightLogs(db, user.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestTemplates(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "templates@example.com")

	exercises := json.RawMessage(`[{"exercise_id":1,"sets":3},{"exercise_id":"custom_2","sets":4}]`)
	tmpl, err := CreateTemplate(db, user.ID, "Push Day", exercises)
	require.NoError(t, err)
	assert.Equal(t, "Push Day", tmpl.Name)

	_, err = CreateTemplate(db, user.ID, "Broken", json.RawMessage(`[{`))
	assert.Error(t, err)

	_, err = db.Exec("INSERT INTO workout_templates (user_id, name, exercises) VALUES (?, ?, ?)", user.ID, "Corrupt", "not json")
	require.NoError(t, err)

	templates, err := GetTemplates(db, user.ID)
	require.NoError(t, err)
	require.Len(t, templates, 2)
	assert.Equal(t, "Corrupt", templates[0].Name)
	assert.JSONEq(t, `[]`, string(templates[0].Exercises))
	assert.JSONEq(t, string(exercises), string(templates[1].Exercises))

	assert.ErrorIs(t, DeleteTemplate(db, user.ID+1, tmpl.ID), ErrNotFound)
	assert.NoError(t, DeleteTemplate(db, user.ID, tmpl.ID))
}

func TestGetProgress(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "progress@example.com")
	bench := exerciseID(t, db, "Bench Press")
	pushups := exerciseID(t, db, "Push-ups")
	squat := exerciseID(t, db, "Squat")

	empty, err := GetProgress(db, user.ID)
	require.NoError(t, err)
	assert.Empty(t, empty.WorkoutStats)
	assert.Empty(t, empty.CategoryFrequency)
	assert.Nil(t, empty.WeightTrend)

	_, err = UpsertWorkout(db, user.ID, models.WorkoutSubmission{
		Date: "2024-04-01",
		Exercises: []models.ExerciseEntry{
			{ExerciseID: builtin(bench), Sets: []models.SetEntry{
				{Reps: intPtr(10), Weight: floatPtr(50)},
				{Reps: intPtr(10), Weight: floatPtr(50)},
			}},
			{ExerciseID: builtin(pushups), Sets: []models.SetEntry{{Reps: intPtr(20)}}},
			{ExerciseID: builtin(squat), Sets: []models.SetEntry{{Reps: intPtr(5), Weight: floatPtr(100)}}},
		},
	})
	require.NoError(t, err)
	_, err = UpsertWorkout(db, user.ID, models.WorkoutSubmission{
		Date: "2024-04-03",
		Exercises: []models.ExerciseEntry{
			{ExerciseID: builtin(bench), Sets: []models.SetEntry{{Reps: intPtr(5), Weight: floatPtr(60)}}},
		},
	})
	require.NoError(t, err)
	_, err = UpsertWorkout(db, user.ID, models.WorkoutSubmission{Date: "2024-04-02", IsRestDay: true})
	require.NoError(t, err)

	_, err = LogWeight(db, user.ID, "2024-04-01", 82)
	require.NoError(t, err)
	_, err = LogWeight(db, user.ID, "2024-04-03", 81.5)
	require.NoError(t, err)

	progress, err := GetProgress(db, user.ID)
	require.NoError(t, err)

	require.Len(t, progress.WorkoutStats, 3)
	assert.Equal(t, WorkoutStat{Date: "2024-04-01", Category: "Chest", Volume: 1000, ExerciseCount: 2}, progress.WorkoutStats[0])
	assert.Equal(t, WorkoutStat{Date: "2024-04-01", Category: "Legs", Volume: 500, ExerciseCount: 1}, progress.WorkoutStats[1])
	assert.Equal(t, WorkoutStat{Date: "2024-04-03", Category: "Chest", Volume: 300, ExerciseCount: 1}, progress.WorkoutStats[2])

	assert.Equal(t, []CategoryFrequency{
		{Category: "Chest", Frequency: 2},
		{Category: "Legs", Frequency: 1},
	}, progress.CategoryFrequency)

	assert.Equal(t, ProgressSummary{TotalWorkouts: 2, RestDays: 1, TotalSets: 5, TotalVolume: 1800}, progress.Summary)

	require.NotNil(t, progress.WeightTrend)
	assert.Equal(t, "2024-04-01", progress.WeightTrend.StartDate)
	assert.Equal(t, "2024-04-03", progress.WeightTrend.LatestDate)
	assert.InDelta(t, -0.5, progress.WeightTrend.Change, 1e-9)
}

func TestMigrateLegacySchema(t *testing.T) {
	db, err := Initialize(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	legacy := []string{
		`CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			name TEXT NOT NULL,
			age INTEGER, gender TEXT, height REAL, weight REAL, goal TEXT,
			unit_preference TEXT DEFAULT 'kg',
			theme_preference TEXT DEFAULT 'light',
			created_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE exercises (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			category TEXT NOT NULL,
			equipment TEXT
		)`,
		`CREATE TABLE workouts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			date TEXT NOT NULL,
			notes TEXT,
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`,
		`CREATE TABLE workout_exercises (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			workout_id INTEGER NOT NULL,
			exercise_id INTEGER NOT NULL,
			sets INTEGER, reps INTEGER, weight REAL, duration REAL, notes TEXT,
			FOREIGN KEY (workout_id) REFERENCES workouts(id),
			FOREIGN KEY (exercise_id) REFERENCES exercises(id)
		)`,
		`INSERT INTO users (id, email, password_hash, name) VALUES (1, 'old@example.com', 'x', 'Old')`,
		`INSERT INTO exercises (id, name, category) VALUES (1, 'Bench Press', 'Chest')`,
		`INSERT INTO exercises (id, name, category) VALUES (2, 'Squat', 'Legs')`,
		`INSERT INTO workouts (id, user_id, date, notes) VALUES (1, 1, '2023-12-01', 'morning')`,
		`INSERT INTO workout_exercises (workout_id, exercise_id, sets, reps, weight) VALUES (1, 1, 3, 10, 60)`,
		`INSERT INTO workout_exercises (workout_id, exercise_id, sets, reps, weight) VALUES (1, 1, NULL, 5, 80)`,
		// Earlier releases inserted a new row for every submission on a day.
		`INSERT INTO workouts (id, user_id, date, notes) VALUES (2, 1, '2023-12-01', 'evening')`,
		`INSERT INTO workout_exercises (workout_id, exercise_id, sets, reps, weight) VALUES (2, 2, 2, 5, 100)`,
		`INSERT INTO workouts (id, user_id, date) VALUES (3, 1, '2023-12-02')`,
		`INSERT INTO workout_exercises (workout_id, exercise_id, sets, reps, weight) VALUES (3, 2, 1, 3, 120)`,
	}
	for _, stmt := range legacy {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}

	require.NoError(t, Migrate(db))

	var fks int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM pragma_foreign_key_list('workout_exercises') WHERE "table" = 'exercises'`).Scan(&fks))
	assert.Zero(t, fks, "exercise_id foreign key should be dropped")

	workouts, err := GetWorkouts(db, 1, WorkoutFilter{StartDate: "2023-12-01", EndDate: "2023-12-01"})
	require.NoError(t, err)
	require.Len(t, workouts, 1, "same-day rows should be folded into one workout")

	workout, err := GetWorkoutByDate(db, 1, "2023-12-01")
	require.NoError(t, err)
	assert.Equal(t, 1, workout.ID, "the oldest row keeps the day")
	assert.Equal(t, "morning\nevening", workout.Notes)
	assert.NotNil(t, workout.MergedAt)
	assert.Equal(t, "Chest + Legs Day", workout.DayType)
	require.Len(t, workout.Exercises, 3)
	assert.Len(t, workout.Exercises[0].Sets, 3)
	assert.Len(t, workout.Exercises[1].Sets, 1)
	assert.Equal(t, 10, *workout.Exercises[0].Sets[2].Reps)
	assert.Equal(t, 80.0, *workout.Exercises[1].Sets[0].Weight)
	assert.Equal(t, "Squat", workout.Exercises[2].Name)
	assert.Len(t, workout.Exercises[2].Sets, 2, "sets follow their exercise into the kept row")
	assert.Greater(t, workout.Exercises[2].OrderIndex, workout.Exercises[1].OrderIndex)

	untouched, err := GetWorkoutByDate(db, 1, "2023-12-02")
	require.NoError(t, err)
	assert.Nil(t, untouched.MergedAt, "days with a single row are left alone")

	_, err = db.Exec("INSERT INTO workouts (user_id, date) VALUES (1, '2023-12-02')")
	assert.True(t, IsUniqueViolation(err), "one workout per user and date is enforced by the schema")

	// A second run must not duplicate sets.
	require.NoError(t, Migrate(db))
	migrated, err := MigrateLegacySets(db)
	require.NoError(t, err)
	assert.Zero(t, migrated)

	custom, err := CreateCustomExercise(db, 1, models.CustomExercise{Name: "Band Pull", Category: "Back"})
	require.NoError(t, err)
	_, err = UpsertWorkout(db, 1, models.WorkoutSubmission{
		Date: "2023-12-01",
		Exercises: []models.ExerciseEntry{
			{ExerciseID: models.ExerciseRef{ID: custom.ID + 100, IsCustom: true}},
		},
	})
	assert.ErrorIs(t, err, ErrUnknownExercise)

	_, err = UpsertWorkout(db, 1, models.WorkoutSubmission{
		Date: "2023-12-01",
		Exercises: []models.ExerciseEntry{
			{ExerciseID: models.ExerciseRef{ID: custom.ID, IsCustom: true}, Sets: []models.SetEntry{{Reps: intPtr(15)}}},
		},
	})
	require.NoError(t, err, "custom exercise ids must be accepted once the foreign key is gone")

	workout, err = GetWorkoutByDate(db, 1, "2023-12-01")
	require.NoError(t, err)
	require.Len(t, workout.Exercises, 4)
	assert.Equal(t, "Band Pull", workout.Exercises[3].Name)
	assert.Greater(t, workout.Exercises[3].OrderIndex, workout.Exercises[2].OrderIndex)

	require.NoError(t, DeleteWorkout(db, 1, "2023-12-01"))
	_, err = GetWorkoutByDate(db, 1, "2023-12-01")
	assert.ErrorIs(t, err, ErrNotFound, "deleting a merged day removes it entirely")
}

func TestMergeDuplicateWorkoutsRestDays(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "rest@example.com")

	_, err := db.Exec("DROP INDEX idx_workouts_user_date")
	require.NoError(t, err)
	for _, notes := range []string{"", "sore"} {
		_, err := db.Exec("INSERT INTO workouts (user_id, date, notes, is_rest_day) VALUES (?, '2024-02-01', ?, 1)", user.ID, notes)
		require.NoError(t, err)
	}

	folded, err := MergeDuplicateWorkouts(db)
	require.NoError(t, err)
	assert.Equal(t, 1, folded)

	workout, err := GetWorkoutByDate(db, user.ID, "2024-02-01")
	require.NoError(t, err)
	assert.True(t, workout.IsRestDay, "a day made only of rest rows stays a rest day")
	assert.Equal(t, "sore", workout.Notes)

	folded, err = MergeDuplicateWorkouts(db)
	require.NoError(t, err)
	assert.Zero(t, folded)
}

func TestMixedCaseLegacyEmailLogin(t *testing.T) {
	db := setupTestDB(t)

	sum := sha256.Sum256([]byte("secret123"))
	_, err := db.Exec("INSERT INTO users (email, password_hash, name) VALUES (?, ?, ?)",
		"Alice@Example.com", hex.EncodeToString(sum[:]), "Alice")
	require.NoError(t, err)

	user, err := AuthenticateUser(db, "alice@example.com", "secret123")
	require.NoError(t, err, "login must not depend on the case the address was stored in")
	assert.Equal(t, "Alice", user.Name)

	updated, err := NormalizeUserEmails(db)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	var stored string
	require.NoError(t, db.QueryRow("SELECT email FROM users WHERE id = ?", user.ID).Scan(&stored))
	assert.Equal(t, "alice@example.com", stored)

	_, err = AuthenticateUser(db, "alice@example.com", "secret123")
	assert.NoError(t, err)
}

func TestNormalizeUserEmailsCollision(t *testing.T) {
	db := setupTestDB(t)
	existing := createTestUser(t, db, "bob@example.com")

	_, err := db.Exec("INSERT INTO users (email, password_hash, name) VALUES ('Bob@Example.com', 'x', 'Other Bob')")
	require.NoError(t, err)

	updated, err := NormalizeUserEmails(db)
	require.NoError(t, err)
	assert.Zero(t, updated, "a colliding address is left as it was")

	user, err := AuthenticateUser(db, "bob@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, user.ID, "the exact match wins over a case-insensitive one")
}

func TestUpsertWorkoutConcurrentSameDay(t *testing.T) {
	db, err := Initialize(filepath.Join(t.TempDir(), "setora.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, Migrate(db))
	_, err = SeedExercises(db)
	require.NoError(t, err)

	user := createTestUser(t, db, "race@example.com")
	bench := exerciseID(t, db, "Bench Press")

	const submissions = 8
	results := make([]*models.UpsertResult, submissions)
	errs := make([]error, submissions)

	var wg sync.WaitGroup
	for i := 0; i < submissions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = UpsertWorkout(db, user.ID, models.WorkoutSubmission{
				Date:      "2024-03-01",
				Exercises: []models.ExerciseEntry{{ExerciseID: builtin(bench), Sets: []models.SetEntry{{Reps: intPtr(i + 1)}}}},
			})
		}(i)
	}
	wg.Wait()

	created := 0
	for i := range results {
		require.NoError(t, errs[i])
		if !results[i].Merged {
			created++
		}
	}
	assert.Equal(t, 1, created, "exactly one submission creates the day")

	workout, err := GetWorkoutByDate(db, user.ID, "2024-03-01")
	require.NoError(t, err)
	assert.Len(t, workout.Exercises, submissions)
}
