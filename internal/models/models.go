package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type User struct {
	ID              int      `json:"id" db:"id"`
	Email           string   `json:"email" db:"email"`
	PasswordHash    string   `json:"-" db:"password_hash"`
	Name            string   `json:"name" db:"name"`
	Age             *int     `json:"age" db:"age"`
	Gender          *string  `json:"gender" db:"gender"`
	Height          *float64 `json:"height" db:"height"`
	Weight          *float64 `json:"weight" db:"weight"`
	Goal            *string  `json:"goal" db:"goal"`
	UnitPreference  string   `json:"unit_preference" db:"unit_preference"`
	ThemePreference string   `json:"theme_preference" db:"theme_preference"`
}

// ProfileUpdate carries the optional fields of a profile edit. Nil fields
// are left untouched.
type ProfileUpdate struct {
	Name            *string  `json:"name" binding:"omitempty,min=1,max=100"`
	Age             *int     `json:"age" binding:"omitempty,min=0,max=150"`
	Gender          *string  `json:"gender" binding:"omitempty,max=50"`
	Height          *float64 `json:"height" binding:"omitempty,gte=0"`
	Weight          *float64 `json:"weight" binding:"omitempty,gte=0"`
	Goal            *string  `json:"goal" binding:"omitempty,max=500"`
	UnitPreference  *string  `json:"unit_preference" binding:"omitempty,oneof=kg lbs"`
	ThemePreference *string  `json:"theme_preference" binding:"omitempty,oneof=light dark"`
}

type Session struct {
	Token     string    `json:"token" db:"token"`
	UserID    int       `json:"user_id" db:"user_id"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Exercise is an entry of the built-in catalog.
type Exercise struct {
	ID        int    `json:"id" db:"id"`
	Name      string `json:"name" db:"name"`
	Category  string `json:"category" db:"category"`
	Equipment string `json:"equipment" db:"equipment"`
}

type CustomExercise struct {
	ID        int       `json:"id" db:"id"`
	UserID    int       `json:"user_id" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	Category  string    `json:"category" db:"category"`
	Equipment string    `json:"equipment" db:"equipment"`
	ImageURL  string    `json:"image_url" db:"image_url"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CatalogEntry is one row of the combined built-in and custom listing.
type CatalogEntry struct {
	ID        ExerciseRef `json:"id"`
	Name      string      `json:"name"`
	Category  string      `json:"category"`
	Equipment string      `json:"equipment"`
	ImageURL  string      `json:"image_url,omitempty"`
	IsCustom  bool        `json:"is_custom"`
}

const customPrefix = "custom_"

// ExerciseRef identifies either a built-in exercise (plain integer id) or a
// user's custom exercise ("custom_<n>").
type ExerciseRef struct {
	ID       int
	IsCustom bool
}

func (r ExerciseRef) String() string {
	if r.IsCustom {
		return customPrefix + strconv.Itoa(r.ID)
	}
	return strconv.Itoa(r.ID)
}

// ParseExerciseRef decodes "12", "custom_12".
func ParseExerciseRef(s string) (ExerciseRef, error) {
	s = strings.TrimSpace(s)
	isCustom := strings.HasPrefix(s, customPrefix)
	n, err := strconv.Atoi(strings.TrimPrefix(s, customPrefix))
	if err != nil || n <= 0 {
		return ExerciseRef{}, fmt.Errorf("invalid exercise id %q", s)
	}
	return ExerciseRef{ID: n, IsCustom: isCustom}, nil
}

func (r ExerciseRef) MarshalJSON() ([]byte, error) {
	if r.IsCustom {
		return json.Marshal(r.String())
	}
	return json.Marshal(r.ID)
}

func (r *ExerciseRef) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		if n <= 0 {
			return fmt.Errorf("invalid exercise id %d", n)
		}
		*r = ExerciseRef{ID: n}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("exercise id must be a number or string: %w", err)
	}
	ref, err := ParseExerciseRef(s)
	if err != nil {
		return err
	}
	*r = ref
	return nil
}

type Workout struct {
	ID        int               `json:"id" db:"id"`
	UserID    int               `json:"user_id" db:"user_id"`
	Date      string            `json:"date" db:"date"`
	Notes     string            `json:"notes" db:"notes"`
	IsRestDay bool              `json:"is_rest_day" db:"is_rest_day"`
	MergedAt  *string           `json:"merged_at" db:"merged_at"`
	DayType   string            `json:"day_type"`
	Exercises []WorkoutExercise `json:"exercises"`
}

type WorkoutExercise struct {
	ID         int          `json:"id" db:"id"`
	WorkoutID  int          `json:"workout_id" db:"workout_id"`
	ExerciseID ExerciseRef  `json:"exercise_id" db:"exercise_id"`
	IsCustom   bool         `json:"is_custom" db:"is_custom"`
	OrderIndex int          `json:"order_index" db:"order_index"`
	Notes      string       `json:"notes" db:"notes"`
	Name       string       `json:"name"`
	Category   string       `json:"category"`
	Sets       []WorkoutSet `json:"sets"`
}

type WorkoutSet struct {
	ID                int      `json:"id" db:"id"`
	WorkoutExerciseID int      `json:"workout_exercise_id" db:"workout_exercise_id"`
	SetNumber         int      `json:"set_number" db:"set_number"`
	Reps              *int     `json:"reps" db:"reps"`
	Weight            *float64 `json:"weight" db:"weight"`
	Duration          *float64 `json:"duration" db:"duration"`
	Notes             string   `json:"notes" db:"notes"`
}

// WorkoutSubmission is the body of a workout log request.
type WorkoutSubmission struct {
	Date      string          `json:"date" binding:"required,datetime=2006-01-02"`
	Notes     string          `json:"notes" binding:"max=2000"`
	IsRestDay bool            `json:"is_rest_day"`
	Exercises []ExerciseEntry `json:"exercises" binding:"dive"`
}

type ExerciseEntry struct {
	ExerciseID ExerciseRef `json:"exercise_id"`
	Notes      string      `json:"notes"`
	Sets       []SetEntry  `json:"sets" binding:"dive"`
}

type SetEntry struct {
	Reps     *int     `json:"reps" binding:"omitempty,gte=0"`
	Weight   *float64 `json:"weight" binding:"omitempty,gte=0"`
	Duration *float64 `json:"duration" binding:"omitempty,gte=0"`
	Notes    string   `json:"notes"`
}

// UpsertResult reports what a workout submission did.
type UpsertResult struct {
	WorkoutID int  `json:"workout_id"`
	Merged    bool `json:"merged"`
}

type WeightLog struct {
	ID     int     `json:"id" db:"id"`
	UserID int     `json:"-" db:"user_id"`
	Date   string  `json:"date" db:"date"`
	Weight float64 `json:"weight" db:"weight"`
}

type WorkoutTemplate struct {
	ID        int             `json:"id" db:"id"`
	UserID    int             `json:"-" db:"user_id"`
	Name      string          `json:"name" db:"name"`
	Exercises json.RawMessage `json:"exercises" db:"exercises"`
}
