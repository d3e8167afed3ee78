package database

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"setora/internal/logger"
	"setora/internal/models"

	"golang.org/x/crypto/bcrypt"
)

// Session timestamps are stored as text so that expiry checks are plain
// string comparisons.
const sessionTimeLayout = "2006-01-02T15:04:05.000000"

const userColumns = `id, email, password_hash, name, age, gender, height, weight, goal,
	COALESCE(unit_preference, 'kg'), COALESCE(theme_preference, 'light')`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.Age,
		&user.Gender,
		&user.Height,
		&user.Weight,
		&user.Goal,
		&user.UnitPreference,
		&user.ThemePreference,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func GetUserByID(db *sql.DB, userID int) (*models.User, error) {
	user, err := scanUser(db.QueryRow("SELECT "+userColumns+" FROM users WHERE id = ?", userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

func CreateUser(db *sql.DB, email, password, name string) (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	query := `
		INSERT INTO users (email, password_hash, name, unit_preference, theme_preference)
		VALUES (?, ?, ?, 'kg', 'light')
	`

	result, err := db.Exec(query, email, string(hashedPassword), name)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get user ID: %w", err)
	}

	return &models.User{
		ID:              int(id),
		Email:           email,
		PasswordHash:    string(hashedPassword),
		Name:            name,
		UnitPreference:  "kg",
		ThemePreference: "light",
	}, nil
}

// AuthenticateUser checks the password against the stored hash. Emails
// match case-insensitively, preferring an exact match. Accounts created
// before bcrypt carry an unsalted SHA-256 hex digest; those are accepted
// once and rehashed.
func AuthenticateUser(db *sql.DB, email, password string) (*models.User, error) {
	query := "SELECT " + userColumns + ` FROM users
		WHERE email = ? COLLATE NOCASE
		ORDER BY email = ? DESC, id
		LIMIT 1`

	user, err := scanUser(db.QueryRow(query, email, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	if isLegacyHash(user.PasswordHash) {
		sum := sha256.Sum256([]byte(password))
		if subtle.ConstantTimeCompare([]byte(hex.EncodeToString(sum[:])), []byte(user.PasswordHash)) != 1 {
			return nil, ErrInvalidCredentials
		}
		if err := UpdatePassword(db, user.ID, password); err != nil {
			logger.Warn("Failed to upgrade legacy password hash", "user_id", user.ID, "error", err)
		}
		return user, nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

func isLegacyHash(hash string) bool {
	if len(hash) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(hash)
	return err == nil
}

func UpdatePassword(db *sql.DB, userID int, newPassword string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	_, err = db.Exec("UPDATE users SET password_hash = ? WHERE id = ?", string(hashedPassword), userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return nil
}

func UpdateUserProfile(db *sql.DB, userID int, update models.ProfileUpdate) error {
	query := `
		UPDATE users SET
			name = COALESCE(?, name),
			age = COALESCE(?, age),
			gender = COALESCE(?, gender),
			height = COALESCE(?, height),
			weight = COALESCE(?, weight),
			goal = COALESCE(?, goal),
			unit_preference = COALESCE(?, unit_preference),
			theme_preference = COALESCE(?, theme_preference)
		WHERE id = ?
	`

	result, err := db.Exec(query,
		update.Name,
		update.Age,
		update.Gender,
		update.Height,
		update.Weight,
		update.Goal,
		update.UnitPreference,
		update.ThemePreference,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}

	return nil
}

func CreateSession(db *sql.DB, userID int, sessionDuration time.Duration) (*models.Session, error) {
	token, err := generateSecureToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := time.Now().UTC()
	expiresAt := now.Add(sessionDuration)

	query := `
		INSERT INTO sessions (user_id, token, expires_at)
		VALUES (?, ?, ?)
	`

	_, err = db.Exec(query, userID, token, expiresAt.Format(sessionTimeLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &models.Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}, nil
}

// ValidateSession returns the owner of an unexpired session token.
func ValidateSession(db *sql.DB, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}

	query := `
		SELECT u.id, u.email, u.password_hash, u.name, u.age, u.gender, u.height, u.weight, u.goal,
		       COALESCE(u.unit_preference, 'kg'), COALESCE(u.theme_preference, 'light')
		FROM users u
		INNER JOIN sessions s ON u.id = s.user_id
		WHERE s.token = ? AND s.expires_at > ?
	`

	user, err := scanUser(db.QueryRow(query, token, time.Now().UTC().Format(sessionTimeLayout)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to validate session: %w", err)
	}

	return user, nil
}

func DeleteSession(db *sql.DB, token string) error {
	_, err := db.Exec("DELETE FROM sessions WHERE token = ?", token)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func CleanupExpiredSessions(db *sql.DB) (int64, error) {
	result, err := db.Exec("DELETE FROM sessions WHERE expires_at < ?", time.Now().UTC().Format(sessionTimeLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired sessions: %w", err)
	}
	return result.RowsAffected()
}

func generateSecureToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
