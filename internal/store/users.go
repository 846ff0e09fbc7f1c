package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/safar/agrimarket/internal/database"
	"github.com/safar/agrimarket/internal/models"
)

const userColumns = `id, email, password_hash, first_name, last_name, role, phone_number,
	google_id, profile_picture, is_active, is_staff, verified_email, farm_name,
	farm_address, farm_description, otp_code, otp_generated_at, date_joined,
	updated_at, version`

type NewUser struct {
	Email          string
	PasswordHash   string
	FirstName      string
	LastName       string
	Role           string
	GoogleID       *string
	ProfilePicture *string
	IsActive       bool
	IsStaff        bool
	VerifiedEmail  bool
	OTPCode        *string
	OTPGeneratedAt *time.Time
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Role,
		&user.PhoneNumber,
		&user.GoogleID,
		&user.ProfilePicture,
		&user.IsActive,
		&user.IsStaff,
		&user.VerifiedEmail,
		&user.FarmName,
		&user.FarmAddress,
		&user.FarmDescription,
		&user.OTPCode,
		&user.OTPGeneratedAt,
		&user.DateJoined,
		&user.UpdatedAt,
		&user.Version,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

const insertUser = `
	INSERT INTO users (email, password_hash, first_name, last_name, role, google_id,
		profile_picture, is_active, is_staff, verified_email, otp_code, otp_generated_at,
		date_joined, updated_at, version)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW(), 1)`

func insertUserRow(ctx context.Context, q database.Querier, query string, u NewUser) (*models.User, error) {
	return scanUser(q.QueryRowContext(ctx, query,
		u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Role, u.GoogleID,
		u.ProfilePicture, u.IsActive, u.IsStaff, u.VerifiedEmail, u.OTPCode, u.OTPGeneratedAt))
}

func CreateUser(ctx context.Context, q database.Querier, u NewUser) (*models.User, error) {
	user, err := insertUserRow(ctx, q, insertUser+` RETURNING `+userColumns, u)
	if err != nil {
		if database.IsUniqueViolation(err, "users_email_key") {
			return nil, database.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

// CreateUserIfAbsent inserts u unless the email is already taken, in which
// case it returns (nil, false, nil). A concurrent insert of the same email
// blocks until the other transaction finishes.
func CreateUserIfAbsent(ctx context.Context, q database.Querier, u NewUser) (*models.User, bool, error) {
	user, err := insertUserRow(ctx, q, insertUser+` ON CONFLICT (email) DO NOTHING RETURNING `+userColumns, u)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("create user: %w", err)
	}
	return user, true, nil
}

func getUserWhere(ctx context.Context, q database.Querier, where string, arg any) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where

	user, err := scanUser(q.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

func GetUser(ctx context.Context, q database.Querier, id int64) (*models.User, error) {
	return getUserWhere(ctx, q, "id = $1", id)
}

func GetUserByEmail(ctx context.Context, q database.Querier, email string) (*models.User, error) {
	return getUserWhere(ctx, q, "email = $1", email)
}

func GetUserByPhone(ctx context.Context, q database.Querier, phone string) (*models.User, error) {
	return getUserWhere(ctx, q, "phone_number = $1 ORDER BY id LIMIT 1", phone)
}

// LockUser loads a user and holds its row lock until tx ends.
func LockUser(ctx context.Context, tx *sql.Tx, id int64) (*models.User, error) {
	return getUserWhere(ctx, tx, "id = $1 FOR UPDATE", id)
}

func LockUserByEmail(ctx context.Context, tx *sql.Tx, email string) (*models.User, error) {
	return getUserWhere(ctx, tx, "email = $1 FOR UPDATE", email)
}

func LockUserByPhone(ctx context.Context, tx *sql.Tx, phone string) (*models.User, error) {
	return getUserWhere(ctx, tx, "id = (SELECT id FROM users WHERE phone_number = $1 ORDER BY id LIMIT 1) FOR UPDATE", phone)
}

// LockActiveUsersByOTP locks every active user currently holding code.
func LockActiveUsersByOTP(ctx context.Context, tx *sql.Tx, code string) ([]models.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE otp_code = $1 AND is_active
		ORDER BY id
		FOR UPDATE`

	rows, err := tx.QueryContext(ctx, query, code)
	if err != nil {
		return nil, fmt.Errorf("lock users by otp: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return users, nil
}

func EmailExists(ctx context.Context, q database.Querier, email string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)",
		email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check email exists: %w", err)
	}
	return exists, nil
}

func execUserUpdate(ctx context.Context, q database.Querier, op string, query string, args ...any) error {
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrUserNotFound
	}

	return nil
}

// SetOTP stores a fresh code, replacing any pending one.
func SetOTP(ctx context.Context, q database.Querier, userID int64, code string, issuedAt time.Time) error {
	return execUserUpdate(ctx, q, "set otp",
		`UPDATE users
		 SET otp_code = $1, otp_generated_at = $2, updated_at = NOW(), version = version + 1
		 WHERE id = $3`,
		code, issuedAt, userID)
}

func ClearOTP(ctx context.Context, q database.Querier, userID int64) error {
	return execUserUpdate(ctx, q, "clear otp",
		`UPDATE users
		 SET otp_code = NULL, otp_generated_at = NULL, updated_at = NOW(), version = version + 1
		 WHERE id = $1`,
		userID)
}

// ActivateUser marks the account active and verified and consumes its code.
func ActivateUser(ctx context.Context, q database.Querier, userID int64) error {
	return execUserUpdate(ctx, q, "activate user",
		`UPDATE users
		 SET is_active = TRUE, verified_email = TRUE, otp_code = NULL, otp_generated_at = NULL,
		     updated_at = NOW(), version = version + 1
		 WHERE id = $1`,
		userID)
}

// SetPasswordHash replaces the credential and clears any pending code.
func SetPasswordHash(ctx context.Context, q database.Querier, userID int64, hash string) error {
	return execUserUpdate(ctx, q, "set password",
		`UPDATE users
		 SET password_hash = $1, otp_code = NULL, otp_generated_at = NULL,
		     updated_at = NOW(), version = version + 1
		 WHERE id = $2`,
		hash, userID)
}

type ExternalProfile struct {
	FirstName      string
	LastName       string
	GoogleID       string
	ProfilePicture string
	VerifiedEmail  bool
	Activate       bool
}

// ApplyExternalProfile refreshes a user from an identity provider. Empty
// names keep their current value.
func ApplyExternalProfile(ctx context.Context, q database.Querier, userID int64, p ExternalProfile) (*models.User, error) {
	query := `
		UPDATE users
		SET first_name = COALESCE(NULLIF($1, ''), first_name),
		    last_name = COALESCE(NULLIF($2, ''), last_name),
		    google_id = NULLIF($3, ''),
		    profile_picture = NULLIF($4, ''),
		    verified_email = $5,
		    is_active = is_active OR $6,
		    updated_at = NOW(),
		    version = version + 1
		WHERE id = $7
		RETURNING ` + userColumns

	user, err := scanUser(q.QueryRowContext(ctx, query,
		p.FirstName, p.LastName, p.GoogleID, p.ProfilePicture, p.VerifiedEmail, p.Activate, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("apply external profile: %w", err)
	}

	return user, nil
}

func UpdateProfile(ctx context.Context, q database.Querier, userID int64, p models.ProfileUpdate) (*models.User, error) {
	query := `
		UPDATE users
		SET first_name = COALESCE($1, first_name),
		    last_name = COALESCE($2, last_name),
		    role = COALESCE($3, role),
		    phone_number = COALESCE($4, phone_number),
		    profile_picture = COALESCE($5, profile_picture),
		    farm_name = COALESCE($6, farm_name),
		    farm_address = COALESCE($7, farm_address),
		    farm_description = COALESCE($8, farm_description),
		    updated_at = NOW(),
		    version = version + 1
		WHERE id = $9
		RETURNING ` + userColumns

	user, err := scanUser(q.QueryRowContext(ctx, query,
		p.FirstName, p.LastName, p.Role, p.PhoneNumber, p.ProfilePicture,
		p.FarmName, p.FarmAddress, p.FarmDescription, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}

	return user, nil
}

func ListUsers(ctx context.Context, db *sql.DB, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	query := `SELECT ` + userColumns + `
		FROM users
		ORDER BY date_joined DESC, id DESC
		LIMIT $1 OFFSET $2`

	rows, err := db.QueryContext(ctx, query, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return NewOffsetPage(users, total, page, pageSize), nil
}
