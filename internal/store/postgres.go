package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/biospace/apiserver/types"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// PostgresUserRepository persists users in a PostgreSQL table.
type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

const userColumns = `id, name, email, mobile, avatar, password_hash, email_verified,
		otp, otp_expires_at, refresh_token, last_login_at, status, created_at, updated_at`

func scanUser(row *sql.Row) (types.User, error) {
	var (
		user         types.User
		mobile       sql.NullString
		avatar       sql.NullString
		otp          sql.NullString
		otpExpires   sql.NullTime
		refreshToken sql.NullString
		lastLogin    sql.NullTime
		status       string
	)
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&mobile,
		&avatar,
		&user.PasswordHash,
		&user.EmailVerified,
		&otp,
		&otpExpires,
		&refreshToken,
		&lastLogin,
		&status,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	user.Mobile = mobile.String
	user.Avatar = avatar.String
	user.OTP = otp.String
	if otpExpires.Valid {
		t := otpExpires.Time
		user.OTPExpiresAt = &t
	}
	user.RefreshToken = refreshToken.String
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLoginAt = &t
	}
	user.Status = types.UserStatus(status)
	return user, nil
}

func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (types.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1`, userColumns)
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (types.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresUserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (id, name, email, mobile, avatar, password_hash, email_verified,
			otp, otp_expires_at, refresh_token, last_login_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Name,
		user.Email,
		nullString(user.Mobile),
		nullString(user.Avatar),
		user.PasswordHash,
		user.EmailVerified,
		nullString(user.OTP),
		nullTime(user.OTPExpiresAt),
		nullString(user.RefreshToken),
		nullTime(user.LastLoginAt),
		string(user.Status),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return types.User{}, ErrDuplicateEmail
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *PostgresUserRepository) UpdateByID(ctx context.Context, id string, update UserUpdate) (types.User, error) {
	assignments := []string{"updated_at = now()"}
	args := []any{}
	next := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if update.Name != nil {
		assignments = append(assignments, "name = "+next(*update.Name))
	}
	if update.Email != nil {
		assignments = append(assignments, "email = "+next(*update.Email))
	}
	if update.Mobile != nil {
		assignments = append(assignments, "mobile = "+next(*update.Mobile))
	}
	if update.Avatar != nil {
		assignments = append(assignments, "avatar = "+next(*update.Avatar))
	}
	if update.PasswordHash != nil {
		assignments = append(assignments, "password_hash = "+next(*update.PasswordHash))
	}
	if update.EmailVerified != nil {
		assignments = append(assignments, "email_verified = "+next(*update.EmailVerified))
	}
	if update.RefreshToken != nil {
		assignments = append(assignments, "refresh_token = "+next(*update.RefreshToken))
	}
	if update.LastLoginAt != nil {
		assignments = append(assignments, "last_login_at = "+next(*update.LastLoginAt))
	}
	if update.Status != nil {
		assignments = append(assignments, "status = "+next(string(*update.Status)))
	}
	if update.ClearOTP {
		assignments = append(assignments, "otp = NULL", "otp_expires_at = NULL")
	} else {
		if update.OTP != nil {
			assignments = append(assignments, "otp = "+next(*update.OTP))
		}
		if update.OTPExpiresAt != nil {
			assignments = append(assignments, "otp_expires_at = "+next(*update.OTPExpiresAt))
		}
	}

	query := fmt.Sprintf(
		`UPDATE users SET %s WHERE id = %s RETURNING %s`,
		strings.Join(assignments, ", "),
		next(id),
		userColumns,
	)

	user, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return types.User{}, ErrDuplicateEmail
		}
		return types.User{}, err
	}
	return user, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
