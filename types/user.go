package types

import "time"

// UserStatus is the account lifecycle state.
type UserStatus string

const (
	StatusActive    UserStatus = "Active"
	StatusInactive  UserStatus = "Inactive"
	StatusSuspended UserStatus = "Suspended"
)

// User represents an account in the system.
// It contains identity, credential, and verification metadata.
type User struct {
	// ID is the unique identifier of the user, assigned by the store at creation.
	ID string `json:"id" bson:"_id,omitempty" db:"id"`

	// Name is the user's display or full name.
	Name string `json:"name" bson:"name" db:"name"`

	// Email is the user's email address. Unique across all users,
	// stored case-sensitively.
	Email string `json:"email" bson:"email" db:"email"`

	// Mobile is an optional contact number.
	Mobile string `json:"mobile,omitempty" bson:"mobile,omitempty" db:"mobile"`

	// Avatar is the object-storage key of the user's avatar image.
	Avatar string `json:"avatar,omitempty" bson:"avatar,omitempty" db:"avatar"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" bson:"password" db:"password_hash"`

	// EmailVerified reports whether the user has proven control of Email
	// via an OTP challenge. Reset to false whenever Email changes.
	EmailVerified bool `json:"email_verified" bson:"verify_email" db:"email_verified"`

	// OTP is the outstanding one-time passcode, empty when no challenge
	// is pending. OTP and OTPExpiresAt are set and cleared together.
	OTP string `json:"-" bson:"otp,omitempty" db:"otp"`

	// OTPExpiresAt is the instant the outstanding OTP stops being accepted.
	OTPExpiresAt *time.Time `json:"-" bson:"otp_expires,omitempty" db:"otp_expires_at"`

	// RefreshToken is server-side bookkeeping of the last issued refresh
	// token. Blanked on logout. Never exposed in API responses.
	RefreshToken string `json:"-" bson:"refresh_token,omitempty" db:"refresh_token"`

	// LastLoginAt is the timestamp of the most recent successful login.
	LastLoginAt *time.Time `json:"last_login_at,omitempty" bson:"last_login_date,omitempty" db:"last_login_at"`

	// Status is the account lifecycle state. Login requires StatusActive.
	Status UserStatus `json:"status" bson:"status" db:"status"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" bson:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the account.
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at" db:"updated_at"`
}

// HasPendingOTP reports whether an OTP challenge is outstanding.
func (u User) HasPendingOTP() bool {
	return u.OTP != "" && u.OTPExpiresAt != nil
}
