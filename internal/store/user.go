package store

import (
	"time"

	"github.com/biospace/apiserver/types"
)

// UserUpdate is a field-level patch applied to a user record.
// Nil pointers leave the corresponding field untouched.
type UserUpdate struct {
	Name          *string
	Email         *string
	Mobile        *string
	Avatar        *string
	PasswordHash  *string
	EmailVerified *bool
	OTP           *string
	OTPExpiresAt  *time.Time
	RefreshToken  *string
	LastLoginAt   *time.Time
	Status        *types.UserStatus

	// ClearOTP blanks both OTP fields regardless of the pointers above.
	ClearOTP bool
}

func ptr[T any](v T) *T { return &v }

// String returns a pointer to s, for building UserUpdate patches.
func String(s string) *string { return ptr(s) }

// Bool returns a pointer to b, for building UserUpdate patches.
func Bool(b bool) *bool { return ptr(b) }

// Time returns a pointer to t, for building UserUpdate patches.
func Time(t time.Time) *time.Time { return ptr(t) }
