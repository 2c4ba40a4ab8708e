package services

import "errors"

var (
	// ErrEmailTaken is returned when registration hits an existing email.
	ErrEmailTaken = errors.New("email already registered")

	// ErrAccountNotActive is returned when login is attempted against an
	// Inactive or Suspended account.
	ErrAccountNotActive = errors.New("account not active")

	// ErrEmailNotVerified is returned when login is attempted before the
	// email OTP challenge has been completed.
	ErrEmailNotVerified = errors.New("email not verified")

	// ErrBadCredentials is returned when a password check fails.
	ErrBadCredentials = errors.New("bad credentials")

	// ErrPasswordMismatch is returned when newPassword and confirmPassword
	// differ in a reset.
	ErrPasswordMismatch = errors.New("password confirmation mismatch")

	// ErrUpstreamUnavailable is returned when the inference service
	// cannot be reached.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
