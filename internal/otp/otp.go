// Package otp generates and validates the one-time passcodes used for
// email verification and password recovery.
package otp

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strconv"
	"time"
)

// Validity is how long a generated code remains accepted.
const Validity = 600 * time.Second

var (
	// ErrExpired is returned when the supplied code arrived past the
	// stored expiry, regardless of whether it matches.
	ErrExpired = errors.New("otp expired")

	// ErrInvalid is returned when the supplied code does not match the
	// stored one.
	ErrInvalid = errors.New("invalid otp")

	// ErrNoChallenge is returned when no OTP challenge is outstanding.
	ErrNoChallenge = errors.New("no otp challenge pending")
)

// Generate returns a uniformly random 6-digit decimal code and the
// instant it stops being accepted.
func Generate() (string, time.Time, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", time.Time{}, err
	}
	code := strconv.FormatInt(100000+n.Int64(), 10)
	return code, time.Now().Add(Validity), nil
}

// Validate checks a supplied code against the stored challenge.
// Expiry is checked before equality so an expired-but-matching code is
// reported as ErrExpired, never ErrInvalid.
func Validate(storedCode string, storedExpiry *time.Time, supplied string, now time.Time) error {
	if storedCode == "" || storedExpiry == nil {
		return ErrNoChallenge
	}
	if !now.Before(*storedExpiry) {
		return ErrExpired
	}
	if supplied != storedCode {
		return ErrInvalid
	}
	return nil
}
