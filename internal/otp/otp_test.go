package otp

import (
	"errors"
	"testing"
	"time"
)

func TestGenerate(t *testing.T) {
	t.Parallel()

	for i := 0; i < 50; i++ {
		before := time.Now()
		code, expiresAt, err := Generate()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6-digit code, got %q", code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("expected decimal digits, got %q", code)
			}
		}
		if code[0] == '0' {
			t.Fatalf("expected code in [100000,999999], got %q", code)
		}

		validity := expiresAt.Sub(before)
		if validity < Validity-time.Second || validity > Validity+time.Second {
			t.Fatalf("expected expiry %v after generation, got %v", Validity, validity)
		}
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	now := time.Now()
	future := now.Add(5 * time.Minute)
	past := now.Add(-time.Minute)

	cases := []struct {
		name       string
		storedCode string
		expiry     *time.Time
		supplied   string
		want       error
	}{
		{name: "valid", storedCode: "123456", expiry: &future, supplied: "123456", want: nil},
		{name: "wrong code before expiry", storedCode: "123456", expiry: &future, supplied: "654321", want: ErrInvalid},
		{name: "expired matching code", storedCode: "123456", expiry: &past, supplied: "123456", want: ErrExpired},
		{name: "expired wrong code", storedCode: "123456", expiry: &past, supplied: "654321", want: ErrExpired},
		{name: "exactly at expiry", storedCode: "123456", expiry: &now, supplied: "123456", want: ErrExpired},
		{name: "no challenge", storedCode: "", expiry: nil, supplied: "123456", want: ErrNoChallenge},
		{name: "code without expiry", storedCode: "123456", expiry: nil, supplied: "123456", want: ErrNoChallenge},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(tc.storedCode, tc.expiry, tc.supplied, now)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
