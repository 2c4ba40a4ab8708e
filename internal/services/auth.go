package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/biospace/apiserver/internal/mail"
	"github.com/biospace/apiserver/internal/mq"
	"github.com/biospace/apiserver/internal/otp"
	"github.com/biospace/apiserver/internal/password"
	"github.com/biospace/apiserver/internal/storage"
	"github.com/biospace/apiserver/internal/store"
	"github.com/biospace/apiserver/internal/token"
	"github.com/biospace/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (types.User, error)
	FindByID(ctx context.Context, id string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdateByID(ctx context.Context, id string, update store.UserUpdate) (types.User, error)
}

// AuthService orchestrates registration, verification, login, session
// refresh, password recovery, and profile management over a user record.
type AuthService struct {
	repo    UserRepository
	mailer  mail.Mailer
	issuer  *token.Issuer
	events  *mq.EventPublisher
	avatars *storage.AvatarStore
	logger  *slog.Logger
}

// NewAuthService constructs an AuthService. events and avatars may be nil
// when the corresponding backends are not configured.
func NewAuthService(
	repo UserRepository,
	mailer mail.Mailer,
	issuer *token.Issuer,
	events *mq.EventPublisher,
	avatars *storage.AvatarStore,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		repo:    repo,
		mailer:  mailer,
		issuer:  issuer,
		events:  events,
		avatars: avatars,
		logger:  logger.With("component", "auth"),
	}
}

// LoginResult carries the dual tokens issued on a successful login.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         types.User
}

// Register creates an unverified user with a fresh OTP challenge, emails
// the challenge, and returns a short-lived identity token for client-side
// correlation. It does not log the user in.
func (s *AuthService) Register(ctx context.Context, name, email, plaintext string) (string, error) {
	_, err := s.repo.FindByEmail(ctx, email)
	if err == nil {
		return "", ErrEmailTaken
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("lookup email: %w", err)
	}

	hash, err := password.Hash(plaintext)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	code, expiresAt, err := otp.Generate()
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}

	user, err := s.repo.Create(ctx, types.User{
		Name:          name,
		Email:         email,
		PasswordHash:  hash,
		EmailVerified: false,
		OTP:           code,
		OTPExpiresAt:  &expiresAt,
		Status:        types.StatusActive,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return "", ErrEmailTaken
		}
		return "", fmt.Errorf("create user: %w", err)
	}

	if err := s.sendVerificationMail(ctx, user.Email, user.Name, code); err != nil {
		return "", err
	}
	s.publishEvent(ctx, mq.EventUserRegistered, user.ID, user.Email)

	identityToken, err := s.issuer.IssueAccess(user.ID)
	if err != nil {
		return "", fmt.Errorf("issue identity token: %w", err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	return identityToken, nil
}

// VerifyEmail completes the OTP challenge for a freshly registered user
// or one whose email changed. Expiry is checked before code equality.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) error {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	if err := otp.Validate(user.OTP, user.OTPExpiresAt, code, time.Now()); err != nil {
		return err
	}

	_, err = s.repo.UpdateByID(ctx, user.ID, store.UserUpdate{
		EmailVerified: store.Bool(true),
		ClearOTP:      true,
	})
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}

	s.publishEvent(ctx, mq.EventUserVerified, user.ID, user.Email)
	s.logger.InfoContext(ctx, "email verified", "user_id", user.ID)
	return nil
}

// Login checks credentials and preconditions, then issues an access and a
// refresh token and records the login time. The refresh token is also kept
// on the record so logout can blank it.
func (s *AuthService) Login(ctx context.Context, email, plaintext string) (LoginResult, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return LoginResult{}, err
	}

	if user.Status != types.StatusActive {
		return LoginResult{}, ErrAccountNotActive
	}
	if !user.EmailVerified {
		return LoginResult{}, ErrEmailNotVerified
	}
	if !password.Compare(plaintext, user.PasswordHash) {
		return LoginResult{}, ErrBadCredentials
	}

	accessToken, err := s.issuer.IssueAccess(user.ID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue access token: %w", err)
	}
	refreshToken, err := s.issuer.IssueRefresh(user.ID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue refresh token: %w", err)
	}

	updated, err := s.repo.UpdateByID(ctx, user.ID, store.UserUpdate{
		LastLoginAt:  store.Time(time.Now()),
		RefreshToken: store.String(refreshToken),
	})
	if err != nil {
		return LoginResult{}, fmt.Errorf("record login: %w", err)
	}

	s.publishEvent(ctx, mq.EventUserLogin, user.ID, user.Email)
	s.logger.InfoContext(ctx, "login", "user_id", user.ID)
	return LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         updated,
	}, nil
}

// Logout blanks the stored refresh token. Idempotent; store failures
// surface to the caller rather than being swallowed.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	_, err := s.repo.UpdateByID(ctx, userID, store.UserUpdate{
		RefreshToken: store.String(""),
	})
	if err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	s.logger.InfoContext(ctx, "logout", "user_id", userID)
	return nil
}

// RefreshAccessToken verifies a refresh token and mints a new access token
// for its subject. The refresh token itself is not rotated.
func (s *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	userID, err := s.issuer.Verify(refreshToken, token.Refresh)
	if err != nil {
		s.logger.WarnContext(ctx, "refresh rejected", "reason", err.Error())
		return "", err
	}
	accessToken, err := s.issuer.IssueAccess(userID)
	if err != nil {
		return "", fmt.Errorf("issue access token: %w", err)
	}
	return accessToken, nil
}

// ForgotPassword issues a fresh OTP challenge for password recovery and
// emails it. An unknown email is reported as not found; the account
// existence disclosure is a documented product decision.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	code, expiresAt, err := otp.Generate()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}

	_, err = s.repo.UpdateByID(ctx, user.ID, store.UserUpdate{
		OTP:          store.String(code),
		OTPExpiresAt: &expiresAt,
	})
	if err != nil {
		return fmt.Errorf("store otp: %w", err)
	}

	return s.sendVerificationMail(ctx, user.Email, user.Name, code)
}

// VerifyForgotPasswordOtp checks the recovery OTP and clears the pair on
// success. It does not change the password.
func (s *AuthService) VerifyForgotPasswordOtp(ctx context.Context, email, code string) error {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	if err := otp.Validate(user.OTP, user.OTPExpiresAt, code, time.Now()); err != nil {
		return err
	}

	_, err = s.repo.UpdateByID(ctx, user.ID, store.UserUpdate{ClearOTP: true})
	if err != nil {
		return fmt.Errorf("clear otp: %w", err)
	}
	return nil
}

// ResetPassword replaces the stored hash. An oldPassword, when supplied,
// must verify against the current hash first.
func (s *AuthService) ResetPassword(ctx context.Context, email, oldPassword, newPassword, confirmPassword string) error {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	if oldPassword != "" && !password.Compare(oldPassword, user.PasswordHash) {
		return ErrBadCredentials
	}
	if newPassword != confirmPassword {
		return ErrPasswordMismatch
	}

	hash, err := password.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	_, err = s.repo.UpdateByID(ctx, user.ID, store.UserUpdate{
		PasswordHash: store.String(hash),
	})
	if err != nil {
		return fmt.Errorf("store password: %w", err)
	}

	s.publishEvent(ctx, mq.EventUserPasswordReset, user.ID, user.Email)
	s.logger.InfoContext(ctx, "password reset", "user_id", user.ID)
	return nil
}

// ProfileUpdate carries the mutable profile fields. An empty Password
// keeps the existing hash.
type ProfileUpdate struct {
	Name     string
	Email    string
	Mobile   string
	Password string
}

// UpdateProfile merges the given fields into the user record. An email
// change resets verification and opens a fresh OTP challenge delivered to
// the new address.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, profile ProfileUpdate) (types.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return types.User{}, err
	}

	update := store.UserUpdate{
		Name:   store.String(profile.Name),
		Email:  store.String(profile.Email),
		Mobile: store.String(profile.Mobile),
	}

	if profile.Password != "" {
		hash, err := password.Hash(profile.Password)
		if err != nil {
			return types.User{}, fmt.Errorf("hash password: %w", err)
		}
		update.PasswordHash = store.String(hash)
	}

	emailChanged := profile.Email != user.Email
	var code string
	if emailChanged {
		var expiresAt time.Time
		code, expiresAt, err = otp.Generate()
		if err != nil {
			return types.User{}, fmt.Errorf("generate otp: %w", err)
		}
		update.EmailVerified = store.Bool(false)
		update.OTP = store.String(code)
		update.OTPExpiresAt = &expiresAt
	}

	updated, err := s.repo.UpdateByID(ctx, userID, update)
	if err != nil {
		return types.User{}, err
	}

	if emailChanged {
		if err := s.sendVerificationMail(ctx, profile.Email, profile.Name, code); err != nil {
			return types.User{}, err
		}
	}
	return updated, nil
}

// GetProfile returns the stored record for the user. Credential and
// bookkeeping fields are excluded from serialization by the type.
func (s *AuthService) GetProfile(ctx context.Context, userID string) (types.User, error) {
	return s.repo.FindByID(ctx, userID)
}

// UpdateAvatar stores the uploaded avatar image and records its object key.
func (s *AuthService) UpdateAvatar(ctx context.Context, userID string, r io.Reader, size int64, contentType string) (string, error) {
	if s.avatars == nil {
		return "", errors.New("avatar storage not configured")
	}

	if _, err := s.repo.FindByID(ctx, userID); err != nil {
		return "", err
	}

	key, err := s.avatars.Save(ctx, userID, r, size, contentType)
	if err != nil {
		return "", err
	}

	if _, err := s.repo.UpdateByID(ctx, userID, store.UserUpdate{Avatar: store.String(key)}); err != nil {
		return "", fmt.Errorf("record avatar: %w", err)
	}
	return key, nil
}

func (s *AuthService) sendVerificationMail(ctx context.Context, to, name, code string) error {
	html, err := mail.VerificationEmail(name, code, int(otp.Validity.Minutes()))
	if err != nil {
		return fmt.Errorf("render verification mail: %w", err)
	}
	if err := s.mailer.Send(ctx, to, mail.VerificationSubject, "", html); err != nil {
		return fmt.Errorf("send verification mail: %w", err)
	}
	return nil
}

func (s *AuthService) publishEvent(ctx context.Context, kind, userID, email string) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, kind, userID, email); err != nil {
		s.logger.WarnContext(ctx, "event publish failed", "kind", kind, "error", err.Error())
	}
}
