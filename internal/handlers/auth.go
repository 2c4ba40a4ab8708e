package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/biospace/apiserver/internal/otp"
	"github.com/biospace/apiserver/internal/services"
	"github.com/biospace/apiserver/internal/store"
	"github.com/biospace/apiserver/internal/token"
	"github.com/go-chi/chi/v5"
)

// AuthHandler provides the registration, verification, login, logout,
// and token-refresh endpoints.
type AuthHandler struct {
	auth *services.AuthService
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// UserRouter registers the user-facing auth routes on the given router.
func UserRouter(r chi.Router, auth *services.AuthService, requireAuth func(http.Handler) http.Handler) {
	authHandler := NewAuthHandler(auth)
	passwordHandler := NewPasswordHandler(auth)
	userHandler := NewUserHandler(auth)

	r.Post("/register", authHandler.Register)
	r.Post("/verifyEmail", authHandler.VerifyEmail)
	r.Post("/login", authHandler.Login)
	r.With(requireAuth).Get("/logout", authHandler.Logout)
	r.Post("/forgot-password", passwordHandler.ForgotPassword)
	r.Post("/verify-forgot-password-otp", passwordHandler.VerifyForgotPasswordOtp)
	r.Post("/reset-password", passwordHandler.ResetPassword)
	r.Post("/refresh-token", authHandler.RefreshToken)
	r.With(requireAuth).Get("/user-details", userHandler.UserDetails)
	r.With(requireAuth).Post("/avatar", userHandler.UploadAvatar)
	r.With(requireAuth).Put("/{id}", userHandler.UpdateUser)
}

// writeFlowError maps a flow-level failure to its HTTP status and
// envelope message.
func writeFlowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusBadRequest, "User not found")
	case errors.Is(err, services.ErrAccountNotActive):
		writeError(w, http.StatusBadRequest, "Contact to admin")
	case errors.Is(err, services.ErrEmailNotVerified):
		writeError(w, http.StatusBadRequest, "Your Email is not verified yet! Please Verify Your email")
	case errors.Is(err, services.ErrBadCredentials):
		writeError(w, http.StatusBadRequest, "Check your password")
	case errors.Is(err, services.ErrPasswordMismatch):
		writeError(w, http.StatusBadRequest, "newPassword and confirmPassword must be same.")
	case errors.Is(err, otp.ErrExpired):
		writeError(w, http.StatusBadRequest, "OTP expired")
	case errors.Is(err, otp.ErrInvalid):
		writeError(w, http.StatusBadRequest, "Invalid OTP")
	case errors.Is(err, otp.ErrNoChallenge):
		writeError(w, http.StatusBadRequest, "No OTP challenge pending")
	case errors.Is(err, token.ErrExpired), errors.Is(err, token.ErrInvalid):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, services.ErrUpstreamUnavailable):
		writeError(w, http.StatusServiceUnavailable, "Inference service unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "Something went wrong")
	}
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an unverified account and emails an OTP challenge.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "provide email, name, password")
		return
	}

	identityToken, err := h.auth.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			// Kept as 200-with-error-flag; clients discriminate on the flags.
			writeJSON(w, http.StatusOK, apiResponse{Error: true, Message: "User already registered with the email"})
			return
		}
		writeFlowError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Message: "User registered successfully! Please verify your email.",
		Token:   identityToken,
	})
}

type VerifyEmailRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// VerifyEmail completes the OTP challenge opened at registration.
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.OTP == "" {
		writeError(w, http.StatusBadRequest, "provide email, otp")
		return
	}

	if err := h.auth.VerifyEmail(r.Context(), req.Email, req.OTP); err != nil {
		writeFlowError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Email verified successfully! You are now logged in.", nil)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginData struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Login verifies credentials, sets the dual-token cookies, and returns
// both tokens in the body.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "provide email, password")
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeFlowError(w, err)
		return
	}

	setAuthCookie(w, accessTokenCookie, result.AccessToken)
	setAuthCookie(w, refreshTokenCookie, result.RefreshToken)
	writeSuccess(w, http.StatusOK, "Login successfully", LoginData{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	})
}

// Logout blanks the stored refresh token and clears both cookies.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	clearAuthCookie(w, accessTokenCookie)
	clearAuthCookie(w, refreshTokenCookie)

	if err := h.auth.Logout(r.Context(), userID); err != nil {
		writeFlowError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Logout successfully", nil)
}

// RefreshToken mints a new access token from a valid refresh token taken
// from the refreshToken cookie or the Authorization header. The refresh
// token is not rotated.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	refreshToken, err := tokenFromRequest(r, refreshTokenCookie)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	accessToken, err := h.auth.RefreshAccessToken(r.Context(), refreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "token is expired")
		return
	}

	setAuthCookie(w, accessTokenCookie, accessToken)
	writeSuccess(w, http.StatusOK, "New Access token generated", map[string]string{
		"accessToken": accessToken,
	})
}
