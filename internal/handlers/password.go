package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/biospace/apiserver/internal/services"
)

// PasswordHandler provides the password-recovery endpoints.
type PasswordHandler struct {
	auth *services.AuthService
}

// NewPasswordHandler constructs a PasswordHandler with the provided dependencies.
func NewPasswordHandler(auth *services.AuthService) *PasswordHandler {
	return &PasswordHandler{auth: auth}
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword opens a recovery OTP challenge and emails it.
func (h *PasswordHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "provide email")
		return
	}

	if err := h.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		writeFlowError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "check your email", nil)
}

type VerifyForgotPasswordOtpRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// VerifyForgotPasswordOtp checks the recovery OTP. The password itself is
// changed by the reset-password endpoint.
func (h *PasswordHandler) VerifyForgotPasswordOtp(w http.ResponseWriter, r *http.Request) {
	var req VerifyForgotPasswordOtpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.OTP == "" {
		writeError(w, http.StatusBadRequest, "Provide required field email, otp.")
		return
	}

	if err := h.auth.VerifyForgotPasswordOtp(r.Context(), req.Email, req.OTP); err != nil {
		writeFlowError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "OTP Verified Successfully!!", nil)
}

type ResetPasswordRequest struct {
	Email           string `json:"email"`
	OldPassword     string `json:"oldPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// ResetPassword replaces the stored password hash. OldPassword is
// optional; when present it must match the current password.
func (h *PasswordHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.NewPassword == "" || req.ConfirmPassword == "" {
		writeError(w, http.StatusBadRequest, "provide required fields email, newPassword, confirmPassword")
		return
	}

	err := h.auth.ResetPassword(r.Context(), req.Email, req.OldPassword, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		writeFlowError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Password updated successfully.", nil)
}
