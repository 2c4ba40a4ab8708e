package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/biospace/apiserver/internal/services"
	"github.com/biospace/apiserver/internal/storage"
)

const maxAvatarBytes = 5 << 20

// UserHandler provides the profile endpoints.
type UserHandler struct {
	auth *services.AuthService
}

// NewUserHandler constructs a UserHandler with the provided dependencies.
func NewUserHandler(auth *services.AuthService) *UserHandler {
	return &UserHandler{auth: auth}
}

// UserDetails returns the authenticated user's record with credential and
// bookkeeping fields excluded.
func (h *UserHandler) UserDetails(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.auth.GetProfile(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Something is wrong")
		return
	}

	writeSuccess(w, http.StatusOK, "user details", user)
}

type UpdateUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Mobile   string `json:"mobile"`
	Password string `json:"password"`
}

// UpdatedUserData is the sanitized projection returned after an update.
type UpdatedUserData struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Mobile string `json:"mobile,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// UpdateUser merges profile fields for the authenticated user. The acting
// user is always the token subject, regardless of the path parameter.
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "provide name, email")
		return
	}

	user, err := h.auth.UpdateProfile(r.Context(), userID, services.ProfileUpdate{
		Name:     req.Name,
		Email:    req.Email,
		Mobile:   req.Mobile,
		Password: req.Password,
	})
	if err != nil {
		writeFlowError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Message: "User Updated successfully",
		Data: UpdatedUserData{
			ID:     user.ID,
			Name:   user.Name,
			Email:  user.Email,
			Mobile: user.Mobile,
			Avatar: user.Avatar,
		},
	})
}

// UploadAvatar stores the uploaded image and records its object key on
// the authenticated user.
func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarBytes)
	file, header, err := r.FormFile("avatar")
	if err != nil {
		writeError(w, http.StatusBadRequest, "provide avatar file")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	key, err := h.auth.UpdateAvatar(r.Context(), userID, file, header.Size, contentType)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedImageType) {
			writeError(w, http.StatusBadRequest, "unsupported image type")
			return
		}
		writeFlowError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Avatar updated successfully", map[string]string{
		"avatar": key,
	})
}
