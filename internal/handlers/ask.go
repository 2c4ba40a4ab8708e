package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/biospace/apiserver/internal/services"
)

// AskHandler proxies natural-language queries to the inference service.
type AskHandler struct {
	inference *services.InferenceService
}

// NewAskHandler constructs an AskHandler with the provided dependencies.
func NewAskHandler(inference *services.InferenceService) *AskHandler {
	return &AskHandler{inference: inference}
}

type AskRequest struct {
	Query string `json:"query"`
}

// Ask forwards the query and passes the upstream response through,
// including upstream HTTP error statuses.
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "Missing 'query' field in request body")
		return
	}

	result, err := h.inference.Ask(r.Context(), req.Query)
	if err != nil {
		writeFlowError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.StatusCode)
	_, _ = w.Write(result.Body)
}

// Root returns the service banner with the endpoint map.
func Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"message":   "Server is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"endpoints": map[string]string{
			"root":   "GET /",
			"health": "GET /health",
			"ask":    "POST /ask-gemini",
			"user":   "/api/user/*",
		},
	})
}

// Health reports liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// NotFound is the fallback for unmatched routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error":  "Route not found",
		"path":   r.URL.Path,
		"method": r.Method,
	})
}
