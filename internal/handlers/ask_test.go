package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/biospace/apiserver/config"
	"github.com/biospace/apiserver/internal/services"
	"github.com/go-chi/chi/v5"
)

func newAskRouter(upstreamURL string) http.Handler {
	inference := services.NewInferenceService(config.UpstreamConfig{
		InferenceURL: upstreamURL,
		Timeout:      2 * time.Second,
	})
	router := chi.NewRouter()
	router.Post("/ask-gemini", NewAskHandler(inference).Ask)
	return router
}

func TestAskPassThrough(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req map[string]string
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("upstream received invalid JSON: %v", err)
		}
		if req["query"] != "what is golang" {
			t.Errorf("upstream received query %q", req["query"])
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"answer":"a programming language"}`))
	}))
	defer upstream.Close()

	router := newAskRouter(upstream.URL)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ask-gemini", strings.NewReader(`{"query":"what is golang"}`))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "a programming language") {
		t.Fatalf("upstream body not passed through: %s", rec.Body.String())
	}
}

func TestAskMissingQuery(t *testing.T) {
	t.Parallel()

	router := newAskRouter("http://127.0.0.1:1")
	for _, body := range []string{`{}`, `{"query":"   "}`, `not-json`} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/ask-gemini", strings.NewReader(body))
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status %d", body, rec.Code)
		}
	}
}

func TestAskUpstreamErrorStatusPassesThrough(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"model overloaded"}`))
	}))
	defer upstream.Close()

	router := newAskRouter(upstream.URL)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ask-gemini", strings.NewReader(`{"query":"hi"}`))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "model overloaded") {
		t.Fatalf("upstream error body not passed through: %s", rec.Body.String())
	}
}

func TestAskUpstreamUnreachable(t *testing.T) {
	t.Parallel()

	// A closed server guarantees a transport-level failure.
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	upstream.Close()

	router := newAskRouter(upstream.URL)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ask-gemini", strings.NewReader(`{"query":"hi"}`))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
}
