package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/biospace/apiserver/internal/services"
	"github.com/biospace/apiserver/internal/store"
	"github.com/biospace/apiserver/internal/token"
	"github.com/biospace/apiserver/types"
	"github.com/go-chi/chi/v5"
)

type memoryUserRepository struct {
	mu     sync.Mutex
	users  map[string]types.User
	nextID int
}

func newMemoryUserRepository() *memoryUserRepository {
	return &memoryUserRepository{users: map[string]types.User{}}
}

func (r *memoryUserRepository) FindByEmail(_ context.Context, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memoryUserRepository) FindByID(_ context.Context, id string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *memoryUserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return types.User{}, store.ErrDuplicateEmail
		}
	}
	r.nextID++
	user.ID = fmt.Sprintf("user-%d", r.nextID)
	r.users[user.ID] = user
	return user, nil
}

func (r *memoryUserRepository) UpdateByID(_ context.Context, id string, update store.UserUpdate) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	if update.Name != nil {
		user.Name = *update.Name
	}
	if update.Email != nil {
		user.Email = *update.Email
	}
	if update.Mobile != nil {
		user.Mobile = *update.Mobile
	}
	if update.Avatar != nil {
		user.Avatar = *update.Avatar
	}
	if update.PasswordHash != nil {
		user.PasswordHash = *update.PasswordHash
	}
	if update.EmailVerified != nil {
		user.EmailVerified = *update.EmailVerified
	}
	if update.RefreshToken != nil {
		user.RefreshToken = *update.RefreshToken
	}
	if update.LastLoginAt != nil {
		user.LastLoginAt = update.LastLoginAt
	}
	if update.Status != nil {
		user.Status = *update.Status
	}
	if update.ClearOTP {
		user.OTP = ""
		user.OTPExpiresAt = nil
	} else {
		if update.OTP != nil {
			user.OTP = *update.OTP
		}
		if update.OTPExpiresAt != nil {
			user.OTPExpiresAt = update.OTPExpiresAt
		}
	}
	r.users[id] = user
	return user, nil
}

type nullMailer struct{}

func (nullMailer) Send(context.Context, string, string, string, string) error { return nil }

type testServer struct {
	router *chi.Mux
	repo   *memoryUserRepository
	issuer *token.Issuer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	repo := newMemoryUserRepository()
	issuer := token.NewIssuer("access-secret", "refresh-secret", time.Hour, 24*time.Hour)
	auth := services.NewAuthService(repo, nullMailer{}, issuer, nil, nil, nil)
	requireAuth := RequireAuth(issuer)

	router := chi.NewRouter()
	router.Get("/", Root)
	router.Get("/health", Health)
	router.Route("/api/user", func(r chi.Router) {
		UserRouter(r, auth, requireAuth)
	})
	router.NotFound(NotFound)

	return &testServer{router: router, repo: repo, issuer: issuer}
}

func (s *testServer) do(t *testing.T, method, path string, body any, prepare func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if prepare != nil {
		prepare(req)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Error   bool            `json:"error"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Token   string          `json:"token"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %q)", err, rec.Body.String())
	}
	return env
}

func cookieByName(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	t.Fatalf("cookie %q not set", name)
	return nil
}

func (s *testServer) register(t *testing.T, name, email, pw string) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/user/register", map[string]string{
		"name": name, "email": email, "password": pw,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("register: status %d, body %s", rec.Code, rec.Body.String())
	}
}

func (s *testServer) verify(t *testing.T, email string) {
	t.Helper()
	user, err := s.repo.FindByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("find %s: %v", email, err)
	}
	rec := s.do(t, http.MethodPost, "/api/user/verifyEmail", map[string]string{
		"email": email, "otp": user.OTP,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify: status %d, body %s", rec.Code, rec.Body.String())
	}
}

func (s *testServer) login(t *testing.T, email, pw string) (*httptest.ResponseRecorder, []*http.Cookie) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/user/login", map[string]string{
		"email": email, "password": pw,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d, body %s", rec.Code, rec.Body.String())
	}
	return rec, rec.Result().Cookies()
}

func TestRegisterVerifyLoginFlow(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/user/register", map[string]string{
		"name": "Ann", "email": "ann@x.com", "password": "pw123456",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("register: status %d, body %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if !env.Success || env.Error {
		t.Fatalf("unexpected register flags: %+v", env)
	}
	if env.Token == "" {
		t.Fatal("register must return an identity token")
	}
	if strings.Contains(rec.Body.String(), "pw123456") {
		t.Fatal("response must not leak the password")
	}

	// Login is rejected until the email is verified.
	rec = s.do(t, http.MethodPost, "/api/user/login", map[string]string{
		"email": "ann@x.com", "password": "pw123456",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("pre-verify login: status %d", rec.Code)
	}

	s.verify(t, "ann@x.com")

	loginRec, cookies := s.login(t, "ann@x.com", "pw123456")
	env = decodeEnvelope(t, loginRec)
	if !env.Success {
		t.Fatalf("unexpected login flags: %+v", env)
	}
	var loginData struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.Unmarshal(env.Data, &loginData); err != nil {
		t.Fatalf("decode login data: %v", err)
	}
	if loginData.AccessToken == "" || loginData.RefreshToken == "" {
		t.Fatal("login must return both tokens in the body")
	}

	for _, name := range []string{"accessToken", "refreshToken"} {
		cookie := cookieByName(t, loginRec, name)
		if !cookie.HttpOnly || !cookie.Secure || cookie.SameSite != http.SameSiteNoneMode {
			t.Fatalf("cookie %s attributes: %+v", name, cookie)
		}
	}

	// Authenticated profile fetch via the access cookie.
	rec = s.do(t, http.MethodGet, "/api/user/user-details", nil, func(req *http.Request) {
		for _, cookie := range cookies {
			req.AddCookie(cookie)
		}
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("user-details: status %d, body %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "ann@x.com") {
		t.Fatal("expected the profile email in the response")
	}
	for _, forbidden := range []string{"password", "otp", "refreshToken\":"} {
		if strings.Contains(body, forbidden) {
			t.Fatalf("profile response leaks %q: %s", forbidden, body)
		}
	}
}

func TestRegisterDuplicateReturnsErrorFlag(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	s.register(t, "Ann", "ann@x.com", "pw123456")

	rec := s.do(t, http.MethodPost, "/api/user/register", map[string]string{
		"name": "Ann Again", "email": "ann@x.com", "password": "other",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("duplicate register: status %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if !env.Error || env.Success {
		t.Fatalf("expected error flag without success, got %+v", env)
	}
	if env.Message != "User already registered with the email" {
		t.Fatalf("unexpected message %q", env.Message)
	}
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	for _, body := range []map[string]string{
		{"email": "a@x.com", "password": "pw"},
		{"name": "A", "password": "pw"},
		{"name": "A", "email": "a@x.com"},
	} {
		rec := s.do(t, http.MethodPost, "/api/user/register", body, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %v: status %d", body, rec.Code)
		}
	}
}

func TestLoginWrongPassword(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	s.register(t, "Ann", "ann@x.com", "pw123456")
	s.verify(t, "ann@x.com")

	rec := s.do(t, http.MethodPost, "/api/user/login", map[string]string{
		"email": "ann@x.com", "password": "nope",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Message != "Check your password" {
		t.Fatalf("unexpected message %q", env.Message)
	}
}

func TestRefreshToken(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	s.register(t, "Ann", "ann@x.com", "pw123456")
	s.verify(t, "ann@x.com")
	_, cookies := s.login(t, "ann@x.com", "pw123456")

	// Via cookie.
	rec := s.do(t, http.MethodPost, "/api/user/refresh-token", nil, func(req *http.Request) {
		for _, cookie := range cookies {
			if cookie.Name == refreshTokenCookie {
				req.AddCookie(cookie)
			}
		}
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh via cookie: status %d, body %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	var data map[string]string
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if _, err := s.issuer.Verify(data["accessToken"], token.Access); err != nil {
		t.Fatalf("minted token does not verify: %v", err)
	}
	cookie := cookieByName(t, rec, accessTokenCookie)
	if cookie.Value != data["accessToken"] {
		t.Fatal("access cookie must carry the minted token")
	}

	// Via Authorization header.
	var refreshValue string
	for _, c := range cookies {
		if c.Name == refreshTokenCookie {
			refreshValue = c.Value
		}
	}
	rec = s.do(t, http.MethodPost, "/api/user/refresh-token", nil, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+refreshValue)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh via bearer: status %d", rec.Code)
	}

	// Missing token.
	rec = s.do(t, http.MethodPost, "/api/user/refresh-token", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh without token: status %d", rec.Code)
	}

	// An access token must not pass as a refresh token.
	var accessValue string
	for _, c := range cookies {
		if c.Name == accessTokenCookie {
			accessValue = c.Value
		}
	}
	rec = s.do(t, http.MethodPost, "/api/user/refresh-token", nil, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+accessValue)
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh with access token: status %d", rec.Code)
	}
}

func TestLogout(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	s.register(t, "Ann", "ann@x.com", "pw123456")
	s.verify(t, "ann@x.com")
	_, cookies := s.login(t, "ann@x.com", "pw123456")

	rec := s.do(t, http.MethodGet, "/api/user/logout", nil, func(req *http.Request) {
		for _, cookie := range cookies {
			req.AddCookie(cookie)
		}
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("logout: status %d, body %s", rec.Code, rec.Body.String())
	}
	for _, name := range []string{accessTokenCookie, refreshTokenCookie} {
		cookie := cookieByName(t, rec, name)
		if cookie.MaxAge >= 0 || cookie.Value != "" {
			t.Fatalf("cookie %s not cleared: %+v", name, cookie)
		}
	}

	user, err := s.repo.FindByEmail(context.Background(), "ann@x.com")
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if user.RefreshToken != "" {
		t.Fatal("stored refresh token must be blanked")
	}
}

func TestLogoutRequiresAuth(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/user/logout", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestPasswordRecoveryFlow(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	s.register(t, "Ann", "ann@x.com", "pw123456")
	s.verify(t, "ann@x.com")

	rec := s.do(t, http.MethodPost, "/api/user/forgot-password", map[string]string{
		"email": "ann@x.com",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("forgot-password: status %d, body %s", rec.Code, rec.Body.String())
	}

	user, _ := s.repo.FindByEmail(context.Background(), "ann@x.com")
	rec = s.do(t, http.MethodPost, "/api/user/verify-forgot-password-otp", map[string]string{
		"email": "ann@x.com", "otp": user.OTP,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify otp: status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodPost, "/api/user/reset-password", map[string]string{
		"email": "ann@x.com", "newPassword": "fresh-pw", "confirmPassword": "fresh-pw",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reset-password: status %d, body %s", rec.Code, rec.Body.String())
	}

	s.login(t, "ann@x.com", "fresh-pw")
}

func TestResetPasswordMismatch(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	s.register(t, "Ann", "ann@x.com", "pw123456")
	s.verify(t, "ann@x.com")

	rec := s.do(t, http.MethodPost, "/api/user/reset-password", map[string]string{
		"email": "ann@x.com", "newPassword": "one", "confirmPassword": "two",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Message != "newPassword and confirmPassword must be same." {
		t.Fatalf("unexpected message %q", env.Message)
	}
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/user/forgot-password", map[string]string{
		"email": "ghost@x.com",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Message != "User not found" {
		t.Fatalf("unexpected message %q", env.Message)
	}
}

func TestUpdateUserActsOnTokenSubject(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	s.register(t, "Ann", "ann@x.com", "pw123456")
	s.verify(t, "ann@x.com")
	_, cookies := s.login(t, "ann@x.com", "pw123456")

	// A foreign id in the path cannot redirect the write.
	rec := s.do(t, http.MethodPut, "/api/user/some-other-id", map[string]string{
		"name": "Ann Updated", "email": "ann@x.com", "mobile": "555-0101",
	}, func(req *http.Request) {
		for _, cookie := range cookies {
			req.AddCookie(cookie)
		}
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status %d, body %s", rec.Code, rec.Body.String())
	}

	env := decodeEnvelope(t, rec)
	var data struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Mobile string `json:"mobile"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.ID == "some-other-id" {
		t.Fatal("update must act on the token subject, not the path id")
	}
	if data.Name != "Ann Updated" || data.Mobile != "555-0101" {
		t.Fatalf("unexpected data: %+v", data)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Fatal("update response must not include password fields")
	}

	user, _ := s.repo.FindByEmail(context.Background(), "ann@x.com")
	if user.Name != "Ann Updated" {
		t.Fatalf("store not updated: %+v", user)
	}
}

func TestUserDetailsUnauthorized(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/user/user-details", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status %d", rec.Code)
	}

	rec = s.do(t, http.MethodGet, "/api/user/user-details", nil, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer not-a-token")
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: status %d", rec.Code)
	}
}

func TestRootHealthAndNotFound(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/", nil, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Server is running") {
		t.Fatalf("root: status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/health", nil, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "healthy") {
		t.Fatalf("health: status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/nope", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("not found: status %d", rec.Code)
	}
	var nf map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &nf); err != nil {
		t.Fatalf("decode 404 body: %v", err)
	}
	if nf["path"] != "/nope" {
		t.Fatalf("unexpected 404 body: %v", nf)
	}
}
