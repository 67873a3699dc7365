package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/pulsefit/pulsefit/internal/auth"
	"github.com/pulsefit/pulsefit/internal/shared"
	_ "github.com/pulsefit/pulsefit/testing"
)

type stubRepo struct {
	user     *auth.User
	sessions map[string]uuid.UUID
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, shared.ErrInvalidCredentials
	}
	return s.user, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID uuid.UUID, expiresAt time.Time, ip, ua string) error {
	if s.sessions == nil {
		s.sessions = make(map[string]uuid.UUID)
	}
	s.sessions[id] = userID
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

func newAuthHandler(t *testing.T, repo auth.Repository) (*auth.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := auth.NewHandler(logger, auth.NewService(repo), sessionManager, csrfManager)
	return handler, sessionManager
}

func activeUser(t *testing.T, email, password string) *auth.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return &auth.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		IsActive:     true,
	}
}

func newAuthRouter(handler *auth.Handler) chi.Router {
	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r
}

func withSession(t *testing.T, sm *shared.SessionManager, req *http.Request) (*http.Request, *shared.Session) {
	t.Helper()
	sess, err := sm.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess)), sess
}

func TestLoginInfoIssuesCSRFToken(t *testing.T) {
	handler, sm := newAuthHandler(t, &stubRepo{})
	router := newAuthRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req, _ = withSession(t, sm, req)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp struct {
		CSRFToken string `json:"csrf_token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.CSRFToken == "" {
		t.Fatal("csrf token missing")
	}
}

func TestLoginSuccess(t *testing.T) {
	user := activeUser(t, "owner@ironworks.test", "correct-horse-battery")
	repo := &stubRepo{user: user}
	handler, sm := newAuthHandler(t, repo)
	router := newAuthRouter(handler)

	body := `{"email":"owner@ironworks.test","password":"correct-horse-battery"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	req, sess := withSession(t, sm, req)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if sess.User() != user.ID.String() {
		t.Fatalf("session user = %q, want %q", sess.User(), user.ID)
	}
	if len(repo.sessions) != 1 {
		t.Fatalf("expected a persisted session record, got %d", len(repo.sessions))
	}
}

func TestLoginClearsPreviousGymSelection(t *testing.T) {
	user := activeUser(t, "owner@ironworks.test", "correct-horse-battery")
	handler, sm := newAuthHandler(t, &stubRepo{user: user})
	router := newAuthRouter(handler)

	body := `{"email":"owner@ironworks.test","password":"correct-horse-battery"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	req, sess := withSession(t, sm, req)
	sess.SetUser(uuid.New().String())
	sess.SetActiveGym(uuid.New().String())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if sess.ActiveGym() != "" {
		t.Fatal("gym selection from the previous user must be dropped")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	user := activeUser(t, "owner@ironworks.test", "correct-horse-battery")
	handler, sm := newAuthHandler(t, &stubRepo{user: user})
	router := newAuthRouter(handler)

	body := `{"email":"owner@ironworks.test","password":"wrong-password-here"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	req, sess := withSession(t, sm, req)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if sess.User() != "" {
		t.Fatal("failed login must not attach a user")
	}
}

func TestLoginInactiveUser(t *testing.T) {
	user := activeUser(t, "owner@ironworks.test", "correct-horse-battery")
	user.IsActive = false
	handler, sm := newAuthHandler(t, &stubRepo{user: user})
	router := newAuthRouter(handler)

	body := `{"email":"owner@ironworks.test","password":"correct-horse-battery"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	req, _ = withSession(t, sm, req)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestLoginValidation(t *testing.T) {
	handler, sm := newAuthHandler(t, &stubRepo{})
	router := newAuthRouter(handler)

	for _, body := range []string{
		`{"email":"not-an-email","password":"correct-horse-battery"}`,
		`{"email":"owner@ironworks.test","password":"short"}`,
		`not json`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
		req, _ = withSession(t, sm, req)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d, want %d", body, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestLogout(t *testing.T) {
	user := activeUser(t, "owner@ironworks.test", "correct-horse-battery")
	repo := &stubRepo{user: user, sessions: map[string]uuid.UUID{"sess-1": user.ID}}
	handler, sm := newAuthHandler(t, repo)
	router := newAuthRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req, sess := withSession(t, sm, req)
	sess.ID = "sess-1"
	sess.SetUser(user.ID.String())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if len(repo.sessions) != 0 {
		t.Fatal("session record must be deleted on logout")
	}
}
