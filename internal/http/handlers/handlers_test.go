package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/accounts/internal/auth"
	"github.com/geocoder89/accounts/internal/domain/user"
	"github.com/geocoder89/accounts/internal/http/handlers"
	"github.com/geocoder89/accounts/internal/http/middlewares"
	"github.com/geocoder89/accounts/internal/service"
	"github.com/gin-gonic/gin"
)

// Make sure Gin does not spam the console during the test

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeAuthService struct {
	signInFn  func(ctx context.Context, email, password string) (service.TokenPair, error)
	signUpFn  func(ctx context.Context, email, password string) (service.TokenPair, error)
	refreshFn func(ctx context.Context, subjectID int64, email string) (service.AccessToken, error)
}

func (f *fakeAuthService) SignIn(ctx context.Context, email, password string) (service.TokenPair, error) {
	if f.signInFn != nil {
		return f.signInFn(ctx, email, password)
	}
	return service.TokenPair{}, nil
}

func (f *fakeAuthService) SignUp(ctx context.Context, email, password string) (service.TokenPair, error) {
	if f.signUpFn != nil {
		return f.signUpFn(ctx, email, password)
	}
	return service.TokenPair{}, nil
}

func (f *fakeAuthService) Refresh(ctx context.Context, subjectID int64, email string) (service.AccessToken, error) {
	if f.refreshFn != nil {
		return f.refreshFn(ctx, subjectID, email)
	}
	return service.AccessToken{}, nil
}

type fakeUserService struct {
	getFn    func(ctx context.Context, id int64) (user.User, error)
	updateFn func(ctx context.Context, id int64, in user.Credentials) (user.User, error)
	deleteFn func(ctx context.Context, id int64) error
}

func (f *fakeUserService) Get(ctx context.Context, id int64) (user.User, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return user.User{}, nil
}

func (f *fakeUserService) Update(ctx context.Context, id int64, in user.Credentials) (user.User, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, in)
	}
	return user.User{}, nil
}

func (f *fakeUserService) Delete(ctx context.Context, id int64) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

type apiErrorResponse struct {
	Error handlers.APIError `json:"error"`
}

func withIdentity(id auth.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middlewares.CtxIdentity, id)
		c.Next()
	}
}

func doRequest(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLoginHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		signInErr  error
		wantStatus int
		wantCode   string
	}{
		{name: "ok", body: `{"email":"a@example.com","password":"password123"}`, wantStatus: http.StatusOK},
		{name: "bad credentials", body: `{"email":"a@example.com","password":"password123"}`, signInErr: service.ErrUnauthorized, wantStatus: http.StatusUnauthorized, wantCode: "invalid_credentials"},
		{name: "wrapped bad credentials", body: `{"email":"a@example.com","password":"password123"}`, signInErr: fmt.Errorf("sign in: %w", service.ErrUnauthorized), wantStatus: http.StatusUnauthorized, wantCode: "invalid_credentials"},
		{name: "store failure", body: `{"email":"a@example.com","password":"password123"}`, signInErr: errors.New("db down"), wantStatus: http.StatusInternalServerError, wantCode: "internal_error"},
		{name: "invalid email", body: `{"email":"nope","password":"password123"}`, wantStatus: http.StatusBadRequest, wantCode: "invalid_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeAuthService{
				signInFn: func(_ context.Context, email, password string) (service.TokenPair, error) {
					if tt.signInErr != nil {
						return service.TokenPair{}, tt.signInErr
					}
					return service.TokenPair{AccessToken: "a", RefreshToken: "r"}, nil
				},
			}
			h := handlers.NewAuthHandler(svc, discardLogger())

			r := gin.New()
			r.POST("/auth/login", h.Login)

			w := doRequest(r, http.MethodPost, "/auth/login", tt.body, nil)
			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}

			if tt.wantCode == "" {
				var pair service.TokenPair
				if err := json.Unmarshal(w.Body.Bytes(), &pair); err != nil {
					t.Fatalf("unmarshal: %v", err)
				}
				if pair.AccessToken != "a" || pair.RefreshToken != "r" {
					t.Fatalf("unexpected tokens %+v", pair)
				}
				if w.Header().Get("Cache-Control") != "no-store" {
					t.Fatalf("token responses must not be cached")
				}
				return
			}

			var resp apiErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if resp.Error.Code != tt.wantCode {
				t.Fatalf("got code %q, want %q", resp.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestSignUpHandler_ConflictIs409(t *testing.T) {
	svc := &fakeAuthService{
		signUpFn: func(context.Context, string, string) (service.TokenPair, error) {
			return service.TokenPair{}, service.ErrConflict
		},
	}
	h := handlers.NewAuthHandler(svc, discardLogger())

	r := gin.New()
	r.POST("/auth/signup", h.SignUp)

	w := doRequest(r, http.MethodPost, "/auth/signup", `{"email":"a@example.com","password":"password123"}`, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("got status %d, want 409", w.Code)
	}
}

func TestSignUpHandler_PassesTrimmedCredentials(t *testing.T) {
	var gotEmail, gotPassword string
	svc := &fakeAuthService{
		signUpFn: func(_ context.Context, email, password string) (service.TokenPair, error) {
			gotEmail, gotPassword = email, password
			return service.TokenPair{AccessToken: "a", RefreshToken: "r"}, nil
		},
	}
	h := handlers.NewAuthHandler(svc, discardLogger())

	r := gin.New()
	r.POST("/auth/signup", h.SignUp)

	w := doRequest(r, http.MethodPost, "/auth/signup", `{"email":" a@example.com ","password":" password123 "}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}
	if gotEmail != "a@example.com" || gotPassword != "password123" {
		t.Fatalf("got %q / %q", gotEmail, gotPassword)
	}
}

func TestRefreshHandler(t *testing.T) {
	tests := []struct {
		name       string
		identity   auth.Identity
		body       string
		refreshErr error
		wantStatus int
	}{
		{name: "ok", identity: auth.Identity{UserID: 1, Email: "a@example.com"}, body: `{"email":"a@example.com"}`, wantStatus: http.StatusOK},
		{name: "body names another account", identity: auth.Identity{UserID: 1, Email: "a@example.com"}, body: `{"email":"b@example.com"}`, wantStatus: http.StatusUnauthorized},
		{name: "subject deleted", identity: auth.Identity{UserID: 1, Email: "a@example.com"}, body: `{"email":"a@example.com"}`, refreshErr: service.ErrUnauthorized, wantStatus: http.StatusUnauthorized},
		{name: "wrapped unauthorized", identity: auth.Identity{UserID: 1, Email: "a@example.com"}, body: `{"email":"a@example.com"}`, refreshErr: fmt.Errorf("refresh: %w", service.ErrUnauthorized), wantStatus: http.StatusUnauthorized},
		{name: "missing email", identity: auth.Identity{UserID: 1, Email: "a@example.com"}, body: `{}`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeAuthService{
				refreshFn: func(_ context.Context, subjectID int64, _ string) (service.AccessToken, error) {
					if subjectID != tt.identity.UserID {
						t.Fatalf("got subject %d, want the token subject %d", subjectID, tt.identity.UserID)
					}
					if tt.refreshErr != nil {
						return service.AccessToken{}, tt.refreshErr
					}
					return service.AccessToken{AccessToken: "fresh"}, nil
				},
			}
			h := handlers.NewAuthHandler(svc, discardLogger())

			r := gin.New()
			r.POST("/auth/refresh", withIdentity(tt.identity), h.Refresh)

			w := doRequest(r, http.MethodPost, "/auth/refresh", tt.body, nil)
			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus == http.StatusOK && strings.Contains(w.Body.String(), "refresh_token") {
				t.Fatalf("refresh must only return an access token: %s", w.Body.String())
			}
		})
	}
}

func TestProfileHandler_ReturnsIdentityWithETag(t *testing.T) {
	h := handlers.NewAuthHandler(&fakeAuthService{}, discardLogger())

	r := gin.New()
	r.GET("/auth/profile", withIdentity(auth.Identity{UserID: 4, Email: "a@example.com", Role: "USER"}), h.Profile)

	w := doRequest(r, http.MethodGet, "/auth/profile", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d", w.Code)
	}

	var id auth.Identity
	if err := json.Unmarshal(w.Body.Bytes(), &id); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if id.UserID != 4 || id.Role != "USER" {
		t.Fatalf("unexpected identity %+v", id)
	}

	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("expected ETag header")
	}

	w = doRequest(r, http.MethodGet, "/auth/profile", "", map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusNotModified {
		t.Fatalf("got status %d, want 304", w.Code)
	}
}

func usersRouter(svc handlers.UserService) *gin.Engine {
	h := handlers.NewUsersHandler(svc, discardLogger())

	r := gin.New()
	r.GET("/users/:id", h.GetUser)
	r.PUT("/users/:id", h.UpdateUser)
	r.DELETE("/users/:id", h.DeleteUser)
	return r
}

func TestGetUserHandler(t *testing.T) {
	now := time.Now().UTC()
	svc := &fakeUserService{
		getFn: func(_ context.Context, id int64) (user.User, error) {
			if id != 3 {
				return user.User{}, service.ErrNotFound
			}
			return user.User{ID: 3, Email: "a@example.com", PasswordHash: "secret-digest", Role: user.RoleUser, IsActive: true, CreatedAt: now, UpdatedAt: now}, nil
		},
	}
	r := usersRouter(svc)

	w := doRequest(r, http.MethodGet, "/users/3", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "secret-digest") || strings.Contains(w.Body.String(), "password") {
		t.Fatalf("password hash leaked: %s", w.Body.String())
	}

	if w := doRequest(r, http.MethodGet, "/users/9", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", w.Code)
	}
	if w := doRequest(r, http.MethodGet, "/users/x", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", w.Code)
	}
}

func TestUpdateUserHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "ok", wantStatus: http.StatusOK},
		{name: "email taken", err: service.ErrConflict, wantStatus: http.StatusConflict},
		{name: "gone", err: service.ErrNotFound, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeUserService{
				updateFn: func(_ context.Context, id int64, in user.Credentials) (user.User, error) {
					if tt.err != nil {
						return user.User{}, tt.err
					}
					return user.User{ID: id, Email: in.Email, Role: user.RoleUser}, nil
				},
			}

			w := doRequest(usersRouter(svc), http.MethodPut, "/users/2", `{"email":"new@example.com","password":"password123"}`, nil)
			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestDeleteUserHandler(t *testing.T) {
	var deleted int64
	svc := &fakeUserService{
		deleteFn: func(_ context.Context, id int64) error {
			if id == 404 {
				return service.ErrNotFound
			}
			deleted = id
			return nil
		},
	}
	r := usersRouter(svc)

	w := doRequest(r, http.MethodDelete, "/users/7", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d", w.Code)
	}

	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Message == "" {
		t.Fatalf("expected message body, got %s", w.Body.String())
	}
	if deleted != 7 {
		t.Fatalf("deleted id %d, want 7", deleted)
	}

	if w := doRequest(r, http.MethodDelete, "/users/404", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", w.Code)
	}
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestReadyz(t *testing.T) {
	healthy := pingFunc(func(context.Context) error { return nil })
	broken := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name       string
		deps       map[string]handlers.Pinger
		draining   bool
		wantStatus int
	}{
		{name: "all up", deps: map[string]handlers.Pinger{"store": healthy}, wantStatus: http.StatusOK},
		{name: "store down", deps: map[string]handlers.Pinger{"store": broken, "broker": healthy}, wantStatus: http.StatusServiceUnavailable},
		{name: "no deps", wantStatus: http.StatusOK},
		{name: "draining", deps: map[string]handlers.Pinger{"store": healthy}, draining: true, wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draining := tt.draining
			h := handlers.NewHealthHandler(tt.deps, func() bool { return draining })
			r := gin.New()
			r.GET("/readyz", h.Readyz)

			if w := doRequest(r, http.MethodGet, "/readyz", "", nil); w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
