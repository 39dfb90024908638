package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/farmlink/farmhub/internal/auth"
	"github.com/farmlink/farmhub/internal/domain/user"
	"github.com/farmlink/farmhub/internal/http/handlers"
	"github.com/farmlink/farmhub/internal/repo/postgres"
	"github.com/gin-gonic/gin"
)

// Make sure Gin does not spam the console during the test

func init() {
	gin.SetMode(gin.TestMode)
}

// Fake implementations of the handler interfaces

type fakeUserWriter struct {
	createFn func(ctx context.Context, email, passwordHash, name, role string) (user.User, error)
}

func (f *fakeUserWriter) Create(ctx context.Context, email, passwordHash, name, role string) (user.User, error) {
	if f.createFn != nil {
		return f.createFn(ctx, email, passwordHash, name, role)
	}
	return user.User{}, nil
}

type fakeCreds struct {
	authFn func(ctx context.Context, email, password string) (user.User, error)
}

func (f *fakeCreds) Authenticate(ctx context.Context, email, password string) (user.User, error) {
	if f.authFn != nil {
		return f.authFn(ctx, email, password)
	}
	return user.User{}, errors.New("not configured")
}

// small helper function which returns the gin engine to mount one handler per test

func setupRouter(method, path string, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Handle(method, path, h)

	return r
}

func newJWT() *auth.Manager {
	return auth.NewManager("test-secret-key", time.Hour)
}

func TestRegisterHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		writerSetup    func(*fakeUserWriter)
		wantStatusCode int
	}{
		{
			name: "success",
			body: `{"name":"Alice","email":"alice@example.com","password":"secret123"}`,
			writerSetup: func(f *fakeUserWriter) {
				f.createFn = func(ctx context.Context, email, passwordHash, name, role string) (user.User, error) {
					if passwordHash == "secret123" {
						return user.User{}, errors.New("plaintext reached the store")
					}
					if role != user.DefaultRole {
						return user.User{}, errors.New("default role not applied")
					}
					return user.User{ID: "id-1", Email: email, Name: name, Role: role}, nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name: "missing_fields",
			body: `{"email":"alice@example.com"}`,
			writerSetup: func(f *fakeUserWriter) {
				// invalid payload, the writer should not be called
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "duplicate_email",
			body: `{"name":"Alice","email":"alice@example.com","password":"secret123"}`,
			writerSetup: func(f *fakeUserWriter) {
				f.createFn = func(ctx context.Context, email, passwordHash, name, role string) (user.User, error) {
					return user.User{}, postgres.ErrEmailTaken
				}
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "store_error",
			body: `{"name":"Alice","email":"alice@example.com","password":"secret123"}`,
			writerSetup: func(f *fakeUserWriter) {
				f.createFn = func(ctx context.Context, email, passwordHash, name, role string) (user.User, error) {
					return user.User{}, errors.New("db error")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			writer := &fakeUserWriter{}

			if tt.writerSetup != nil {
				tt.writerSetup(writer)
			}

			h := handlers.NewAuthHandler(writer, &fakeCreds{}, newJWT(), nil)

			r := setupRouter(http.MethodPost, "/register", h.Register)

			req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			// register never hands out a token
			if tt.wantStatusCode == http.StatusOK && bytes.Contains(w.Body.Bytes(), []byte("token")) {
				t.Fatalf("register response leaked a token: %s", w.Body.String())
			}
		})
	}
}

func TestLoginHandler(t *testing.T) {
	alice := user.User{ID: "id-1", Email: "alice@example.com", Name: "Alice", PasswordHash: "$2a$10$x"}

	tests := []struct {
		name           string
		body           string
		credsSetup     func(*fakeCreds)
		wantStatusCode int
	}{
		{
			name: "success",
			body: `{"email":"alice@example.com","password":"secret123"}`,
			credsSetup: func(f *fakeCreds) {
				f.authFn = func(ctx context.Context, email, password string) (user.User, error) {
					return alice, nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name: "user_not_found",
			body: `{"email":"bob@example.com","password":"secret123"}`,
			credsSetup: func(f *fakeCreds) {
				f.authFn = func(ctx context.Context, email, password string) (user.User, error) {
					return user.User{}, auth.ErrUserNotFound
				}
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "wrong_password",
			body: `{"email":"alice@example.com","password":"nope"}`,
			credsSetup: func(f *fakeCreds) {
				f.authFn = func(ctx context.Context, email, password string) (user.User, error) {
					return user.User{}, auth.ErrWrongPassword
				}
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "missing_fields",
			body: `{"email":"alice@example.com"}`,
			credsSetup: func(f *fakeCreds) {
				// invalid payload, the strategy should not run
			},
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			creds := &fakeCreds{}

			if tt.credsSetup != nil {
				tt.credsSetup(creds)
			}

			h := handlers.NewAuthHandler(&fakeUserWriter{}, creds, newJWT(), nil)

			r := setupRouter(http.MethodPost, "/login", h.Login)

			req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantStatusCode != http.StatusOK {
				return
			}

			var resp struct {
				Token string `json:"token"`
				User  struct {
					Name     string `json:"name"`
					Email    string `json:"email"`
					Password string `json:"password"`
				} `json:"user"`
			}

			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}

			if resp.Token == "" {
				t.Fatalf("login expected a token, got empty")
			}
			if resp.User.Name != "Alice" || resp.User.Email != "alice@example.com" {
				t.Fatalf("unexpected user payload: %s", w.Body.String())
			}
			if resp.User.Password != "" {
				t.Fatalf("login response leaked a password field")
			}
		})
	}
}

func TestLoginHandler_UniformFailureStatus(t *testing.T) {
	// "user not found" and "wrong password" must be indistinguishable by status

	for _, strategyErr := range []error{auth.ErrUserNotFound, auth.ErrWrongPassword} {
		creds := &fakeCreds{
			authFn: func(ctx context.Context, email, password string) (user.User, error) {
				return user.User{}, strategyErr
			},
		}

		h := handlers.NewAuthHandler(&fakeUserWriter{}, creds, newJWT(), nil)
		r := setupRouter(http.MethodPost, "/login", h.Login)

		req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString(`{"email":"a@b.com","password":"x"}`))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("err=%v: got status %d, want %d", strategyErr, w.Code, http.StatusBadRequest)
		}
	}
}
