package http_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/farmlink/farmhub/internal/config"
	apphttp "github.com/farmlink/farmhub/internal/http"
	"github.com/farmlink/farmhub/internal/repo/memory"
	"github.com/farmlink/farmhub/internal/storage"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig(t *testing.T) config.Config {
	t.Helper()

	return config.Config{
		Env:          "test",
		JWTSecret:    "test-secret-key",
		TokenTTLDays: 7,
		UploadDir:    t.TempDir(),
	}
}

func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	cfg := testConfig(t)

	photos, err := storage.NewDiskStore(cfg.UploadDir)

	if err != nil {
		t.Fatalf("NewDiskStore error: %v", err)
	}

	return apphttp.NewRouterWithStores(cfg, memory.NewUsersRepo(), photos)
}

// runs a request and returns the recorder

func doRequest(router http.Handler, method, path, body, contentType, token string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer

	if body == "" {
		reader = bytes.NewBufferString("")
	} else {
		reader = bytes.NewBufferString(body)
	}

	req := httptest.NewRequest(method, path, reader)

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

func mustReadJSON[T any](t *testing.T, w *httptest.ResponseRecorder, out *T) {
	t.Helper()
	err := json.Unmarshal(w.Body.Bytes(), out)
	if err != nil {
		t.Fatalf("failed to unmarshal json: %v, body=%s", err, w.Body.String())
	}
}

func TestAuthFlow_EndToEnd(t *testing.T) {
	router := setupTestRouter(t)

	registerBody := `{"name":"Alice","email":"alice@example.com","password":"secret123"}`

	// REGISTER

	w := doRequest(router, http.MethodPost, "/api/auth/register", registerBody, "application/json", "")

	if w.Code != http.StatusOK {
		t.Fatalf("register got status %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
	}

	if strings.Contains(w.Body.String(), "token") {
		t.Fatalf("register must not hand out a token, body=%s", w.Body.String())
	}

	// REGISTER again with the same email -> conflict

	w2 := doRequest(router, http.MethodPost, "/api/auth/register", registerBody, "application/json", "")

	if w2.Code != http.StatusBadRequest {
		t.Fatalf("duplicate register got status %d, want %d, body=%s", w2.Code, http.StatusBadRequest, w2.Body.String())
	}

	// LOGIN

	w3 := doRequest(router, http.MethodPost, "/api/auth/login", `{"email":"alice@example.com","password":"secret123"}`, "application/json", "")

	if w3.Code != http.StatusOK {
		t.Fatalf("login got status %d, want %d, body=%s", w3.Code, http.StatusOK, w3.Body.String())
	}

	var loginResp struct {
		Token string `json:"token"`
		User  struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"user"`
	}

	mustReadJSON(t, w3, &loginResp)

	if strings.TrimSpace(loginResp.Token) == "" {
		t.Fatalf("login expected a token, got empty")
	}
	if loginResp.User.Name != "Alice" || loginResp.User.Email != "alice@example.com" {
		t.Fatalf("unexpected login user payload: %s", w3.Body.String())
	}

	// GET PROFILE with the fresh token

	w4 := doRequest(router, http.MethodGet, "/api/auth/profile", "", "", loginResp.Token)

	if w4.Code != http.StatusOK {
		t.Fatalf("profile got status %d, want %d, body=%s", w4.Code, http.StatusOK, w4.Body.String())
	}

	var profile map[string]any

	mustReadJSON(t, w4, &profile)

	if profile["email"] != "alice@example.com" || profile["name"] != "Alice" {
		t.Fatalf("unexpected profile payload: %s", w4.Body.String())
	}
	if strings.Contains(strings.ToLower(w4.Body.String()), "password") {
		t.Fatalf("profile response leaked a password field: %s", w4.Body.String())
	}

	// truncated token -> 401

	w5 := doRequest(router, http.MethodGet, "/api/auth/profile", "", "", loginResp.Token[:len(loginResp.Token)-1])

	if w5.Code != http.StatusUnauthorized {
		t.Fatalf("profile(truncated token) got status %d, want %d", w5.Code, http.StatusUnauthorized)
	}

	// no Authorization header at all -> 401

	w6 := doRequest(router, http.MethodGet, "/api/auth/profile", "", "", "")

	if w6.Code != http.StatusUnauthorized {
		t.Fatalf("profile(no header) got status %d, want %d", w6.Code, http.StatusUnauthorized)
	}
	if strings.Contains(w6.Body.String(), "alice@example.com") {
		t.Fatalf("unauthenticated response leaked user data: %s", w6.Body.String())
	}
}

func TestProfileUpdate_WhitelistOnly(t *testing.T) {
	router := setupTestRouter(t)

	w := doRequest(router, http.MethodPost, "/api/auth/register", `{"name":"Alice","email":"alice@example.com","password":"secret123"}`, "application/json", "")
	if w.Code != http.StatusOK {
		t.Fatalf("register got status %d, body=%s", w.Code, w.Body.String())
	}

	w = doRequest(router, http.MethodPost, "/api/auth/login", `{"email":"alice@example.com","password":"secret123"}`, "application/json", "")
	if w.Code != http.StatusOK {
		t.Fatalf("login got status %d, body=%s", w.Code, w.Body.String())
	}

	var loginResp struct {
		Token string `json:"token"`
	}
	mustReadJSON(t, w, &loginResp)

	// update only the village

	w = doRequest(router, http.MethodPatch, "/api/auth/profile", `{"village":"Greenfield"}`, "application/json", loginResp.Token)
	if w.Code != http.StatusOK {
		t.Fatalf("patch got status %d, body=%s", w.Code, w.Body.String())
	}

	var updated map[string]any
	mustReadJSON(t, w, &updated)

	if updated["village"] != "Greenfield" {
		t.Fatalf("village not updated: %s", w.Body.String())
	}
	if updated["email"] != "alice@example.com" || updated["name"] != "Alice" {
		t.Fatalf("whitelisted update touched identity fields: %s", w.Body.String())
	}
	if _, ok := updated["phone"]; ok {
		t.Fatalf("absent phone field should stay unset: %s", w.Body.String())
	}

	// login still works, so the stored hash is untouched

	w = doRequest(router, http.MethodPost, "/api/auth/login", `{"email":"alice@example.com","password":"secret123"}`, "application/json", "")
	if w.Code != http.StatusOK {
		t.Fatalf("login after patch got status %d, body=%s", w.Code, w.Body.String())
	}
}

func TestPhotoUpload_EndToEnd(t *testing.T) {
	cfg := testConfig(t)

	photos, err := storage.NewDiskStore(cfg.UploadDir)
	if err != nil {
		t.Fatalf("NewDiskStore error: %v", err)
	}

	router := apphttp.NewRouterWithStores(cfg, memory.NewUsersRepo(), photos)

	w := doRequest(router, http.MethodPost, "/api/auth/register", `{"name":"Alice","email":"alice@example.com","password":"secret123"}`, "application/json", "")
	if w.Code != http.StatusOK {
		t.Fatalf("register got status %d, body=%s", w.Code, w.Body.String())
	}

	w = doRequest(router, http.MethodPost, "/api/auth/login", `{"email":"alice@example.com","password":"secret123"}`, "application/json", "")
	if w.Code != http.StatusOK {
		t.Fatalf("login got status %d, body=%s", w.Code, w.Body.String())
	}

	var loginResp struct {
		Token string `json:"token"`
	}
	mustReadJSON(t, w, &loginResp)

	upload := func(filename string, content []byte) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)

		part, err := mw.CreateFormFile("photo", filename)
		if err != nil {
			t.Fatalf("CreateFormFile error: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("part write error: %v", err)
		}
		if err := mw.Close(); err != nil {
			t.Fatalf("multipart close error: %v", err)
		}

		req := httptest.NewRequest(http.MethodPatch, "/api/auth/profile/photo", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+loginResp.Token)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	// a text file is rejected before anything is stored

	w2 := upload("notes.txt", []byte("definitely not an image"))

	if w2.Code != http.StatusBadRequest {
		t.Fatalf("non-image upload got status %d, want %d, body=%s", w2.Code, http.StatusBadRequest, w2.Body.String())
	}

	// a real PNG goes through and lands on the record

	png := append([]byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}, make([]byte, 32)...)

	w3 := upload("avatar.png", png)

	if w3.Code != http.StatusOK {
		t.Fatalf("image upload got status %d, want %d, body=%s", w3.Code, http.StatusOK, w3.Body.String())
	}

	var updated struct {
		ProfileImage string `json:"profileImage"`
	}
	mustReadJSON(t, w3, &updated)

	if !strings.HasPrefix(updated.ProfileImage, "uploads/") {
		t.Fatalf("expected an uploads/ reference, got %q", updated.ProfileImage)
	}

	// the stored file is publicly served under /uploads

	w4 := doRequest(router, http.MethodGet, "/"+updated.ProfileImage, "", "", "")

	if w4.Code != http.StatusOK {
		t.Fatalf("static fetch got status %d, want %d", w4.Code, http.StatusOK)
	}
	if !bytes.Equal(w4.Body.Bytes(), png) {
		t.Fatalf("served bytes differ from the upload")
	}
}

func TestHealthEndpoints(t *testing.T) {
	router := setupTestRouter(t)

	w := doRequest(router, http.MethodGet, "/healthz", "", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("healthz got status %d", w.Code)
	}

	w = doRequest(router, http.MethodGet, "/readyz", "", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("readyz got status %d", w.Code)
	}
}
