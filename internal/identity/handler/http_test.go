package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identity-gateway/internal/identity/service"
	"identity-gateway/internal/supabase"
)

// fakeAuthService records calls and returns canned results.
type fakeAuthService struct {
	calls       []string
	registerIn  service.RegisterInput
	redirectTo  string
	err         error
	challenge   *service.ChallengeResult
	verifyEmail string
	verifyCode  string
}

func (f *fakeAuthService) Register(ctx context.Context, in service.RegisterInput) (*service.AuthResult, error) {
	f.calls = append(f.calls, "register")
	f.registerIn = in
	if f.err != nil {
		return nil, f.err
	}
	return &service.AuthResult{
		Message: "registered",
		User:    map[string]any{"id": "u-1", "email": in.Email, "name": in.Name, "phone": in.Phone},
		Session: json.RawMessage(`{"access_token":"at"}`),
	}, nil
}

func (f *fakeAuthService) Login(ctx context.Context, email, password string) (*service.AuthResult, error) {
	f.calls = append(f.calls, "login")
	if f.err != nil {
		return nil, f.err
	}
	return &service.AuthResult{Message: "login successful", User: map[string]any{"id": "u-1"}, Session: json.RawMessage(`{"access_token":"at"}`)}, nil
}

func (f *fakeAuthService) LoginWithOAuth(ctx context.Context, redirectTo string) (*service.OAuthResult, error) {
	f.calls = append(f.calls, "oauth")
	f.redirectTo = redirectTo
	if f.err != nil {
		return nil, f.err
	}
	return &service.OAuthResult{Message: "redirecting to github for authentication", URL: "https://p.supabase.co/auth/v1/authorize?provider=github"}, nil
}

func (f *fakeAuthService) Enable2FA(ctx context.Context, email string) (*service.ChallengeResult, error) {
	f.calls = append(f.calls, "enable")
	if f.err != nil {
		return nil, f.err
	}
	return f.challenge, nil
}

func (f *fakeAuthService) Verify2FA(ctx context.Context, email, code string) (string, error) {
	f.calls = append(f.calls, "verify")
	f.verifyEmail, f.verifyCode = email, code
	if f.err != nil {
		return "", f.err
	}
	return "2FA enabled for this user", nil
}

func newRouter(svc AuthService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewAuthHandler(svc).RegisterRoutes(r)
	return r
}

func do(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return rec, out
}

func TestRegister_Created(t *testing.T) {
	svc := &fakeAuthService{}
	rec, out := do(t, newRouter(svc), http.MethodPost, "/auth/register",
		`{"name":"Ana","email":"ana@example.com","password":"secret123","phone":"+5355555555"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "registered", out["message"])
	data := out["data"].(map[string]any)
	assert.Equal(t, "Ana", data["user"].(map[string]any)["name"])
	assert.Equal(t, "at", data["session"].(map[string]any)["access_token"])
	assert.Equal(t, service.RegisterInput{Name: "Ana", Email: "ana@example.com", Password: "secret123", Phone: "+5355555555"}, svc.registerIn)
}

func TestRegister_ValidationRejectsBeforeService(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"short password", `{"name":"Ana","email":"ana@example.com","password":"short"}`, "password must be at least 8 characters"},
		{"long password", `{"name":"Ana","email":"ana@example.com","password":"` + strings.Repeat("x", 33) + `"}`, "password must be at most 32 characters"},
		{"missing name", `{"email":"ana@example.com","password":"secret123"}`, "name is required"},
		{"short name", `{"name":"A","email":"ana@example.com","password":"secret123"}`, "name must be at least 2 characters"},
		{"bad email", `{"name":"Ana","email":"not-an-email","password":"secret123"}`, "email must be a valid email"},
		{"long phone", `{"name":"Ana","email":"ana@example.com","password":"secret123","phone":"` + strings.Repeat("1", 21) + `"}`, "phone must be at most 20 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeAuthService{}
			rec, out := do(t, newRouter(svc), http.MethodPost, "/auth/register", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, float64(400), out["statusCode"])
			assert.Equal(t, "Bad Request", out["error"])
			assert.Equal(t, tt.message, out["message"])
			assert.Equal(t, ValidationContext, out["contexto"])
			assert.Empty(t, svc.calls, "service must not be called")
		})
	}
}

func TestRegister_AllFieldErrorsInDetails(t *testing.T) {
	svc := &fakeAuthService{}
	_, out := do(t, newRouter(svc), http.MethodPost, "/auth/register", `{"name":"A","email":"x","password":"1"}`)
	details, ok := out["details"].([]any)
	require.True(t, ok, "details = %#v", out["details"])
	assert.Len(t, details, 3)
}

func TestRegister_MalformedJSON(t *testing.T) {
	svc := &fakeAuthService{}
	for _, body := range []string{`{"name":`, ``, `{"name":123}`} {
		rec, out := do(t, newRouter(svc), http.MethodPost, "/auth/register", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
		assert.Equal(t, "invalid request body", out["message"], "body %q", body)
	}
	assert.Empty(t, svc.calls)
}

func TestRegister_ServiceErrorEnvelope(t *testing.T) {
	svc := &fakeAuthService{err: service.Translate(&supabase.APIError{Status: 400, Message: "User already registered"}, service.ContextRegistration)}
	rec, out := do(t, newRouter(svc), http.MethodPost, "/auth/register",
		`{"name":"Ana","email":"ana@example.com","password":"secret123"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, map[string]any{
		"statusCode": float64(400),
		"error":      "Bad Request",
		"message":    "user already registered with this email",
		"details":    "User already registered",
		"contexto":   "registration",
	}, out)
}

func TestLogin(t *testing.T) {
	svc := &fakeAuthService{}
	rec, out := do(t, newRouter(svc), http.MethodPost, "/auth/login", `{"email":"ana@example.com","password":"secret123"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "login successful", out["message"])

	svc = &fakeAuthService{err: service.Translate(&supabase.APIError{Status: 401, Message: "Invalid login credentials"}, service.ContextLogin)}
	rec, out = do(t, newRouter(svc), http.MethodPost, "/auth/login", `{"email":"ana@example.com","password":"secret123"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", out["error"])
	assert.Equal(t, "incorrect credentials", out["message"])
}

func TestLogin_ShortPasswordRejected(t *testing.T) {
	svc := &fakeAuthService{}
	rec, _ := do(t, newRouter(svc), http.MethodPost, "/auth/login", `{"email":"ana@example.com","password":"1234567"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.calls)
}

func TestGithub(t *testing.T) {
	svc := &fakeAuthService{}
	rec, out := do(t, newRouter(svc), http.MethodGet, "/auth/github?redirectTo=https%3A%2F%2Fapp.example.com%2Fcb", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://app.example.com/cb", svc.redirectTo)
	assert.Contains(t, out["data"].(map[string]any)["url"], "provider=github")

	svc = &fakeAuthService{}
	_, _ = do(t, newRouter(svc), http.MethodGet, "/auth/github", "")
	assert.Equal(t, "", svc.redirectTo)
}

func TestEnable2FA(t *testing.T) {
	exp := time.Date(2026, 5, 1, 12, 5, 0, 0, time.UTC)
	svc := &fakeAuthService{challenge: &service.ChallengeResult{Message: "2FA code generated", Code: "123456", ExpiresAt: exp}}
	rec, out := do(t, newRouter(svc), http.MethodPost, "/auth/2fa/enable", `{"email":"ana@example.com"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "123456", out["code"])
	assert.Equal(t, "2026-05-01T12:05:00Z", out["expiresAt"])

	svc = &fakeAuthService{challenge: &service.ChallengeResult{Message: "2FA code generated", ExpiresAt: exp}}
	_, out = do(t, newRouter(svc), http.MethodPost, "/auth/2fa/enable", `{"email":"ana@example.com"}`)
	assert.NotContains(t, out, "code")
}

func TestEnable2FA_NotFound(t *testing.T) {
	svc := &fakeAuthService{err: service.Translate(service.ErrUserNotFound, service.ContextTwoFAActivation)}
	rec, out := do(t, newRouter(svc), http.MethodPost, "/auth/2fa/enable", `{"email":"ghost@example.com"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", out["error"])
	assert.Equal(t, "2FA activation", out["contexto"])
}

func TestVerify2FA(t *testing.T) {
	svc := &fakeAuthService{}
	rec, out := do(t, newRouter(svc), http.MethodPost, "/auth/2fa/verify", `{"email":"ana@example.com","code":"123456"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"success": true, "message": "2FA enabled for this user"}, out)
	assert.Equal(t, "123456", svc.verifyCode)
}

func TestVerify2FA_CodeLength(t *testing.T) {
	for _, code := range []string{"12345", "12345678901"} {
		svc := &fakeAuthService{}
		rec, _ := do(t, newRouter(svc), http.MethodPost, "/auth/2fa/verify", `{"email":"ana@example.com","code":"`+code+`"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "code %q", code)
		assert.Empty(t, svc.calls)
	}
}

func TestUnclassifiedServiceErrorIs500(t *testing.T) {
	svc := &fakeAuthService{err: errors.New("boom")}
	rec, out := do(t, newRouter(svc), http.MethodPost, "/auth/2fa/verify", `{"email":"ana@example.com","code":"123456"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", out["message"])
}
