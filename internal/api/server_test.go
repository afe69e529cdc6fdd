package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davidrg-mx/clubagent/api/schemas"
	"github.com/davidrg-mx/clubagent/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type stubService struct {
	extractResult *schemas.ExtractResult
	loginResp     *schemas.LoginResponse
	loginErr      error
	closed        []string
	ready         bool
}

func (s *stubService) Extract(ctx context.Context, req schemas.ExtractRequest) *schemas.ExtractResult {
	return s.extractResult
}

func (s *stubService) Login(ctx context.Context, req schemas.LoginRequest) (*schemas.LoginResponse, error) {
	return s.loginResp, s.loginErr
}

func (s *stubService) CloseSession(ctx context.Context, sessionID string) {
	s.closed = append(s.closed, sessionID)
}

func (s *stubService) Extractors() []string { return []string{"courses", "profile"} }

func (s *stubService) Ready(ctx context.Context) bool { return s.ready }

func newTestServer(svc Service) *Server {
	return NewServer(svc, config.ServerConfig{Host: "127.0.0.1", Port: 0}, zap.NewNop())
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		blob, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(blob)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)
	return rec
}

func TestNewServerWithoutCORSOriginsAllowsAll(t *testing.T) {
	t.Parallel()

	// An unset origins list must not reject the CORS config at
	// construction; it behaves like the allow-all default.
	s := NewServer(&stubService{ready: true}, config.ServerConfig{Host: "127.0.0.1", Port: 0}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://frontend.example.test")
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestNewServerWithExplicitCORSOrigins(t *testing.T) {
	t.Parallel()

	s := NewServer(&stubService{ready: true}, config.ServerConfig{
		Host:        "127.0.0.1",
		Port:        0,
		CORSOrigins: []string{"https://frontend.example.test"},
	}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://frontend.example.test")
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://frontend.example.test", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	svc := &stubService{ready: true}
	rec := doRequest(t, newTestServer(svc), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"browser_ready":true`)

	svc.ready = false
	rec = doRequest(t, newTestServer(svc), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListExtractors(t *testing.T) {
	t.Parallel()

	rec := doRequest(t, newTestServer(&stubService{}), http.MethodGet, "/v1/extractors", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "courses")
	assert.Contains(t, rec.Body.String(), "profile")
}

func TestExtractEndpoint(t *testing.T) {
	t.Parallel()

	svc := &stubService{extractResult: &schemas.ExtractResult{
		Success:     true,
		Message:     "Extracted: profile",
		SessionID:   "sess-1",
		Login:       &schemas.LoginSummary{},
		Data:        map[string]any{"profile": map[string]any{"username": "u"}},
		ExtractedAt: time.Now().UTC(),
	}}

	rec := doRequest(t, newTestServer(svc), http.MethodPost, "/v1/extract",
		schemas.ExtractRequest{Username: "u", Password: "p"})
	assert.Equal(t, http.StatusOK, rec.Code)

	var result schemas.ExtractResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, "sess-1", result.SessionID)
}

func TestExtractEndpointLoginFailureMapsTo401(t *testing.T) {
	t.Parallel()

	svc := &stubService{extractResult: &schemas.ExtractResult{
		Success: false,
		Message: "Login failed: Invalid credentials",
		Errors:  []string{"login failed: Invalid credentials"},
	}}

	rec := doRequest(t, newTestServer(svc), http.MethodPost, "/v1/extract",
		schemas.ExtractRequest{Username: "u", Password: "p"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExtractEndpointRejectsMissingFields(t *testing.T) {
	t.Parallel()

	rec := doRequest(t, newTestServer(&stubService{}), http.MethodPost, "/v1/extract",
		map[string]string{"username": "u"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginEndpoint(t *testing.T) {
	t.Parallel()

	svc := &stubService{loginResp: &schemas.LoginResponse{
		Success:   true,
		Message:   "Login successful",
		SessionID: "sess-1",
	}}
	rec := doRequest(t, newTestServer(svc), http.MethodPost, "/v1/login",
		schemas.LoginRequest{Username: "u", Password: "p"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sess-1")
}

func TestCloseSessionEndpoint(t *testing.T) {
	t.Parallel()

	svc := &stubService{}
	rec := doRequest(t, newTestServer(svc), http.MethodDelete, "/v1/sessions/sess-9", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"sess-9"}, svc.closed)
}

func TestErrorStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"login error", schemas.NewLoginError("bad credentials", nil), http.StatusUnauthorized},
		{"unknown extractor", &schemas.UnknownExtractorError{Name: "x"}, http.StatusBadRequest},
		{"session not found", &schemas.SessionNotFoundError{SessionID: "s"}, http.StatusNotFound},
		{"browser not ready", &schemas.BrowserNotReadyError{}, http.StatusServiceUnavailable},
		{"navigation", &schemas.NavigationError{URL: "https://x"}, http.StatusBadGateway},
		{"unclassified", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestLoginEndpointSurfacesTypedError(t *testing.T) {
	t.Parallel()

	svc := &stubService{loginErr: schemas.NewLoginError("login failed", map[string]any{
		"available_clubs": []string{"Halcones (Conquistadores)"},
	})}
	rec := doRequest(t, newTestServer(svc), http.MethodPost, "/v1/login",
		schemas.LoginRequest{Username: "u", Password: "p"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "available_clubs")
}
