package handlers_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/molar/internal/auth"
	"github.com/BradenHooton/molar/internal/background"
	"github.com/BradenHooton/molar/internal/handlers"
	"github.com/BradenHooton/molar/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthHandler(guard handlers.LockoutGuard) *handlers.AuthHandler {
	return handlers.NewAuthHandler(guard, &handlers.MockSessionIssuer{}, auth.CookieConfig{SameSite: "strict"}, nil, slog.Default())
}

func TestLogin_Success(t *testing.T) {
	var gotDevice string
	var gotCreds auth.Credentials
	guard := &handlers.MockLockoutGuard{
		AttemptFunc: func(ctx context.Context, deviceID string, creds auth.Credentials) (*models.AttemptResult, error) {
			gotDevice, gotCreds = deviceID, creds
			return &models.AttemptResult{Outcome: models.AttemptSucceeded}, nil
		},
	}
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{Username: " dentist ", Password: "dashboard"})
	req.Header.Set("X-Device-ID", "browser-123")
	w := httptest.NewRecorder()

	newAuthHandler(guard).Login(w, req)

	var resp handlers.LoginResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, "session-token", resp.Token)
	assert.Equal(t, "id:browser-123", gotDevice)
	assert.Equal(t, "dentist", gotCreds.Username)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.SessionCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	guard := &handlers.MockLockoutGuard{
		AttemptFunc: func(ctx context.Context, deviceID string, creds auth.Credentials) (*models.AttemptResult, error) {
			return &models.AttemptResult{
				Outcome: models.AttemptInvalid,
				Status:  models.LockoutStatus{State: models.LockoutOpen, FailedAttempts: 1, RemainingAttempts: 5},
				Message: "Invalid username or password. 5 attempts remaining.",
			}, nil
		},
	}
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{Username: "dentist", Password: "nope"})
	w := httptest.NewRecorder()

	newAuthHandler(guard).Login(w, req)

	var resp handlers.InvalidCredentialsResponse
	handlers.AssertJSONResponse(t, w, http.StatusUnauthorized, &resp)
	assert.Equal(t, "invalid_credentials", resp.Error)
	assert.Equal(t, 5, resp.RemainingAttempts)
	assert.Equal(t, "Invalid username or password. 5 attempts remaining.", resp.Message)
	assert.Empty(t, w.Result().Cookies())
}

func TestLogin_Locked(t *testing.T) {
	until := time.Now().Add(2 * time.Hour)
	guard := &handlers.MockLockoutGuard{
		AttemptFunc: func(ctx context.Context, deviceID string, creds auth.Credentials) (*models.AttemptResult, error) {
			return &models.AttemptResult{
				Outcome: models.AttemptLocked,
				Status: models.LockoutStatus{
					State:        models.LockoutLocked,
					BlockedUntil: &until,
					Remaining:    2 * time.Hour,
					Countdown:    "02:00:00",
				},
			}, nil
		},
	}
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{Username: "dentist", Password: "dashboard"})
	w := httptest.NewRecorder()

	newAuthHandler(guard).Login(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "7200", w.Header().Get("Retry-After"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "locked", body["error"])
	assert.Equal(t, "02:00:00", body["countdown"])
	assert.NotContains(t, body, "message")
	assert.NotContains(t, body, "remainingAttempts")
}

func TestLogin_Validation(t *testing.T) {
	tests := []struct {
		name string
		body interface{}
	}{
		{"missing password", handlers.LoginRequest{Username: "dentist"}},
		{"missing username", handlers.LoginRequest{Password: "dashboard"}},
		{"short totp", handlers.LoginRequest{Username: "dentist", Password: "dashboard", TOTPCode: "123"}},
		{"non-numeric totp", handlers.LoginRequest{Username: "dentist", Password: "dashboard", TOTPCode: "12ab56"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			guard := &handlers.MockLockoutGuard{
				AttemptFunc: func(ctx context.Context, deviceID string, creds auth.Credentials) (*models.AttemptResult, error) {
					called = true
					return nil, nil
				},
			}
			w := httptest.NewRecorder()
			newAuthHandler(guard).Login(w, handlers.NewTestRequest(t, "POST", "/auth/login", tt.body))

			handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
			assert.False(t, called)
		})
	}
}

func TestLogin_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/login", strings.NewReader("{"))
	w := httptest.NewRecorder()

	newAuthHandler(&handlers.MockLockoutGuard{}).Login(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
}

func TestLogin_StoreFailure(t *testing.T) {
	guard := &handlers.MockLockoutGuard{
		AttemptFunc: func(ctx context.Context, deviceID string, creds auth.Credentials) (*models.AttemptResult, error) {
			return nil, errors.New("connection refused")
		},
	}
	w := httptest.NewRecorder()
	newAuthHandler(guard).Login(w, handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{Username: "dentist", Password: "x"}))

	handlers.AssertErrorResponse(t, w, http.StatusServiceUnavailable, "service_unavailable")
}

func TestLogout_ClearsCookie(t *testing.T) {
	w := httptest.NewRecorder()
	newAuthHandler(&handlers.MockLockoutGuard{}).Logout(w, httptest.NewRequest("POST", "/auth/logout", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.SessionCookieName, cookies[0].Name)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestLockoutStatus(t *testing.T) {
	until := time.Now().Add(time.Minute)
	guard := &handlers.MockLockoutGuard{
		StatusFunc: func(ctx context.Context, deviceID string) (models.LockoutStatus, error) {
			return models.LockoutStatus{State: models.LockoutLocked, FailedAttempts: 6, BlockedUntil: &until, Countdown: "00:01:00"}, nil
		},
	}
	w := httptest.NewRecorder()
	newAuthHandler(guard).LockoutStatus(w, httptest.NewRequest("GET", "/auth/lockout", nil))

	var body map[string]interface{}
	handlers.AssertJSONResponse(t, w, http.StatusOK, &body)
	assert.Equal(t, "LOCKED", body["state"])
	assert.Equal(t, "00:01:00", body["countdown"])
	assert.Equal(t, float64(6), body["failedAttempts"])
}

func TestLockoutCountdown_StreamsUntilOpen(t *testing.T) {
	statuses := []models.LockoutStatus{
		{State: models.LockoutLocked, Remaining: 2 * time.Second, Countdown: "00:00:02"},
		{State: models.LockoutLocked, Remaining: time.Second, Countdown: "00:00:01"},
		{State: models.LockoutOpen, RemainingAttempts: 6},
	}
	calls := 0
	guard := &handlers.MockLockoutGuard{
		StatusFunc: func(ctx context.Context, deviceID string) (models.LockoutStatus, error) {
			s := statuses[calls]
			calls++
			return s, nil
		},
	}
	h := newAuthHandler(guard)
	h.SetCountdownInterval(time.Millisecond)

	w := httptest.NewRecorder()
	h.LockoutCountdown(w, httptest.NewRequest("GET", "/auth/lockout/countdown", nil))

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	var ticks []background.Tick
	scanner := bufio.NewScanner(strings.NewReader(w.Body.String()))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			var tick background.Tick
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &tick))
			ticks = append(ticks, tick)
		}
	}
	require.Len(t, ticks, 3)
	assert.Equal(t, "00:00:02", ticks[0].Countdown)
	assert.Equal(t, "00:00:01", ticks[1].Countdown)
	assert.Equal(t, "00:00:00", ticks[2].Countdown)
	assert.Equal(t, models.LockoutOpen, ticks[2].State)
	assert.Equal(t, 3, strings.Count(w.Body.String(), "event: countdown"))
}

func TestLanguagePreference(t *testing.T) {
	h := handlers.NewPreferencesHandler(false)

	w := httptest.NewRecorder()
	h.SetLanguage(w, handlers.NewTestRequest(t, "PUT", "/preferences/language", handlers.LanguageRequest{Language: "es"}))
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "es", cookies[0].Value)

	req := httptest.NewRequest("GET", "/preferences/language", nil)
	req.AddCookie(cookies[0])
	w = httptest.NewRecorder()
	h.GetLanguage(w, req)

	var body map[string]interface{}
	handlers.AssertJSONResponse(t, w, http.StatusOK, &body)
	assert.Equal(t, "es", body["language"])

	w = httptest.NewRecorder()
	h.SetLanguage(w, handlers.NewTestRequest(t, "PUT", "/preferences/language", handlers.LanguageRequest{Language: "klingon"}))
	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
}
