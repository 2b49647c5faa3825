package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/molar/internal/auth"
	"github.com/BradenHooton/molar/internal/background"
	"github.com/BradenHooton/molar/internal/models"
	pkghttp "github.com/BradenHooton/molar/pkg/http"
	"github.com/BradenHooton/molar/pkg/logger"
)

// LockoutGuard defines the lockout operations the auth handler needs
type LockoutGuard interface {
	Status(ctx context.Context, deviceID string) (models.LockoutStatus, error)
	Attempt(ctx context.Context, deviceID string, creds auth.Credentials) (*models.AttemptResult, error)
}

// SessionIssuer creates session tokens for a signed-in operator
type SessionIssuer interface {
	GenerateSessionToken(operator string) (string, time.Time, error)
}

// AuthHandler handles login, logout and lockout status requests
type AuthHandler struct {
	guard             LockoutGuard
	sessions          SessionIssuer
	cookies           auth.CookieConfig
	ipConfig          *pkghttp.IPConfig
	countdownInterval time.Duration
	logger            *slog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(guard LockoutGuard, sessions SessionIssuer, cookies auth.CookieConfig, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		guard:             guard,
		sessions:          sessions,
		cookies:           cookies,
		ipConfig:          ipConfig,
		countdownInterval: time.Second,
		logger:            logger,
	}
}

// SetCountdownInterval changes how often the countdown stream ticks
func (h *AuthHandler) SetCountdownInterval(d time.Duration) {
	h.countdownInterval = d
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
	TOTPCode string `json:"totpCode,omitempty" validate:"omitempty,numeric,len=6"`
}

// Response DTOs

// LoginResponse is returned after a successful login
type LoginResponse struct {
	Success   bool      `json:"success"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// InvalidCredentialsResponse is returned after a rejected login that did not lock the device
type InvalidCredentialsResponse struct {
	Success           bool   `json:"success"`
	Error             string `json:"error"`
	Message           string `json:"message"`
	RemainingAttempts int    `json:"remainingAttempts"`
}

// LockedResponse is returned while the device is locked. It carries no
// attempt-specific message.
type LockedResponse struct {
	Success      bool       `json:"success"`
	Error        string     `json:"error"`
	BlockedUntil *time.Time `json:"blockedUntil"`
	Countdown    string     `json:"countdown"`
}

// LockoutStatusResponse is the body of GET /auth/lockout
type LockoutStatusResponse struct {
	Success bool `json:"success"`
	models.LockoutStatus
}

// Login handles operator login
// @Summary Operator login
// @Accept json
// @Param request body LoginRequest true "Login request"
// @Produce json
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} InvalidCredentialsResponse
// @Failure 429 {object} LockedResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.TOTPCode = strings.TrimSpace(req.TOTPCode)
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	device := pkghttp.DeviceKey(r, h.ipConfig)
	result, err := h.guard.Attempt(r.Context(), device, auth.Credentials{
		Username: req.Username,
		Password: req.Password,
		TOTPCode: req.TOTPCode,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Client went away during the check delay
			return
		}
		pkghttp.WriteServiceUnavailable(w, "Sign-in is temporarily unavailable. Please try again.")
		return
	}

	switch result.Outcome {
	case models.AttemptSucceeded:
		token, expiresAt, err := h.sessions.GenerateSessionToken(req.Username)
		if err != nil {
			h.logger.Error("failed to generate session token", slog.Any("error", err))
			pkghttp.WriteInternalError(w, "Internal server error")
			return
		}
		auth.SetSessionCookie(w, token, expiresAt, h.cookies)
		pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{Success: true, Token: token, ExpiresAt: expiresAt})

	case models.AttemptLocked:
		writeLocked(w, result.Status)

	default:
		pkghttp.WriteJSON(w, http.StatusUnauthorized, InvalidCredentialsResponse{
			Success:           false,
			Error:             "invalid_credentials",
			Message:           result.Message,
			RemainingAttempts: result.Status.RemainingAttempts,
		})
	}
}

func writeLocked(w http.ResponseWriter, status models.LockoutStatus) {
	secs := int(math.Ceil(status.Remaining.Seconds()))
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	pkghttp.WriteJSON(w, http.StatusTooManyRequests, LockedResponse{
		Success:      false,
		Error:        "locked",
		BlockedUntil: status.BlockedUntil,
		Countdown:    status.Countdown,
	})
}

// Logout clears the session cookie
// @Summary Operator logout
// @Produce json
// @Success 200
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.cookies)
	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Signed out",
	})
}

// LockoutStatus reports whether the requesting device may submit credentials
// @Summary Lockout status for the calling device
// @Produce json
// @Success 200 {object} LockoutStatusResponse
// @Router /auth/lockout [get]
func (h *AuthHandler) LockoutStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.guard.Status(r.Context(), pkghttp.DeviceKey(r, h.ipConfig))
	if err != nil {
		pkghttp.WriteServiceUnavailable(w, "Lockout status is temporarily unavailable")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, LockoutStatusResponse{Success: true, LockoutStatus: status})
}

// LockoutCountdown streams one "countdown" event per second until the device
// unlocks or the client disconnects. An open device receives a single
// "00:00:00" event.
// @Summary Lockout countdown (Server-Sent Events)
// @Produce text/event-stream
// @Router /auth/lockout/countdown [get]
func (h *AuthHandler) LockoutCountdown(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		pkghttp.WriteInternalError(w, "Streaming not supported")
		return
	}

	// The stream may outlive the server write timeout
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	device := pkghttp.DeviceKey(r, h.ipConfig)
	countdown := background.NewCountdown(func(ctx context.Context) (models.LockoutStatus, error) {
		return h.guard.Status(ctx, device)
	}, h.countdownInterval, h.logger)
	defer countdown.Stop()

	go countdown.Run(r.Context())

	for tick := range countdown.Ticks() {
		data, err := json.Marshal(tick)
		if err != nil {
			return
		}
		if _, err := fmt.Fprintf(w, "event: countdown\ndata: %s\n\n", data); err != nil {
			h.logger.Debug("countdown stream closed", slog.String("device", logger.TruncateDevice(device)))
			return
		}
		flusher.Flush()
	}
}
