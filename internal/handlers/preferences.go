package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/molar/pkg/http"
)

const (
	// LanguageCookieName holds the dashboard display language
	LanguageCookieName = "molar_lang"
	defaultLanguage    = "en"
	languageCookieAge  = 365 * 24 * time.Hour
)

// LanguageRequest represents the request body for changing the display language
type LanguageRequest struct {
	Language string `json:"language" validate:"required,oneof=en es pt"`
}

// PreferencesHandler stores per-browser dashboard preferences in cookies
type PreferencesHandler struct {
	secure bool
}

// NewPreferencesHandler creates a new PreferencesHandler
func NewPreferencesHandler(secure bool) *PreferencesHandler {
	return &PreferencesHandler{secure: secure}
}

// GetLanguage returns the stored display language, "en" when none is set
func (h *PreferencesHandler) GetLanguage(w http.ResponseWriter, r *http.Request) {
	lang := defaultLanguage
	if c, err := r.Cookie(LanguageCookieName); err == nil && ValidateRequest(LanguageRequest{Language: c.Value}) == nil {
		lang = c.Value
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "language": lang})
}

// SetLanguage stores the display language
func (h *PreferencesHandler) SetLanguage(w http.ResponseWriter, r *http.Request) {
	var req LanguageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     LanguageCookieName,
		Value:    req.Language,
		Path:     "/",
		MaxAge:   int(languageCookieAge.Seconds()),
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "language": req.Language})
}
