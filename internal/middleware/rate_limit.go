package middleware

import (
	"net/http"
	"time"

	"github.com/BradenHooton/molar/internal/auth"
	pkghttp "github.com/BradenHooton/molar/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
}

// DefaultLoginRateLimit is the request budget of the login endpoint per IP.
// It sits above the lockout threshold so that the lockout, not the rate
// limiter, is what an operator normally meets.
func DefaultLoginRateLimit() RateLimitConfig {
	return RateLimitConfig{RequestsPerMinute: 20}
}

// DefaultMutationRateLimit is the budget for roster writes per operator
func DefaultMutationRateLimit() RateLimitConfig {
	return RateLimitConfig{RequestsPerMinute: 60}
}

func limitExceeded(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteTooManyRequests(w, "Rate limit exceeded. Please slow down.")
}

// RateLimitByIP creates a middleware that rate limits requests by client IP
func RateLimitByIP(config RateLimitConfig, ipConfig *pkghttp.IPConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return "ip:" + pkghttp.ExtractClientIP(r, ipConfig), nil
		}),
		httprate.WithLimitHandler(limitExceeded),
	)
}

// RateLimitByOperator rate limits authenticated requests by operator,
// falling back to the client IP when no session is present
func RateLimitByOperator(config RateLimitConfig, ipConfig *pkghttp.IPConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if op := auth.OperatorFromContext(r.Context()); op != "" {
				return "op:" + op, nil
			}
			return "ip:" + pkghttp.ExtractClientIP(r, ipConfig), nil
		}),
		httprate.WithLimitHandler(limitExceeded),
	)
}
