package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/molar/internal/models"
	pkgauth "github.com/BradenHooton/molar/pkg/auth"
)

// Credentials are what the operator types into the login form
type Credentials struct {
	Username string
	Password string
	TOTPCode string
}

// CredentialVerifier decides whether credentials are correct. It returns
// models.ErrInvalidCredentials for a wrong combination and any other error for
// a failure to decide.
type CredentialVerifier interface {
	Verify(ctx context.Context, creds Credentials) error
}

// OperatorVerifier checks the single clinic operator account against a
// bcrypt hash and, when a secret is configured, a TOTP code.
type OperatorVerifier struct {
	username     string
	passwordHash string
	totpSecret   string
	totp         *TOTPManager
	now          func() time.Time
}

// NewOperatorVerifier creates a verifier; totpSecret may be empty to disable the second factor
func NewOperatorVerifier(username, passwordHash, totpSecret string, totp *TOTPManager) *OperatorVerifier {
	return &OperatorVerifier{
		username:     username,
		passwordHash: passwordHash,
		totpSecret:   totpSecret,
		totp:         totp,
		now:          time.Now,
	}
}

func (v *OperatorVerifier) Verify(ctx context.Context, creds Credentials) error {
	userOK := subtle.ConstantTimeCompare([]byte(creds.Username), []byte(v.username)) == 1

	// The hash is compared even for an unknown username so both paths cost the same.
	pwErr := pkgauth.ComparePassword(v.passwordHash, creds.Password)
	if pwErr != nil && !errors.Is(pwErr, pkgauth.ErrMismatchedPassword) {
		return fmt.Errorf("compare operator password: %w", pwErr)
	}
	if !userOK || pwErr != nil {
		return models.ErrInvalidCredentials
	}

	if v.totpSecret == "" {
		return nil
	}
	if creds.TOTPCode == "" || v.totp == nil {
		return models.ErrInvalidCredentials
	}
	ok, err := v.totp.Validate(v.totpSecret, creds.TOTPCode, v.now())
	if err != nil || !ok {
		return models.ErrInvalidCredentials
	}
	return nil
}

// StaticVerifier accepts one fixed username/password pair. It reproduces the
// dashboard's original built-in login and is only wired outside production.
type StaticVerifier struct {
	username string
	password string
}

const (
	LegacyUsername = "dentist"
	LegacyPassword = "dashboard"
)

func NewStaticVerifier(username, password string) *StaticVerifier {
	return &StaticVerifier{username: username, password: password}
}

func (v *StaticVerifier) Verify(_ context.Context, creds Credentials) error {
	userOK := subtle.ConstantTimeCompare([]byte(creds.Username), []byte(v.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(creds.Password), []byte(v.password)) == 1
	if userOK && passOK {
		return nil
	}
	return models.ErrInvalidCredentials
}

// VerifierFunc adapts a function to CredentialVerifier
type VerifierFunc func(ctx context.Context, creds Credentials) error

func (f VerifierFunc) Verify(ctx context.Context, creds Credentials) error {
	return f(ctx, creds)
}
