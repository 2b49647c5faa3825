package auth

import (
	"fmt"
	"sync"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	totpPeriod = 30
	// replayWindow covers the ±1 step skew accepted by Validate
	replayWindow = 3 * totpPeriod * time.Second
)

// TOTPManager handles operator TOTP enrollment and validation
type TOTPManager struct {
	issuer string

	mu       sync.Mutex
	lastCode string
	lastUsed time.Time
}

// NewTOTPManager creates a new TOTP manager
func NewTOTPManager(issuer string) *TOTPManager {
	return &TOTPManager{issuer: issuer}
}

// Enrollment is a freshly generated TOTP secret with its provisioning URL and QR code
type Enrollment struct {
	Secret string
	URL    string
	QRCode []byte // PNG
}

// Enroll generates a new base32 secret for accountName
func (tm *TOTPManager) Enroll(accountName string, qrSize int) (*Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      tm.issuer,
		AccountName: accountName,
		SecretSize:  20,
		Period:      totpPeriod,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	png, err := qrcode.Encode(key.URL(), qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}

	return &Enrollment{Secret: key.Secret(), URL: key.URL(), QRCode: png}, nil
}

// Validate checks code against a base32 secret at now, allowing ±1 time step.
// A code already accepted within the replay window is rejected.
func (tm *TOTPManager) Validate(secret, code string, now time.Time) (bool, error) {
	valid, err := totp.ValidateCustom(code, secret, now, totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false, fmt.Errorf("failed to validate TOTP: %w", err)
	}
	if !valid {
		return false, nil
	}

	tm.mu.Lock()
	defer tm.mu.Unlock()
	if code == tm.lastCode && now.Sub(tm.lastUsed) < replayWindow {
		return false, nil
	}
	tm.lastCode = code
	tm.lastUsed = now
	return true, nil
}
