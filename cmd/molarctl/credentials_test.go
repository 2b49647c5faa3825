package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	pkgauth "github.com/BradenHooton/molar/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunHashPassword(t *testing.T) {
	var out bytes.Buffer
	err := runHashPassword(strings.NewReader("Gentle-Molar-42\n"), &out)
	require.NoError(t, err)

	hash := strings.TrimSpace(out.String())
	assert.True(t, strings.HasPrefix(hash, "$2"))
	assert.NoError(t, pkgauth.ComparePassword(hash, "Gentle-Molar-42"))
}

func TestRunHashPassword_NoTrailingNewline(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runHashPassword(strings.NewReader("Gentle-Molar-42"), &out))
	assert.NoError(t, pkgauth.ComparePassword(strings.TrimSpace(out.String()), "Gentle-Molar-42"))
}

func TestRunHashPassword_RejectsWeakPassword(t *testing.T) {
	var out bytes.Buffer
	err := runHashPassword(strings.NewReader("short\n"), &out)
	assert.Error(t, err)
	assert.Empty(t, out.String())
}

func TestRunTOTPEnroll_WritesQRCode(t *testing.T) {
	qrPath := filepath.Join(t.TempDir(), "enroll.png")

	var out bytes.Buffer
	require.NoError(t, runTOTPEnroll(&out, "dentist", qrPath, 128))

	assert.Contains(t, out.String(), "OPERATOR_TOTP_SECRET=")
	assert.Contains(t, out.String(), "otpauth://totp/")

	png, err := os.ReadFile(qrPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}

func TestRunTOTPEnroll_WithoutQRCode(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runTOTPEnroll(&out, "dentist", "", 128))
	assert.NotContains(t, out.String(), "QR code written")
}
