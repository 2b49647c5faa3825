package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BradenHooton/molar/internal/auth"
	pkgauth "github.com/BradenHooton/molar/pkg/auth"
	"github.com/spf13/cobra"
)

const totpIssuer = "Molar"

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Hash an operator password for OPERATOR_PASSWORD_HASH",
		Long: `Reads one line from stdin, checks it against the password rules and
prints a bcrypt hash.

Examples:
  # Hash interactively
  molarctl hash-password

  # Hash from a file
  molarctl hash-password < password.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHashPassword(cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func runHashPassword(in io.Reader, out io.Writer) error {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")

	if err := pkgauth.ValidatePassword(password); err != nil {
		return err
	}
	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, hash)
	return err
}

func totpEnrollCmd() *cobra.Command {
	var account, qrPath string
	var qrSize int

	cmd := &cobra.Command{
		Use:   "totp-enroll",
		Short: "Generate a TOTP secret for OPERATOR_TOTP_SECRET",
		Long: `Generates a new base32 secret, prints it with its otpauth:// URL and
optionally writes a QR code PNG for an authenticator app.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTOTPEnroll(cmd.OutOrStdout(), account, qrPath, qrSize)
		},
	}

	cmd.Flags().StringVar(&account, "account", auth.LegacyUsername, "Account name shown in the authenticator")
	cmd.Flags().StringVar(&qrPath, "qr", "", "Write the QR code PNG to this path")
	cmd.Flags().IntVar(&qrSize, "qr-size", 256, "QR code size in pixels")
	return cmd
}

func runTOTPEnroll(out io.Writer, account, qrPath string, qrSize int) error {
	enrollment, err := auth.NewTOTPManager(totpIssuer).Enroll(account, qrSize)
	if err != nil {
		return err
	}

	if qrPath != "" {
		if err := os.WriteFile(qrPath, enrollment.QRCode, 0o600); err != nil {
			return fmt.Errorf("failed to write QR code: %w", err)
		}
	}

	fmt.Fprintf(out, "OPERATOR_TOTP_SECRET=%s\n", enrollment.Secret)
	fmt.Fprintf(out, "URL: %s\n", enrollment.URL)
	if qrPath != "" {
		fmt.Fprintf(out, "QR code written to %s\n", qrPath)
	}
	return nil
}
