// molarctl is the operator tool for a Molar deployment.
//
// Usage:
//
//	molarctl hash-password < password.txt
//	molarctl totp-enroll --account dentist --qr enroll.png
//	molarctl migrate
//	molarctl roster --status completed --sort lastVisit --desc
//	molarctl unlock --device id:3f6c2a9e-dashboard-tab
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	rootCmd := &cobra.Command{
		Use:   "molarctl",
		Short: "Operate a Molar clinic backend",
		Long: `molarctl prepares operator credentials and performs maintenance
against the database and lockout store configured in the environment.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(hashPasswordCmd())
	rootCmd.AddCommand(totpEnrollCmd())
	rootCmd.AddCommand(migrateCmd(logger))
	rootCmd.AddCommand(unlockCmd(logger))
	rootCmd.AddCommand(rosterCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
