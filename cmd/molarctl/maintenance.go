package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/molar/internal/config"
	"github.com/BradenHooton/molar/internal/database"
	"github.com/BradenHooton/molar/internal/repositories"
	"github.com/BradenHooton/molar/internal/services"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func migrateCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := database.NewConnection(&cfg.Database, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()
			if err := database.RunMigrations(ctx, db, logger); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func unlockCmd(logger *slog.Logger) *cobra.Command {
	var device string

	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Clear the login lockout of one device",
		Long: `Clears the failed attempt counter and any active lockout for one device.
The key is "id:" followed by the browser's X-Device-ID, or "fp:" followed by the
IP and user agent fingerprint.

Examples:
  molarctl unlock --device id:3f6c2a9e-dashboard-tab`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			store, closeStore, err := openLockoutStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			guard := services.NewLockoutService(store, nil, nil, services.LockoutConfig{
				Threshold: cfg.Auth.LockoutThreshold,
				Cooldown:  cfg.Auth.LockoutCooldown,
			}, logger)
			if err := guard.Unlock(ctx, device); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "device %s unlocked\n", device)
			return nil
		},
	}

	cmd.Flags().StringVar(&device, "device", "", "Device key to unlock (id:<device-id> or fp:<fingerprint>)")
	_ = cmd.MarkFlagRequired("device")
	return cmd
}

// openLockoutStore connects to whichever backend LOCKOUT_STORE selects
func openLockoutStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (services.LockoutStore, func(), error) {
	if cfg.Auth.LockoutStore == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		store := repositories.NewRedisLockoutStore(rdb, time.Hour, logger)
		return store, func() { rdb.Close() }, nil
	}

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		return nil, nil, err
	}
	return repositories.NewLockoutRepository(db), db.Close, nil
}
