package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ExpiredLockoutPurger removes lockout records whose window has passed
type ExpiredLockoutPurger interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// OrphanPurger removes stored files of soft-deleted clients
type OrphanPurger interface {
	PurgeOrphans(ctx context.Context, deactivatedBefore time.Time, batchSize int) (int, error)
}

// CleanupConfig controls what the cleanup manager does on each run
type CleanupConfig struct {
	Interval        time.Duration
	OrphanRetention time.Duration
	OrphanBatchSize int
}

// CleanupManager periodically removes expired lockout records and the
// attachments of clients that were soft-deleted long enough ago
type CleanupManager struct {
	lockouts ExpiredLockoutPurger
	orphans  OrphanPurger
	config   CleanupConfig
	logger   *slog.Logger
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCleanupManager creates a new cleanup manager. Either purger may be nil
// to skip that task.
func NewCleanupManager(lockouts ExpiredLockoutPurger, orphans OrphanPurger, config CleanupConfig, logger *slog.Logger) *CleanupManager {
	if config.OrphanBatchSize <= 0 {
		config.OrphanBatchSize = 100
	}
	return &CleanupManager{
		lockouts: lockouts,
		orphans:  orphans,
		config:   config,
		logger:   logger,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.config.Interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			cm.RunOnce(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// RunOnce performs a single cleanup pass
func (cm *CleanupManager) RunOnce(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	now := cm.now()

	if cm.lockouts != nil {
		rowsDeleted, err := cm.lockouts.DeleteExpired(cleanupCtx, now)
		if err != nil {
			cm.logger.Error("failed to cleanup expired lockouts", slog.Any("error", err))
		} else if rowsDeleted > 0 {
			cm.logger.Info("expired lockout cleanup completed", slog.Int64("rows_deleted", rowsDeleted))
		}
	}

	if cm.orphans != nil {
		removed, err := cm.orphans.PurgeOrphans(cleanupCtx, now.Add(-cm.config.OrphanRetention), cm.config.OrphanBatchSize)
		if err != nil {
			cm.logger.Error("failed to purge orphaned attachments", slog.Any("error", err), slog.Int("removed", removed))
		} else if removed > 0 {
			cm.logger.Info("orphaned attachment cleanup completed", slog.Int("removed", removed))
		}
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
