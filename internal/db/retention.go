package db

import (
	"log"
	"time"

	"gorm.io/gorm"
)

// runUsagePruneOnce performs a single pass of usage-log retention,
// deleting rows older than the configured horizon. The log is
// append-only for callers; pruning is an operator retention policy.
func runUsagePruneOnce(db *gorm.DB, retentionDays int) error {
	cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour)
	return db.Where("occurred_at < ?", cutoff).Delete(&UsageLog{}).Error
}

// StartUsagePruneWorker launches a background goroutine that prunes old
// usage log rows once at startup and then once per day. A retention of
// 0 disables pruning entirely.
func StartUsagePruneWorker(db *gorm.DB, retentionDays int) {
	if retentionDays <= 0 {
		return
	}
	go func() {
		if err := runUsagePruneOnce(db, retentionDays); err != nil {
			log.Printf("usage prune error (startup): %v", err)
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		for range ticker.C {
			if err := runUsagePruneOnce(db, retentionDays); err != nil {
				log.Printf("usage prune error: %v", err)
			}
		}
	}()
}
