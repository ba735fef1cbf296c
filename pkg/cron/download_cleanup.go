package cron

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"questlog_backend/internal/ledger"
)

const downloadRetention = 30 * 24 * time.Hour

// InitDownloadCleanupCron prunes aged download-attempt rows nightly. The
// rate limiter only reads one-hour windows, so old rows are pure growth.
func InitDownloadCleanupCron(store *ledger.Store) {
	c := cron.New()

	_, err := c.AddFunc("0 4 * * *", func() {
		purgeOldDownloadAttempts(store)
	})

	if err != nil {
		log.Printf("Could not initialize download cleanup cron: %v", err)
		return
	}

	c.Start()
}

func purgeOldDownloadAttempts(store *ledger.Store) {
	cutoff := time.Now().Add(-downloadRetention)

	removed, err := store.PurgeDownloadAttemptsBefore(cutoff)
	if err != nil {
		log.Printf("Error purging download attempts: %v", err)
		return
	}
	log.Printf("Purged %d download attempts older than %s", removed, cutoff.Format("2006-01-02"))
}
