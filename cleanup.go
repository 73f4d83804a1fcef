package main

import (
	"time"

	"github.com/rs/zerolog/log"
)

// cleanOldCheckSamples removes check samples older than the configured
// retention period. Daily scores and trend state are kept forever.
func cleanOldCheckSamples() {
	cutoff := time.Now().AddDate(0, 0, -scoringCfg.RetentionDays)

	log.Info().Time("cutoff", cutoff).Msg("[Cleanup] Starting cleanup of check samples")

	result := db.Where("created_at < ?", cutoff).Delete(&CheckSample{})
	if result.Error != nil {
		log.Error().Err(result.Error).Msg("[Cleanup] Failed to clean old check samples")
		return
	}

	log.Info().Int64("deleted", result.RowsAffected).Msg("[Cleanup] Successfully deleted check samples")
}
