package main

import (
	"database/sql"
	"time"

	"github.com/rs/zerolog/log"
)

// getStats calculates fleet-wide statistics using database aggregation
func getStats() StatsResponse {
	var counts struct {
		UpCount   int64
		DownCount int64
	}

	db.Model(&Site{}).
		Select(`
			SUM(CASE WHEN status IN ('up', 'slow') THEN 1 ELSE 0 END) as up_count,
			SUM(CASE WHEN status IN ('down', 'offline', 'reachable_with_error') THEN 1 ELSE 0 END) as down_count
		`).
		Where("paused = ?", false).
		Scan(&counts)

	// Average of each site's most recent daily score
	var overallScore float64
	var scoreResult sql.NullFloat64
	err := db.Raw(`
		SELECT AVG(score) FROM daily_scores d
		WHERE d.day = (SELECT MAX(day) FROM daily_scores WHERE site_id = d.site_id)
	`).Row().Scan(&scoreResult)
	if err == nil && scoreResult.Valid {
		overallScore = scoreResult.Float64
	} else if err != nil {
		log.Warn().Err(err).Msg("[Stats] Error calculating overall score")
	}

	// Average response time across all checks in the last 24 hours
	var avgResponseTime int
	twentyFourHoursAgo := time.Now().Add(-24 * time.Hour)

	var avgResult sql.NullFloat64
	var countResult int64

	db.Model(&CheckSample{}).
		Where("created_at > ? AND response_time_ms > 0 AND status IN ('up', 'slow')", twentyFourHoursAgo).
		Count(&countResult)

	if countResult > 0 {
		err := db.Raw(`
			SELECT AVG(response_time_ms)
			FROM check_samples
			WHERE created_at > ? AND response_time_ms > 0 AND status IN ('up', 'slow')
		`, twentyFourHoursAgo).Row().Scan(&avgResult)

		if err == nil && avgResult.Valid {
			avgResponseTime = int(avgResult.Float64)
			log.Debug().Int64("checks", countResult).Int("avg_ms", avgResponseTime).Msg("[Stats] Calculated avg response time")
		} else {
			log.Warn().Err(err).Int64("count", countResult).Msg("[Stats] Error calculating avg response time")
		}
	} else {
		log.Debug().Msg("[Stats] No check samples found in last 24 hours")
	}

	return StatsResponse{
		OverallScore:    overallScore,
		SitesUp:         int(counts.UpCount),
		SitesDown:       int(counts.DownCount),
		AvgResponseTime: avgResponseTime,
	}
}
