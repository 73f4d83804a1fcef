package main

import (
	"strconv"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm/clause"
)

// Process-wide smoother advanced by the rollup paths; handlers read
// the persisted TrendState rows instead. The startup backfill and the
// scheduled rollup can overlap, so updates go through observeTrend.
var (
	trendSmoother *TrendSmoother
	trendMu       sync.Mutex
)

// observeTrend serializes smoother updates across the rollup writers
func observeTrend(target string, score float64) float64 {
	trendMu.Lock()
	defer trendMu.Unlock()
	return trendSmoother.Observe(target, score)
}

// initTrendSmoother builds the smoother and loads persisted state
func initTrendSmoother() {
	smoother, err := newTrendSmoother(scoringCfg.EWMAAlpha)
	if err != nil {
		log.Fatal().Err(err).Msg("[Rollup] Invalid EWMA alpha")
	}

	var states []TrendState
	db.Find(&states)
	loaded := make(map[string]float64, len(states))
	for _, s := range states {
		loaded[strconv.FormatUint(uint64(s.SiteID), 10)] = s.Smoothed
	}
	smoother.LoadState(loaded)
	trendSmoother = smoother

	log.Info().Int("sites", len(states)).Float64("alpha", scoringCfg.EWMAAlpha).
		Msg("[Rollup] Trend smoother initialized")
}

// rollupDay scores one completed UTC day for one site, persists the
// DailyScore row, and advances the site's smoothed trend
func rollupDay(site *Site, day Window) {
	result, incidents, durations, err := scoreSiteWindow(site, day, nil)
	if err != nil {
		log.Error().Err(err).Uint("site_id", site.ID).Str("day", dayKey(day.Start)).
			Msg("[Rollup] Failed to score day")
		return
	}

	daily := DailyScore{
		SiteID:       site.ID,
		Day:          dayKey(day.Start),
		Score:        result.Score,
		Availability: result.Parts["availability"],
		Frequency:    result.Parts["frequency"],
		Recovery:     result.Parts["recovery"],
		Confidence:   result.Parts["confidence"],
		Incidents:    len(incidents),
		CreatedAt:    time.Now(),
	}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "site_id"}, {Name: "day"}},
		UpdateAll: true,
	}).Create(&daily).Error
	if err != nil {
		log.Error().Err(err).Uint("site_id", site.ID).Str("day", daily.Day).
			Msg("[Rollup] Failed to save daily score")
		return
	}

	target := strconv.FormatUint(uint64(site.ID), 10)
	smoothed := observeTrend(target, result.Score)

	state := TrendState{SiteID: site.ID, Smoothed: smoothed, UpdatedAt: time.Now()}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "site_id"}},
		UpdateAll: true,
	}).Create(&state).Error
	if err != nil {
		log.Error().Err(err).Uint("site_id", site.ID).Msg("[Rollup] Failed to save trend state")
	}

	log.Info().Uint("site_id", site.ID).Str("day", daily.Day).
		Float64("score", result.Score).Float64("smoothed", smoothed).
		Int("incidents", len(incidents)).
		Int64("offline_ms", durations.OfflineMs).
		Msg("[Rollup] Daily score recorded")

	broadcastUpdate("score_update", ScoreResponse{
		SiteID: site.ID,
		Window: day,
		Result: result,
	})
}

// runDailyRollup scores yesterday's UTC day for every unpaused site
func runDailyRollup() {
	now := time.Now().UTC()
	dayEnd := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	day := Window{Start: dayEnd.AddDate(0, 0, -1), End: dayEnd}

	var sites []Site
	db.Find(&sites)

	log.Info().Str("day", dayKey(day.Start)).Int("sites", len(sites)).Msg("[Rollup] Starting daily rollup")
	for i := range sites {
		if sites[i].Paused {
			continue
		}
		rollupDay(&sites[i], day)
	}
	broadcastStatsIfChanged()
}

// backfillRollup scores every completed UTC day since the site's
// oldest retained sample that has no DailyScore row yet. Run once at
// startup so restarts don't leave holes in the trend. Days before the
// first sample are left unscored rather than reported as perfect.
func backfillRollup(site *Site) {
	var first CheckSample
	err := db.Where("site_id = ?", site.ID).Order("created_at ASC").First(&first).Error
	if err != nil {
		return
	}

	now := time.Now().UTC()
	lastMidnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	for _, day := range utcDayWindows(first.CreatedAt.UTC(), lastMidnight) {
		// Only roll up whole days
		if day.End.Sub(day.Start) < 24*time.Hour {
			continue
		}
		var count int64
		db.Model(&DailyScore{}).Where("site_id = ? AND day = ?", site.ID, dayKey(day.Start)).Count(&count)
		if count > 0 {
			continue
		}
		rollupDay(site, day)
	}
}

// startScheduler starts the gocron jobs: the daily scoring rollup
// shortly after midnight UTC and the retention cleanup after it
func startScheduler() {
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		log.Fatal().Err(err).Msg("[Rollup] Failed to create scheduler")
	}

	_, err = scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 10, 0))),
		gocron.NewTask(runDailyRollup),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("[Rollup] Failed to schedule daily rollup")
	}

	_, err = scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 30, 0))),
		gocron.NewTask(cleanOldCheckSamples),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("[Rollup] Failed to schedule cleanup")
	}

	scheduler.Start()
	log.Info().Msg("[Rollup] Scheduler started (rollup 00:10 UTC, cleanup 00:30 UTC)")
}
