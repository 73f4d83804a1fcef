package main

import (
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Console logging with sensible defaults; LOG_LEVEL=debug for more
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	if os.Getenv("LOG_LEVEL") == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	initDB()
	initTrendSmoother()

	// Fill any daily-score gaps since the oldest retained sample, then
	// keep scoring days on schedule. The scheduler starts only after
	// the backfill so the two rollup writers never overlap.
	go func() {
		var sites []Site
		db.Find(&sites)
		for i := range sites {
			backfillRollup(&sites[i])
		}
		startScheduler()
	}()

	startChecker()

	// API routes
	http.HandleFunc("/api/score", apiScore)
	http.HandleFunc("/api/incidents", apiIncidents)
	http.HandleFunc("/api/durations", apiDurations)
	http.HandleFunc("/api/trend", apiTrend)
	http.HandleFunc("/api/sites", apiSites)
	http.HandleFunc("/api/stats", apiStats)
	http.HandleFunc("/api/events", apiSSE)

	port := ":8080"
	if envPort := os.Getenv("PORT"); envPort != "" {
		port = ":" + envPort
	}

	log.Info().Str("port", port).Msg("🚀 Server starting")
	log.Info().Msg("   GET  /api/score?id=<id>&from=&to=[&failFraction=] - Reliability score from stored samples")
	log.Info().Msg("   POST /api/score - Reliability score from a supplied incident log")
	log.Info().Msg("   GET  /api/incidents?id=<id>&from=&to= - Offline intervals")
	log.Info().Msg("   GET  /api/durations?id=<id>&from=&to= - Online/offline durations")
	log.Info().Msg("   GET  /api/trend?id=<id>&days= - Daily scores and smoothed trend")
	log.Info().Msg("   GET  /api/sites - List all sites")
	log.Info().Msg("   GET  /api/stats - Fleet statistics")
	log.Info().Msg("   GET  /api/events - SSE stream")

	if err := http.ListenAndServe(port, nil); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
