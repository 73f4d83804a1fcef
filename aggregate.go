package main

import (
	"github.com/rs/zerolog/log"
)

// Allowed drift between the accumulated per-row sum and the window
// length before the aggregator logs a data-quality warning
const durationEpsilonMs = 1

// aggregateDurations computes total, online and offline milliseconds
// for a site's samples strictly within [w.Start, w.End)
func aggregateDurations(samples []Sample, prior *Sample, w Window) Durations {
	return aggregateRows(seedRows(samples, prior, w), w)
}

// aggregateRows walks the seeded row sequence once. Each row covers
// [row.ts, min(next.ts, w.End)); the total is defined as w.End-w.Start
// rather than the accumulated sum to avoid rounding drift.
func aggregateRows(rows []row, w Window) Durations {
	d := Durations{TotalMs: w.End.Sub(w.Start).Milliseconds()}

	for i, r := range rows {
		if !r.ts.Before(w.End) {
			continue
		}
		next := w.End
		if i+1 < len(rows) && rows[i+1].ts.Before(w.End) {
			next = rows[i+1].ts
		}
		ms := next.Sub(r.ts).Milliseconds()
		if ms < 0 {
			ms = 0
		}
		if r.isOffline {
			d.OfflineMs += ms
		} else {
			d.OnlineMs += ms
		}
	}

	drift := d.TotalMs - d.OnlineMs - d.OfflineMs
	if drift > durationEpsilonMs || drift < -durationEpsilonMs {
		log.Warn().
			Int64("total_ms", d.TotalMs).
			Int64("online_ms", d.OnlineMs).
			Int64("offline_ms", d.OfflineMs).
			Int64("drift_ms", drift).
			Msg("[Aggregate] online+offline diverges from window length")
	}
	return d
}
