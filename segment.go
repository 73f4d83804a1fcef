package main

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// row is one entry in the seeded, merged sequence shared by the
// segmenter and the duration aggregator
type row struct {
	ts        time.Time
	isOffline bool
	segmentID int
}

// isOfflineStatus classifies a raw status label into the offline set
func isOfflineStatus(status string) bool {
	switch status {
	case StatusOffline, StatusDown, StatusReachableWithError:
		return true
	}
	return false
}

// seedRows builds the merged row sequence for [w.Start, w.End): a seed
// row at w.Start carrying the prior sample's state, followed by all
// in-window samples sorted by timestamp. The seed keeps an outage that
// began before the window visible from w.Start. Without a prior sample
// the seed assumes online.
func seedRows(samples []Sample, prior *Sample, w Window) []row {
	offlineAtStart := false
	if prior != nil {
		offlineAtStart = isOfflineStatus(prior.Status)
	}

	rows := make([]row, 0, len(samples)+1)
	rows = append(rows, row{ts: w.Start, isOffline: offlineAtStart})
	for _, s := range samples {
		if s.Timestamp.Before(w.Start) || !s.Timestamp.Before(w.End) {
			continue
		}
		rows = append(rows, row{ts: s.Timestamp, isOffline: isOfflineStatus(s.Status)})
	}

	// Stable so a real sample at exactly w.Start sorts after the seed
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].ts.Before(rows[j].ts)
	})

	segmentID := 1
	for i := range rows {
		if i > 0 && rows[i].isOffline != rows[i-1].isOffline {
			segmentID++
		}
		rows[i].segmentID = segmentID
	}
	return rows
}

// segmentIncidents converts samples into a minimal list of
// non-overlapping offline intervals clipped to [w.Start, w.End).
// Incidents derived purely from status default to severity "other",
// unplanned; callers with richer incident logs feed the scorer
// directly instead.
func segmentIncidents(samples []Sample, prior *Sample, w Window) []Incident {
	rows := seedRows(samples, prior, w)

	var incidents []Incident
	for i := 0; i < len(rows); {
		j := i
		for j < len(rows) && rows[j].segmentID == rows[i].segmentID {
			j++
		}
		if rows[i].isOffline {
			end := w.End
			if j < len(rows) {
				end = rows[j].ts
			}
			// A sample at exactly w.Start contradicting the seeded
			// prior state leaves a zero-length seed segment; skip it
			if !end.After(rows[i].ts) {
				i = j
				continue
			}
			incidents = append(incidents, Incident{
				ID:        uuid.NewString(),
				StartedAt: rows[i].ts,
				EndedAt:   end,
				Severity:  SeverityOther,
			})
		}
		i = j
	}
	return incidents
}
