package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateDurationsSplitsOnlineOffline(t *testing.T) {
	w := Window{Start: windowStart, End: minuteOffset(60)}
	samples := []Sample{
		{Timestamp: minuteOffset(10), Status: StatusDown},
		{Timestamp: minuteOffset(30), Status: StatusUp},
	}

	d := aggregateDurations(samples, nil, w)

	assert.Equal(t, int64(60*60*1000), d.TotalMs)
	assert.Equal(t, int64(20*60*1000), d.OfflineMs)
	assert.Equal(t, int64(40*60*1000), d.OnlineMs)
}

func TestAggregateDurationsEmptyWindowNoPrior(t *testing.T) {
	// Scenario D: empty sample set and no prior sample over a
	// 60-minute window counts entirely as online time
	w := Window{Start: windowStart, End: minuteOffset(60)}

	d := aggregateDurations(nil, nil, w)

	assert.Equal(t, int64(3_600_000), d.TotalMs)
	assert.Equal(t, int64(3_600_000), d.OnlineMs)
	assert.Equal(t, int64(0), d.OfflineMs)
}

func TestAggregateDurationsEmptyWindowOfflinePrior(t *testing.T) {
	w := Window{Start: windowStart, End: minuteOffset(60)}
	prior := &Sample{Timestamp: windowStart.Add(-time.Hour), Status: StatusOffline}

	d := aggregateDurations(nil, prior, w)

	assert.Equal(t, int64(3_600_000), d.TotalMs)
	assert.Equal(t, int64(3_600_000), d.OfflineMs)
	assert.Equal(t, int64(0), d.OnlineMs)
}

func TestAggregateDurationsConservation(t *testing.T) {
	// online + offline must equal the window length within 1ms for any
	// sample arrangement
	w := Window{Start: windowStart, End: minuteOffset(1440)}

	arrangements := [][]Sample{
		nil,
		{
			{Timestamp: minuteOffset(1), Status: StatusUp},
		},
		{
			{Timestamp: windowStart, Status: StatusDown},
			{Timestamp: minuteOffset(3), Status: StatusUp},
			{Timestamp: minuteOffset(700), Status: StatusOffline},
			{Timestamp: minuteOffset(702), Status: StatusReachableWithError},
			{Timestamp: minuteOffset(900), Status: StatusUp},
			{Timestamp: minuteOffset(1439), Status: StatusDown},
		},
		{
			// Irregular sub-minute spacing
			{Timestamp: windowStart.Add(17 * time.Second), Status: StatusDown},
			{Timestamp: windowStart.Add(43 * time.Second), Status: StatusUp},
			{Timestamp: windowStart.Add(44 * time.Second), Status: StatusDown},
			{Timestamp: windowStart.Add(12 * time.Minute), Status: StatusUp},
		},
	}

	priors := []*Sample{
		nil,
		{Timestamp: windowStart.Add(-time.Minute), Status: StatusDown},
		{Timestamp: windowStart.Add(-time.Minute), Status: StatusUp},
	}

	for _, samples := range arrangements {
		for _, prior := range priors {
			d := aggregateDurations(samples, prior, w)
			sum := d.OnlineMs + d.OfflineMs
			require.InDelta(t, d.TotalMs, sum, 1, "conservation violated: total=%d sum=%d", d.TotalMs, sum)
			assert.GreaterOrEqual(t, d.OnlineMs, int64(0))
			assert.GreaterOrEqual(t, d.OfflineMs, int64(0))
		}
	}
}

func TestAggregateDurationsMatchesSegmentedIncidents(t *testing.T) {
	// Offline duration equals the summed length of segmented incidents
	w := Window{Start: windowStart, End: minuteOffset(120)}
	prior := &Sample{Timestamp: windowStart.Add(-time.Minute), Status: StatusOffline}
	samples := []Sample{
		{Timestamp: minuteOffset(10), Status: StatusUp},
		{Timestamp: minuteOffset(60), Status: StatusDown},
		{Timestamp: minuteOffset(75), Status: StatusUp},
	}

	d := aggregateDurations(samples, prior, w)
	incidents := segmentIncidents(samples, prior, w)

	var incidentMs int64
	for _, inc := range incidents {
		incidentMs += inc.EndedAt.Sub(inc.StartedAt).Milliseconds()
	}
	assert.Equal(t, incidentMs, d.OfflineMs)
}
