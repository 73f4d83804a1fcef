package main

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dayWindow() Window {
	return Window{Start: windowStart, End: windowStart.Add(24 * time.Hour)}
}

func unplannedIncident(startMin, durMin int, severity SeverityClass) Incident {
	return Incident{
		ID:        "inc-test",
		StartedAt: minuteOffset(startMin),
		EndedAt:   minuteOffset(startMin + durMin),
		Severity:  severity,
	}
}

func TestComputeScorePerfectDay(t *testing.T) {
	// Scenario A: 1440-minute window, zero incidents, 60s interval
	result, err := computeScore(ScoreInputs{
		Window: dayWindow(),
		Config: CheckConfig{CheckIntervalSec: 60},
	})
	require.NoError(t, err)

	assert.InDelta(t, 1.0, result.Parts["availability"], 1e-9)
	assert.InDelta(t, 1.0, result.Parts["frequency"], 1e-9)
	assert.InDelta(t, 1.0, result.Parts["recovery"], 1e-9)
	assert.InDelta(t, 1.0, result.Parts["confidence"], 1e-9)
	assert.InDelta(t, 100.0, result.Score, 1e-9)
}

func TestComputeScoreZeroIncidentsSparseSampling(t *testing.T) {
	// Scenario D: no incidents, score collapses to the K-adjusted factor
	result, err := computeScore(ScoreInputs{
		Window: Window{Start: windowStart, End: minuteOffset(60)},
		Config: CheckConfig{CheckIntervalSec: 300},
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.2, result.Parts["confidence"], 1e-9)
	assert.InDelta(t, 100*(0.5+0.5*0.2), result.Score, 1e-9)
}

func TestComputeScoreSingleIncidentHandComputed(t *testing.T) {
	// Scenario B: one unplanned HTTP 5xx incident of 30 minutes in a
	// 1440-minute window with 300s sampling.
	result, err := computeScore(ScoreInputs{
		Window:    dayWindow(),
		Config:    CheckConfig{CheckIntervalSec: 300},
		Incidents: []Incident{unplannedIncident(100, 30, SeverityHTTP5xx)},
	})
	require.NoError(t, err)

	penalty := math.Pow(30, 1.3) / math.Pow(1440, 1.3)
	assert.InDelta(t, 1-penalty, result.Parts["availability"], 1e-9)
	assert.InDelta(t, 0.75, result.Parts["frequency"], 1e-9)
	assert.InDelta(t, 0.5, result.Parts["recovery"], 1e-9)
	assert.InDelta(t, 0.2, result.Parts["confidence"], 1e-9)

	assert.InDelta(t, 0.6, result.Weights["availability"], 1e-9)
	assert.InDelta(t, 0.2, result.Weights["frequency"], 1e-9)
	assert.InDelta(t, 0.2, result.Weights["recovery"], 1e-9)

	// Hand-computed composite
	assert.InDelta(t, 49.12, result.Score, 0.01)
}

func TestComputeScorePlannedIncidentExcludedFromFrequencyAndMTTR(t *testing.T) {
	// Scenario C: one planned 60-minute incident plus one unplanned
	// 10-minute incident; only the unplanned one drives F and MTTR.
	planned := unplannedIncident(60, 60, SeverityOther)
	planned.Planned = true

	result, err := computeScore(ScoreInputs{
		Window:    dayWindow(),
		Config:    CheckConfig{CheckIntervalSec: 60},
		Incidents: []Incident{planned, unplannedIncident(300, 10, SeverityNetwork)},
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.75, result.Parts["frequency"], 1e-9)
	assert.InDelta(t, 1-10.0/60.0, result.Parts["recovery"], 1e-9)
}

func TestComputeScorePlannedDiscount(t *testing.T) {
	// A planned incident's weighted-minutes contribution is exactly
	// 0.2x the unplanned one, so after the power term the penalties
	// relate by 0.2^1.3.
	base := ScoreInputs{
		Window: dayWindow(),
		Config: CheckConfig{CheckIntervalSec: 60},
	}

	unplannedIn := base
	unplannedIn.Incidents = []Incident{unplannedIncident(0, 30, SeverityOther)}
	unplannedResult, err := computeScore(unplannedIn)
	require.NoError(t, err)

	plannedVariant := unplannedIncident(0, 30, SeverityOther)
	plannedVariant.Planned = true
	plannedIn := base
	plannedIn.Incidents = []Incident{plannedVariant}
	plannedResult, err := computeScore(plannedIn)
	require.NoError(t, err)

	unplannedPenalty := 1 - unplannedResult.Parts["availability"]
	plannedPenalty := 1 - plannedResult.Parts["availability"]
	assert.InDelta(t, math.Pow(0.2, 1.3), plannedPenalty/unplannedPenalty, 1e-9)
}

func TestComputeScoreMonotonicInIncidentDuration(t *testing.T) {
	// Growing a single unplanned incident never increases the score
	prevScore := math.Inf(1)
	for _, durMin := range []int{5, 10, 30, 60, 120, 480, 1440} {
		result, err := computeScore(ScoreInputs{
			Window:    dayWindow(),
			Config:    CheckConfig{CheckIntervalSec: 60},
			Incidents: []Incident{unplannedIncident(0, durMin, SeverityHTTP5xx)},
		})
		require.NoError(t, err)
		assert.LessOrEqual(t, result.Score, prevScore, "duration %dmin", durMin)
		prevScore = result.Score
	}
}

func TestComputeScoreSeverityWeighting(t *testing.T) {
	score := func(severity SeverityClass) float64 {
		result, err := computeScore(ScoreInputs{
			Window:    dayWindow(),
			Config:    CheckConfig{CheckIntervalSec: 60},
			Incidents: []Incident{unplannedIncident(0, 60, severity)},
		})
		require.NoError(t, err)
		return result.Parts["availability"]
	}

	tlsDNS := score(SeverityTLSDNS)
	http5xx := score(SeverityHTTP5xx)
	slow := score(SeveritySlow)

	assert.Less(t, tlsDNS, http5xx, "tls_dns weighs heavier than http_5xx")
	assert.Greater(t, slow, http5xx, "slow weighs lighter than http_5xx")
	assert.Equal(t, score(SeverityNetwork), http5xx)
	assert.Equal(t, score(SeverityOther), http5xx)
}

func TestComputeScoreWeightRenormalization(t *testing.T) {
	ff := 0.25
	result, err := computeScore(ScoreInputs{
		Window: dayWindow(),
		Config: CheckConfig{CheckIntervalSec: 60},
		Latency: []LatencySample{
			{Timestamp: windowStart, P50Ms: 100, P95Ms: 150},
		},
		ErrorRates: []ErrorRateSample{
			{Timestamp: windowStart, Requests: 1000, Errors: 2},
		},
		MultiRegionFailFraction: &ff,
	})
	require.NoError(t, err)

	var sum float64
	for _, w := range result.Weights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	// Full active set: raw weights 0.6/0.2/0.2/0.15/0.1/0.1 sum 1.35
	assert.InDelta(t, 0.6/1.35, result.Weights["availability"], 1e-9)
	assert.InDelta(t, 0.15/1.35, result.Weights["latency"], 1e-9)
	assert.InDelta(t, 0.10/1.35, result.Weights["errors"], 1e-9)
	assert.InDelta(t, 0.10/1.35, result.Weights["blast_radius"], 1e-9)
	assert.InDelta(t, 0.75, result.Parts["blast_radius"], 1e-9)
}

func TestComputeScorePartialOptionalSet(t *testing.T) {
	// Only latency supplied: weights renormalize over A/F/R/C
	result, err := computeScore(ScoreInputs{
		Window: dayWindow(),
		Config: CheckConfig{CheckIntervalSec: 60},
		Latency: []LatencySample{
			{Timestamp: windowStart, P50Ms: 100, P95Ms: 100},
		},
	})
	require.NoError(t, err)

	_, hasErrors := result.Weights["errors"]
	_, hasBlast := result.Weights["blast_radius"]
	assert.False(t, hasErrors)
	assert.False(t, hasBlast)

	var sum float64
	for _, w := range result.Weights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.InDelta(t, 0.6/1.15, result.Weights["availability"], 1e-9)
	assert.InDelta(t, 1.0, result.Parts["latency"], 1e-9, "zero jitter scores perfect consistency")
}

func TestComputeScoreInvalidInputs(t *testing.T) {
	_, err := computeScore(ScoreInputs{
		Window: Window{Start: windowStart, End: windowStart},
		Config: CheckConfig{CheckIntervalSec: 60},
	})
	require.ErrorIs(t, err, ErrInvalidWindow)

	_, err = computeScore(ScoreInputs{
		Window: Window{Start: minuteOffset(60), End: windowStart},
		Config: CheckConfig{CheckIntervalSec: 60},
	})
	require.ErrorIs(t, err, ErrInvalidWindow)

	_, err = computeScore(ScoreInputs{
		Window: dayWindow(),
		Config: CheckConfig{CheckIntervalSec: 0},
	})
	require.ErrorIs(t, err, ErrInvalidCheckConfig)

	_, err = computeScore(ScoreInputs{
		Window: dayWindow(),
		Config: CheckConfig{CheckIntervalSec: -10},
	})
	require.ErrorIs(t, err, ErrInvalidCheckConfig)
}

func TestSanitizeIncidents(t *testing.T) {
	w := Window{Start: windowStart, End: minuteOffset(60)}

	incidents := []Incident{
		// Malformed: ends before it starts
		{ID: "bad", StartedAt: minuteOffset(30), EndedAt: minuteOffset(10)},
		// Entirely before the window
		{ID: "before", StartedAt: minuteOffset(-30), EndedAt: minuteOffset(-10)},
		// Entirely after the window
		{ID: "after", StartedAt: minuteOffset(70), EndedAt: minuteOffset(80)},
		// Straddles the start: clipped
		{ID: "straddle-start", StartedAt: minuteOffset(-10), EndedAt: minuteOffset(10)},
		// Straddles the end: clipped
		{ID: "straddle-end", StartedAt: minuteOffset(50), EndedAt: minuteOffset(90)},
		// Fully inside: kept verbatim
		{ID: "inside", StartedAt: minuteOffset(20), EndedAt: minuteOffset(25)},
	}

	out := sanitizeIncidents(incidents, w)

	require.Len(t, out, 3)
	assert.Equal(t, "straddle-start", out[0].ID)
	assert.Equal(t, w.Start, out[0].StartedAt)
	assert.Equal(t, minuteOffset(10), out[0].EndedAt)
	assert.Equal(t, "straddle-end", out[1].ID)
	assert.Equal(t, minuteOffset(50), out[1].StartedAt)
	assert.Equal(t, w.End, out[1].EndedAt)
	assert.Equal(t, "inside", out[2].ID)
}

func TestLatencyConsistency(t *testing.T) {
	_, ok := latencyConsistency(nil)
	assert.False(t, ok, "no samples omits the component")

	_, ok = latencyConsistency([]LatencySample{{P50Ms: 0, P95Ms: 100}})
	assert.False(t, ok, "only unusable samples omits the component")

	c, ok := latencyConsistency([]LatencySample{{P50Ms: 100, P95Ms: 100}})
	require.True(t, ok)
	assert.InDelta(t, 1.0, c, 1e-9)

	c, ok = latencyConsistency([]LatencySample{
		{P50Ms: 100, P95Ms: 200}, // J = 1
		{P50Ms: 100, P95Ms: 100}, // J = 0
		{P50Ms: 0, P95Ms: 500},   // skipped
	})
	require.True(t, ok)
	assert.InDelta(t, math.Exp(-2.0*0.5), c, 1e-9)

	// Inverted percentiles floor at zero jitter instead of pushing the
	// component above 1
	c, ok = latencyConsistency([]LatencySample{{P50Ms: 100, P95Ms: 50}})
	require.True(t, ok)
	assert.InDelta(t, 1.0, c, 1e-9)

	c, ok = latencyConsistency([]LatencySample{
		{P50Ms: 100, P95Ms: 50},  // floored to J = 0
		{P50Ms: 100, P95Ms: 200}, // J = 1
	})
	require.True(t, ok)
	assert.InDelta(t, math.Exp(-2.0*0.5), c, 1e-9)
}

func TestComputeScoreInvertedPercentilesStayBounded(t *testing.T) {
	// A latency sample reporting p95 below p50 must not lift the
	// latency component above 1 or the score above 100
	result, err := computeScore(ScoreInputs{
		Window: dayWindow(),
		Config: CheckConfig{CheckIntervalSec: 60},
		Latency: []LatencySample{
			{Timestamp: windowStart, P50Ms: 100, P95Ms: 50},
		},
	})
	require.NoError(t, err)

	assert.InDelta(t, 1.0, result.Parts["latency"], 1e-9)
	assert.LessOrEqual(t, result.Score, 100.0)
	for name, part := range result.Parts {
		assert.GreaterOrEqual(t, part, 0.0, "component %s", name)
		assert.LessOrEqual(t, part, 1.0, "component %s", name)
	}
}

func TestErrorQuality(t *testing.T) {
	_, ok := errorQuality(nil)
	assert.False(t, ok, "no samples omits the component")

	e, ok := errorQuality([]ErrorRateSample{{Requests: 0, Errors: 0}})
	require.True(t, ok)
	assert.InDelta(t, 1.0, e, 1e-9, "zero requests means zero error rate")

	e, ok = errorQuality([]ErrorRateSample{{Requests: 1000, Errors: 5}})
	require.True(t, ok)
	assert.InDelta(t, 0.5, e, 1e-9, "half the error-rate cap")

	e, ok = errorQuality([]ErrorRateSample{{Requests: 100, Errors: 50}})
	require.True(t, ok)
	assert.InDelta(t, 0.0, e, 1e-9, "rates past the cap floor at zero")
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, clamp01(-0.5))
	assert.Equal(t, 0.25, clamp01(0.25))
	assert.Equal(t, 1.0, clamp01(1.5))
}
