package main

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	// ErrInvalidWindow rejects degenerate reporting windows
	ErrInvalidWindow = errors.New("invalid window: end must be after start")
	// ErrInvalidCheckConfig rejects non-positive sampling intervals
	ErrInvalidCheckConfig = errors.New("invalid check config: checkIntervalSec must be positive")
)

// Scoring constants. The downtime power super-linearly penalizes long
// incidents; planned maintenance contributes at a steep discount but is
// not fully excluded.
const (
	downtimePower   = 1.3
	plannedDiscount = 0.2
	frequencyBeta   = 1.0 / 3.0
	recoveryCapMin  = 60.0
	jitterGamma     = 2.0
	errorRateCap    = 0.01
)

// Base and optional component weights. The active subset is
// renormalized to sum to 1 before combining, so missing optional
// signals never silently mis-weight the score.
const (
	weightAvailability = 0.6
	weightFrequency    = 0.2
	weightRecovery     = 0.2
	weightLatency      = 0.15
	weightErrors       = 0.10
	weightBlastRadius  = 0.10
)

var severityWeights = map[SeverityClass]float64{
	SeverityTLSDNS:  1.2,
	SeverityHTTP5xx: 1.0,
	SeveritySlow:    0.5,
	SeverityNetwork: 1.0,
	SeverityOther:   1.0,
}

func severityWeight(c SeverityClass) float64 {
	if w, ok := severityWeights[c]; ok {
		return w
	}
	return 1.0
}

// computeScore turns aggregated window evidence into a single 0-100
// reliability score plus its component breakdown. It is a pure
// function: same inputs, same result, no shared state, so callers may
// score many sites in parallel.
func computeScore(in ScoreInputs) (ScoreResult, error) {
	if !in.Window.End.After(in.Window.Start) {
		return ScoreResult{}, fmt.Errorf("%w: start=%s end=%s",
			ErrInvalidWindow, in.Window.Start.Format(time.RFC3339), in.Window.End.Format(time.RFC3339))
	}
	if in.Config.CheckIntervalSec <= 0 {
		return ScoreResult{}, fmt.Errorf("%w: got %d", ErrInvalidCheckConfig, in.Config.CheckIntervalSec)
	}

	windowMin := in.Window.Minutes()
	incidents := sanitizeIncidents(in.Incidents, in.Window)

	var penaltySum float64
	var unplanned int
	var unplannedMin float64
	for _, inc := range incidents {
		d := inc.EndedAt.Sub(inc.StartedAt).Minutes()
		contrib := severityWeight(inc.Severity) * d
		if inc.Planned {
			contrib *= plannedDiscount
		} else {
			unplanned++
			unplannedMin += d
		}
		penaltySum += math.Pow(contrib, downtimePower)
	}

	availability := clamp01(1 - penaltySum/math.Pow(windowMin, downtimePower))
	frequency := 1 / (1 + frequencyBeta*float64(unplanned))

	recovery := 1.0
	if unplanned > 0 {
		mttr := unplannedMin / float64(unplanned)
		recovery = math.Max(0, 1-mttr/recoveryCapMin)
	}

	confidence := math.Min(1, 60/float64(in.Config.CheckIntervalSec))

	parts := map[string]float64{
		"availability": availability,
		"frequency":    frequency,
		"recovery":     recovery,
		"confidence":   confidence,
	}
	weights := map[string]float64{
		"availability": weightAvailability,
		"frequency":    weightFrequency,
		"recovery":     weightRecovery,
	}

	if c, ok := latencyConsistency(in.Latency); ok {
		parts["latency"] = c
		weights["latency"] = weightLatency
	}
	if e, ok := errorQuality(in.ErrorRates); ok {
		parts["errors"] = e
		weights["errors"] = weightErrors
	}
	if in.MultiRegionFailFraction != nil {
		parts["blast_radius"] = clamp01(1 - *in.MultiRegionFailFraction)
		weights["blast_radius"] = weightBlastRadius
	}

	var weightSum float64
	for _, w := range weights {
		weightSum += w
	}
	base := 1.0
	for name, w := range weights {
		normalized := w / weightSum
		weights[name] = normalized
		base *= math.Pow(parts[name], normalized)
	}

	return ScoreResult{
		Score:   100 * base * (0.5 + 0.5*confidence),
		Parts:   parts,
		Weights: weights,
	}, nil
}

// sanitizeIncidents clips incidents to the window and drops malformed
// or fully out-of-window entries. Data-quality problems here are
// recoverable: the caller still gets a score, never an error.
func sanitizeIncidents(incidents []Incident, w Window) []Incident {
	out := make([]Incident, 0, len(incidents))
	for _, inc := range incidents {
		if inc.EndedAt.Before(inc.StartedAt) {
			log.Warn().Str("incident_id", inc.ID).
				Time("started_at", inc.StartedAt).Time("ended_at", inc.EndedAt).
				Msg("[Score] Dropping malformed incident (ends before it starts)")
			continue
		}
		if !inc.EndedAt.After(w.Start) || !inc.StartedAt.Before(w.End) {
			continue
		}
		if inc.StartedAt.Before(w.Start) {
			inc.StartedAt = w.Start
		}
		if inc.EndedAt.After(w.End) {
			inc.EndedAt = w.End
		}
		if !inc.EndedAt.After(inc.StartedAt) {
			continue
		}
		out = append(out, inc)
	}
	return out
}

// latencyConsistency averages the jitter ratio (p95-p50)/p50 across
// samples and maps it through exp(-gamma*j). Samples with p50 <= 0 are
// skipped; with no usable samples the component is omitted entirely.
// A p95 below p50 is a data-quality anomaly; its jitter floors at 0 so
// the component stays in [0,1].
func latencyConsistency(samples []LatencySample) (float64, bool) {
	var sum float64
	var n int
	for _, s := range samples {
		if s.P50Ms <= 0 {
			continue
		}
		jitter := (s.P95Ms - s.P50Ms) / s.P50Ms
		if jitter < 0 {
			jitter = 0
		}
		sum += jitter
		n++
	}
	if n == 0 {
		return 0, false
	}
	return math.Exp(-jitterGamma * sum / float64(n)), true
}

// errorQuality maps the aggregate error rate against a 1% cap. Zero
// requests means a zero rate, not a division by zero.
func errorQuality(samples []ErrorRateSample) (float64, bool) {
	if len(samples) == 0 {
		return 0, false
	}
	var requests, errs int64
	for _, s := range samples {
		requests += s.Requests
		errs += s.Errors
	}
	rate := 0.0
	if requests > 0 {
		rate = float64(errs) / float64(requests)
	}
	return 1 - math.Min(1, rate/errorRateCap), true
}

// clamp01 restricts v to the range [0, 1]
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
