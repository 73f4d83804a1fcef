package main

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
)

// loadSamples returns a site's check samples within [w.Start, w.End)
// ordered by timestamp ascending
func loadSamples(siteID uint, w Window) ([]Sample, error) {
	var records []CheckSample
	err := db.Where("site_id = ? AND created_at >= ? AND created_at < ?", siteID, w.Start, w.End).
		Order("created_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load samples for site %d: %w", siteID, err)
	}

	samples := make([]Sample, len(records))
	for i, rec := range records {
		samples[i] = Sample{
			Timestamp:      rec.CreatedAt,
			Status:         rec.Status,
			ResponseTimeMs: rec.ResponseTimeMs,
			StatusCode:     rec.StatusCode,
			Error:          rec.Error,
		}
	}
	return samples, nil
}

// loadPriorSample returns the single most recent sample before the
// given instant, or nil if the site has no earlier history. The
// segmenter seeds the window with this state so outages spanning the
// window boundary are not lost.
func loadPriorSample(siteID uint, before time.Time) (*Sample, error) {
	var rec CheckSample
	err := db.Where("site_id = ? AND created_at < ?", siteID, before).
		Order("created_at DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load prior sample for site %d: %w", siteID, err)
	}
	return &Sample{
		Timestamp:      rec.CreatedAt,
		Status:         rec.Status,
		ResponseTimeMs: rec.ResponseTimeMs,
		StatusCode:     rec.StatusCode,
		Error:          rec.Error,
	}, nil
}

// loadLatencySeries buckets a site's response times per hour and
// returns p50/p95 per bucket. Samples without a measured response time
// are skipped.
func loadLatencySeries(siteID uint, w Window) ([]LatencySample, error) {
	samples, err := loadSamples(siteID, w)
	if err != nil {
		return nil, err
	}

	buckets := make(map[time.Time][]int)
	for _, s := range samples {
		if s.ResponseTimeMs <= 0 {
			continue
		}
		hour := s.Timestamp.UTC().Truncate(time.Hour)
		buckets[hour] = append(buckets[hour], s.ResponseTimeMs)
	}

	out := make([]LatencySample, 0, len(buckets))
	for hour, values := range buckets {
		sort.Ints(values)
		out = append(out, LatencySample{
			Timestamp: hour,
			P50Ms:     percentile(values, 0.50),
			P95Ms:     percentile(values, 0.95),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// loadErrorRateSeries buckets samples per hour: requests counts every
// observation, errors counts those where the site answered with an
// error status
func loadErrorRateSeries(siteID uint, w Window) ([]ErrorRateSample, error) {
	samples, err := loadSamples(siteID, w)
	if err != nil {
		return nil, err
	}

	type counter struct{ requests, errors int64 }
	buckets := make(map[time.Time]*counter)
	for _, s := range samples {
		hour := s.Timestamp.UTC().Truncate(time.Hour)
		c, ok := buckets[hour]
		if !ok {
			c = &counter{}
			buckets[hour] = c
		}
		c.requests++
		if s.Status == StatusReachableWithError {
			c.errors++
		}
	}

	out := make([]ErrorRateSample, 0, len(buckets))
	for hour, c := range buckets {
		out = append(out, ErrorRateSample{Timestamp: hour, Requests: c.requests, Errors: c.errors})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// percentile returns the nearest-rank percentile of a sorted slice
func percentile(sorted []int, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(q*float64(len(sorted)-1) + 0.5)
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return float64(sorted[rank])
}

// scoreSiteWindow runs the full pipeline for one site and window:
// provider -> segmenter -> aggregator -> scorer
func scoreSiteWindow(site *Site, w Window, failFraction *float64) (ScoreResult, []Incident, Durations, error) {
	samples, err := loadSamples(site.ID, w)
	if err != nil {
		return ScoreResult{}, nil, Durations{}, err
	}
	prior, err := loadPriorSample(site.ID, w.Start)
	if err != nil {
		return ScoreResult{}, nil, Durations{}, err
	}

	incidents := segmentIncidents(samples, prior, w)
	durations := aggregateDurations(samples, prior, w)

	latency, err := loadLatencySeries(site.ID, w)
	if err != nil {
		return ScoreResult{}, nil, Durations{}, err
	}
	errorRates, err := loadErrorRateSeries(site.ID, w)
	if err != nil {
		return ScoreResult{}, nil, Durations{}, err
	}

	result, err := computeScore(ScoreInputs{
		Window:                  w,
		Config:                  CheckConfig{SiteID: site.ID, CheckIntervalSec: site.CheckIntervalSec},
		Incidents:               incidents,
		Latency:                 latency,
		ErrorRates:              errorRates,
		MultiRegionFailFraction: failFraction,
	})
	if err != nil {
		return ScoreResult{}, nil, Durations{}, err
	}
	return result, incidents, durations, nil
}
