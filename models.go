package main

import "time"

// Status labels recorded by the prober for each check sample.
// offline, down and reachable_with_error all count as offline time when
// segmenting incidents; everything else counts as online.
const (
	StatusUp                 = "up"
	StatusSlow               = "slow"
	StatusDown               = "down"
	StatusOffline            = "offline"
	StatusReachableWithError = "reachable_with_error"
)

// SeverityClass categorizes an incident for penalty weighting
type SeverityClass string

const (
	SeverityTLSDNS  SeverityClass = "tls_dns"
	SeverityHTTP5xx SeverityClass = "http_5xx"
	SeveritySlow    SeverityClass = "slow"
	SeverityNetwork SeverityClass = "network"
	SeverityOther   SeverityClass = "other"
)

// Sample is a single observation for a site, ordered by timestamp
type Sample struct {
	Timestamp      time.Time `json:"timestamp"`
	Status         string    `json:"status"`
	ResponseTimeMs int       `json:"responseTimeMs,omitempty"`
	StatusCode     int       `json:"statusCode,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// Window is a half-open reporting interval [Start, End)
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Minutes returns the window length in minutes
func (w Window) Minutes() float64 {
	return w.End.Sub(w.Start).Minutes()
}

// Incident is a contiguous interval during which a site was offline.
// Produced by the segmenter or supplied directly by callers that keep
// their own incident log.
type Incident struct {
	ID        string        `json:"id"`
	StartedAt time.Time     `json:"startedAt"`
	EndedAt   time.Time     `json:"endedAt"`
	Severity  SeverityClass `json:"severityClass"`
	Planned   bool          `json:"planned"`
}

// CheckConfig carries the sampling settings used for confidence scoring
type CheckConfig struct {
	SiteID           uint `json:"siteId"`
	CheckIntervalSec int  `json:"checkIntervalSec"`
}

// LatencySample is one aggregated latency observation (per hour bucket)
type LatencySample struct {
	Timestamp time.Time `json:"timestamp"`
	P50Ms     float64   `json:"p50Ms"`
	P95Ms     float64   `json:"p95Ms"`
}

// ErrorRateSample is one aggregated request/error observation
type ErrorRateSample struct {
	Timestamp time.Time `json:"timestamp"`
	Requests  int64     `json:"requests"`
	Errors    int64     `json:"errors"`
}

// ScoreInputs aggregates everything the scorer consumes. Latency,
// ErrorRates and MultiRegionFailFraction are optional signals; when
// absent their components are omitted and weights renormalized.
type ScoreInputs struct {
	Window                  Window
	Config                  CheckConfig
	Incidents               []Incident
	Latency                 []LatencySample
	ErrorRates              []ErrorRateSample
	MultiRegionFailFraction *float64
}

// ScoreResult is the scorer output: the 0-100 composite score, the
// per-component values, and the weights actually used so callers can
// render why a score is what it is.
type ScoreResult struct {
	Score   float64            `json:"score"`
	Parts   map[string]float64 `json:"parts"`
	Weights map[string]float64 `json:"weights"`
}

// Durations holds aggregated online/offline time within a window
type Durations struct {
	TotalMs   int64 `json:"totalDurationMs"`
	OnlineMs  int64 `json:"onlineDurationMs"`
	OfflineMs int64 `json:"offlineDurationMs"`
}

// Site represents a monitored target
type Site struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Name             string    `gorm:"not null" json:"name"`
	URL              string    `gorm:"not null" json:"url"`
	Status           string    `gorm:"default:unknown;index:idx_paused_status" json:"status"`
	ResponseTimeMs   int       `gorm:"default:0" json:"responseTimeMs"`
	LastCheck        string    `gorm:"default:never" json:"lastCheck"`
	CheckIntervalSec int       `gorm:"default:60" json:"checkIntervalSec"` // Interval in seconds
	Paused           bool      `gorm:"default:false;index:idx_paused_status" json:"paused"`
	ConfigHash       string    `gorm:"index" json:"configHash,omitempty"` // Hash of YAML config (empty if created outside YAML sync)
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// CheckSample stores one raw probe observation
type CheckSample struct {
	ID             uint      `gorm:"primaryKey"`
	SiteID         uint      `gorm:"not null;index:idx_site_created;index:idx_site_created_status"`
	Status         string    `gorm:"not null;index:idx_site_created_status"`
	ResponseTimeMs int       `gorm:"default:0"`
	StatusCode     int       `gorm:"default:0"`
	Error          string
	CreatedAt      time.Time `gorm:"index:idx_site_created;index:idx_site_created_status"`
}

// DailyScore stores one scored UTC calendar day per site
type DailyScore struct {
	ID           uint      `gorm:"primaryKey"`
	SiteID       uint      `gorm:"not null;index:idx_daily_site_day;uniqueIndex:idx_daily_unique"`
	Day          string    `gorm:"not null;index:idx_daily_site_day;uniqueIndex:idx_daily_unique"` // YYYY-MM-DD (UTC)
	Score        float64   `gorm:"default:0"`
	Availability float64   `gorm:"default:0"`
	Frequency    float64   `gorm:"default:0"`
	Recovery     float64   `gorm:"default:0"`
	Confidence   float64   `gorm:"default:0"`
	Incidents    int       `gorm:"default:0"`
	CreatedAt    time.Time
}

// TrendState persists the smoothed score for one site between rollups
type TrendState struct {
	ID        uint    `gorm:"primaryKey"`
	SiteID    uint    `gorm:"not null;uniqueIndex"`
	Smoothed  float64 `gorm:"default:0"`
	UpdatedAt time.Time
}

// ScoreRequest is the POST /api/score body for callers that supply a
// precomputed incident log instead of raw samples
type ScoreRequest struct {
	Window                  Window            `json:"window"`
	CheckIntervalSec        int               `json:"checkIntervalSec"`
	Incidents               []Incident        `json:"incidents"`
	Latency                 []LatencySample   `json:"latency,omitempty"`
	ErrorRates              []ErrorRateSample `json:"errorRates,omitempty"`
	MultiRegionFailFraction *float64          `json:"multiRegionFailFraction,omitempty"`
}

// ScoreResponse wraps the score together with the window evidence
type ScoreResponse struct {
	SiteID    uint        `json:"siteId,omitempty"`
	Window    Window      `json:"window"`
	Result    ScoreResult `json:"result"`
	Durations *Durations  `json:"durations,omitempty"`
	Incidents []Incident  `json:"incidents,omitempty"`
}

// TrendPoint is one day in the trend response
type TrendPoint struct {
	Day   string  `json:"day"`
	Score float64 `json:"score"`
}

// TrendResponse returns the daily series plus the smoothed trend value
type TrendResponse struct {
	SiteID   uint         `json:"siteId"`
	Days     []TrendPoint `json:"days"`
	Smoothed float64      `json:"smoothed"`
}

// StatsResponse represents overall statistics across all sites
type StatsResponse struct {
	OverallScore    float64 `json:"overallScore"`
	SitesUp         int     `json:"sitesUp"`
	SitesDown       int     `json:"sitesDown"`
	AvgResponseTime int     `json:"avgResponseTime"`
}
