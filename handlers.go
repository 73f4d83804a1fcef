package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// parseWindow reads from/to query parameters (RFC 3339). With neither
// supplied the window defaults to the last 24 hours.
func parseWindow(r *http.Request) (Window, error) {
	fromStr := r.URL.Query().Get("from")
	toStr := r.URL.Query().Get("to")

	if fromStr == "" && toStr == "" {
		now := time.Now().UTC()
		return Window{Start: now.Add(-24 * time.Hour), End: now}, nil
	}

	from, err := time.Parse(time.RFC3339, fromStr)
	if err != nil {
		return Window{}, fmt.Errorf("invalid from parameter: %w", err)
	}
	to, err := time.Parse(time.RFC3339, toStr)
	if err != nil {
		return Window{}, fmt.Errorf("invalid to parameter: %w", err)
	}

	w := Window{Start: from, End: to}
	if !w.End.After(w.Start) {
		return Window{}, ErrInvalidWindow
	}
	return w, nil
}

// findSite resolves the id query parameter to a site
func findSite(r *http.Request) (*Site, error) {
	id := r.URL.Query().Get("id")
	if id == "" {
		return nil, errors.New("missing id parameter")
	}
	siteID, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid id parameter: %w", err)
	}
	var site Site
	if err := db.First(&site, siteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, err
	}
	return &site, nil
}

// apiScore handles scoring requests. GET scores a site's stored
// samples for a window; POST scores a caller-supplied precomputed
// incident log, bypassing the segmenter.
func apiScore(w http.ResponseWriter, r *http.Request) {
	log.Info().Str("method", r.Method).Str("path", r.URL.Path).Msg("[API] Request")

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)

	case http.MethodGet:
		site, err := findSite(r)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				http.Error(w, "Site not found", http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		window, err := parseWindow(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var failFraction *float64
		if ffStr := r.URL.Query().Get("failFraction"); ffStr != "" {
			ff, err := strconv.ParseFloat(ffStr, 64)
			if err != nil || ff < 0 || ff > 1 {
				http.Error(w, "failFraction must be a number in [0,1]", http.StatusBadRequest)
				return
			}
			failFraction = &ff
		}

		result, incidents, durations, err := scoreSiteWindow(site, window, failFraction)
		if err != nil {
			if errors.Is(err, ErrInvalidWindow) || errors.Is(err, ErrInvalidCheckConfig) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			log.Error().Err(err).Uint("site_id", site.ID).Msg("[API] Failed to score site")
			http.Error(w, "Failed to compute score", http.StatusInternalServerError)
			return
		}

		log.Info().Uint("site_id", site.ID).Float64("score", result.Score).
			Int("incidents", len(incidents)).Msg("[API] Score computed")
		json.NewEncoder(w).Encode(ScoreResponse{
			SiteID:    site.ID,
			Window:    window,
			Result:    result,
			Durations: &durations,
			Incidents: incidents,
		})

	case http.MethodPost:
		var req ScoreRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		result, err := computeScore(ScoreInputs{
			Window:                  req.Window,
			Config:                  CheckConfig{CheckIntervalSec: req.CheckIntervalSec},
			Incidents:               req.Incidents,
			Latency:                 req.Latency,
			ErrorRates:              req.ErrorRates,
			MultiRegionFailFraction: req.MultiRegionFailFraction,
		})
		if err != nil {
			if errors.Is(err, ErrInvalidWindow) || errors.Is(err, ErrInvalidCheckConfig) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "Failed to compute score", http.StatusInternalServerError)
			return
		}

		log.Info().Float64("score", result.Score).Int("incidents", len(req.Incidents)).
			Msg("[API] Score computed from supplied incident log")
		json.NewEncoder(w).Encode(ScoreResponse{
			Window: req.Window,
			Result: result,
		})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// apiIncidents returns the segmenter's offline intervals for a window
func apiIncidents(w http.ResponseWriter, r *http.Request) {
	log.Info().Str("method", r.Method).Str("path", r.URL.Path).Msg("[API] Request")

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	site, err := findSite(r)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.Error(w, "Site not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	window, err := parseWindow(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	samples, err := loadSamples(site.ID, window)
	if err != nil {
		log.Error().Err(err).Uint("site_id", site.ID).Msg("[API] Failed to load samples")
		http.Error(w, "Failed to load samples", http.StatusInternalServerError)
		return
	}
	prior, err := loadPriorSample(site.ID, window.Start)
	if err != nil {
		log.Error().Err(err).Uint("site_id", site.ID).Msg("[API] Failed to load prior sample")
		http.Error(w, "Failed to load samples", http.StatusInternalServerError)
		return
	}

	incidents := segmentIncidents(samples, prior, window)
	if incidents == nil {
		incidents = []Incident{}
	}
	log.Info().Uint("site_id", site.ID).Int("incidents", len(incidents)).Msg("[API] Incidents segmented")
	json.NewEncoder(w).Encode(incidents)
}

// apiDurations returns aggregated online/offline time for a window
func apiDurations(w http.ResponseWriter, r *http.Request) {
	log.Info().Str("method", r.Method).Str("path", r.URL.Path).Msg("[API] Request")

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	site, err := findSite(r)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.Error(w, "Site not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	window, err := parseWindow(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	samples, err := loadSamples(site.ID, window)
	if err != nil {
		http.Error(w, "Failed to load samples", http.StatusInternalServerError)
		return
	}
	prior, err := loadPriorSample(site.ID, window.Start)
	if err != nil {
		http.Error(w, "Failed to load samples", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(aggregateDurations(samples, prior, window))
}

// apiTrend returns the daily score series plus the smoothed trend
func apiTrend(w http.ResponseWriter, r *http.Request) {
	log.Info().Str("method", r.Method).Str("path", r.URL.Path).Msg("[API] Request")

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	site, err := findSite(r)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.Error(w, "Site not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	days := 30
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		parsed, err := strconv.Atoi(daysStr)
		if err != nil || parsed <= 0 {
			http.Error(w, "days must be a positive integer", http.StatusBadRequest)
			return
		}
		days = parsed
	}

	cutoff := dayKey(time.Now().UTC().AddDate(0, 0, -days))
	var scores []DailyScore
	if err := db.Where("site_id = ? AND day >= ?", site.ID, cutoff).Order("day ASC").Find(&scores).Error; err != nil {
		log.Error().Err(err).Uint("site_id", site.ID).Msg("[API] Failed to load daily scores")
		http.Error(w, "Failed to load trend", http.StatusInternalServerError)
		return
	}

	resp := TrendResponse{SiteID: site.ID, Days: make([]TrendPoint, len(scores))}
	for i, s := range scores {
		resp.Days[i] = TrendPoint{Day: s.Day, Score: s.Score}
	}

	var state TrendState
	if err := db.Where("site_id = ?", site.ID).First(&state).Error; err == nil {
		resp.Smoothed = state.Smoothed
	}

	json.NewEncoder(w).Encode(resp)
}

// apiSites lists all sites
func apiSites(w http.ResponseWriter, r *http.Request) {
	log.Info().Str("method", r.Method).Str("path", r.URL.Path).Msg("[API] Request")

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var sites []Site
	if err := db.Find(&sites).Error; err != nil {
		log.Error().Err(err).Msg("[API] Failed to fetch sites")
		http.Error(w, "Failed to fetch sites", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(sites)
}

// apiStats returns fleet-wide statistics
func apiStats(w http.ResponseWriter, r *http.Request) {
	log.Info().Str("method", r.Method).Str("path", r.URL.Path).Msg("[API] Request")

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	json.NewEncoder(w).Encode(getStats())
}

// apiSSE handles Server-Sent Events connections
func apiSSE(w http.ResponseWriter, r *http.Request) {
	log.Info().Str("remote", r.RemoteAddr).Msg("[SSE] New connection request")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Cache-Control")

	clientID := fmt.Sprintf("%s-%d", r.RemoteAddr, time.Now().UnixNano())
	client := sseBroadcaster.addClient(clientID)
	defer sseBroadcaster.removeClient(clientID)

	fmt.Fprintf(w, "data: %s\n\n", `{"type":"connected"}`)
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	} else {
		log.Warn().Str("client_id", clientID).Msg("[SSE] ResponseWriter does not support flushing")
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case message := <-client.Send:
			fmt.Fprintf(w, "data: %s\n\n", string(message))
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}
		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}
		case <-r.Context().Done():
			log.Info().Str("client_id", clientID).Msg("[SSE] Client disconnected")
			return
		}
	}
}
