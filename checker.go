package main

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Responses slower than this are recorded as "slow" even when the
// status code looks healthy
const slowThresholdMs = 5000

// classifyResponse maps a completed HTTP exchange to a status label
func classifyResponse(statusCode int, elapsedMs int) string {
	if statusCode >= 400 {
		return StatusReachableWithError
	}
	if elapsedMs > slowThresholdMs {
		return StatusSlow
	}
	return StatusUp
}

// classifyError maps a transport failure to a status label: timeouts
// and unreachable networks are "offline", everything else "down"
func classifyError(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return StatusOffline
	}
	if strings.Contains(err.Error(), "no route to host") ||
		strings.Contains(err.Error(), "network is unreachable") {
		return StatusOffline
	}
	return StatusDown
}

// checkSite performs a health check on a single site and persists the
// observation as a CheckSample
func checkSite(site *Site) {
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	start := time.Now()
	var status string
	var responseTime int
	var statusCode int
	var checkErr string

	siteURL := site.URL
	if !strings.HasPrefix(siteURL, "http://") && !strings.HasPrefix(siteURL, "https://") {
		siteURL = "https://" + siteURL
	}

	parsedURL, err := url.Parse(siteURL)
	if err != nil || parsedURL.Host == "" {
		status = StatusDown
		checkErr = "invalid URL"
	} else {
		req, err := http.NewRequest("GET", siteURL, nil)
		if err != nil {
			status = StatusDown
			checkErr = err.Error()
		} else {
			req.Header.Set("User-Agent", "UptimeScore/1.0")
			req.Header.Set("Cache-Control", "no-cache, no-store, must-revalidate")
			resp, err := client.Do(req)
			elapsed := time.Since(start)
			responseTime = int(elapsed.Milliseconds())

			if err != nil {
				status = classifyError(err)
				checkErr = err.Error()
				responseTime = 0
			} else {
				resp.Body.Close()
				statusCode = resp.StatusCode
				status = classifyResponse(resp.StatusCode, responseTime)
				if status == StatusReachableWithError {
					checkErr = fmt.Sprintf("HTTP %d", resp.StatusCode)
				}
			}
		}
	}

	sample := CheckSample{
		SiteID:         site.ID,
		Status:         status,
		ResponseTimeMs: responseTime,
		StatusCode:     statusCode,
		Error:          checkErr,
		CreatedAt:      time.Now(),
	}
	if err := db.Create(&sample).Error; err != nil {
		log.Error().Err(err).Uint("site_id", site.ID).Msg("[Checker] Failed to save check sample")
	}

	now := time.Now()
	lastCheck := "just now"
	if now.Sub(site.UpdatedAt) > time.Minute {
		minutes := int(now.Sub(site.UpdatedAt).Minutes())
		if minutes < 60 {
			lastCheck = fmt.Sprintf("%dm ago", minutes)
		} else {
			lastCheck = fmt.Sprintf("%dh ago", minutes/60)
		}
	}

	site.Status = status
	site.ResponseTimeMs = responseTime
	site.LastCheck = lastCheck
	site.UpdatedAt = now
	db.Save(site)

	broadcastUpdate("sample_update", site)
	broadcastStatsIfChanged()
}

// checkAllSites checks all unpaused sites once
func checkAllSites() {
	var sites []Site
	db.Find(&sites)

	for i := range sites {
		if sites[i].Paused {
			continue
		}
		checkSite(&sites[i])
		// Small delay between checks to avoid overwhelming servers
		time.Sleep(500 * time.Millisecond)
	}
}

// startChecker starts the background site checker
func startChecker() {
	checkAllSites()

	go func() {
		for {
			var sites []Site
			db.Find(&sites)

			for i := range sites {
				site := &sites[i]
				if site.Paused {
					continue
				}

				interval := site.CheckIntervalSec
				if interval <= 0 {
					interval = 60
				}

				if time.Since(site.UpdatedAt) >= time.Duration(interval)*time.Second {
					go checkSite(site)
					time.Sleep(100 * time.Millisecond)
				}
			}

			// Poll every 10 seconds to see if any site is due
			time.Sleep(10 * time.Second)
		}
	}()
}
