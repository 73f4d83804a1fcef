package main

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Cached stats for comparison to avoid unnecessary broadcasts
var (
	lastStats      *StatsResponse
	statsMu        sync.RWMutex
	statsDebouncer *time.Timer
	debounceMu     sync.Mutex
)

// SSEClient represents a connected SSE client
type SSEClient struct {
	ID   string
	Send chan []byte
}

// SSEBroadcaster manages all SSE connections
type SSEBroadcaster struct {
	clients map[string]*SSEClient
	mu      sync.RWMutex
}

var sseBroadcaster = &SSEBroadcaster{
	clients: make(map[string]*SSEClient),
}

// addClient adds a new SSE client
func (b *SSEBroadcaster) addClient(id string) *SSEClient {
	b.mu.Lock()
	defer b.mu.Unlock()
	client := &SSEClient{
		ID:   id,
		Send: make(chan []byte, 256),
	}
	b.clients[id] = client
	log.Info().Str("client_id", id).Int("total", len(b.clients)).Msg("[SSE] Client connected")
	return client
}

// removeClient removes an SSE client
func (b *SSEBroadcaster) removeClient(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if client, ok := b.clients[id]; ok {
		close(client.Send)
		delete(b.clients, id)
		log.Info().Str("client_id", id).Int("total", len(b.clients)).Msg("[SSE] Client disconnected")
	}
}

// broadcastMessage sends a message to all connected clients
func (b *SSEBroadcaster) broadcastMessage(message []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.clients) == 0 {
		log.Debug().Int("bytes", len(message)).Msg("[SSE] No clients connected, dropping message")
		return
	}

	sentCount := 0
	droppedCount := 0
	for id, client := range b.clients {
		select {
		case client.Send <- message:
			sentCount++
		default:
			droppedCount++
			log.Warn().Str("client_id", id).Msg("[SSE] Client channel full, dropping message")
		}
	}

	log.Debug().Int("sent", sentCount).Int("total", len(b.clients)).Int("bytes", len(message)).
		Int("dropped", droppedCount).Msg("[SSE] Broadcast completed")
}

// broadcastUpdate broadcasts an update to all SSE clients
func broadcastUpdate(updateType string, data interface{}) {
	update := map[string]interface{}{
		"type": updateType,
		"data": data,
	}
	jsonData, err := json.Marshal(update)
	if err != nil {
		log.Error().Err(err).Str("update_type", updateType).Msg("[SSE] Failed to marshal update")
		return
	}

	log.Debug().Str("update_type", updateType).Int("bytes", len(jsonData)).Msg("[SSE] Broadcasting update")
	go sseBroadcaster.broadcastMessage(jsonData)
}

// broadcastStatsIfChanged broadcasts stats only if they've changed
// (debounced to batch rapid updates)
func broadcastStatsIfChanged() {
	debounceMu.Lock()
	defer debounceMu.Unlock()

	if statsDebouncer != nil {
		statsDebouncer.Stop()
	}

	// Wait 500ms after the last update before recalculating stats
	statsDebouncer = time.AfterFunc(500*time.Millisecond, func() {
		newStats := getStats()

		statsMu.Lock()
		changed := lastStats == nil ||
			lastStats.OverallScore != newStats.OverallScore ||
			lastStats.SitesUp != newStats.SitesUp ||
			lastStats.SitesDown != newStats.SitesDown ||
			lastStats.AvgResponseTime != newStats.AvgResponseTime

		if changed {
			log.Info().
				Float64("overall_score", newStats.OverallScore).
				Int("up", newStats.SitesUp).Int("down", newStats.SitesDown).
				Int("avg_ms", newStats.AvgResponseTime).
				Msg("[SSE] Stats changed - broadcasting update")
			lastStats = &newStats
			statsMu.Unlock()
			broadcastUpdate("stats_update", newStats)
		} else {
			statsMu.Unlock()
			log.Debug().Msg("[SSE] Stats unchanged, skipping broadcast")
		}
	})
}
