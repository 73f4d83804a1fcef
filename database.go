package main

import (
	"database/sql"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"
)

var db *gorm.DB

// initDB initializes the database connection and runs migrations
func initDB() {
	// Use pure Go SQLite driver (no CGO required)
	// Database path can be set via DB_PATH env var, defaults to ./uptimescore.db
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./uptimescore.db"
	}

	// Ensure the directory exists (for Docker volumes)
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Warn().Err(err).Str("directory", dir).Msg("Could not create database directory")
		}
	}

	// WAL mode allows multiple readers and one writer simultaneously;
	// _busy_timeout sets how long to wait for locks (in milliseconds)
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=1"

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}

	// Single connection recommended for SQLite
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	db, err = gorm.Open(sqlite.Dialector{Conn: sqlDB}, &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	if err := db.AutoMigrate(&Site{}, &CheckSample{}, &DailyScore{}, &TrendState{}); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	log.Info().Str("path", dbPath).Msg("✅ Database initialized")

	// Always sync YAML config on startup (creates if empty, updates if changed)
	syncYAMLConfig(dbPath)
}

// syncYAMLConfig synchronizes sites from YAML config with the database.
// Looks for sites.yaml in the same directory as the database, compares
// hashes to detect changes and updates sites accordingly.
func syncYAMLConfig(dbPath string) {
	dbDir := filepath.Dir(dbPath)
	configPath := filepath.Join(dbDir, "sites.yaml")

	yamlSites, yamlHashes, err := loadConfigFromYAML(configPath)
	if err != nil {
		log.Warn().Err(err).Str("config_path", configPath).Msg("[Config] Failed to load YAML config")
	}

	var existingSites []Site
	db.Find(&existingSites)

	// Map existing sites by config hash (only YAML-managed sites)
	existingByHash := make(map[string]*Site)
	for i := range existingSites {
		if existingSites[i].ConfigHash != "" {
			existingByHash[existingSites[i].ConfigHash] = &existingSites[i]
		}
	}

	// If no YAML config found and database is empty, seed a default
	if len(yamlSites) == 0 {
		var count int64
		db.Model(&Site{}).Count(&count)
		if count == 0 {
			log.Info().Msg("[Config] No YAML config found and database is empty, seeding default...")
			site := Site{
				Name:             "Example.com",
				URL:              "https://example.com",
				Status:           "unknown",
				LastCheck:        "never",
				CheckIntervalSec: 60,
			}
			if err := db.Create(&site).Error; err != nil {
				log.Error().Err(err).Str("site", site.Name).Msg("[Config] Failed to seed default site")
			} else {
				log.Info().Str("name", site.Name).Str("url", site.URL).Msg("[Config] Created default site")
				go checkSite(&site)
			}
		}
		return
	}

	log.Info().Int("count", len(yamlSites)).Msg("[Config] Syncing sites from YAML configuration")

	processedHashes := make(map[string]bool)

	for i, site := range yamlSites {
		hash := yamlHashes[i]
		processedHashes[hash] = true

		if _, exists := existingByHash[hash]; exists {
			log.Debug().Str("name", site.Name).Str("url", site.URL).Str("hash", hash[:8]).Msg("[Config] Site unchanged")
			continue
		}

		var existingSite Site
		result := db.Where("name = ? AND url = ?", site.Name, site.URL).First(&existingSite)

		if result.Error == nil {
			if existingSite.ConfigHash == "" {
				// Created outside YAML sync - skip to avoid duplicates
				log.Debug().Str("name", site.Name).Str("url", site.URL).Msg("[Config] Skipping site - already exists (not YAML-managed)")
				continue
			}
			if existingSite.ConfigHash == hash {
				continue
			}

			log.Info().Str("name", site.Name).Str("url", site.URL).
				Str("old_hash", existingSite.ConfigHash[:8]).Str("new_hash", hash[:8]).
				Msg("[Config] Updating site - config changed")

			// Preserve runtime data
			site.ID = existingSite.ID
			site.Status = existingSite.Status
			site.ResponseTimeMs = existingSite.ResponseTimeMs
			site.LastCheck = existingSite.LastCheck
			site.CreatedAt = existingSite.CreatedAt

			if err := db.Save(&site).Error; err != nil {
				log.Error().Err(err).Str("name", site.Name).Msg("[Config] Failed to update site")
			} else {
				log.Info().Str("name", site.Name).Str("url", site.URL).Msg("[Config] Updated site")
				broadcastUpdate("site_update", site)
				if !site.Paused {
					go checkSite(&site)
				}
			}
		} else {
			if err := db.Create(&site).Error; err != nil {
				log.Error().Err(err).Str("name", site.Name).Msg("[Config] Failed to create site")
			} else {
				log.Info().Str("name", site.Name).Str("url", site.URL).Str("hash", hash[:8]).Msg("[Config] Created site")
				broadcastUpdate("site_added", site)
				go checkSite(&site)
			}
		}
	}

	// Remove YAML-managed sites no longer present in the file
	for hash, existing := range existingByHash {
		if !processedHashes[hash] {
			log.Info().Str("name", existing.Name).Str("url", existing.URL).Str("hash", hash[:8]).
				Msg("[Config] Removing site - no longer in YAML config")

			siteID := existing.ID
			if err := db.Delete(&Site{}, siteID).Error; err != nil {
				log.Error().Err(err).Str("name", existing.Name).Msg("[Config] Failed to delete site")
			} else {
				log.Info().Str("name", existing.Name).Str("url", existing.URL).Msg("[Config] Deleted site")
				broadcastUpdate("site_deleted", map[string]interface{}{"id": siteID})
			}
		}
	}

	broadcastStatsIfChanged()
	log.Info().Msg("[Config] ✅ YAML configuration synchronized")
}
