package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// SiteConfig represents one monitored site in the YAML configuration
type SiteConfig struct {
	Name             string `yaml:"name"`
	URL              string `yaml:"url"`
	CheckIntervalSec int    `yaml:"checkIntervalSec,omitempty"`
	Paused           bool   `yaml:"paused,omitempty"`
}

// ScoringConfig tunes the rollup pipeline
type ScoringConfig struct {
	EWMAAlpha     float64 `yaml:"ewmaAlpha,omitempty"`     // smoothing factor in (0,1]
	RetentionDays int     `yaml:"retentionDays,omitempty"` // raw sample retention
}

// ConfigFile represents the root of the YAML configuration
type ConfigFile struct {
	Sites   []SiteConfig  `yaml:"sites"`
	Scoring ScoringConfig `yaml:"scoring,omitempty"`
}

// Effective scoring settings, populated from YAML on startup
var scoringCfg = ScoringConfig{
	EWMAAlpha:     0.3,
	RetentionDays: 365,
}

// loadConfigFromYAML loads sites and scoring settings from a YAML file.
// Returns sites with their config hashes calculated.
func loadConfigFromYAML(configPath string) ([]Site, []string, error) {
	if configPath == "" {
		return nil, nil, nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Debug().Str("config_path", configPath).Msg("[Config] Configuration file not found")
		return nil, nil, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if config.Scoring.EWMAAlpha > 0 && config.Scoring.EWMAAlpha <= 1 {
		scoringCfg.EWMAAlpha = config.Scoring.EWMAAlpha
	} else if config.Scoring.EWMAAlpha != 0 {
		log.Warn().Float64("ewma_alpha", config.Scoring.EWMAAlpha).
			Msg("[Config] ewmaAlpha out of (0,1], keeping default")
	}
	if config.Scoring.RetentionDays > 0 {
		scoringCfg.RetentionDays = config.Scoring.RetentionDays
	}

	sites := make([]Site, 0, len(config.Sites))
	hashes := make([]string, 0, len(config.Sites))

	for _, cfg := range config.Sites {
		if cfg.Name == "" || cfg.URL == "" {
			log.Warn().Msg("[Config] Skipping site with missing name or URL")
			continue
		}

		checkInterval := cfg.CheckIntervalSec
		if checkInterval <= 0 {
			checkInterval = 60
		}

		configHash := calculateConfigHash(cfg)

		sites = append(sites, Site{
			Name:             cfg.Name,
			URL:              cfg.URL,
			CheckIntervalSec: checkInterval,
			Paused:           cfg.Paused,
			ConfigHash:       configHash,
			Status:           "unknown",
			LastCheck:        "never",
		})
		hashes = append(hashes, configHash)
	}

	log.Info().Int("count", len(sites)).Str("config_path", configPath).Msg("[Config] Loaded sites")
	return sites, hashes, nil
}

// calculateConfigHash calculates a SHA256 hash of the site
// configuration, used to detect changes in the YAML file
func calculateConfigHash(cfg SiteConfig) string {
	configStr := fmt.Sprintf("%s|%s|%d|%v",
		cfg.Name,
		cfg.URL,
		cfg.CheckIntervalSec,
		cfg.Paused,
	)

	hash := sha256.Sum256([]byte(configStr))
	return hex.EncodeToString(hash[:])
}
