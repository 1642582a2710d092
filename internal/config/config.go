// Package config loads and defaults the TOML configuration file, grounded
// on the teacher's internal/config.LoadConfig (BurntSushi/toml decode).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"

	"wnacg-downloader/internal/models"
)

const defaultConfigFile = "config.toml"

// Defaults fills in a Config with the values a fresh install should start
// from; LoadConfig applies these before the file's own values override them.
func Defaults() models.Config {
	return models.Config{
		DownloadDir:      "downloads",
		ExportDir:        "exports",
		ComicConcurrency: 3,
		ImgConcurrency:   5,
		DownloadFormat:   string(models.FormatOriginal),
		StoreDir:         filepath.Join(".wnacg-dl", "store.db"),
		IndexDir:         filepath.Join(".wnacg-dl", "search.bleve"),
		LogLevel:         "info",
		DaemonAddr:       "127.0.0.1:7865",
	}
}

// LoadConfig reads the configuration from configFilePath (defaulting to
// "config.toml"). A missing file is not an error: the caller gets Defaults().
func LoadConfig(configFilePath string) (models.Config, error) {
	if configFilePath == "" {
		configFilePath = defaultConfigFile
	}

	cfg := Defaults()

	if _, err := os.Stat(configFilePath); os.IsNotExist(err) {
		log.Debugf("config file %s not found, using defaults", configFilePath)
		return cfg, nil
	}

	if _, err := toml.DecodeFile(configFilePath, &cfg); err != nil {
		return models.Config{}, fmt.Errorf("error loading config file %s: %w", configFilePath, err)
	}

	if cfg.DownloadDir == "" {
		log.Warn("download_dir is not set in config, using default")
		cfg.DownloadDir = Defaults().DownloadDir
	}

	log.Infof("configuration loaded from %s", configFilePath)
	return cfg, nil
}

// Save writes cfg back out as TOML, creating parent directories as needed.
func Save(configFilePath string, cfg models.Config) error {
	if configFilePath == "" {
		configFilePath = defaultConfigFile
	}
	if dir := filepath.Dir(configFilePath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("error creating config directory %s: %w", dir, err)
		}
	}
	f, err := os.Create(configFilePath)
	if err != nil {
		return fmt.Errorf("error creating config file %s: %w", configFilePath, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("error encoding config to %s: %w", configFilePath, err)
	}
	return nil
}
