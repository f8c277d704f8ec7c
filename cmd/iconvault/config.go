// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds the iconvault runtime configuration.
//
// Values resolve in order: defaults, then the optional config file at
// {data_dir}/config.yaml, then ICONVAULT_* environment variables, then
// command-line flags.
type Config struct {
	// Workspace isolates this workspace's asset cache from others on the
	// same device.
	Workspace string `mapstructure:"workspace"`

	// DataDir is the root directory for caches, settings, and logs.
	DataDir string `mapstructure:"data_dir"`

	// SettingsPath overrides the settings file location. Empty means
	// {data_dir}/settings.json.
	SettingsPath string `mapstructure:"settings_path"`

	// Port is the HTTP listen port for the serve command.
	Port int `mapstructure:"port"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`

	// LogDir enables file logging when non-empty.
	LogDir string `mapstructure:"log_dir"`

	// JSONLogs switches stderr logging to JSON.
	JSONLogs bool `mapstructure:"json_logs"`
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".iconvault"
	}
	return filepath.Join(home, ".aleutian", "iconvault")
}

// loadConfig resolves the runtime configuration.
func loadConfig() (Config, error) {
	v := viper.New()
	v.SetDefault("workspace", "default")
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("ICONVAULT")
	v.AutomaticEnv()

	dataDir := v.GetString("data_dir")
	configFilePath := filepath.Join(dataDir, "config.yaml")
	if _, err := os.Stat(configFilePath); err == nil {
		v.SetConfigFile(configFilePath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("error reading config file %s: %w", configFilePath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error unmarshalling config: %w", err)
	}
	if cfg.SettingsPath == "" {
		cfg.SettingsPath = filepath.Join(cfg.DataDir, "settings.json")
	}
	return cfg, nil
}
