// Package config loads engine settings from environment variables.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds all engine settings.
type Config struct {
	ServerAddress string
	RegistryPath  string
	UpstreamURL   string
	SendTimeout   time.Duration
	MonitorEvery  time.Duration
	UserID        int
}

// Load reads settings from the environment, applying defaults for
// anything unset.
func Load() *Config {
	viper.AutomaticEnv()
	viper.SetDefault("SERVER_ADDRESS", "localhost:8999")
	viper.SetDefault("REGISTRY_PATH", "devices.json")
	viper.SetDefault("UPSTREAM_URL", "http://localhost:8000")
	viper.SetDefault("SEND_TIMEOUT", "10s")
	viper.SetDefault("MONITOR_INTERVAL", "2s")
	viper.SetDefault("POS_USER_ID", 1)

	return &Config{
		ServerAddress: viper.GetString("SERVER_ADDRESS"),
		RegistryPath:  viper.GetString("REGISTRY_PATH"),
		UpstreamURL:   viper.GetString("UPSTREAM_URL"),
		SendTimeout:   viper.GetDuration("SEND_TIMEOUT"),
		MonitorEvery:  viper.GetDuration("MONITOR_INTERVAL"),
		UserID:        viper.GetInt("POS_USER_ID"),
	}
}
