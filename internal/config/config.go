// Package config provides configuration management for the go-omnik daemon.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	// General settings
	LogLevel     string        `mapstructure:"log_level"`
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// Inverters to poll
	Inverters []InverterConfig `mapstructure:"inverters"`

	// HTTP API settings
	API struct {
		Enabled bool   `mapstructure:"enabled"`
		Host    string `mapstructure:"host"`
		Port    int    `mapstructure:"port"`
	} `mapstructure:"api"`

	// MQTT settings
	MQTT struct {
		Enabled  bool   `mapstructure:"enabled"`
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		Topic    string `mapstructure:"topic"`
		Retain   bool   `mapstructure:"retain"`
	} `mapstructure:"mqtt"`

	// Storage settings
	Storage struct {
		Enabled       bool   `mapstructure:"enabled"`
		Path          string `mapstructure:"path"`
		RetentionDays int    `mapstructure:"retention_days"`
	} `mapstructure:"storage"`
}

// InverterConfig describes one inverter to poll.
type InverterConfig struct {
	Name           string `mapstructure:"name"`
	Host           string `mapstructure:"host"`
	SourceType     string `mapstructure:"source_type"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	UseSSL         bool   `mapstructure:"use_ssl"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	TCPPort        int    `mapstructure:"tcp_port"`
	SerialNumber   uint32 `mapstructure:"serial_number"`
}

// Timeout returns the per-request timeout for this inverter.
func (i InverterConfig) Timeout() time.Duration {
	if i.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(i.TimeoutSeconds) * time.Second
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{
		LogLevel:     "info",
		PollInterval: 30 * time.Second,
	}

	// Default API settings
	cfg.API.Enabled = true
	cfg.API.Host = "0.0.0.0"
	cfg.API.Port = 8080

	// Default MQTT settings
	cfg.MQTT.Enabled = false
	cfg.MQTT.Host = "localhost"
	cfg.MQTT.Port = 1883
	cfg.MQTT.Topic = "energy/omnik"
	cfg.MQTT.Retain = false

	// Default storage settings
	cfg.Storage.Enabled = false
	cfg.Storage.Path = "omnik.db"
	cfg.Storage.RetentionDays = 90

	return cfg
}

// Load reads the configuration from a file and environment variables.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Set up Viper
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Override with specific config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// Config file not found, use defaults
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			fmt.Println("No configuration file found, using defaults")
		} else {
			// Other errors (like invalid YAML) should be returned
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	// Bind environment variables
	v.SetEnvPrefix("OMNIK")
	v.AutomaticEnv()

	// Unmarshal config
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return cfg, nil
}

// Print displays the current configuration.
func (c *Config) Print() {
	logger := log.With().Str("component", "config").Logger()
	logger.Info().Msg("go-omnik Configuration:")
	logger.Info().Msg("-----------------------------")
	logger.Info().Str("log_level", c.LogLevel).Msg("Log Level")
	logger.Info().Dur("poll_interval", c.PollInterval).Msg("Poll Interval")

	for _, inv := range c.Inverters {
		logger.Info().
			Str("name", inv.Name).
			Str("host", inv.Host).
			Str("source_type", inv.SourceType).
			Bool("use_ssl", inv.UseSSL).
			Msg("Inverter")
	}

	logger.Info().Bool("enabled", c.API.Enabled).Msg("API Enabled")
	if c.API.Enabled {
		logger.Info().
			Str("host", c.API.Host).
			Int("port", c.API.Port).
			Msg("API Server")
	}

	logger.Info().Bool("enabled", c.MQTT.Enabled).Msg("MQTT Enabled")
	if c.MQTT.Enabled {
		logger.Info().
			Str("host", c.MQTT.Host).
			Int("port", c.MQTT.Port).
			Str("topic", c.MQTT.Topic).
			Msg("MQTT Configuration")
	}

	logger.Info().Bool("enabled", c.Storage.Enabled).Msg("Storage Enabled")
	if c.Storage.Enabled {
		logger.Info().
			Str("path", c.Storage.Path).
			Int("retention_days", c.Storage.RetentionDays).
			Msg("Storage Configuration")
	}

	logger.Info().Msg("-----------------------------")
}
