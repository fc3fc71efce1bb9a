// Package config loads engine configuration from an optional yaml file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config is the full configuration for the viewer tools.
type Config struct {
	API struct {
		BaseURL string        `yaml:"base_url" envconfig:"API_BASE_URL"`
		Timeout time.Duration `yaml:"timeout" envconfig:"API_TIMEOUT"`
	} `yaml:"api"`

	Socket struct {
		URL            string        `yaml:"url" envconfig:"SOCKET_URL"`
		PingInterval   time.Duration `yaml:"ping_interval" envconfig:"SOCKET_PING_INTERVAL"`
		ReconnectWait  time.Duration `yaml:"reconnect_wait" envconfig:"SOCKET_RECONNECT_WAIT"`
		RejoinSuppress time.Duration `yaml:"rejoin_suppress" envconfig:"SOCKET_REJOIN_SUPPRESS"`
	} `yaml:"socket"`

	Engine struct {
		SnapshotInterval time.Duration `yaml:"snapshot_interval" envconfig:"ENGINE_SNAPSHOT_INTERVAL"`
	} `yaml:"engine"`

	Relay struct {
		NATSURL       string `yaml:"nats_url" envconfig:"NATS_URL"`
		StreamName    string `yaml:"stream_name" envconfig:"RELAY_STREAM_NAME"`
		SubjectPrefix string `yaml:"subject_prefix" envconfig:"RELAY_SUBJECT_PREFIX"`
	} `yaml:"relay"`

	Viewer struct {
		UserID   string `yaml:"user_id" envconfig:"VIEWER_USER_ID"`
		UserName string `yaml:"user_name" envconfig:"VIEWER_USER_NAME"`
	} `yaml:"viewer"`
}

// Defaults returns the baseline configuration.
func Defaults() Config {
	var c Config
	c.API.BaseURL = "http://localhost:8080"
	c.API.Timeout = 30 * time.Second
	c.Socket.URL = "ws://localhost:8080/ws"
	c.Socket.PingInterval = 30 * time.Second
	c.Socket.ReconnectWait = time.Second
	c.Socket.RejoinSuppress = 2 * time.Second
	c.Engine.SnapshotInterval = 30 * time.Second
	c.Relay.NATSURL = "nats://localhost:4222"
	c.Relay.StreamName = "SHOW_EVENTS"
	c.Relay.SubjectPrefix = "show.events"
	return c
}

// Load reads the yaml file at path (skipped when path is empty or missing)
// and then applies env overrides on top.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := envconfig.Process("tokshop", &cfg); err != nil {
		return cfg, fmt.Errorf("failed to process env overrides: %w", err)
	}
	return cfg, nil
}
