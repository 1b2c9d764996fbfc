// Package conf holds the driver configuration.
package conf

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// DevConfig describes one managed IOS-XR device.
type DevConfig struct {
	Id             string
	HostPort       string // "host" or "host:port"
	Transports     string // "ssh", "telnet" or "ssh,telnet"
	LoginUser      string
	LoginPassword  string
	EnablePassword string
	VrfManagement  string // default VRF for management-plane file operations
	Debug          bool
}

// AppConfig holds tunables shared by all driver operations.
type AppConfig struct {
	ReadTimeout         time.Duration // timeout for a single channel read
	MatchTimeout        time.Duration // per-step limit waiting for a prompt
	SendTimeout         time.Duration
	CommandReadTimeout  time.Duration // larger limit for slow commands (sh run)
	CommandMatchTimeout time.Duration
	MaxSnapshotFiles    int // per-device snapshot history size
	S3Region            string
	LastChange          Change
}

// Change records who performed the last configuration change.
type Change struct {
	When time.Time
	By   string
	From string
}

// Config is the on-disk YAML document.
type Config struct {
	Options AppConfig
	Devices []DevConfig
}

// New creates a Config with sane defaults.
func New() *Config {
	return &Config{
		Options: AppConfig{
			ReadTimeout:         10 * time.Second,
			MatchTimeout:        20 * time.Second,
			SendTimeout:         5 * time.Second,
			CommandReadTimeout:  20 * time.Second,
			CommandMatchTimeout: 30 * time.Second,
			MaxSnapshotFiles:    10,
		},
	}
}

// Load reads a Config from path, refusing files larger than maxSize.
func Load(path string, maxSize int64) (*Config, error) {
	info, statErr := os.Stat(path)
	if statErr != nil {
		return nil, statErr
	}
	if info.Size() > maxSize {
		return nil, fmt.Errorf("conf.Load: file too big: '%s': size=%d max=%d", path, info.Size(), maxSize)
	}
	b, readErr := os.ReadFile(path)
	if readErr != nil {
		return nil, readErr
	}
	c := New()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Dump serializes the Config to YAML.
func (c *Config) Dump() ([]byte, error) {
	b, err := yaml.Marshal(c)
	if err != nil {
		return nil, err
	}
	return b, nil
}
