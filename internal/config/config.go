// Package config loads the daemon configuration file. Fields are
// pointer-typed so a partial JSON file is safe: anything omitted falls back
// to a default through the Get* accessors. The file is validated once at
// startup; nothing revalidates at runtime.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/inkworks/plotbot/internal/path"
	"github.com/inkworks/plotbot/internal/plotter"
)

// Config is the root daemon configuration.
type Config struct {
	// Machine params
	DeviceMin  *float64             `json:"device_min,omitempty"`
	DeviceMax  *float64             `json:"device_max,omitempty"`
	SerialPath *string              `json:"serial_path,omitempty"`
	Serial     *plotter.PortOptions `json:"serial,omitempty"`

	// Board-clear params
	GPIOPath        *string `json:"gpio_path,omitempty"`
	ClearPulseWidth *string `json:"clear_pulse_width,omitempty"` // duration string like "150ms"

	// Webcam params
	CameraBaseURL *string `json:"camera_base_url,omitempty"`
	MediaDir      *string `json:"media_dir,omitempty"`
	SettleDelay   *string `json:"settle_delay,omitempty"` // duration string like "4s"

	// Front-end params
	WebhookURL *string `json:"webhook_url,omitempty"`

	// Executor budgets
	MaxOps    *int `json:"max_ops,omitempty"`
	MaxPoints *int `json:"max_points,omitempty"`

	// Storage params
	DBPath        *string `json:"db_path,omitempty"`
	MigrationsDir *string `json:"migrations_dir,omitempty"`
	WorkDir       *string `json:"work_dir,omitempty"`
}

// Load reads a Config from a JSON file. The file must have a .json
// extension and be under the max file size. Fields omitted from the file
// retain their defaults, so partial configs are safe.
func Load(p string) (*Config, error) {
	cleanPath := filepath.Clean(p)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints. Defaults are always valid, so an
// empty Config passes.
func (c *Config) Validate() error {
	if err := c.DeviceRange().Validate(); err != nil {
		return err
	}
	if c.ClearPulseWidth != nil {
		if _, err := time.ParseDuration(*c.ClearPulseWidth); err != nil {
			return fmt.Errorf("invalid clear_pulse_width: %w", err)
		}
	}
	if c.SettleDelay != nil {
		if _, err := time.ParseDuration(*c.SettleDelay); err != nil {
			return fmt.Errorf("invalid settle_delay: %w", err)
		}
	}
	if c.Serial != nil {
		if _, err := c.Serial.Normalize(); err != nil {
			return err
		}
	}
	if c.MaxOps != nil && *c.MaxOps < 0 {
		return fmt.Errorf("max_ops must not be negative")
	}
	if c.MaxPoints != nil && *c.MaxPoints < 0 {
		return fmt.Errorf("max_points must not be negative")
	}
	return nil
}

// DeviceRange returns the machine's safe coordinate bound.
func (c *Config) DeviceRange() path.Range {
	r := path.Range{Min: 0, Max: 120}
	if c.DeviceMin != nil {
		r.Min = *c.DeviceMin
	}
	if c.DeviceMax != nil {
		r.Max = *c.DeviceMax
	}
	return r
}

// GetSerialPath returns the plotter serial device path.
func (c *Config) GetSerialPath() string {
	if c.SerialPath != nil {
		return *c.SerialPath
	}
	return "/dev/ttyACM0"
}

// GetSerial returns the serial port options.
func (c *Config) GetSerial() plotter.PortOptions {
	if c.Serial != nil {
		return *c.Serial
	}
	return plotter.PortOptions{}
}

// GetGPIOPath returns the sysfs value file of the board-clear line.
func (c *Config) GetGPIOPath() string {
	if c.GPIOPath != nil {
		return *c.GPIOPath
	}
	return "/sys/class/gpio/gpio17/value"
}

// GetClearPulseWidth returns how long the clear line is held high.
func (c *Config) GetClearPulseWidth() time.Duration {
	if c.ClearPulseWidth != nil {
		d, err := time.ParseDuration(*c.ClearPulseWidth)
		if err == nil {
			return d
		}
	}
	return 150 * time.Millisecond
}

// GetCameraBaseURL returns the webcam daemon control endpoint.
func (c *Config) GetCameraBaseURL() string {
	if c.CameraBaseURL != nil {
		return *c.CameraBaseURL
	}
	return "http://127.0.0.1:7999/0"
}

// GetMediaDir returns where the webcam daemon writes media files.
func (c *Config) GetMediaDir() string {
	if c.MediaDir != nil {
		return *c.MediaDir
	}
	return "/var/lib/motion"
}

// GetSettleDelay returns how long recording continues after a draw.
func (c *Config) GetSettleDelay() time.Duration {
	if c.SettleDelay != nil {
		d, err := time.ParseDuration(*c.SettleDelay)
		if err == nil {
			return d
		}
	}
	return 4 * time.Second
}

// GetWebhookURL returns the front-end webhook endpoint.
func (c *Config) GetWebhookURL() string {
	if c.WebhookURL != nil {
		return *c.WebhookURL
	}
	return "http://127.0.0.1:8788"
}

// GetMaxOps returns the executor operation budget (0 selects its default).
func (c *Config) GetMaxOps() int {
	if c.MaxOps != nil {
		return *c.MaxOps
	}
	return 0
}

// GetMaxPoints returns the executor point budget (0 selects its default).
func (c *Config) GetMaxPoints() int {
	if c.MaxPoints != nil {
		return *c.MaxPoints
	}
	return 0
}

// GetDBPath returns the job history database path.
func (c *Config) GetDBPath() string {
	if c.DBPath != nil {
		return *c.DBPath
	}
	return "plotbot.db"
}

// GetMigrationsDir returns the schema migrations directory.
func (c *Config) GetMigrationsDir() string {
	if c.MigrationsDir != nil {
		return *c.MigrationsDir
	}
	return "migrations"
}

// GetWorkDir returns the scratch directory for generated preview images.
func (c *Config) GetWorkDir() string {
	if c.WorkDir != nil {
		return *c.WorkDir
	}
	return os.TempDir()
}
