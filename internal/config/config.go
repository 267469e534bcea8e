package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/a8m/envsubst"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Log     LogConfig     `yaml:"log" json:"log"`
	Poll    PollConfig    `yaml:"poll" json:"poll"`
	Linux   LinuxConfig   `yaml:"linux" json:"linux"`
	Darwin  DarwinConfig  `yaml:"darwin" json:"darwin"`
	Service ServiceConfig `yaml:"service" json:"service"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// PollConfig controls the watch loop and the external commands used during
// enumeration.
type PollConfig struct {
	Interval       string `yaml:"interval" json:"interval"`
	CommandTimeout string `yaml:"command_timeout" json:"command_timeout"`

	interval       time.Duration
	commandTimeout time.Duration
}

// LinuxConfig selects the block device source: "udev" needs cgo and
// libudev, "sysfs" walks SysfsRoot directly, "auto" prefers udev.
type LinuxConfig struct {
	Source    string `yaml:"source" json:"source"`
	SysfsRoot string `yaml:"sysfs_root" json:"sysfs_root"`
}

// DarwinConfig names the IOKit class to match. Hosts older than El Capitan
// publish IOUSBDevice instead of IOUSBHostDevice.
type DarwinConfig struct {
	ServiceClass string `yaml:"service_class" json:"service_class"`
	VolumesDir   string `yaml:"volumes_dir" json:"volumes_dir"`
}

type ServiceConfig struct {
	Name        string `yaml:"name" json:"name"`
	DisplayName string `yaml:"display_name" json:"display_name"`
	Description string `yaml:"description" json:"description"`
}

const (
	SourceAuto  = "auto"
	SourceUdev  = "udev"
	SourceSysfs = "sysfs"
)

var (
	ConfigDir  = defaultConfigDir()
	ConfigFile = filepath.Join(ConfigDir, "config.yaml")
)

func defaultConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "usbdrive")
	}
	return filepath.Join(os.TempDir(), "usbdrive")
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{
		Log: LogConfig{Level: "info", Format: "console"},
		Poll: PollConfig{
			Interval:       "1500ms",
			CommandTimeout: "10s",
		},
		Linux: LinuxConfig{Source: SourceAuto, SysfsRoot: "/sys"},
		Darwin: DarwinConfig{
			ServiceClass: "IOUSBHostDevice",
			VolumesDir:   "/Volumes",
		},
		Service: ServiceConfig{
			Name:        "usbdrive",
			DisplayName: "USB Drive Watcher",
			Description: "Polls attached USB mass-storage devices and logs changes",
		},
	}
	// defaults always validate
	_ = cfg.validate()
	return cfg
}

// Load reads path, expanding ${VAR} references first. A missing file yields
// the defaults; fields absent from the file keep their default values.
// JSON files are accepted as well since JSON is valid YAML.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = ConfigFile
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded, err := envsubst.Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("expand config: %w", err)
	}
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var err error
	if c.Poll.interval, err = time.ParseDuration(c.Poll.Interval); err != nil {
		return fmt.Errorf("poll.interval: %w", err)
	}
	if c.Poll.interval <= 0 {
		return fmt.Errorf("poll.interval must be positive")
	}
	if c.Poll.commandTimeout, err = time.ParseDuration(c.Poll.CommandTimeout); err != nil {
		return fmt.Errorf("poll.command_timeout: %w", err)
	}
	switch c.Linux.Source {
	case SourceAuto, SourceUdev, SourceSysfs:
	case "":
		c.Linux.Source = SourceAuto
	default:
		return fmt.Errorf("linux.source: unknown source %q", c.Linux.Source)
	}
	if c.Service.Name == "" {
		return fmt.Errorf("service.name must not be empty")
	}
	return nil
}

// IntervalDuration returns the parsed poll interval.
func (p PollConfig) IntervalDuration() time.Duration {
	return p.interval
}

// CommandTimeoutDuration returns the parsed timeout for external commands;
// zero disables it.
func (p PollConfig) CommandTimeoutDuration() time.Duration {
	return p.commandTimeout
}

// SetInterval overrides the poll interval, e.g. from a command line flag.
func (p *PollConfig) SetInterval(d time.Duration) {
	p.interval = d
	p.Interval = d.String()
}

// Save writes the configuration as YAML, creating the directory if needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigFile
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
