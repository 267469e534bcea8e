package app

import (
	"io"
	"os"

	"github.com/gajzzs/usbdrive/internal/config"
	"github.com/gajzzs/usbdrive/internal/logging"
	"github.com/gajzzs/usbdrive/internal/platform"
	"github.com/gajzzs/usbdrive/internal/usbdrive"
)

// Options holds the global command line flags shared by every command.
type Options struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string

	// NewEnumerator builds the platform enumerator; tests replace it.
	NewEnumerator func(platform.Options) (platform.Enumerator, error)

	Out io.Writer
}

func NewOptions() *Options {
	return &Options{
		NewEnumerator: platform.NewEnumerator,
		Out:           os.Stdout,
	}
}

// env is what a command needs after flags and config are resolved.
type env struct {
	cfg    *config.Config
	logger logging.Logger
	driver *usbdrive.Driver
}

func (o *Options) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		cfg.Log.Format = o.LogFormat
	}
	return cfg, nil
}

func (o *Options) setup() (*env, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New("usbdrive", cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	enum, err := o.NewEnumerator(platform.Options{
		Logger:         logger.Named("platform"),
		CommandTimeout: cfg.Poll.CommandTimeoutDuration(),
		LinuxSource:    cfg.Linux.Source,
		SysfsRoot:      cfg.Linux.SysfsRoot,
		ServiceClass:   cfg.Darwin.ServiceClass,
		VolumesDir:     cfg.Darwin.VolumesDir,
	})
	if err != nil {
		return nil, err
	}

	return &env{
		cfg:    cfg,
		logger: logger,
		driver: usbdrive.New(enum, usbdrive.WithLogger(logger.Named("driver"))),
	}, nil
}
