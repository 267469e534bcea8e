package service

import (
	"context"
	"fmt"
	"os"

	"github.com/kardianos/service"

	"github.com/gajzzs/usbdrive/internal/config"
	"github.com/gajzzs/usbdrive/internal/logging"
)

type ServiceManager struct {
	service service.Service
	name    string
}

// program adapts a Watcher to the service.Interface lifecycle.
type program struct {
	watcher *Watcher
	logger  logging.Logger
	cancel  context.CancelFunc
}

func (p *program) Start(s service.Service) error {
	p.logger.Infow("starting usbdrive service", "platform", service.Platform())
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	return p.watcher.Start(ctx)
}

func (p *program) Stop(s service.Service) error {
	p.logger.Info("stopping usbdrive service")
	if p.cancel != nil {
		p.cancel()
	}
	return p.watcher.Stop()
}

// NewServiceManager wires watcher into an OS service described by cfg. The
// installed service runs "<executable> service run --config <configPath>".
// watcher may be nil when only install/uninstall/start/stop/status are
// needed.
func NewServiceManager(cfg config.ServiceConfig, configPath string, watcher *Watcher, logger logging.Logger) (*ServiceManager, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	args := []string{"service", "run"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	svcConfig := &service.Config{
		Name:        cfg.Name,
		DisplayName: cfg.DisplayName,
		Description: cfg.Description,
		Executable:  execPath,
		Arguments:   args,
		Option: service.KeyValue{
			"RunAtLoad": true,
			"KeepAlive": true,
		},
	}

	prg := &program{watcher: watcher, logger: logger}
	svc, err := service.New(prg, svcConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}

	return &ServiceManager{service: svc, name: cfg.Name}, nil
}

func (sm *ServiceManager) Install() error {
	return sm.service.Install()
}

func (sm *ServiceManager) Uninstall() error {
	return sm.service.Uninstall()
}

func (sm *ServiceManager) Start() error {
	return sm.service.Start()
}

func (sm *ServiceManager) Stop() error {
	return sm.service.Stop()
}

func (sm *ServiceManager) Status() (string, error) {
	status, err := sm.service.Status()
	if err != nil {
		return "Unknown", err
	}
	return statusString(status), nil
}

func statusString(status service.Status) string {
	switch status {
	case service.StatusRunning:
		return "Running"
	case service.StatusStopped:
		return "Stopped"
	case service.StatusUnknown:
		return "Unknown"
	default:
		return fmt.Sprintf("Status(%d)", int(status))
	}
}

// Run blocks until the service manager stops the program. Outside a
// service manager it runs interactively until interrupted.
func (sm *ServiceManager) Run() error {
	return sm.service.Run()
}

// ConfigPath returns where the platform keeps the service definition.
func (sm *ServiceManager) ConfigPath() string {
	switch service.Platform() {
	case "linux-systemd":
		return "/etc/systemd/system/" + sm.name + ".service"
	case "darwin-launchd":
		return "/Library/LaunchDaemons/" + sm.name + ".plist"
	case "windows-service":
		return `Registry: HKEY_LOCAL_MACHINE\SYSTEM\CurrentControlSet\Services\` + sm.name
	default:
		return "Unknown platform"
	}
}
