//go:build darwin

package platform

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gajzzs/usbdrive/internal/device"
	"github.com/gajzzs/usbdrive/internal/logging"
)

type macEnumerator struct {
	logger       logging.Logger
	timeout      time.Duration
	serviceClass string
	volumesDir   string

	output   commandRunner
	combined commandRunner
}

func newEnumerator(opts Options) (Enumerator, error) {
	class := opts.ServiceClass
	if class == "" {
		class = "IOUSBHostDevice"
	}
	return &macEnumerator{
		logger:       opts.Logger,
		timeout:      opts.CommandTimeout,
		serviceClass: class,
		volumesDir:   opts.VolumesDir,
		output:       runOutput,
		combined:     runCombined,
	}, nil
}

func (e *macEnumerator) Enumerate(ctx context.Context) ([]Candidate, error) {
	ioCtx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()
	out, err := e.output(ioCtx, "ioreg", "-r", "-c", e.serviceClass, "-a", "-l")
	if err != nil {
		return nil, fmt.Errorf("%w: ioreg: %v", ErrSessionUnavailable, err)
	}
	if len(strings.TrimSpace(string(out))) == 0 {
		return nil, nil
	}

	entries, errs := parseIoreg(out, e.serviceClass)
	for _, err := range errs {
		e.logger.Debugw("skipping usb device", "error", err)
	}

	candidates := make([]Candidate, 0, len(entries))
	for _, entry := range entries {
		c := entry.Candidate
		c.MountPoint = e.mountPoint(ctx, entry.BSDName)
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func (e *macEnumerator) mountPoint(ctx context.Context, bsd string) string {
	ctx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()
	out, err := e.output(ctx, "diskutil", "info", "-plist", "/dev/"+firstSlice(bsd))
	if err != nil {
		e.logger.Debugw("diskutil info failed", "bsd", bsd, "error", err)
		return ""
	}
	return parseDiskutilMount(out, e.volumesDir)
}

func (e *macEnumerator) Unmount(ctx context.Context, rec device.Record) error {
	ctx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()
	out, err := e.combined(ctx, "diskutil", "unmount", rec.MountPoint)
	if err != nil {
		return &UnmountError{
			MountPoint: rec.MountPoint,
			Reason:     strings.TrimSpace(string(out)),
			Err:        err,
		}
	}
	return nil
}
