//go:build linux && cgo

package platform

import (
	"errors"
	"fmt"

	"github.com/jochenvg/go-udev"
)

var errNoUdevContext = errors.New("udev: cannot create enumerate context")

// udevSource enumerates the "block" subsystem through libudev.
type udevSource struct {
	u         udev.Udev
	enumerate func() *udev.Enumerate
}

// newUdevSource fails when libudev cannot create a context, so that "auto"
// can fall back to sysfs.
func newUdevSource() (blockSource, error) {
	s := &udevSource{}
	s.enumerate = s.u.NewEnumerate
	if s.enumerate() == nil {
		return nil, errNoUdevContext
	}
	return s, nil
}

func (s *udevSource) Name() string { return "udev" }

func (s *udevSource) BlockDevices() ([]blockDevice, error) {
	enum := s.enumerate()
	if enum == nil {
		return nil, errNoUdevContext
	}
	if err := enum.AddMatchSubsystem("block"); err != nil {
		return nil, fmt.Errorf("udev match subsystem: %w", err)
	}
	devices, err := enum.Devices()
	if err != nil {
		return nil, fmt.Errorf("udev enumerate: %w", err)
	}

	out := make([]blockDevice, 0, len(devices))
	for _, d := range devices {
		dev := blockDevice{
			DevNode: d.Devnode(),
			DevType: d.Devtype(),
		}
		if parent := d.ParentWithSubsystemDevtype("usb", "usb_device"); parent != nil {
			attrs := make(map[string]string, len(usbAttrs))
			for _, name := range usbAttrs {
				if v := parent.SysattrValue(name); v != "" {
					attrs[name] = v
				}
			}
			dev.USB = &usbAncestor{DevPath: parent.Devpath(), Attrs: attrs}
		}
		out = append(out, dev)
	}
	return out, nil
}
