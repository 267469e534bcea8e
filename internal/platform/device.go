package platform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gajzzs/usbdrive/internal/device"
	"github.com/gajzzs/usbdrive/internal/logging"
)

var (
	// ErrSessionUnavailable means the OS device-management service could not
	// be opened, so no enumeration took place.
	ErrSessionUnavailable = errors.New("device management session unavailable")
	// ErrUnsupported is returned for platforms or operations not implemented.
	ErrUnsupported = errors.New("not supported on this platform")
)

// Candidate is the raw attribute bag produced for one USB storage device
// before its unique identifier is derived.
type Candidate struct {
	VendorID     int
	ProductID    int
	SerialNumber string
	Product      string
	Vendor       string
	MountPoint   string
	Location     string
	DevNode      string
}

// Record converts the candidate into a device record registered under uid.
func (c Candidate) Record(uid string) device.Record {
	return device.Record{
		UID:          uid,
		VendorID:     c.VendorID,
		ProductID:    c.ProductID,
		SerialNumber: c.SerialNumber,
		Product:      c.Product,
		Vendor:       c.Vendor,
		MountPoint:   c.MountPoint,
		Location:     c.Location,
		DevNode:      c.DevNode,
	}
}

// Enumerator discovers USB storage devices through the native device
// manager of the host.
type Enumerator interface {
	// Enumerate returns every USB storage device currently attached. Devices
	// whose attributes cannot be read are skipped; an error is returned only
	// when the session cannot be started.
	Enumerate(ctx context.Context) ([]Candidate, error)
	// Unmount asks the OS to unmount the volume of rec.
	Unmount(ctx context.Context, rec device.Record) error
}

// Options configures the platform enumerator.
type Options struct {
	Logger         logging.Logger
	CommandTimeout time.Duration

	// Linux
	LinuxSource string
	SysfsRoot   string

	// macOS
	ServiceClass string
	VolumesDir   string
}

// NewEnumerator creates the enumerator for the host platform.
func NewEnumerator(opts Options) (Enumerator, error) {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return newEnumerator(opts)
}

// UnmountError carries the reason the OS gave for refusing an unmount.
type UnmountError struct {
	MountPoint string
	Reason     string
	Err        error
}

func (e *UnmountError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unmount %s: %s", e.MountPoint, e.Reason)
	}
	return fmt.Sprintf("unmount %s: %v", e.MountPoint, e.Err)
}

func (e *UnmountError) Unwrap() error {
	return e.Err
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
