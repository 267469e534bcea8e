// Package usbdrive discovers attached USB mass-storage devices, keeps the
// records of every device seen by this process and unmounts their volumes.
package usbdrive

import (
	"context"
	"fmt"
	"sync"

	"github.com/gajzzs/usbdrive/internal/device"
	"github.com/gajzzs/usbdrive/internal/ident"
	"github.com/gajzzs/usbdrive/internal/logging"
	"github.com/gajzzs/usbdrive/internal/platform"
)

// Driver polls an Enumerator and records the results in a Registry.
type Driver struct {
	enum   platform.Enumerator
	reg    *device.Registry
	codec  *ident.Codec
	logger logging.Logger

	pollMu sync.Mutex
}

type Option func(*Driver)

func WithLogger(logger logging.Logger) Option {
	return func(d *Driver) { d.logger = logger }
}

// WithCodec replaces the process-wide uid codec, mostly for tests that need
// a fresh serial-less counter.
func WithCodec(codec *ident.Codec) Option {
	return func(d *Driver) { d.codec = codec }
}

func WithRegistry(reg *device.Registry) Option {
	return func(d *Driver) { d.reg = reg }
}

// New creates a Driver around enum.
func New(enum platform.Enumerator, opts ...Option) *Driver {
	d := &Driver{enum: enum}
	for _, opt := range opts {
		opt(d)
	}
	if d.reg == nil {
		d.reg = device.NewRegistry()
	}
	if d.logger == nil {
		d.logger = logging.NewNop()
	}
	return d
}

func (d *Driver) deriveUID(c platform.Candidate) string {
	if d.codec != nil {
		return d.codec.DeriveUID(c.VendorID, c.ProductID, c.SerialNumber)
	}
	return ident.DeriveUID(c.VendorID, c.ProductID, c.SerialNumber)
}

// Poll enumerates the attached devices, registers them and returns the
// records of this pass. Devices seen earlier but absent now stay in the
// registry.
func (d *Driver) Poll(ctx context.Context) ([]device.Record, error) {
	d.pollMu.Lock()
	defer d.pollMu.Unlock()

	candidates, err := d.enum.Enumerate(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate usb devices: %w", err)
	}

	records := make([]device.Record, 0, len(candidates))
	for _, c := range candidates {
		records = append(records, c.Record(d.deriveUID(c)))
	}
	if err := d.reg.PutAll(records); err != nil {
		return nil, err
	}
	d.logger.Debugw("poll complete", "devices", len(records), "known", d.reg.Len())
	return records, nil
}

// Get returns the record registered under uid by an earlier Poll.
func (d *Driver) Get(uid string) (device.Record, bool) {
	return d.reg.Get(uid)
}

// Unmount unmounts the volume of the device registered under uid. It
// reports false without touching the OS when the device is unknown or not
// mounted. On success the record's mount point is cleared.
func (d *Driver) Unmount(ctx context.Context, uid string) (bool, error) {
	rec, ok := d.reg.Get(uid)
	if !ok || !rec.Mounted() {
		return false, nil
	}
	if err := d.enum.Unmount(ctx, rec); err != nil {
		d.logger.Warnw("unmount failed", "uid", uid, "mount", rec.MountPoint, "error", err)
		return false, err
	}
	d.reg.ClearMount(uid)
	d.logger.Infow("unmounted", "uid", uid, "mount", rec.MountPoint)
	return true, nil
}

// Registry exposes the records known to this driver.
func (d *Driver) Registry() *device.Registry {
	return d.reg
}
