//go:build linux

package platform

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shirou/gopsutil/v3/disk"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"

	"github.com/gajzzs/usbdrive/internal/device"
	"github.com/gajzzs/usbdrive/internal/ident"
	"github.com/gajzzs/usbdrive/internal/logging"
)

type linuxEnumerator struct {
	source  blockSource
	logger  logging.Logger
	timeout time.Duration

	partitions func(ctx context.Context, all bool) ([]disk.PartitionStat, error)
	unmount    func(target string, flags int) error
	run        commandRunner
}

func newEnumerator(opts Options) (Enumerator, error) {
	source, err := selectBlockSource(opts)
	if err != nil {
		return nil, err
	}
	opts.Logger.Debugw("block device source selected", "source", source.Name())
	return &linuxEnumerator{
		source:     source,
		logger:     opts.Logger,
		timeout:    opts.CommandTimeout,
		partitions: disk.PartitionsWithContext,
		unmount:    unix.Unmount,
		run:        runCombined,
	}, nil
}

var openUdevSource = newUdevSource

func selectBlockSource(opts Options) (blockSource, error) {
	switch opts.LinuxSource {
	case "udev":
		return openUdevSource()
	case "sysfs":
		return newSysfsSource(opts.SysfsRoot), nil
	case "", "auto":
		if src, err := openUdevSource(); err == nil {
			return src, nil
		}
		return newSysfsSource(opts.SysfsRoot), nil
	default:
		return nil, fmt.Errorf("unknown linux block source %q", opts.LinuxSource)
	}
}

// usbGroup collects the block nodes that share one usb_device ancestor.
type usbGroup struct {
	usb   *usbAncestor
	disk  string
	nodes []string
}

func (e *linuxEnumerator) Enumerate(ctx context.Context) ([]Candidate, error) {
	blocks, err := e.source.BlockDevices()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSessionUnavailable, e.source.Name(), err)
	}

	var order []string
	groups := map[string]*usbGroup{}
	for _, b := range blocks {
		if b.USB == nil || b.DevNode == "" {
			continue
		}
		g, ok := groups[b.USB.DevPath]
		if !ok {
			g = &usbGroup{usb: b.USB}
			groups[b.USB.DevPath] = g
			order = append(order, b.USB.DevPath)
		}
		if b.DevType == "disk" && g.disk == "" {
			g.disk = b.DevNode
			g.nodes = append([]string{b.DevNode}, g.nodes...)
		} else {
			g.nodes = append(g.nodes, b.DevNode)
		}
	}
	if len(order) == 0 {
		return nil, nil
	}

	mounts := e.mountTable(ctx)
	candidates := make([]Candidate, 0, len(order))
	for _, path := range order {
		g := groups[path]
		c, err := candidateFromUSB(g.usb)
		if err != nil {
			e.logger.Debugw("skipping usb block device", "devpath", path, "error", err)
			continue
		}
		c.DevNode = g.nodes[0]
		for _, node := range g.nodes {
			if mp, ok := mounts[node]; ok {
				c.MountPoint = mp
				break
			}
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func candidateFromUSB(usb *usbAncestor) (Candidate, error) {
	rawVID, okV := usb.attr("idVendor")
	rawPID, okP := usb.attr("idProduct")
	if !okV || !okP {
		return Candidate{}, fmt.Errorf("missing idVendor/idProduct")
	}
	vid, err := ident.ParseHexID(rawVID)
	if err != nil {
		return Candidate{}, fmt.Errorf("idVendor: %w", err)
	}
	pid, err := ident.ParseHexID(rawPID)
	if err != nil {
		return Candidate{}, fmt.Errorf("idProduct: %w", err)
	}
	vendor, ok := usb.attr("manufacturer")
	if !ok {
		return Candidate{}, fmt.Errorf("missing manufacturer")
	}
	product, ok := usb.attr("product")
	if !ok {
		return Candidate{}, fmt.Errorf("missing product")
	}
	serial, _ := usb.attr("serial")
	return Candidate{
		VendorID:     vid,
		ProductID:    pid,
		SerialNumber: serial,
		Product:      product,
		Vendor:       vendor,
		Location:     usb.DevPath,
	}, nil
}

// mountTable maps device nodes to their first mount point. Failures are
// logged and treated as nothing mounted.
func (e *linuxEnumerator) mountTable(ctx context.Context) map[string]string {
	ctx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()

	parts, err := e.partitions(ctx, true)
	if err != nil {
		e.logger.Warnw("reading mount table failed", "error", err)
		return nil
	}
	mounts := make(map[string]string, len(parts))
	for _, p := range parts {
		if _, seen := mounts[p.Device]; !seen && p.Mountpoint != "" {
			mounts[p.Device] = p.Mountpoint
		}
	}
	return mounts
}

// Unmount unmounts every mounted volume of the device, starting with the
// recorded mount point, and reports the failures together.
func (e *linuxEnumerator) Unmount(ctx context.Context, rec device.Record) error {
	var errs error
	for _, mp := range e.volumesOf(ctx, rec) {
		errs = multierr.Append(errs, e.unmountVolume(ctx, mp))
	}
	return errs
}

// volumesOf lists the recorded mount point followed by any other mount of
// the whole disk or one of its partitions.
func (e *linuxEnumerator) volumesOf(ctx context.Context, rec device.Record) []string {
	out := []string{rec.MountPoint}
	if rec.DevNode == "" {
		return out
	}
	ctx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()
	parts, err := e.partitions(ctx, true)
	if err != nil {
		e.logger.Warnw("reading mount table failed", "error", err)
		return out
	}
	for _, p := range parts {
		if p.Mountpoint == "" || (p.Device != rec.DevNode && !isPartitionOf(p.Device, rec.DevNode)) {
			continue
		}
		if !lo.Contains(out, p.Mountpoint) {
			out = append(out, p.Mountpoint)
		}
	}
	return out
}

// isPartitionOf matches sdb1 to sdb and mmcblk0p1 to mmcblk0.
func isPartitionOf(node, disk string) bool {
	rest := strings.TrimPrefix(node, disk)
	if rest == node || rest == "" {
		return false
	}
	rest = strings.TrimPrefix(rest, "p")
	return rest != "" && strings.Trim(rest, "0123456789") == ""
}

// unmountVolume tries umount(2) first and falls back to the umount binary,
// which can use fstab "user" entries when unprivileged.
func (e *linuxEnumerator) unmountVolume(ctx context.Context, mountPoint string) error {
	sysErr := e.unmount(mountPoint, 0)
	if sysErr == nil {
		return nil
	}

	ctx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()
	out, cmdErr := e.run(ctx, "umount", mountPoint)
	if cmdErr == nil {
		return nil
	}
	return &UnmountError{
		MountPoint: mountPoint,
		Reason:     strings.TrimSpace(string(out)),
		Err:        multierr.Combine(sysErr, cmdErr),
	}
}
