package system

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
)

// HostInfo is the part of host.InfoStat shown by "usbdrive service status".
type HostInfo struct {
	Hostname        string
	OS              string
	Platform        string
	PlatformVersion string
	KernelVersion   string
}

func GetHostInfo(ctx context.Context) (HostInfo, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return HostInfo{}, err
	}
	return HostInfo{
		Hostname:        info.Hostname,
		OS:              info.OS,
		Platform:        info.Platform,
		PlatformVersion: info.PlatformVersion,
		KernelVersion:   info.KernelVersion,
	}, nil
}

// VolumeUsage describes the filesystem mounted at a drive's mount point.
type VolumeUsage struct {
	Path        string
	Fstype      string
	Total       uint64
	Used        uint64
	UsedPercent float64
}

func (u VolumeUsage) String() string {
	return fmt.Sprintf("%s of %s used (%.1f%%, %s)", humanBytes(u.Used), humanBytes(u.Total), u.UsedPercent, u.Fstype)
}

func GetVolumeUsage(ctx context.Context, mountPoint string) (VolumeUsage, error) {
	usage, err := disk.UsageWithContext(ctx, mountPoint)
	if err != nil {
		return VolumeUsage{}, fmt.Errorf("usage of %s: %w", mountPoint, err)
	}
	return VolumeUsage{
		Path:        usage.Path,
		Fstype:      usage.Fstype,
		Total:       usage.Total,
		Used:        usage.Used,
		UsedPercent: usage.UsedPercent,
	}, nil
}

func humanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
