package platform

import (
	"sync"
)

// StorageDeviceNumber mirrors STORAGE_DEVICE_NUMBER as returned by
// IOCTL_STORAGE_GET_DEVICE_NUMBER.
type StorageDeviceNumber struct {
	DeviceType      uint32
	DeviceNumber    uint32
	PartitionNumber uint32
}

type driveKey struct {
	deviceType   uint32
	deviceNumber uint32
}

// DriveCache maps storage device numbers to drive letters such as "E:".
// It is filled on the first Lookup after construction or Reset.
type DriveCache struct {
	// Letters lists the drive letters that currently exist, in order.
	Letters func() []byte
	// Probe returns the device number backing a drive letter.
	Probe func(letter byte) (StorageDeviceNumber, error)

	mu     sync.Mutex
	filled bool
	drives map[driveKey]string
}

// Reset drops the cached mapping so the next Lookup rescans the drives.
func (c *DriveCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filled = false
	c.drives = nil
}

// Lookup returns the drive letter for num, or "" if none maps to it.
func (c *DriveCache) Lookup(num StorageDeviceNumber) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.filled {
		c.fill()
	}
	return c.drives[driveKey{num.DeviceType, num.DeviceNumber}]
}

func (c *DriveCache) fill() {
	c.drives = map[driveKey]string{}
	c.filled = true
	if c.Letters == nil || c.Probe == nil {
		return
	}
	for _, letter := range c.Letters() {
		num, err := c.Probe(letter)
		if err != nil {
			continue
		}
		key := driveKey{num.DeviceType, num.DeviceNumber}
		if _, taken := c.drives[key]; !taken {
			c.drives[key] = string(letter) + ":"
		}
	}
}

// lettersFromMask converts a GetLogicalDrives bitmask into the letters D
// through Z it contains. A and B are floppies and C is the system disk.
func lettersFromMask(mask uint32) []byte {
	var out []byte
	for c := byte('D'); c <= 'Z'; c++ {
		if mask&(1<<(c-'A')) != 0 {
			out = append(out, c)
		}
	}
	return out
}
