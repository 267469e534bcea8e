//go:build linux

package platform

// blockDevice is one block node (disk or partition) of the "block"
// subsystem together with its nearest usb_device ancestor, if any.
type blockDevice struct {
	DevNode string
	DevType string
	USB     *usbAncestor
}

// usbAncestor carries the sysfs attributes of a usb_device node. Attrs only
// contains attributes that could be read.
type usbAncestor struct {
	DevPath string
	Attrs   map[string]string
}

func (u *usbAncestor) attr(name string) (string, bool) {
	v, ok := u.Attrs[name]
	return v, ok
}

// usbAttrs are the usb_device attributes read for every candidate.
var usbAttrs = []string{"idVendor", "idProduct", "serial", "manufacturer", "product"}

// blockSource lists block devices. An error means the source itself could
// not be opened.
type blockSource interface {
	Name() string
	BlockDevices() ([]blockDevice, error)
}
