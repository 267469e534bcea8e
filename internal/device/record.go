// Package device holds the unified USB storage device model and the
// registry that keeps the last observed record for every identifier.
package device

import (
	"encoding/json"
	"fmt"
)

// Record represents a USB mass-storage device
type Record struct {
	UID          string
	VendorID     int
	ProductID    int
	SerialNumber string
	Product      string
	Vendor       string
	MountPoint   string

	// Location is the platform topology key (macOS locationID, Linux usb
	// devpath, Windows parent instance ID).
	Location string
	// DevNode is the platform handle used to reach the device: the block
	// node on Linux, the BSD name on macOS, the instance ID on Windows.
	DevNode string
}

// Mounted reports whether the record currently has a mount point.
func (r Record) Mounted() bool {
	return r.MountPoint != ""
}

func (r Record) String() string {
	mount := r.MountPoint
	if mount == "" {
		mount = "(not mounted)"
	}
	return fmt.Sprintf("%s %s %s [%s]", r.UID, r.Vendor, r.Product, mount)
}

// boundaryRecord is the externally visible shape. Empty strings are sent as
// null so that "unknown" stays distinguishable from a real value.
type boundaryRecord struct {
	ID           *string `json:"id"`
	VendorID     int     `json:"vendorId"`
	ProductID    int     `json:"productId"`
	Product      *string `json:"product"`
	SerialNumber *string `json:"serialNumber"`
	Manufacturer *string `json:"manufacturer"`
	Mount        *string `json:"mount"`
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(boundaryRecord{
		ID:           nullable(r.UID),
		VendorID:     r.VendorID,
		ProductID:    r.ProductID,
		Product:      nullable(r.Product),
		SerialNumber: nullable(r.SerialNumber),
		Manufacturer: nullable(r.Vendor),
		Mount:        nullable(r.MountPoint),
	})
}
