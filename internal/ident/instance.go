package ident

import (
	"fmt"
	"strings"
)

// InstanceID is the decoded form of a Windows USB device instance ID.
type InstanceID struct {
	VendorID     int
	ProductID    int
	SerialNumber string
}

// ParseDeviceInstanceID decodes strings of the form
//
//	USB\VID_05AC&PID_1234\ABC123
//	USB\VID_05AC&PID_1234&MI_00\6&2B1C3F&0&0000
//
// A '&' where the serial would start means the device reports no serial.
// Serial characters are folded to upper case.
func ParseDeviceInstanceID(raw string) (InstanceID, error) {
	var id InstanceID

	rest, ok := cutPrefixFold(raw, `USB\`)
	if !ok {
		return id, fmt.Errorf("%w: %q: missing USB\\ prefix", ErrMalformedInstanceID, raw)
	}
	rest, ok = cutPrefixFold(rest, "VID_")
	if !ok {
		return id, fmt.Errorf("%w: %q: missing VID_", ErrMalformedInstanceID, raw)
	}

	vid, rest, ok := strings.Cut(rest, "&")
	if !ok {
		return id, fmt.Errorf("%w: %q: truncated after vendor id", ErrMalformedInstanceID, raw)
	}
	rest, ok = cutPrefixFold(rest, "PID_")
	if !ok {
		return id, fmt.Errorf("%w: %q: PID_ must follow '&'", ErrMalformedInstanceID, raw)
	}

	end := strings.IndexAny(rest, `\&`)
	if end < 0 {
		return id, fmt.Errorf("%w: %q: truncated after product id", ErrMalformedInstanceID, raw)
	}
	pid := rest[:end]
	sep := rest[end]
	rest = rest[end+1:]

	var err error
	if id.VendorID, err = ParseHexID(vid); err != nil {
		return id, fmt.Errorf("%w: %q: %v", ErrMalformedInstanceID, raw, err)
	}
	if id.ProductID, err = ParseHexID(pid); err != nil {
		return id, fmt.Errorf("%w: %q: %v", ErrMalformedInstanceID, raw, err)
	}

	if sep == '&' {
		return id, nil
	}
	if i := strings.IndexByte(rest, '&'); i >= 0 {
		rest = rest[:i]
	}
	id.SerialNumber = strings.ToUpper(rest)
	return id, nil
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}
