// Package ident turns the identifier strings reported by the OS device
// managers into canonical vendor/product values and derives the unique
// identifier a device is registered under.
package ident

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
)

// ErrMalformedInstanceID is returned when a device instance ID does not
// follow the USB\VID_xxxx&PID_yyyy[\serial] grammar.
var ErrMalformedInstanceID = errors.New("malformed device instance id")

// Hexify renders n as 0x followed by lowercase hex digits.
func Hexify(n int) string {
	return fmt.Sprintf("0x%x", n)
}

// HexifyString canonicalizes an identifier that was surfaced as a string.
// A value that already carries a 0x prefix is only lower-cased; anything else
// is read as decimal and converted once.
func HexifyString(s string) (string, error) {
	s = strings.TrimSpace(s)
	if hasHexPrefix(s) {
		n, err := ParseHexID(s)
		if err != nil {
			return "", err
		}
		return Hexify(n), nil
	}
	n, err := ParseDecimalID(s)
	if err != nil {
		return "", err
	}
	return Hexify(n), nil
}

// ParseHexID parses a bare or 0x-prefixed hexadecimal identifier such as the
// idVendor sysfs attribute ("05ac") or a CfgMgr VID field.
func ParseHexID(s string) (int, error) {
	s = strings.TrimSpace(s)
	if hasHexPrefix(s) {
		s = s[2:]
	}
	if s == "" {
		return 0, fmt.Errorf("empty hex identifier")
	}
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("parse hex identifier %q: %w", s, err)
	}
	return int(n), nil
}

// ParseDecimalID parses a decimal identifier.
func ParseDecimalID(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty decimal identifier")
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse decimal identifier %q: %w", s, err)
	}
	return int(n), nil
}

func hasHexPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

// Codec derives unique identifiers. Devices without a serial number get a
// counter suffix, so their identifiers are unique within the lifetime of the
// Codec but not stable across passes or processes.
type Codec struct {
	unserialized atomic.Uint64
}

// DeriveUID returns {vendor}-{product}-{serial|counter}.
func (c *Codec) DeriveUID(vendorID, productID int, serial string) string {
	tail := serial
	if tail == "" {
		n := c.unserialized.Add(1) - 1
		tail = fmt.Sprintf("0x%04x", n)
	}
	return Hexify(vendorID) + "-" + Hexify(productID) + "-" + tail
}

var defaultCodec Codec

// DeriveUID derives an identifier using the process-wide codec shared by
// every backend.
func DeriveUID(vendorID, productID int, serial string) string {
	return defaultCodec.DeriveUID(vendorID, productID, serial)
}
