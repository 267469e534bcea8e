//go:build linux && !cgo

package platform

import "fmt"

func newUdevSource() (blockSource, error) {
	return nil, fmt.Errorf("udev source needs cgo: %w", ErrUnsupported)
}
