//go:build !linux && !darwin && !windows

package platform

import (
	"context"
	"fmt"
	"runtime"

	"github.com/gajzzs/usbdrive/internal/device"
)

type unsupportedEnumerator struct{}

func newEnumerator(Options) (Enumerator, error) {
	return unsupportedEnumerator{}, nil
}

func (unsupportedEnumerator) Enumerate(context.Context) ([]Candidate, error) {
	return nil, fmt.Errorf("%s: %w", runtime.GOOS, ErrUnsupported)
}

func (unsupportedEnumerator) Unmount(context.Context, device.Record) error {
	return fmt.Errorf("%s: %w", runtime.GOOS, ErrUnsupported)
}
