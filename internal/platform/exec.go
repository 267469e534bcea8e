package platform

import (
	"context"
	"os/exec"
)

// commandRunner runs an external tool and returns its output. Tests replace
// it to feed canned ioreg/diskutil/umount output.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

func runCombined(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}
