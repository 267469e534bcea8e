//go:build linux

package platform

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// sysfsSource walks /sys/class/block the way libudev does, without cgo.
type sysfsSource struct {
	root string
}

func newSysfsSource(root string) *sysfsSource {
	if root == "" {
		root = "/sys"
	}
	return &sysfsSource{root: root}
}

func (s *sysfsSource) Name() string { return "sysfs" }

func (s *sysfsSource) BlockDevices() ([]blockDevice, error) {
	root, err := filepath.EvalSymlinks(s.root)
	if err != nil {
		return nil, fmt.Errorf("resolve sysfs root: %w", err)
	}
	classDir := filepath.Join(root, "class", "block")
	entries, err := os.ReadDir(classDir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", classDir, err)
	}

	devicesDir := filepath.Join(root, "devices")
	var out []blockDevice
	for _, entry := range entries {
		syspath, err := filepath.EvalSymlinks(filepath.Join(classDir, entry.Name()))
		if err != nil {
			continue
		}
		uevent := readUevent(filepath.Join(syspath, "uevent"))

		devName := uevent["DEVNAME"]
		if devName == "" {
			devName = entry.Name()
		}
		dev := blockDevice{
			DevNode: "/dev/" + devName,
			DevType: uevent["DEVTYPE"],
		}
		if usbDir := findUSBAncestor(syspath, devicesDir); usbDir != "" {
			dev.USB = &usbAncestor{
				DevPath: strings.TrimPrefix(usbDir, root),
				Attrs:   readAttrs(usbDir, usbAttrs),
			}
		}
		out = append(out, dev)
	}
	return out, nil
}

// findUSBAncestor climbs from syspath towards devicesDir and returns the
// first directory that describes a usb_device.
func findUSBAncestor(syspath, devicesDir string) string {
	for dir := filepath.Dir(syspath); strings.HasPrefix(dir, devicesDir+string(filepath.Separator)); dir = filepath.Dir(dir) {
		if !fileExists(filepath.Join(dir, "idVendor")) || !fileExists(filepath.Join(dir, "idProduct")) {
			continue
		}
		if devType := readUevent(filepath.Join(dir, "uevent"))["DEVTYPE"]; devType != "" && devType != "usb_device" {
			continue
		}
		return dir
	}
	return ""
}

func readAttrs(dir string, names []string) map[string]string {
	attrs := make(map[string]string, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		attrs[name] = strings.TrimSpace(string(data))
	}
	return attrs
}

func readUevent(path string) map[string]string {
	values := map[string]string{}
	f, err := os.Open(path)
	if err != nil {
		return values
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if ok {
			values[key] = value
		}
	}
	return values
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
