package platform

import (
	"fmt"
	"path"

	"howett.net/plist"

	"github.com/gajzzs/usbdrive/internal/ident"
)

// ioregEntry is one USB device node of `ioreg -a -l` output along with the
// BSD name of the first media object below it.
type ioregEntry struct {
	Candidate
	BSDName string
}

// parseIoreg decodes the plist array printed by `ioreg -r -c <class> -a -l`.
// Entries without a BSD name are not mass storage and are dropped, and
// entries sharing a locationID are reported once. serviceClass is the class
// passed to -c; nested nodes of that class belong to their own entry.
func parseIoreg(data []byte, serviceClass string) ([]ioregEntry, []error) {
	var nodes []map[string]interface{}
	if _, err := plist.Unmarshal(data, &nodes); err != nil {
		return nil, []error{fmt.Errorf("decode ioreg output: %w", err)}
	}

	var (
		out  []ioregEntry
		errs []error
		seen = map[string]bool{}
	)
	for _, node := range nodes {
		bsd := findBSDName(node, serviceClass)
		if bsd == "" {
			continue
		}
		entry, err := ioregCandidate(node)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", bsd, err))
			continue
		}
		if entry.Location != "" {
			if seen[entry.Location] {
				continue
			}
			seen[entry.Location] = true
		}
		entry.BSDName = bsd
		entry.DevNode = bsd
		out = append(out, entry)
	}
	return out, errs
}

func ioregCandidate(node map[string]interface{}) (ioregEntry, error) {
	vid, err := plistID(node["idVendor"])
	if err != nil {
		return ioregEntry{}, fmt.Errorf("idVendor: %w", err)
	}
	pid, err := plistID(node["idProduct"])
	if err != nil {
		return ioregEntry{}, fmt.Errorf("idProduct: %w", err)
	}
	product, ok := node["USB Product Name"].(string)
	if !ok {
		return ioregEntry{}, fmt.Errorf("missing USB Product Name")
	}
	vendor, ok := node["USB Vendor Name"].(string)
	if !ok {
		return ioregEntry{}, fmt.Errorf("missing USB Vendor Name")
	}
	serial, _ := node["USB Serial Number"].(string)

	var location string
	if loc, err := plistID(node["locationID"]); err == nil {
		location = ident.Hexify(loc)
	}
	return ioregEntry{Candidate: Candidate{
		VendorID:     vid,
		ProductID:    pid,
		SerialNumber: serial,
		Product:      product,
		Vendor:       vendor,
		Location:     location,
	}}, nil
}

// plistID accepts the integer forms plist decoding produces. A string value
// is hexified once and then parsed, so "1452" and "0x5ac" agree.
func plistID(v interface{}) (int, error) {
	switch n := v.(type) {
	case uint64:
		return int(n), nil
	case int64:
		return int(n), nil
	case int:
		return n, nil
	case float64:
		return int(n), nil
	case string:
		hexed, err := ident.HexifyString(n)
		if err != nil {
			return 0, err
		}
		return ident.ParseHexID(hexed)
	case nil:
		return 0, fmt.Errorf("missing")
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

// findBSDName searches the children of node depth first. It does not
// descend into child USB devices, so a hub never picks up the media of a
// stick plugged into it.
func findBSDName(node map[string]interface{}, serviceClass string) string {
	if name, ok := node["BSD Name"].(string); ok && name != "" {
		return name
	}
	children, _ := node["IORegistryEntryChildren"].([]interface{})
	for _, child := range children {
		m, ok := child.(map[string]interface{})
		if !ok || isUSBDeviceNode(m, serviceClass) {
			continue
		}
		if name := findBSDName(m, serviceClass); name != "" {
			return name
		}
	}
	return ""
}

func isUSBDeviceNode(node map[string]interface{}, serviceClass string) bool {
	if class, _ := node["IOObjectClass"].(string); class != "" && class == serviceClass {
		return true
	}
	_, hasVendor := node["idVendor"]
	_, hasProduct := node["idProduct"]
	return hasVendor || hasProduct
}

type diskutilInfo struct {
	VolumeName string `plist:"VolumeName"`
	MountPoint string `plist:"MountPoint"`
}

// parseDiskutilMount returns the mount point described by
// `diskutil info -plist` output, or "" when the volume has no name.
func parseDiskutilMount(data []byte, volumesDir string) string {
	var info diskutilInfo
	if _, err := plist.Unmarshal(data, &info); err != nil {
		return ""
	}
	if info.VolumeName == "" {
		return ""
	}
	if info.MountPoint != "" {
		return info.MountPoint
	}
	if volumesDir == "" {
		volumesDir = "/Volumes"
	}
	return path.Join(volumesDir, info.VolumeName)
}

// firstSlice is the BSD name of the first partition of a whole disk.
func firstSlice(bsd string) string {
	return bsd + "s1"
}
