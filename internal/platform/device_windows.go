//go:build windows

package platform

import (
	"context"
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/gajzzs/usbdrive/internal/device"
	"github.com/gajzzs/usbdrive/internal/ident"
	"github.com/gajzzs/usbdrive/internal/logging"
)

const ioctlStorageGetDeviceNumber = 0x2D1080

// GUID_DEVINTERFACE_DISK
var guidDevInterfaceDisk = windows.GUID{
	Data1: 0x53f56307,
	Data2: 0xb6bf,
	Data3: 0x11d0,
	Data4: [8]byte{0x94, 0xf2, 0x00, 0xa0, 0xc9, 0x1e, 0xfb, 0x8b},
}

type winEnumerator struct {
	logger logging.Logger
	drives *DriveCache
}

func newEnumerator(opts Options) (Enumerator, error) {
	return &winEnumerator{
		logger: opts.Logger,
		drives: &DriveCache{
			Letters: logicalDriveLetters,
			Probe:   probeDriveLetter,
		},
	}, nil
}

func (e *winEnumerator) Enumerate(ctx context.Context) ([]Candidate, error) {
	e.drives.Reset()

	devs, err := windows.SetupDiGetClassDevsEx(&guidDevInterfaceDisk, "", 0,
		windows.DIGCF_PRESENT|windows.DIGCF_DEVICEINTERFACE, 0, "")
	if err != nil {
		return nil, fmt.Errorf("%w: SetupDiGetClassDevsEx: %v", ErrSessionUnavailable, err)
	}
	defer devs.Close()

	var candidates []Candidate
	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return candidates, err
		}
		data, err := devs.EnumDeviceInfo(i)
		if errors.Is(err, windows.ERROR_NO_MORE_ITEMS) {
			break
		}
		if err != nil {
			e.logger.Debugw("SetupDiEnumDeviceInfo failed", "index", i, "error", err)
			continue
		}
		c, err := e.candidate(devs, data)
		if err != nil {
			e.logger.Debugw("skipping disk", "index", i, "error", err)
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func (e *winEnumerator) candidate(devs windows.DevInfo, data *windows.DevInfoData) (Candidate, error) {
	product, err := registryString(devs, data, windows.SPDRP_FRIENDLYNAME)
	if err != nil {
		return Candidate{}, fmt.Errorf("friendly name: %w", err)
	}
	vendor, err := registryString(devs, data, windows.SPDRP_MFG)
	if err != nil {
		return Candidate{}, fmt.Errorf("manufacturer: %w", err)
	}

	var mount string
	if num, err := diskDeviceNumber(devs, data); err != nil {
		e.logger.Debugw("no storage device number", "product", product, "error", err)
	} else {
		mount = e.drives.Lookup(num)
	}

	parent, err := cmGetParent(data.DevInst)
	if err != nil {
		return Candidate{}, fmt.Errorf("CM_Get_Parent: %w", err)
	}
	parentID, err := cmGetDeviceID(parent)
	if err != nil {
		return Candidate{}, fmt.Errorf("CM_Get_Device_ID: %w", err)
	}
	id, err := ident.ParseDeviceInstanceID(parentID)
	if err != nil {
		return Candidate{}, err
	}

	return Candidate{
		VendorID:     id.VendorID,
		ProductID:    id.ProductID,
		SerialNumber: id.SerialNumber,
		Product:      product,
		Vendor:       vendor,
		MountPoint:   mount,
		Location:     parentID,
		DevNode:      parentID,
	}, nil
}

func registryString(devs windows.DevInfo, data *windows.DevInfoData, prop windows.SPDRP) (string, error) {
	v, err := devs.DeviceRegistryProperty(data, prop)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("unexpected type %T", v)
	}
	return s, nil
}

func diskDeviceNumber(devs windows.DevInfo, data *windows.DevInfoData) (StorageDeviceNumber, error) {
	instanceID, err := devs.DeviceInstanceID(data)
	if err != nil {
		return StorageDeviceNumber{}, err
	}
	paths, err := windows.CM_Get_Device_Interface_List(instanceID, &guidDevInterfaceDisk,
		windows.CM_GET_DEVICE_INTERFACE_LIST_PRESENT)
	if err != nil {
		return StorageDeviceNumber{}, err
	}
	if len(paths) == 0 || paths[0] == "" {
		return StorageDeviceNumber{}, fmt.Errorf("no disk interface for %s", instanceID)
	}
	return deviceNumberForPath(paths[0], 0)
}

func deviceNumberForPath(path string, access uint32) (StorageDeviceNumber, error) {
	name, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return StorageDeviceNumber{}, err
	}
	h, err := windows.CreateFile(name, access,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE, nil, windows.OPEN_EXISTING, 0, 0)
	if err != nil {
		return StorageDeviceNumber{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer windows.CloseHandle(h)

	var num StorageDeviceNumber
	var returned uint32
	err = windows.DeviceIoControl(h, ioctlStorageGetDeviceNumber, nil, 0,
		(*byte)(unsafe.Pointer(&num)), uint32(unsafe.Sizeof(num)), &returned, nil)
	if err != nil {
		return StorageDeviceNumber{}, fmt.Errorf("IOCTL_STORAGE_GET_DEVICE_NUMBER: %w", err)
	}
	return num, nil
}

func logicalDriveLetters() []byte {
	mask, err := windows.GetLogicalDrives()
	if err != nil {
		return nil
	}
	return lettersFromMask(mask)
}

func probeDriveLetter(letter byte) (StorageDeviceNumber, error) {
	return deviceNumberForPath(`\\.\`+string(letter)+":", windows.GENERIC_READ)
}

// Unmount is not implemented on Windows; ejecting needs CM_Request_Device_Eject
// on the parent devinst.
func (e *winEnumerator) Unmount(_ context.Context, rec device.Record) error {
	return &UnmountError{MountPoint: rec.MountPoint, Err: ErrUnsupported}
}
