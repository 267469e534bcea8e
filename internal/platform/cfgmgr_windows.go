//go:build windows

package platform

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

const maxDeviceIDLen = 200

var (
	modcfgmgr32 = windows.NewLazySystemDLL("cfgmgr32.dll")

	procCMGetParent    = modcfgmgr32.NewProc("CM_Get_Parent")
	procCMGetDeviceIDW = modcfgmgr32.NewProc("CM_Get_Device_IDW")
)

func cmGetParent(inst windows.DEVINST) (windows.DEVINST, error) {
	var parent windows.DEVINST
	r, _, _ := procCMGetParent.Call(
		uintptr(unsafe.Pointer(&parent)),
		uintptr(inst),
		0,
	)
	if ret := windows.CONFIGRET(r); ret != windows.CR_SUCCESS {
		return 0, ret
	}
	return parent, nil
}

func cmGetDeviceID(inst windows.DEVINST) (string, error) {
	buf := make([]uint16, maxDeviceIDLen)
	r, _, _ := procCMGetDeviceIDW.Call(
		uintptr(inst),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)),
		0,
	)
	if ret := windows.CONFIGRET(r); ret != windows.CR_SUCCESS {
		return "", ret
	}
	return windows.UTF16ToString(buf), nil
}
