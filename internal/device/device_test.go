package device

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"go.viam.com/test"
)

func sampleRecord() Record {
	return Record{
		UID:          "0x781-0x5567-4C530001",
		VendorID:     0x0781,
		ProductID:    0x5567,
		SerialNumber: "4C530001",
		Product:      "Cruzer Blade",
		Vendor:       "SanDisk",
		MountPoint:   "/media/usb0",
		Location:     "/devices/pci0000:00/0000:00:14.0/usb1/1-2",
		DevNode:      "/dev/sdb",
	}
}

func TestRecordJSONUsesNullForEmpty(t *testing.T) {
	rec := sampleRecord()
	rec.SerialNumber = ""
	rec.MountPoint = ""

	data, err := json.Marshal(rec)
	test.That(t, err, test.ShouldBeNil)

	var m map[string]interface{}
	test.That(t, json.Unmarshal(data, &m), test.ShouldBeNil)
	test.That(t, m["id"], test.ShouldEqual, rec.UID)
	test.That(t, m["vendorId"], test.ShouldEqual, float64(0x0781))
	test.That(t, m["productId"], test.ShouldEqual, float64(0x5567))
	test.That(t, m["manufacturer"], test.ShouldEqual, "SanDisk")
	test.That(t, m["product"], test.ShouldEqual, "Cruzer Blade")

	serial, ok := m["serialNumber"]
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, serial, test.ShouldBeNil)
	mount, ok := m["mount"]
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, mount, test.ShouldBeNil)
}

func TestRegistryPutGet(t *testing.T) {
	reg := NewRegistry()
	_, ok := reg.Get("missing")
	test.That(t, ok, test.ShouldBeFalse)

	rec := sampleRecord()
	test.That(t, reg.PutAll([]Record{rec}), test.ShouldBeNil)
	got, ok := reg.Get(rec.UID)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, got, test.ShouldResemble, rec)

	test.That(t, reg.PutAll([]Record{{}}), test.ShouldEqual, ErrEmptyUID)
	test.That(t, reg.Len(), test.ShouldEqual, 1)
}

func TestRegistryReplacesRatherThanMerges(t *testing.T) {
	reg := NewRegistry()
	rec := sampleRecord()
	test.That(t, reg.PutAll([]Record{rec}), test.ShouldBeNil)

	next := Record{UID: rec.UID, VendorID: rec.VendorID, ProductID: rec.ProductID}
	test.That(t, reg.PutAll([]Record{next}), test.ShouldBeNil)

	got, _ := reg.Get(rec.UID)
	test.That(t, got, test.ShouldResemble, next)
}

func TestRegistryReturnsCopies(t *testing.T) {
	reg := NewRegistry()
	rec := sampleRecord()
	test.That(t, reg.PutAll([]Record{rec}), test.ShouldBeNil)

	got, _ := reg.Get(rec.UID)
	got.MountPoint = "/elsewhere"
	again, _ := reg.Get(rec.UID)
	test.That(t, again.MountPoint, test.ShouldEqual, "/media/usb0")

	snap := reg.Snapshot()
	snap[0].Product = "changed"
	again, _ = reg.Get(rec.UID)
	test.That(t, again.Product, test.ShouldEqual, "Cruzer Blade")
}

func TestRegistryClearMount(t *testing.T) {
	reg := NewRegistry()
	rec := sampleRecord()
	test.That(t, reg.PutAll([]Record{rec}), test.ShouldBeNil)

	test.That(t, reg.ClearMount("missing"), test.ShouldBeFalse)
	test.That(t, reg.ClearMount(rec.UID), test.ShouldBeTrue)

	got, _ := reg.Get(rec.UID)
	want := rec
	want.MountPoint = ""
	test.That(t, got, test.ShouldResemble, want)
}

func TestRegistryPutAllRejectsEmptyUID(t *testing.T) {
	reg := NewRegistry()
	err := reg.PutAll([]Record{sampleRecord(), {VendorID: 1}})
	test.That(t, err, test.ShouldEqual, ErrEmptyUID)
	test.That(t, reg.Len(), test.ShouldEqual, 0)
}

func TestRegistryLocationKeepsOneSlot(t *testing.T) {
	reg := NewRegistry()
	for i := 0; i < 50; i++ {
		rec := Record{UID: fmt.Sprintf("0x5ac-0x1234-0x%04x", i), Location: "0x14100000"}
		test.That(t, reg.PutAll([]Record{rec}), test.ShouldBeNil)
	}
	test.That(t, reg.Len(), test.ShouldEqual, 1)
	_, ok := reg.Get("0x5ac-0x1234-0x0031")
	test.That(t, ok, test.ShouldBeTrue)
	_, ok = reg.Get("0x5ac-0x1234-0x0000")
	test.That(t, ok, test.ShouldBeFalse)

	test.That(t, reg.PutAll([]Record{{UID: "other", Location: "0x14200000"}, {UID: "unplaced"}}), test.ShouldBeNil)
	test.That(t, reg.Len(), test.ShouldEqual, 3)
}

func TestRegistryLocationSharedWithinPass(t *testing.T) {
	reg := NewRegistry()
	test.That(t, reg.PutAll([]Record{
		{UID: "lun0", Location: `USB\VID_058F&PID_6366\058F63666433`},
		{UID: "lun1", Location: `USB\VID_058F&PID_6366\058F63666433`},
	}), test.ShouldBeNil)
	test.That(t, reg.Len(), test.ShouldEqual, 2)

	test.That(t, reg.PutAll([]Record{
		{UID: "lun0", Location: `USB\VID_058F&PID_6366\058F63666433`},
	}), test.ShouldBeNil)
	test.That(t, reg.Len(), test.ShouldEqual, 1)
}

func TestRegistrySnapshotSorted(t *testing.T) {
	reg := NewRegistry()
	test.That(t, reg.PutAll([]Record{{UID: "c"}, {UID: "a"}, {UID: "b"}}), test.ShouldBeNil)
	snap := reg.Snapshot()
	test.That(t, snap, test.ShouldHaveLength, 3)
	test.That(t, snap[0].UID, test.ShouldEqual, "a")
	test.That(t, snap[2].UID, test.ShouldEqual, "c")
}

func TestRegistryConcurrentAccess(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				uid := fmt.Sprintf("dev-%d-%d", i, j%10)
				_ = reg.PutAll([]Record{{UID: uid, MountPoint: "/mnt"}})
				reg.ClearMount(uid)
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				reg.Snapshot()
				reg.Get("dev-0-0")
			}
		}()
	}
	wg.Wait()
	test.That(t, reg.Len(), test.ShouldEqual, 80)
}
