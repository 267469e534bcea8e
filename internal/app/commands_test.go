package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"

	"github.com/gajzzs/usbdrive/internal/device"
	"github.com/gajzzs/usbdrive/internal/platform"
)

type stubEnumerator struct {
	candidates []platform.Candidate
	err        error
	unmountErr error
}

func (s *stubEnumerator) Enumerate(context.Context) ([]platform.Candidate, error) {
	return s.candidates, s.err
}

func (s *stubEnumerator) Unmount(context.Context, device.Record) error {
	return s.unmountErr
}

func testOptions(t *testing.T, enum *stubEnumerator) (*Options, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	o := NewOptions()
	o.ConfigPath = filepath.Join(t.TempDir(), "config.yaml")
	o.LogLevel = "error"
	o.Out = out
	o.NewEnumerator = func(platform.Options) (platform.Enumerator, error) {
		return enum, nil
	}
	return o, out
}

func twoSticks() []platform.Candidate {
	return []platform.Candidate{
		{VendorID: 0x781, ProductID: 0x5581, SerialNumber: "AA01", Product: "Ultra", Vendor: "SanDisk", MountPoint: "/media/ultra"},
		{VendorID: 0x951, ProductID: 0x1666, SerialNumber: "BB02", Product: "DataTraveler", Vendor: "Kingston"},
	}
}

func TestPollCommandJSON(t *testing.T) {
	o, out := testOptions(t, &stubEnumerator{candidates: twoSticks()})
	cmd := NewPollCommand(o)
	cmd.SetArgs([]string{"--json", "--mounted"})
	test.That(t, cmd.ExecuteContext(context.Background()), test.ShouldBeNil)

	var got []map[string]interface{}
	test.That(t, json.Unmarshal(out.Bytes(), &got), test.ShouldBeNil)
	test.That(t, len(got), test.ShouldEqual, 1)
	test.That(t, got[0]["id"], test.ShouldEqual, "0x781-0x5581-AA01")
	test.That(t, got[0]["mount"], test.ShouldEqual, "/media/ultra")
}

func TestPollCommandTable(t *testing.T) {
	o, out := testOptions(t, &stubEnumerator{candidates: twoSticks()})
	cmd := NewPollCommand(o)
	cmd.SetArgs([]string{})
	test.That(t, cmd.ExecuteContext(context.Background()), test.ShouldBeNil)
	test.That(t, out.String(), test.ShouldContainSubstring, "0x951-0x1666-BB02")
	test.That(t, out.String(), test.ShouldContainSubstring, "(not mounted)")
}

func TestPollCommandSessionError(t *testing.T) {
	o, _ := testOptions(t, &stubEnumerator{err: platform.ErrSessionUnavailable})
	cmd := NewPollCommand(o)
	cmd.SetArgs([]string{})
	err := cmd.ExecuteContext(context.Background())
	test.That(t, errors.Is(err, platform.ErrSessionUnavailable), test.ShouldBeTrue)
}

func TestGetCommandMissingPrintsNull(t *testing.T) {
	o, out := testOptions(t, &stubEnumerator{candidates: twoSticks()})
	cmd := NewGetCommand(o)
	cmd.SetArgs([]string{"--json", "0x1-0x2-none"})
	test.That(t, cmd.ExecuteContext(context.Background()), test.ShouldBeNil)
	test.That(t, out.String(), test.ShouldEqual, "null\n")
}

func TestUnmountCommand(t *testing.T) {
	o, out := testOptions(t, &stubEnumerator{candidates: twoSticks()})
	cmd := NewUnmountCommand(o)
	cmd.SetArgs([]string{"0x781-0x5581-AA01"})
	test.That(t, cmd.ExecuteContext(context.Background()), test.ShouldBeNil)
	test.That(t, out.String(), test.ShouldEqual, "true\n")
}

func TestUnmountCommandFailure(t *testing.T) {
	enum := &stubEnumerator{
		candidates: twoSticks(),
		unmountErr: &platform.UnmountError{MountPoint: "/media/ultra", Reason: "target is busy"},
	}
	o, out := testOptions(t, enum)
	cmd := NewUnmountCommand(o)
	cmd.SetArgs([]string{"0x781-0x5581-AA01"})
	err := cmd.ExecuteContext(context.Background())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "target is busy")
	test.That(t, out.String(), test.ShouldEqual, "false\n")
}

func TestStatusListsRegisteredDevices(t *testing.T) {
	sticks := twoSticks()
	sticks[0].SerialNumber = "ZZ99"
	o, out := testOptions(t, &stubEnumerator{candidates: sticks})
	cmd := NewStatusCommand(o)
	cmd.SetArgs([]string{})
	test.That(t, cmd.ExecuteContext(context.Background()), test.ShouldBeNil)

	got := out.String()
	test.That(t, got, test.ShouldContainSubstring, "Attached: 2")
	first := strings.Index(got, "0x781-0x5581-ZZ99")
	second := strings.Index(got, "0x951-0x1666-BB02")
	test.That(t, first, test.ShouldBeGreaterThan, 0)
	test.That(t, second, test.ShouldBeGreaterThan, first)
}

func TestStatusReportsEnumerationFailure(t *testing.T) {
	o, out := testOptions(t, &stubEnumerator{err: platform.ErrSessionUnavailable})
	cmd := NewStatusCommand(o)
	cmd.SetArgs([]string{})
	test.That(t, cmd.ExecuteContext(context.Background()), test.ShouldBeNil)
	test.That(t, out.String(), test.ShouldContainSubstring, "Enumeration failed")
}

func TestConfigInitAndShow(t *testing.T) {
	o, out := testOptions(t, &stubEnumerator{})
	cmd := NewConfigCommand(o)
	cmd.SetArgs([]string{"init"})
	test.That(t, cmd.ExecuteContext(context.Background()), test.ShouldBeNil)
	test.That(t, out.String(), test.ShouldContainSubstring, o.ConfigPath)

	cmd = NewConfigCommand(o)
	cmd.SetArgs([]string{"init"})
	test.That(t, cmd.ExecuteContext(context.Background()), test.ShouldNotBeNil)

	out.Reset()
	cmd = NewConfigCommand(o)
	cmd.SetArgs([]string{"show"})
	test.That(t, cmd.ExecuteContext(context.Background()), test.ShouldBeNil)

	var shown map[string]interface{}
	test.That(t, json.Unmarshal(out.Bytes(), &shown), test.ShouldBeNil)
	test.That(t, shown["poll"].(map[string]interface{})["interval"], test.ShouldEqual, "1500ms")
}
