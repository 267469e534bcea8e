package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.viam.com/test"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	test.That(t, os.WriteFile(path, []byte(content), 0o644), test.ShouldBeNil)
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	test.That(t, cfg.Poll.IntervalDuration(), test.ShouldEqual, 1500*time.Millisecond)
	test.That(t, cfg.Poll.CommandTimeoutDuration(), test.ShouldEqual, 10*time.Second)
	test.That(t, cfg.Linux.Source, test.ShouldEqual, SourceAuto)
	test.That(t, cfg.Darwin.ServiceClass, test.ShouldEqual, "IOUSBHostDevice")
	test.That(t, cfg.Darwin.VolumesDir, test.ShouldEqual, "/Volumes")
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg, test.ShouldResemble, Default())
}

func TestLoadYAML(t *testing.T) {
	t.Setenv("USBDRIVE_TEST_SYSFS", "/tmp/fake-sys")
	path := writeFile(t, "config.yaml", `
log:
  level: debug
poll:
  interval: 5s
linux:
  source: sysfs
  sysfs_root: ${USBDRIVE_TEST_SYSFS}
darwin:
  service_class: IOUSBDevice
`)
	cfg, err := Load(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Log.Level, test.ShouldEqual, "debug")
	test.That(t, cfg.Log.Format, test.ShouldEqual, "console")
	test.That(t, cfg.Poll.IntervalDuration(), test.ShouldEqual, 5*time.Second)
	test.That(t, cfg.Poll.CommandTimeoutDuration(), test.ShouldEqual, 10*time.Second)
	test.That(t, cfg.Linux.Source, test.ShouldEqual, SourceSysfs)
	test.That(t, cfg.Linux.SysfsRoot, test.ShouldEqual, "/tmp/fake-sys")
	test.That(t, cfg.Darwin.ServiceClass, test.ShouldEqual, "IOUSBDevice")
	test.That(t, cfg.Darwin.VolumesDir, test.ShouldEqual, "/Volumes")
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{"log": {"format": "json"}, "poll": {"command_timeout": "2s"}}`)
	cfg, err := Load(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Log.Format, test.ShouldEqual, "json")
	test.That(t, cfg.Poll.CommandTimeoutDuration(), test.ShouldEqual, 2*time.Second)
}

func TestLoadInvalid(t *testing.T) {
	for name, content := range map[string]string{
		"interval": "poll:\n  interval: soon\n",
		"negative": "poll:\n  interval: -1s\n",
		"timeout":  "poll:\n  command_timeout: later\n",
		"source":   "linux:\n  source: hal\n",
		"service":  "service:\n  name: \"\"\n",
		"syntax":   "log: [unterminated\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, "config.yaml", content))
			test.That(t, err, test.ShouldNotBeNil)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Poll.SetInterval(3 * time.Second)
	test.That(t, cfg.Save(path), test.ShouldBeNil)

	loaded, err := Load(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loaded.Poll.IntervalDuration(), test.ShouldEqual, 3*time.Second)
	test.That(t, loaded.Service, test.ShouldResemble, cfg.Service)
}
