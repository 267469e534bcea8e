package app

import (
	"fmt"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/gajzzs/usbdrive/internal/config"
	usbservice "github.com/gajzzs/usbdrive/internal/service"
	"github.com/gajzzs/usbdrive/internal/system"
)

func NewStatusCommand(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:                   "status",
		Short:                 "Show service, configuration and device status",
		DisableFlagsInUseLine: true,
		Args:                  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.loadConfig()
			if err != nil {
				return err
			}
			out := o.Out

			fmt.Fprintln(out, "usbdrive status")
			fmt.Fprintln(out, "===============")

			fmt.Fprintln(out, "\nHost:")
			if info, err := system.GetHostInfo(cmd.Context()); err == nil {
				fmt.Fprintf(out, "  Hostname: %s\n", info.Hostname)
				fmt.Fprintf(out, "  OS: %s %s (%s)\n", info.Platform, info.PlatformVersion, info.OS)
				fmt.Fprintf(out, "  Kernel: %s\n", info.KernelVersion)
			} else {
				fmt.Fprintf(out, "  Unavailable: %v\n", err)
			}

			fmt.Fprintln(out, "\nService:")
			fmt.Fprintf(out, "  Name: %s\n", cfg.Service.Name)
			fmt.Fprintf(out, "  Platform: %s\n", service.Platform())
			if sm, err := usbservice.NewServiceManager(cfg.Service, o.ConfigPath, nil, nil); err == nil {
				if status, err := sm.Status(); err == nil {
					fmt.Fprintf(out, "  Status: %s\n", status)
				} else {
					fmt.Fprintln(out, "  Status: Not installed")
				}
				fmt.Fprintf(out, "  Definition: %s\n", sm.ConfigPath())
			} else {
				fmt.Fprintln(out, "  Status: Not available")
			}

			fmt.Fprintln(out, "\nConfiguration:")
			path := o.ConfigPath
			if path == "" {
				path = config.ConfigFile
			}
			fmt.Fprintf(out, "  File: %s\n", path)
			fmt.Fprintf(out, "  Poll interval: %s\n", cfg.Poll.IntervalDuration())
			fmt.Fprintf(out, "  Linux source: %s\n", cfg.Linux.Source)

			fmt.Fprintln(out, "\nDevices:")
			recs, err := registeredDevices(cmd.Context(), o)
			if err != nil {
				fmt.Fprintf(out, "  Enumeration failed: %v\n", err)
				return nil
			}
			fmt.Fprintf(out, "  Attached: %d\n", len(recs))
			for _, r := range recs {
				fmt.Fprintf(out, "  %s\n", r)
				if !r.Mounted() {
					continue
				}
				if usage, err := system.GetVolumeUsage(cmd.Context(), r.MountPoint); err == nil {
					fmt.Fprintf(out, "    %s\n", usage)
				}
			}
			return nil
		},
	}
}
