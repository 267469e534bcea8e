package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/gajzzs/usbdrive/internal/config"
	"github.com/gajzzs/usbdrive/internal/device"
	"github.com/gajzzs/usbdrive/internal/ident"
	"github.com/gajzzs/usbdrive/internal/service"
)

func NewPollCommand(o *Options) *cobra.Command {
	var asJSON, mountedOnly bool

	cmd := &cobra.Command{
		Use:   "poll",
		Short: "List attached USB storage devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := o.setup()
			if err != nil {
				return err
			}
			recs, err := e.driver.Poll(cmd.Context())
			if err != nil {
				return err
			}
			if mountedOnly {
				recs = lo.Filter(recs, func(r device.Record, _ int) bool { return r.Mounted() })
			}
			if asJSON {
				return writeJSON(o.Out, recs)
			}
			if len(recs) == 0 {
				fmt.Fprintln(o.Out, "No USB storage devices found")
				return nil
			}
			fmt.Fprintln(o.Out, renderTable(recs))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print devices as JSON")
	cmd.Flags().BoolVar(&mountedOnly, "mounted", false, "only show devices with a mounted volume")
	return cmd
}

func NewGetCommand(o *Options) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "get [uid]",
		Short: "Show a single device by its identifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := o.setup()
			if err != nil {
				return err
			}
			if _, err := e.driver.Poll(cmd.Context()); err != nil {
				return err
			}
			rec, ok := e.driver.Get(args[0])
			if asJSON {
				if !ok {
					return writeJSON(o.Out, nil)
				}
				return writeJSON(o.Out, rec)
			}
			if !ok {
				fmt.Fprintf(o.Out, "Device %s not found\n", args[0])
				return nil
			}
			fmt.Fprintln(o.Out, renderTable([]device.Record{rec}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the device as JSON")
	return cmd
}

func NewUnmountCommand(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "unmount [uid]",
		Short: "Unmount the volume of a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := o.setup()
			if err != nil {
				return err
			}
			if _, err := e.driver.Poll(cmd.Context()); err != nil {
				return err
			}
			ok, err := e.driver.Unmount(cmd.Context(), args[0])
			fmt.Fprintln(o.Out, ok)
			return err
		},
	}
}

func NewWatchCommand(o *Options) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll continuously and log devices as they come and go",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := o.setup()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("interval") {
				e.cfg.Poll.SetInterval(interval)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			w := service.NewWatcher(e.driver, e.cfg.Poll.IntervalDuration(), e.logger.Named("watch"))
			if err := w.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			return w.Stop()
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 1500*time.Millisecond, "time between polls")
	return cmd
}

func NewServiceCommand(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage the usbdrive watch service",
	}

	manager := func(withWatcher bool) (*service.ServiceManager, error) {
		cfg, err := o.loadConfig()
		if err != nil {
			return nil, err
		}
		if !withWatcher {
			return service.NewServiceManager(cfg.Service, o.ConfigPath, nil, nil)
		}
		e, err := o.setup()
		if err != nil {
			return nil, err
		}
		w := service.NewWatcher(e.driver, e.cfg.Poll.IntervalDuration(), e.logger.Named("watch"))
		return service.NewServiceManager(e.cfg.Service, o.ConfigPath, w, e.logger.Named("service"))
	}

	simple := func(use, short, done string, action func(*service.ServiceManager) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				sm, err := manager(false)
				if err != nil {
					return err
				}
				if err := action(sm); err != nil {
					return fmt.Errorf("failed to %s service: %w", use, err)
				}
				fmt.Fprintln(o.Out, done)
				return nil
			},
		}
	}

	cmd.AddCommand(
		simple("install", "Install usbdrive as an OS service", "Service installed",
			(*service.ServiceManager).Install),
		simple("uninstall", "Remove the OS service", "Service uninstalled",
			(*service.ServiceManager).Uninstall),
		simple("start", "Start the installed service", "Service started",
			(*service.ServiceManager).Start),
		simple("stop", "Stop the installed service", "Service stopped",
			(*service.ServiceManager).Stop),
		&cobra.Command{
			Use:   "run",
			Short: "Run the watch loop under the service manager",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				sm, err := manager(true)
				if err != nil {
					return err
				}
				return sm.Run()
			},
		},
		NewStatusCommand(o),
	)
	return cmd
}

func NewConfigCommand(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := o.loadConfig()
				if err != nil {
					return err
				}
				return writeJSON(o.Out, cfg)
			},
		},
		&cobra.Command{
			Use:   "init",
			Short: "Write the default configuration file",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				path := o.ConfigPath
				if path == "" {
					path = config.ConfigFile
				}
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s already exists", path)
				}
				if err := config.Default().Save(path); err != nil {
					return err
				}
				fmt.Fprintf(o.Out, "Wrote %s\n", path)
				return nil
			},
		},
	)
	return cmd
}

func renderTable(recs []device.Record) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"ID", "Vendor", "Product", "VID", "PID", "Serial", "Mount"})
	for _, r := range recs {
		mount := r.MountPoint
		if mount == "" {
			mount = "(not mounted)"
		}
		t.AppendRow(table.Row{
			r.UID,
			r.Vendor,
			r.Product,
			ident.Hexify(r.VendorID),
			ident.Hexify(r.ProductID),
			r.SerialNumber,
			mount,
		})
	}
	return t.Render()
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// registeredDevices runs one pass and returns everything the registry
// knows, ordered by identifier.
func registeredDevices(ctx context.Context, o *Options) ([]device.Record, error) {
	e, err := o.setup()
	if err != nil {
		return nil, err
	}
	if _, err := e.driver.Poll(ctx); err != nil {
		return nil, err
	}
	return e.driver.Registry().Snapshot(), nil
}
