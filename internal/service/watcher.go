package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/samber/lo"

	"github.com/gajzzs/usbdrive/internal/device"
	"github.com/gajzzs/usbdrive/internal/logging"
)

// Poller is the part of usbdrive.Driver the watcher needs.
type Poller interface {
	Poll(ctx context.Context) ([]device.Record, error)
}

type ChangeKind string

const (
	Attached  ChangeKind = "attached"
	Detached  ChangeKind = "detached"
	Mounted   ChangeKind = "mounted"
	Unmounted ChangeKind = "unmounted"
)

// Change is one difference between two consecutive passes.
type Change struct {
	Kind   ChangeKind
	Record device.Record
}

func (c Change) String() string {
	return fmt.Sprintf("%s %s", c.Kind, c.Record)
}

// diffKey identifies a physical device across passes. Serial-less devices
// get a new uid every pass, so the topology key is preferred.
func diffKey(r device.Record) string {
	if r.Location != "" {
		return r.Location
	}
	return r.UID
}

// Diff reports what changed between the records of two passes.
func Diff(prev, curr []device.Record) []Change {
	before := lo.KeyBy(prev, diffKey)
	after := lo.KeyBy(curr, diffKey)

	var changes []Change
	for _, key := range sortedKeys(after) {
		rec := after[key]
		old, seen := before[key]
		switch {
		case !seen:
			changes = append(changes, Change{Attached, rec})
		case !old.Mounted() && rec.Mounted():
			changes = append(changes, Change{Mounted, rec})
		case old.Mounted() && !rec.Mounted():
			changes = append(changes, Change{Unmounted, rec})
		}
	}
	gone := lo.OmitByKeys(before, lo.Keys(after))
	for _, key := range sortedKeys(gone) {
		changes = append(changes, Change{Detached, gone[key]})
	}
	return changes
}

func sortedKeys(m map[string]device.Record) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}

// Watcher polls on a fixed interval and reports device changes.
type Watcher struct {
	poller   Poller
	interval time.Duration
	logger   logging.Logger

	// OnChange, if set, is called for every change after it is logged.
	OnChange func(Change)

	mu        sync.Mutex
	last      []device.Record
	primed    bool
	scheduler gocron.Scheduler
}

func NewWatcher(poller Poller, interval time.Duration, logger logging.Logger) *Watcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Watcher{
		poller:   poller,
		interval: interval,
		logger:   logger,
	}
}

// Tick runs one poll and returns the changes since the previous tick. The
// first tick reports every device as attached.
func (w *Watcher) Tick(ctx context.Context) ([]Change, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	recs, err := w.poller.Poll(ctx)
	if err != nil {
		return nil, err
	}
	changes := Diff(w.last, recs)
	if !w.primed {
		w.logger.Infow("watching usb drives", "devices", len(recs), "interval", w.interval)
		w.primed = true
	}
	w.last = recs

	for _, c := range changes {
		w.logger.Infow("usb drive "+string(c.Kind),
			"uid", c.Record.UID,
			"vendor", c.Record.Vendor,
			"product", c.Record.Product,
			"mount", c.Record.MountPoint,
		)
		if w.OnChange != nil {
			w.OnChange(c)
		}
	}
	return changes, nil
}

// Start schedules Tick every interval, beginning immediately.
func (w *Watcher) Start(ctx context.Context) error {
	if w.interval <= 0 {
		return fmt.Errorf("watch interval must be positive, got %s", w.interval)
	}
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(func() {
			if _, err := w.Tick(ctx); err != nil {
				w.logger.Errorw("poll failed", "error", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return fmt.Errorf("schedule poll: %w", err)
	}

	w.mu.Lock()
	w.scheduler = scheduler
	w.mu.Unlock()
	scheduler.Start()
	return nil
}

// Stop stops the schedule and waits for a running tick to finish.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	scheduler := w.scheduler
	w.scheduler = nil
	w.mu.Unlock()
	if scheduler == nil {
		return nil
	}
	return scheduler.Shutdown()
}
