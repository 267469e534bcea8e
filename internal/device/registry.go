package device

import (
	"errors"
	"sort"
	"sync"
)

// ErrEmptyUID is returned when a record without an identifier is stored.
var ErrEmptyUID = errors.New("device record has empty uid")

// Registry maps unique identifiers to the last observed record. It is safe
// for concurrent use; a whole enumeration pass is written under one lock.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[string]*Record)}
}

// PutAll stores every record of one pass atomically with respect to readers.
// Nothing is written if any record lacks a UID. A record replaces the one
// with the same UID, and records left by earlier passes at the same
// non-empty Location are dropped, so a port keeps a single slot even when
// its device has no stable UID.
func (r *Registry) PutAll(recs []Record) error {
	pass := make(map[string]bool, len(recs))
	for _, rec := range recs {
		if rec.UID == "" {
			return ErrEmptyUID
		}
		pass[rec.UID] = true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range recs {
		rec := recs[i]
		if rec.Location != "" {
			for uid, old := range r.records {
				if !pass[uid] && old.Location == rec.Location {
					delete(r.records, uid)
				}
			}
		}
		r.records[rec.UID] = &rec
	}
	return nil
}

// Get returns a copy of the record for uid.
func (r *Registry) Get(uid string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[uid]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// ClearMount empties the mount point of the record in place. It reports
// false when uid is unknown.
func (r *Registry) ClearMount(uid string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[uid]
	if !ok {
		return false
	}
	rec.MountPoint = ""
	return true
}

// Snapshot returns copies of all records ordered by UID.
func (r *Registry) Snapshot() []Record {
	r.mu.RLock()
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, *rec)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}

// Len returns the number of known devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
