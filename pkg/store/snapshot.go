package store

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/lyralabs/lyra/pkg/logger"
)

const snapshotFile = "consciousness_snapshot.json"

// Snapshottable is implemented by engines that contribute scalar fields to
// the wholesale crash-recovery snapshot. Capture must return a plain
// JSON-serializable value; Restore receives exactly what Capture produced.
type Snapshottable interface {
	SnapshotKey() string
	CaptureSnapshot() interface{}
	RestoreSnapshot(raw json.RawMessage) error
}

// Snapshot is the single-file bundle of engine scalars.
type Snapshot struct {
	SavedAt int64                      `json:"saved_at"`
	Engines map[string]json.RawMessage `json:"engines"`
}

// Snapshotter owns registration and the save/restore cycle.
type Snapshotter struct {
	store   *Store
	engines []Snapshottable
}

func NewSnapshotter(store *Store) *Snapshotter {
	return &Snapshotter{store: store}
}

func (sn *Snapshotter) Register(e Snapshottable) {
	sn.engines = append(sn.engines, e)
}

// Save captures every registered engine and writes one bundle file. A
// capture failure skips that engine; the bundle is still written.
func (sn *Snapshotter) Save(now int64) error {
	bundle := Snapshot{SavedAt: now, Engines: map[string]json.RawMessage{}}
	for _, e := range sn.engines {
		raw, err := json.Marshal(e.CaptureSnapshot())
		if err != nil {
			logger.WarnCF("snapshot", "capture failed", map[string]interface{}{
				"engine": e.SnapshotKey(),
				"error":  err.Error(),
			})
			continue
		}
		bundle.Engines[e.SnapshotKey()] = raw
	}
	return sn.store.Save(snapshotFile, &bundle)
}

// Restore loads the bundle and feeds each engine its slice. Engines absent
// from the bundle keep their current state. Returns the restored keys.
func (sn *Snapshotter) Restore() ([]string, error) {
	var bundle Snapshot
	ok, err := sn.store.Load(snapshotFile, &bundle)
	if err != nil || !ok {
		return nil, err
	}
	restored := make([]string, 0, len(sn.engines))
	for _, e := range sn.engines {
		raw, found := bundle.Engines[e.SnapshotKey()]
		if !found {
			continue
		}
		if err := e.RestoreSnapshot(raw); err != nil {
			return restored, fmt.Errorf("restore %s: %w", e.SnapshotKey(), err)
		}
		restored = append(restored, e.SnapshotKey())
	}
	sort.Strings(restored)
	return restored, nil
}
