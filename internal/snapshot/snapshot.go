// Package snapshot manages immutable snapshot records and their backing
// blobs: creation, copy-on-write of active snapshots, and content access.
package snapshot

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/strata-systems/strata/internal/blob"
	"github.com/strata-systems/strata/internal/lock"
	"github.com/strata-systems/strata/internal/metrics"
	"github.com/strata-systems/strata/internal/store"
	"github.com/strata-systems/strata/pkg/types"
)

// Manager writes snapshot content before metadata so a crash can leave an
// orphaned blob but never a dangling record.
type Manager struct {
	store store.Store
	blobs blob.Store
	locks lock.Manager
	log   *slog.Logger
	now   func() time.Time
}

func NewManager(st store.Store, blobs blob.Store, locks lock.Manager, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		store: st,
		blobs: blobs,
		locks: locks,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Create stores data as a new immutable snapshot of the datasource. The
// label distinguishes how the snapshot came to be (upload, input, exec,
// append) in the blob path.
func (m *Manager) Create(ctx context.Context, dataSourceID string, data []byte, label string) (*types.Snapshot, error) {
	at := m.now()
	snap := types.Snapshot{
		ID:           ulid.Make().String(),
		DataSourceID: dataSourceID,
		Path:         m.blobs.NewPath(dataSourceID, label, at),
		CreatedAt:    at,
	}
	if err := m.blobs.Put(ctx, snap.Path, data); err != nil {
		return nil, err
	}
	if err := m.store.CreateSnapshot(ctx, snap); err != nil {
		return nil, err
	}
	metrics.SnapshotsCreated.Add(1)
	m.log.Debug("snapshot created",
		"snapshot_id", snap.ID, "datasource_id", dataSourceID, "label", label)
	return &snap, nil
}

// CopyIfActive returns snap unchanged unless it is currently the active
// snapshot of its datasource, in which case a byte-identical copy with a
// fresh id is created and returned. Executions consume the copy so the
// active version a user sees is never an execution input record.
//
// The check and copy run under a per-datasource lock so two concurrent
// executions cannot both observe the same active snapshot and race the
// pointer.
func (m *Manager) CopyIfActive(ctx context.Context, snap *types.Snapshot) (*types.Snapshot, error) {
	key := "ds:" + snap.DataSourceID
	if err := m.locks.Acquire(ctx, key, 30*time.Second); err != nil {
		return nil, types.WrapError(types.KindStorageError, err, "locking datasource %s", snap.DataSourceID)
	}
	defer m.locks.Release(ctx, key)

	ds, err := m.store.GetDataSource(ctx, snap.DataSourceID)
	if err != nil {
		return nil, err
	}
	if ds.ActiveSnapshotID != snap.ID {
		return snap, nil
	}

	at := m.now()
	dup := types.Snapshot{
		ID:           ulid.Make().String(),
		DataSourceID: snap.DataSourceID,
		Path:         m.blobs.NewPath(snap.DataSourceID, "input", at),
		CreatedAt:    at,
	}
	if err := m.blobs.Copy(ctx, snap.Path, dup.Path); err != nil {
		return nil, err
	}
	if err := m.store.CreateSnapshot(ctx, dup); err != nil {
		return nil, err
	}
	metrics.SnapshotsCreated.Add(1)
	metrics.SnapshotCopies.Add(1)
	m.log.Debug("active snapshot copied for execution",
		"snapshot_id", snap.ID, "copy_id", dup.ID, "datasource_id", snap.DataSourceID)
	return &dup, nil
}

// Download returns the raw CSV bytes of a snapshot.
func (m *Manager) Download(ctx context.Context, snapshotID string) ([]byte, error) {
	snap, err := m.store.GetSnapshot(ctx, snapshotID)
	if err != nil {
		return nil, err
	}
	return m.blobs.Get(ctx, snap.Path)
}

// Size reports the stored byte size of a snapshot without reading it.
func (m *Manager) Size(ctx context.Context, snapshotID string) (int64, error) {
	snap, err := m.store.GetSnapshot(ctx, snapshotID)
	if err != nil {
		return 0, err
	}
	return m.blobs.Size(ctx, snap.Path)
}
