// Package testutil provides an in-memory blob store and a fully wired
// service harness for tests.
package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/strata-systems/strata/internal/engine"
	"github.com/strata-systems/strata/internal/graph"
	"github.com/strata-systems/strata/internal/lineage"
	"github.com/strata-systems/strata/internal/lock"
	"github.com/strata-systems/strata/internal/materialize"
	"github.com/strata-systems/strata/internal/service"
	"github.com/strata-systems/strata/internal/snapshot"
	"github.com/strata-systems/strata/internal/store/memory"
	"github.com/strata-systems/strata/internal/table"
	"github.com/strata-systems/strata/internal/transform"
	"github.com/strata-systems/strata/pkg/types"
)

// MemBlob is an in-memory blob store with deterministic, counter-based
// paths.
type MemBlob struct {
	mu   sync.Mutex
	data map[string][]byte
	next int
	Fail bool // force Put failures
}

func NewMemBlob() *MemBlob {
	return &MemBlob{data: make(map[string][]byte)}
}

func (m *MemBlob) NewPath(dataSourceID, label string, _ time.Time) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	return fmt.Sprintf("%s/%06d_%s.csv", dataSourceID, m.next, label)
}

func (m *MemBlob) Put(_ context.Context, path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return types.NewError(types.KindStorageError, "blob store unavailable")
	}
	if _, ok := m.data[path]; ok {
		return types.NewError(types.KindStorageError, "blob %s already exists", path)
	}
	m.data[path] = append([]byte(nil), data...)
	return nil
}

func (m *MemBlob) Get(_ context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[path]
	if !ok {
		return nil, types.NewError(types.KindNotFound, "blob %s not found", path)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemBlob) Copy(ctx context.Context, srcPath, dstPath string) error {
	data, err := m.Get(ctx, srcPath)
	if err != nil {
		return err
	}
	return m.Put(ctx, dstPath, data)
}

func (m *MemBlob) Size(ctx context.Context, path string) (int64, error) {
	data, err := m.Get(ctx, path)
	if err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

// RecordingRunner captures training runner invocations.
type RecordingRunner struct {
	mu    sync.Mutex
	Calls []string // snapshot ids
	Err   error
}

func (r *RecordingRunner) Run(_ context.Context, _ types.Training, snapshotID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, snapshotID)
	return r.Err
}

// Env is a fully wired in-memory engine.
type Env struct {
	Store  *memory.Store
	Blobs  *MemBlob
	Snaps  *snapshot.Manager
	Graph  *graph.Graph
	Engine *engine.Engine
	Mat    *materialize.Materializer
	Tracer *lineage.Tracer
	Svc    *service.Service
	Runner *RecordingRunner
}

// NewEnv wires a service over the memory store and an in-memory blob
// backend. Custom steps run through a subprocess runner with no executor
// configured and fail if reached.
func NewEnv(t *testing.T) *Env {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	st := memory.New()
	blobs := NewMemBlob()
	runner := &RecordingRunner{}

	snaps := snapshot.NewManager(st, blobs, lock.NewKeyedMutex(), log)
	g := graph.New(st)
	reg := transform.NewRegistry()
	eng := engine.New(st, snaps, reg, transform.NewSubprocessRunner(nil), log)
	mat := materialize.New(st, g, eng, log)
	tracer := lineage.New(st, g)
	svc := service.New(st, snaps, g, eng, mat, tracer, reg, runner, log)

	return &Env{
		Store:  st,
		Blobs:  blobs,
		Snaps:  snaps,
		Graph:  g,
		Engine: eng,
		Mat:    mat,
		Tracer: tracer,
		Svc:    svc,
		Runner: runner,
	}
}

// Upload creates a root datasource and uploads csv as its first snapshot.
func (e *Env) Upload(t *testing.T, name, csv string) (*types.DataSource, *types.Snapshot) {
	t.Helper()
	ctx := context.Background()
	ds, err := e.Svc.DefineDatasetUpload(ctx, name)
	require.NoError(t, err)
	snap, err := e.Svc.UploadSnapshot(ctx, ds.ID, []byte(csv))
	require.NoError(t, err)
	ds, err = e.Svc.GetDataSource(ctx, ds.ID)
	require.NoError(t, err)
	return ds, snap
}

// CSV builds a CSV document from a header and rows.
func CSV(header string, rows ...string) string {
	return header + "\n" + strings.Join(rows, "\n") + "\n"
}

// ParseCSV decodes CSV bytes into a table, failing the test on error.
func ParseCSV(t *testing.T, data []byte) *table.Table {
	t.Helper()
	tab, err := table.FromBytes(data)
	require.NoError(t, err)
	return tab
}
